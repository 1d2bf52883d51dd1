/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Package subscription keeps a best-effort, auto-reconnecting link to a
// server-pushed stream and exposes its latest payload and connectivity.
package subscription

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/kidneykidney/inventory-with-better-ui--sub001/pkg/notify"
	"go.uber.org/zap"
)

// Snapshot is a consistent copy of the observable outputs
type Snapshot struct {
	State        State
	Payload      any
	Connected    bool
	Err          error
	RetryCount   int
	ConnectionID string
	UpdatedAt    time.Time
}

// Subscription keeps an auto-reconnecting link to a streaming endpoint and
// exposes the latest payload, connectivity, error and retry count.
type Subscription struct {
	endpoint  string
	transport Transport
	opts      options
	logger    *zap.Logger

	mu        sync.Mutex
	state     State
	current   *link           // Connection owning the state; stale callbacks compare against it
	timer     clockwork.Timer // Pending reconnect timer
	timerGen  uint64          // Bumped whenever a timer is scheduled or cancelled
	payload   any
	err       error
	retries   int
	updatedAt time.Time
}

// link is the listener handed to the transport for one connection
type link struct {
	s      *Subscription
	id     string
	conn   Conn
	opened bool
	failed bool // connect_failed already reported for this connection
}

func (l *link) OnOpen()                         { l.s.handle(input{trigger: triggerOpened, link: l}) }
func (l *link) OnError(err error)               { l.s.handle(input{trigger: triggerError, link: l, err: err}) }
func (l *link) OnClose(code int, reason string) { l.s.handle(input{trigger: triggerClosed, link: l, code: code, reason: reason}) }
func (l *link) OnMessage(data []byte)           { l.s.handleMessage(l, data) }

type trigger int

const (
	triggerStart trigger = iota
	triggerStop
	triggerOpened
	triggerError
	triggerClosed
	triggerTimer
)

// input is one event fed to the state machine
type input struct {
	trigger  trigger
	link     *link
	err      error
	code     int
	reason   string
	timerGen uint64
}

// effects collects the side effects of a transition so they run after the lock is released
type effects struct {
	events        []Event
	notifications []notify.Notification
	closes        []closeRequest
	changed       bool
	snapshot      Snapshot
}

type closeRequest struct {
	conn   Conn
	id     string
	reason string
}

// New creates a subscription for endpoint. It starts disabled.
func New(endpoint string, transport Transport, opts ...Option) (*Subscription, error) {
	if transport == nil {
		return nil, ErrNilTransport
	}
	if err := validateEndpoint(endpoint); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.backoff.Validate(); err != nil {
		return nil, err
	}

	return &Subscription{
		endpoint:  endpoint,
		transport: transport,
		opts:      o,
		logger:    o.logger.With(zap.String("component", "subscription")),
		state:     Disabled,
	}, nil
}

func validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: scheme must be ws or wss, got %q", ErrInvalidEndpoint, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidEndpoint)
	}
	return nil
}

// Endpoint returns the address the subscription connects to
func (s *Subscription) Endpoint() string {
	return s.endpoint
}

// Start enables the subscription. Enabling an already enabled subscription is a
// no-op, including after the retry budget ran out; Stop must be called first.
// Start(false) is the same as Stop.
func (s *Subscription) Start(enabled bool) {
	if !enabled {
		s.Stop()
		return
	}
	s.handle(input{trigger: triggerStart})
}

// Stop disables the subscription. The pending reconnect timer is cancelled and
// the transport is sent the intentional close before Stop returns. Idempotent.
func (s *Subscription) Stop() {
	s.handle(input{trigger: triggerStop})
}

// Restart stops and re-enables the subscription with a fresh retry budget
func (s *Subscription) Restart() {
	s.Stop()
	s.Start(true)
}

// Send encodes msg and writes it to the open connection. When no connection is
// open the call does nothing apart from emitting a send_while_closed warning.
func (s *Subscription) Send(msg any) error {
	s.mu.Lock()
	var conn Conn
	var id string
	if s.state == Open && s.current != nil {
		conn = s.current.conn
		id = s.current.id
	}
	state := s.state
	s.mu.Unlock()

	if conn == nil {
		s.dispatch(&effects{events: []Event{{
			Type:     EventSendWhileClosed,
			Endpoint: s.endpoint,
			State:    state,
			Err:      ErrNotConnected,
		}}})
		return nil
	}

	data, err := s.opts.encoder(msg)
	if err != nil {
		return fmt.Errorf("failed to encode stream message: %w", err)
	}
	if err := conn.Send(data); err != nil {
		return fmt.Errorf("%w: failed to send message: %w", ErrTransport, err)
	}

	s.dispatch(&effects{events: []Event{{
		Type:         EventMessageSent,
		Endpoint:     s.endpoint,
		ConnectionID: id,
		State:        state,
		Size:         len(data),
	}}})
	return nil
}

// Snapshot returns the observable outputs
func (s *Subscription) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// State returns the current lifecycle state
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Payload returns the last successfully decoded payload, nil if none
func (s *Subscription) Payload() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payload
}

// IsConnected returns true if the transport is open
func (s *Subscription) IsConnected() bool {
	return s.State() == Open
}

// Err returns the latest error, nil if none
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// RetryCount returns the number of consecutive reconnect attempts
func (s *Subscription) RetryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retries
}

func (s *Subscription) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:      s.state,
		Payload:    s.payload,
		Connected:  s.state == Open,
		Err:        s.err,
		RetryCount: s.retries,
		UpdatedAt:  s.updatedAt,
	}
	if s.current != nil {
		snap.ConnectionID = s.current.id
	}
	return snap
}

// handle runs one state machine step and then its side effects
func (s *Subscription) handle(in input) {
	out := &effects{}

	s.mu.Lock()
	s.step(in, out)
	if out.changed {
		s.updatedAt = s.opts.clock.Now()
		out.snapshot = s.snapshotLocked()
	}
	s.mu.Unlock()

	s.dispatch(out)
}

// step is the single transition function of the subscription. Callers hold s.mu.
func (s *Subscription) step(in input, out *effects) {
	if in.link != nil && in.link != s.current {
		// Late callback from a connection that was stopped or superseded.
		if in.trigger == triggerOpened && in.link.conn != nil {
			out.closes = append(out.closes, closeRequest{conn: in.link.conn, id: in.link.id, reason: closeReasonSuperseded})
		}
		return
	}

	switch in.trigger {
	case triggerStart:
		if s.state != Disabled {
			return
		}
		s.connect(out)

	case triggerStop:
		if s.state == Disabled {
			return
		}
		s.cancelTimer()
		id := ""
		if s.current != nil {
			id = s.current.id
			if s.current.conn != nil {
				out.closes = append(out.closes, closeRequest{conn: s.current.conn, id: id, reason: closeReasonManual})
			}
			s.current = nil
		}
		s.payload = nil
		s.err = nil
		s.retries = 0
		s.setState(Disabled, out)
		s.emit(out, Event{Type: EventManualDisconnect, ConnectionID: id})

	case triggerOpened:
		if s.state != Connecting {
			return
		}
		in.link.opened = true
		s.retries = 0
		s.err = nil
		s.setState(Open, out)
		s.emit(out, Event{Type: EventConnectSucceeded, ConnectionID: in.link.id})
		s.notify(out, notify.LevelSuccess, "Real-time connection established")

	case triggerError:
		if s.state != Connecting && s.state != Open {
			return
		}
		cause := in.err
		if cause == nil {
			cause = ErrConnectionLost
		}
		s.err = fmt.Errorf("%w: %w", ErrTransport, cause)
		wasConnecting := s.state == Connecting
		s.setState(Closing, out)
		if wasConnecting {
			in.link.failed = true
			s.emit(out, Event{Type: EventConnectFailed, ConnectionID: in.link.id, Err: s.err})
		}

	case triggerClosed:
		if s.state != Connecting && s.state != Open && s.state != Closing {
			return
		}
		if s.err == nil {
			s.err = fmt.Errorf("%w: code %d %s", ErrConnectionLost, in.code, in.reason)
		}
		if !in.link.failed && s.state == Connecting {
			s.emit(out, Event{Type: EventConnectFailed, ConnectionID: in.link.id, Err: s.err})
		}
		if in.link.opened {
			s.notify(out, notify.LevelWarning, "Real-time connection lost")
		}
		s.current = nil
		s.retryOrGiveUp(out)

	case triggerTimer:
		if s.state != Reconnecting || in.timerGen != s.timerGen {
			return
		}
		s.timer = nil
		s.retries++
		s.connect(out)
	}
}

// connect opens a new transport connection. Callers hold s.mu.
func (s *Subscription) connect(out *effects) {
	l := &link{s: s, id: uuid.New().String()}
	s.current = l
	s.setState(Connecting, out)
	s.emit(out, Event{Type: EventConnectAttempt, ConnectionID: l.id, Attempt: s.retries})

	conn, err := s.transport.Open(s.endpoint, l)
	if err != nil {
		s.err = fmt.Errorf("%w: %w", ErrTransport, err)
		s.emit(out, Event{Type: EventConnectFailed, ConnectionID: l.id, Err: s.err})
		s.current = nil
		s.retryOrGiveUp(out)
		return
	}
	l.conn = conn
}

// retryOrGiveUp schedules the next reconnect or stops retrying when the budget
// is spent. Callers hold s.mu.
func (s *Subscription) retryOrGiveUp(out *effects) {
	if s.opts.backoff.Exhausted(s.retries) {
		s.err = fmt.Errorf("%w after %d attempts: %w", ErrRetryBudgetExhausted, s.retries, s.err)
		s.setState(Failed, out)
		s.emit(out, Event{Type: EventRetryBudgetExhausted, Attempt: s.retries, Err: s.err})
		s.notify(out, notify.LevelError, fmt.Sprintf("Real-time connection failed after %d attempts", s.retries))
		return
	}

	attempt := s.retries + 1
	delay := s.opts.backoff.Delay(attempt)

	s.timerGen++
	gen := s.timerGen
	s.timer = s.opts.clock.AfterFunc(delay, func() {
		s.handle(input{trigger: triggerTimer, timerGen: gen})
	})
	s.setState(Reconnecting, out)
	s.emit(out, Event{Type: EventReconnectScheduled, Attempt: attempt, Delay: delay})
}

// cancelTimer stops the pending reconnect timer. A callback already waiting
// for the lock is invalidated by the generation bump. Callers hold s.mu.
func (s *Subscription) cancelTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
}

// setState updates the state and logs transitions. Callers hold s.mu.
func (s *Subscription) setState(newState State, out *effects) {
	oldState := s.state
	s.state = newState
	out.changed = true

	if oldState != newState {
		s.logger.Debug("Subscription state changed",
			zap.String("from", oldState.String()),
			zap.String("to", newState.String()),
		)
	}
}

// emit queues an event stamped with the endpoint and current state. Callers hold s.mu.
func (s *Subscription) emit(out *effects, e Event) {
	e.Endpoint = s.endpoint
	e.State = s.state
	out.events = append(out.events, e)
}

// notify queues a user-facing notification. Callers hold s.mu.
func (s *Subscription) notify(out *effects, level notify.Level, message string) {
	out.notifications = append(out.notifications, notify.Notification{
		Level:   level,
		Title:   "Live feed",
		Message: message,
		Time:    s.opts.clock.Now(),
	})
}

// handleMessage decodes one inbound message. A decode failure only touches the
// error output; the last good payload is kept.
func (s *Subscription) handleMessage(l *link, data []byte) {
	payload, decodeErr := s.opts.decoder.Decode(data)

	out := &effects{}
	s.mu.Lock()
	if l != s.current || s.state != Open {
		s.mu.Unlock()
		return
	}

	if decodeErr != nil {
		s.err = &DecodeError{Size: len(data), Err: decodeErr}
		s.emit(out, Event{Type: EventDecodeError, ConnectionID: l.id, Size: len(data), Err: s.err})
	} else {
		s.payload = payload
		if _, ok := s.err.(*DecodeError); ok {
			s.err = nil
		}
		s.emit(out, Event{Type: EventMessageReceived, ConnectionID: l.id, Size: len(data)})
	}
	s.updatedAt = s.opts.clock.Now()
	out.changed = true
	out.snapshot = s.snapshotLocked()
	s.mu.Unlock()

	s.dispatch(out)
}

// dispatch runs side effects outside the lock so callbacks may call back into s
func (s *Subscription) dispatch(out *effects) {
	for _, c := range out.closes {
		if err := c.conn.Close(CloseNormalClosure, c.reason); err != nil {
			s.logger.Debug("Failed to close stream connection",
				zap.String("connection_id", c.id),
				zap.Error(err),
			)
		}
	}

	for _, e := range out.events {
		logEvent(s.logger, e)
		for _, observe := range s.opts.observers {
			observe(e)
		}
	}

	for _, n := range out.notifications {
		s.opts.notifier.Notify(n)
	}

	if out.changed && s.opts.onChange != nil {
		s.opts.onChange(out.snapshot)
	}
}
