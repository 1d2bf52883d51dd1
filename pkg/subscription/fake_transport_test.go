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

package subscription

import (
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeConn records what the subscription does with a connection. Tests drive
// the listener directly to simulate transport callbacks.
type fakeConn struct {
	listener Listener

	mu          sync.Mutex
	sent        [][]byte
	closed      bool
	closeCount  int
	closeCode   int
	closeReason string
	sendErr     error
}

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeCount++
	c.closeCode = code
	c.closeReason = reason
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) sentMessages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

// fakeTransport hands out fakeConns and counts open attempts
type fakeTransport struct {
	mu       sync.Mutex
	conns    []*fakeConn
	attempts int
	openErr  error
}

func (t *fakeTransport) Open(_ string, l Listener) (Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts++
	if t.openErr != nil {
		return nil, t.openErr
	}
	c := &fakeConn{listener: l}
	t.conns = append(t.conns, c)
	return c, nil
}

func (t *fakeTransport) attemptCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

func (t *fakeTransport) last() *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) == 0 {
		return nil
	}
	return t.conns[len(t.conns)-1]
}

func (t *fakeTransport) setOpenErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.openErr = err
}

// eventRecorder collects observer events
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) ofType(typ EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type testHarness struct {
	sub       *Subscription
	transport *fakeTransport
	clock     *clockwork.FakeClock
	events    *eventRecorder
	logs      *observer.ObservedLogs
}

const testEndpoint = "ws://localhost:8000/ws/analytics"

func newHarness(t *testing.T, opts ...Option) *testHarness {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	h := &testHarness{
		transport: &fakeTransport{},
		clock:     clockwork.NewFakeClock(),
		events:    &eventRecorder{},
		logs:      logs,
	}

	all := append([]Option{
		WithLogger(zap.New(core)),
		WithClock(h.clock),
		WithObserver(h.events.record),
	}, opts...)

	sub, err := New(testEndpoint, h.transport, all...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.sub = sub
	t.Cleanup(sub.Stop)
	return h
}
