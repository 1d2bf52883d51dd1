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
	"encoding/json"

	"github.com/jonboulle/clockwork"
	"github.com/kidneykidney/inventory-with-better-ui--sub001/pkg/notify"
	"go.uber.org/zap"
)

// Decoder turns one inbound message into a payload
type Decoder interface {
	Decode(data []byte) (any, error)
}

// DecoderFunc adapts a function to the Decoder interface
type DecoderFunc func(data []byte) (any, error)

// Decode calls f(data)
func (f DecoderFunc) Decode(data []byte) (any, error) {
	return f(data)
}

// Encoder serializes an outbound message
type Encoder func(v any) ([]byte, error)

// jsonDecoder is used when no decoder is configured
var jsonDecoder = DecoderFunc(func(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
})

type options struct {
	logger    *zap.Logger
	clock     clockwork.Clock
	backoff   BackoffPolicy
	decoder   Decoder
	encoder   Encoder
	observers []func(Event)
	onChange  func(Snapshot)
	notifier  notify.Notifier
}

func defaultOptions() options {
	return options{
		logger:   zap.NewNop(),
		clock:    clockwork.NewRealClock(),
		backoff:  DefaultBackoff(),
		decoder:  jsonDecoder,
		encoder:  json.Marshal,
		notifier: notify.Nop,
	}
}

// Option configures a Subscription
type Option func(*options)

// WithLogger sets the logger used for lifecycle events
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the clock used for reconnect timers
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithBackoff sets the reconnect backoff policy and retry budget
func WithBackoff(p BackoffPolicy) Option {
	return func(o *options) {
		o.backoff = p
	}
}

// WithDecoder sets the inbound message decoder
func WithDecoder(d Decoder) Option {
	return func(o *options) {
		if d != nil {
			o.decoder = d
		}
	}
}

// WithEncoder sets the outbound message encoder
func WithEncoder(e Encoder) Option {
	return func(o *options) {
		if e != nil {
			o.encoder = e
		}
	}
}

// WithObserver registers a callback for observability events.
// May be given more than once.
func WithObserver(fn func(Event)) Option {
	return func(o *options) {
		if fn != nil {
			o.observers = append(o.observers, fn)
		}
	}
}

// WithOnChange registers a callback invoked with a fresh snapshot whenever
// one of the observable outputs changes
func WithOnChange(fn func(Snapshot)) Option {
	return func(o *options) {
		o.onChange = fn
	}
}

// WithNotifier sets the sink for user-facing connectivity notifications
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}
