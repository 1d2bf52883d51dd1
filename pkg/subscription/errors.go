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
	"errors"
	"fmt"
)

var (
	// ErrTransport wraps transport open and communication failures
	ErrTransport = errors.New("stream transport error")
	// ErrConnectionLost is reported when the stream closes without a transport error
	ErrConnectionLost = errors.New("stream connection lost")
	// ErrRetryBudgetExhausted is reported once the subscription stops retrying
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")
	// ErrNotConnected is returned by transports asked to write before they are open
	ErrNotConnected = errors.New("stream not connected")

	ErrInvalidEndpoint = errors.New("invalid stream endpoint")
	ErrNilTransport    = errors.New("transport cannot be nil")
)

// DecodeError reports a message that could not be decoded into a payload
type DecodeError struct {
	Size int   // Size of the offending message in bytes
	Err  error // Underlying decoder error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode stream message (%d bytes): %v", e.Size, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
