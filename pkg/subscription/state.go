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

// State represents the lifecycle state of a subscription
type State int

const (
	// Disabled state - subscription stopped, nothing live
	Disabled State = iota
	// Connecting state - transport connect in progress
	Connecting
	// Open state - transport connected and delivering messages
	Open
	// Closing state - transport reported an error and is expected to close
	Closing
	// Reconnecting state - waiting for the backoff timer before the next attempt
	Reconnecting
	// Failed state - retry budget exhausted, waits for Stop and Start
	Failed
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// States lists every known state in declaration order
func States() []State {
	return []State{Disabled, Connecting, Open, Closing, Reconnecting, Failed}
}
