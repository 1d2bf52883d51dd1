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

// Close codes used when the subscription closes a transport itself
const (
	CloseNormalClosure = 1000
	CloseAbnormal      = 1006

	closeReasonManual     = "manual disconnect"
	closeReasonSuperseded = "superseded connection"
)

// Transport opens streaming connections.
//
// Open must not block on I/O and must not invoke listener callbacks before it
// returns; the outcome of the connect is reported through the listener.
type Transport interface {
	Open(endpoint string, l Listener) (Conn, error)
}

// Conn is one transport connection
type Conn interface {
	// Send transmits one message. Returns ErrNotConnected before the connection is open.
	Send(data []byte) error
	// Close closes the connection with the given close code. It must be honoured
	// even if the connection has not finished opening and must not invoke
	// listener callbacks synchronously.
	Close(code int, reason string) error
}

// Listener receives connection lifecycle callbacks.
// Every successful Open is followed by exactly one OnClose.
type Listener interface {
	OnOpen()
	OnMessage(data []byte)
	OnError(err error)
	OnClose(code int, reason string)
}
