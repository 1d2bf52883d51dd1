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
	"time"

	"go.uber.org/zap"
)

// EventType identifies an observability event
type EventType string

const (
	EventConnectAttempt       EventType = "connect_attempt"
	EventConnectSucceeded     EventType = "connect_succeeded"
	EventConnectFailed        EventType = "connect_failed"
	EventMessageReceived      EventType = "message_received"
	EventDecodeError          EventType = "decode_error"
	EventSendWhileClosed      EventType = "send_while_closed"
	EventReconnectScheduled   EventType = "reconnect_scheduled"
	EventRetryBudgetExhausted EventType = "retry_budget_exhausted"
	EventManualDisconnect     EventType = "manual_disconnect"
	EventMessageSent          EventType = "message_sent"
)

// Event is emitted to observers for every lifecycle step worth monitoring
type Event struct {
	Type         EventType
	Endpoint     string
	ConnectionID string
	State        State         // State after the event
	Attempt      int           // Retry counter (connect_attempt) or scheduled attempt (reconnect_scheduled)
	Delay        time.Duration // Backoff delay for reconnect_scheduled
	Size         int           // Message size for message_received, decode_error and message_sent
	Err          error
}

// fields returns the zap fields describing the event
func (e Event) fields() []zap.Field {
	fields := []zap.Field{
		zap.String("endpoint", e.Endpoint),
		zap.String("state", e.State.String()),
	}
	if e.ConnectionID != "" {
		fields = append(fields, zap.String("connection_id", e.ConnectionID))
	}
	if e.Err != nil {
		fields = append(fields, zap.Error(e.Err))
	}
	return fields
}

// logEvent writes the event to the logger at a level matching its severity
func logEvent(logger *zap.Logger, e Event) {
	fields := e.fields()

	switch e.Type {
	case EventConnectAttempt:
		logger.Info("Connecting to stream", append(fields, zap.Int("retry_count", e.Attempt))...)
	case EventConnectSucceeded:
		logger.Info("Stream connection established", fields...)
	case EventConnectFailed:
		logger.Warn("Stream connection failed", fields...)
	case EventMessageReceived:
		logger.Debug("Received stream message", append(fields, zap.Int("message_length", e.Size))...)
	case EventDecodeError:
		logger.Error("Failed to decode stream message", append(fields, zap.Int("message_length", e.Size))...)
	case EventSendWhileClosed:
		logger.Warn("Stream is not connected, message not sent", fields...)
	case EventReconnectScheduled:
		logger.Info("Scheduling stream reconnect",
			append(fields, zap.Int("attempt", e.Attempt), zap.Duration("retry_delay", e.Delay))...)
	case EventRetryBudgetExhausted:
		logger.Error("Giving up on stream, retry budget exhausted", append(fields, zap.Int("attempts", e.Attempt))...)
	case EventManualDisconnect:
		logger.Info("Stream disconnected by caller", fields...)
	case EventMessageSent:
		logger.Debug("Sent stream message", append(fields, zap.Int("message_length", e.Size))...)
	}
}
