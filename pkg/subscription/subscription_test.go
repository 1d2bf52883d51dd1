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
	"sync"
	"testing"
	"time"

	"github.com/kidneykidney/inventory-with-better-ui--sub001/pkg/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForAttempts(t *testing.T, h *testHarness, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.transport.attemptCount() == n
	}, time.Second, time.Millisecond, "expected %d connect attempts", n)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		endpoint  string
		transport Transport
		opts      []Option
		wantErr   error
	}{
		{"valid ws", "ws://localhost:8000/ws/analytics", &fakeTransport{}, nil, nil},
		{"valid wss", "wss://inventory.example.com/ws", &fakeTransport{}, nil, nil},
		{"http scheme", "http://localhost:8000/ws", &fakeTransport{}, nil, ErrInvalidEndpoint},
		{"missing host", "ws:///ws", &fakeTransport{}, nil, ErrInvalidEndpoint},
		{"unparsable", "ws://[::1", &fakeTransport{}, nil, ErrInvalidEndpoint},
		{"nil transport", "ws://localhost:8000/ws", nil, nil, ErrNilTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := New(tt.endpoint, tt.transport, tt.opts...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, sub)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Disabled, sub.State())
			assert.Equal(t, tt.endpoint, sub.Endpoint())
		})
	}
}

func TestNew_InvalidBackoff(t *testing.T) {
	_, err := New(testEndpoint, &fakeTransport{}, WithBackoff(BackoffPolicy{Initial: 0, Max: time.Second}))
	assert.Error(t, err)
}

func TestStart_OpensSingleConnection(t *testing.T) {
	h := newHarness(t)

	h.sub.Start(true)
	h.sub.Start(true)

	assert.Equal(t, 1, h.transport.attemptCount())
	assert.Equal(t, Connecting, h.sub.State())
	assert.False(t, h.sub.IsConnected())
	assert.NotEmpty(t, h.sub.Snapshot().ConnectionID)
	require.Len(t, h.events.ofType(EventConnectAttempt), 1)

	h.transport.last().listener.OnOpen()
	h.sub.Start(true)

	assert.Equal(t, 1, h.transport.attemptCount())
	assert.True(t, h.sub.IsConnected())
	require.Len(t, h.events.ofType(EventConnectSucceeded), 1)
}

func TestStart_FalseStops(t *testing.T) {
	h := newHarness(t)

	h.sub.Start(true)
	conn := h.transport.last()
	h.sub.Start(false)

	assert.Equal(t, Disabled, h.sub.State())
	assert.True(t, conn.isClosed())
}

func TestBackoffSchedule(t *testing.T) {
	h := newHarness(t)
	h.sub.Start(true)
	require.Equal(t, 1, h.transport.attemptCount())

	expected := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		16000 * time.Millisecond,
	}

	for i, want := range expected {
		h.transport.last().listener.OnClose(CloseAbnormal, "unreachable")
		require.Equal(t, Reconnecting, h.sub.State())

		scheduled := h.events.ofType(EventReconnectScheduled)
		require.Len(t, scheduled, i+1)
		assert.Equal(t, want, scheduled[i].Delay)
		assert.Equal(t, i+1, scheduled[i].Attempt)

		h.clock.Advance(want)
		waitForAttempts(t, h, i+2)
		require.Eventually(t, func() bool { return h.sub.State() == Connecting }, time.Second, time.Millisecond)
		assert.Equal(t, i+1, h.sub.RetryCount())
	}
}

func TestGiveUpAfterRetryBudget(t *testing.T) {
	h := newHarness(t)
	h.sub.Start(true)

	for i := 0; i < DefaultMaxAttempts; i++ {
		h.transport.last().listener.OnClose(CloseAbnormal, "unreachable")
		h.clock.Advance(DefaultBackoffMax)
		waitForAttempts(t, h, i+2)
	}

	h.transport.last().listener.OnClose(CloseAbnormal, "unreachable")

	assert.Equal(t, Failed, h.sub.State())
	assert.False(t, h.sub.IsConnected())
	assert.ErrorIs(t, h.sub.Err(), ErrRetryBudgetExhausted)
	assert.ErrorIs(t, h.sub.Err(), ErrConnectionLost)
	assert.Equal(t, DefaultMaxAttempts, h.sub.RetryCount())
	assert.Len(t, h.events.ofType(EventReconnectScheduled), DefaultMaxAttempts)

	exhausted := h.events.ofType(EventRetryBudgetExhausted)
	require.Len(t, exhausted, 1)
	assert.Equal(t, DefaultMaxAttempts, exhausted[0].Attempt)

	h.clock.Advance(time.Hour)
	assert.Never(t, func() bool {
		return h.transport.attemptCount() > DefaultMaxAttempts+1
	}, 50*time.Millisecond, 5*time.Millisecond)

	// Still enabled, so Start is a no-op until Stop.
	h.sub.Start(true)
	assert.Equal(t, DefaultMaxAttempts+1, h.transport.attemptCount())

	h.sub.Restart()
	assert.Equal(t, DefaultMaxAttempts+2, h.transport.attemptCount())
	assert.Equal(t, Connecting, h.sub.State())
	assert.Equal(t, 0, h.sub.RetryCount())
	assert.NoError(t, h.sub.Err())
}

func TestResetOnSuccessfulOpen(t *testing.T) {
	h := newHarness(t)
	h.sub.Start(true)

	h.transport.last().listener.OnClose(CloseAbnormal, "unreachable")
	h.clock.Advance(1 * time.Second)
	waitForAttempts(t, h, 2)

	h.transport.last().listener.OnClose(CloseAbnormal, "unreachable")
	h.clock.Advance(2 * time.Second)
	waitForAttempts(t, h, 3)
	require.Eventually(t, func() bool { return h.sub.RetryCount() == 2 }, time.Second, time.Millisecond)

	h.transport.last().listener.OnOpen()
	assert.Equal(t, 0, h.sub.RetryCount())
	assert.NoError(t, h.sub.Err())
	assert.True(t, h.sub.IsConnected())

	h.transport.last().listener.OnClose(CloseAbnormal, "server restarted")

	scheduled := h.events.ofType(EventReconnectScheduled)
	require.Len(t, scheduled, 3)
	assert.Equal(t, 1, scheduled[2].Attempt)
	assert.Equal(t, 1*time.Second, scheduled[2].Delay)
}

func TestStopWhileConnecting(t *testing.T) {
	h := newHarness(t)
	h.sub.Start(true)
	conn := h.transport.last()

	h.sub.Stop()

	assert.Equal(t, Disabled, h.sub.State())
	assert.True(t, conn.isClosed())
	assert.Equal(t, CloseNormalClosure, conn.closeCode)
	assert.Equal(t, "manual disconnect", conn.closeReason)

	// The transport reports the close it was asked for.
	conn.listener.OnClose(CloseNormalClosure, "manual disconnect")
	assert.Equal(t, Disabled, h.sub.State())
	assert.Empty(t, h.events.ofType(EventReconnectScheduled))

	// The dial finished after Stop; the stray connection is closed again.
	conn.listener.OnOpen()
	assert.Equal(t, Disabled, h.sub.State())
	assert.Equal(t, 2, conn.closeCount)

	h.clock.Advance(time.Hour)
	assert.Never(t, func() bool {
		return h.transport.attemptCount() > 1
	}, 50*time.Millisecond, 5*time.Millisecond)
}

func TestStopWhileOpen(t *testing.T) {
	h := newHarness(t)
	h.sub.Start(true)
	conn := h.transport.last()
	conn.listener.OnOpen()
	conn.listener.OnMessage([]byte(`{"totalItems":12}`))
	require.NotNil(t, h.sub.Payload())

	h.sub.Stop()

	snap := h.sub.Snapshot()
	assert.Equal(t, Disabled, snap.State)
	assert.Nil(t, snap.Payload)
	assert.NoError(t, snap.Err)
	assert.Equal(t, 0, snap.RetryCount)
	assert.False(t, snap.Connected)
	assert.Empty(t, snap.ConnectionID)
	assert.True(t, conn.isClosed())

	conn.listener.OnMessage([]byte(`{"totalItems":13}`))
	conn.listener.OnError(errors.New("read on closed connection"))
	conn.listener.OnClose(CloseNormalClosure, "manual disconnect")

	assert.Equal(t, Disabled, h.sub.State())
	assert.Nil(t, h.sub.Payload())
	assert.NoError(t, h.sub.Err())
	assert.Empty(t, h.events.ofType(EventReconnectScheduled))
	require.Len(t, h.events.ofType(EventManualDisconnect), 1)
}

func TestDecodeFailureKeepsLastPayload(t *testing.T) {
	h := newHarness(t)
	h.sub.Start(true)
	conn := h.transport.last()
	conn.listener.OnOpen()

	conn.listener.OnMessage([]byte(`{"totalItems":42,"activeLoans":7}`))
	want := map[string]any{"totalItems": float64(42), "activeLoans": float64(7)}
	assert.Equal(t, want, h.sub.Payload())
	assert.NoError(t, h.sub.Err())

	conn.listener.OnMessage([]byte(`{not json`))

	assert.Equal(t, want, h.sub.Payload())
	var decodeErr *DecodeError
	require.ErrorAs(t, h.sub.Err(), &decodeErr)
	assert.Equal(t, len(`{not json`), decodeErr.Size)
	assert.Equal(t, Open, h.sub.State())
	assert.Equal(t, 1, h.transport.attemptCount())
	assert.Len(t, h.events.ofType(EventDecodeError), 1)
	assert.Empty(t, h.events.ofType(EventReconnectScheduled))

	conn.listener.OnMessage([]byte(`{"totalItems":43}`))
	assert.Equal(t, map[string]any{"totalItems": float64(43)}, h.sub.Payload())
	assert.NoError(t, h.sub.Err())
	assert.Len(t, h.events.ofType(EventMessageReceived), 2)
}

func TestCustomDecoder(t *testing.T) {
	h := newHarness(t, WithDecoder(DecoderFunc(func(data []byte) (any, error) {
		return string(data), nil
	})))
	h.sub.Start(true)
	h.transport.last().listener.OnOpen()
	h.transport.last().listener.OnMessage([]byte("raw"))

	assert.Equal(t, "raw", h.sub.Payload())
}

func TestStopIsIdempotent(t *testing.T) {
	h := newHarness(t)

	assert.NotPanics(t, h.sub.Stop)
	assert.Empty(t, h.events.ofType(EventManualDisconnect))

	h.sub.Start(true)
	h.transport.last().listener.OnClose(CloseAbnormal, "unreachable")
	require.Equal(t, Reconnecting, h.sub.State())

	assert.NotPanics(t, func() {
		h.sub.Stop()
		h.sub.Stop()
	})
	assert.Equal(t, Disabled, h.sub.State())
	assert.Len(t, h.events.ofType(EventManualDisconnect), 1)
}

func TestSendWhileNotOpen(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.sub.Send(map[string]string{"type": "ping"}))
	assert.Len(t, h.events.ofType(EventSendWhileClosed), 1)
	assert.Equal(t, 1, h.logs.FilterMessage("Stream is not connected, message not sent").Len())

	h.sub.Start(true)
	conn := h.transport.last()
	require.NoError(t, h.sub.Send(map[string]string{"type": "ping"}))

	assert.Len(t, h.events.ofType(EventSendWhileClosed), 2)
	assert.Equal(t, 2, h.logs.FilterMessage("Stream is not connected, message not sent").Len())
	assert.Empty(t, conn.sentMessages())
}

func TestSendWhileOpen(t *testing.T) {
	h := newHarness(t)
	h.sub.Start(true)
	conn := h.transport.last()
	conn.listener.OnOpen()

	require.NoError(t, h.sub.Send(map[string]string{"type": "subscribe", "channel": "loans"}))

	sent := conn.sentMessages()
	require.Len(t, sent, 1)
	assert.JSONEq(t, `{"type":"subscribe","channel":"loans"}`, string(sent[0]))
	assert.Len(t, h.events.ofType(EventMessageSent), 1)
	assert.Empty(t, h.events.ofType(EventSendWhileClosed))
}

func TestSendErrors(t *testing.T) {
	t.Run("encode failure", func(t *testing.T) {
		h := newHarness(t, WithEncoder(func(any) ([]byte, error) {
			return nil, errors.New("unsupported value")
		}))
		h.sub.Start(true)
		h.transport.last().listener.OnOpen()

		err := h.sub.Send(struct{}{})
		assert.Error(t, err)
		assert.Empty(t, h.transport.last().sentMessages())
	})

	t.Run("write failure", func(t *testing.T) {
		h := newHarness(t)
		h.sub.Start(true)
		conn := h.transport.last()
		conn.listener.OnOpen()
		conn.sendErr = errors.New("broken pipe")

		err := h.sub.Send("hello")
		assert.ErrorIs(t, err, ErrTransport)
	})
}

func TestNoReconnectAfterStop(t *testing.T) {
	h := newHarness(t)
	h.sub.Start(true)

	h.transport.last().listener.OnError(errors.New("connection refused"))
	h.transport.last().listener.OnClose(CloseAbnormal, "")
	require.Equal(t, Reconnecting, h.sub.State())
	require.Len(t, h.events.ofType(EventReconnectScheduled), 1)

	h.sub.Stop()
	h.clock.Advance(time.Minute)

	assert.Never(t, func() bool {
		return h.transport.attemptCount() > 1
	}, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, Disabled, h.sub.State())
}

func TestOpenError(t *testing.T) {
	h := newHarness(t)
	h.transport.setOpenErr(errors.New("dial refused"))

	h.sub.Start(true)

	assert.Equal(t, 1, h.transport.attemptCount())
	assert.Equal(t, Reconnecting, h.sub.State())
	assert.ErrorIs(t, h.sub.Err(), ErrTransport)
	assert.Len(t, h.events.ofType(EventConnectFailed), 1)
	assert.Len(t, h.events.ofType(EventReconnectScheduled), 1)

	h.transport.setOpenErr(nil)
	h.clock.Advance(1 * time.Second)
	waitForAttempts(t, h, 2)
	require.Eventually(t, func() bool { return h.sub.State() == Connecting }, time.Second, time.Millisecond)
}

func TestTransportErrorThenClose(t *testing.T) {
	h := newHarness(t)
	h.sub.Start(true)
	conn := h.transport.last()

	conn.listener.OnError(errors.New("tls handshake failure"))
	assert.Equal(t, Closing, h.sub.State())
	assert.ErrorIs(t, h.sub.Err(), ErrTransport)

	conn.listener.OnClose(CloseAbnormal, "")
	assert.Equal(t, Reconnecting, h.sub.State())
	assert.ErrorIs(t, h.sub.Err(), ErrTransport)
	assert.Len(t, h.events.ofType(EventConnectFailed), 1)
}

func TestTransportErrorWhileOpen(t *testing.T) {
	h := newHarness(t)
	h.sub.Start(true)
	conn := h.transport.last()
	conn.listener.OnOpen()

	conn.listener.OnError(errors.New("connection reset by peer"))
	assert.Equal(t, Closing, h.sub.State())
	assert.False(t, h.sub.IsConnected())
	assert.Empty(t, h.events.ofType(EventConnectFailed))

	conn.listener.OnClose(CloseAbnormal, "")
	assert.Equal(t, Reconnecting, h.sub.State())
}

func TestNotifications(t *testing.T) {
	var mu sync.Mutex
	var got []notify.Notification
	n := notify.Func(func(n notify.Notification) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, n)
	})

	h := newHarness(t,
		WithNotifier(n),
		WithBackoff(BackoffPolicy{Initial: time.Second, Max: time.Second, MaxAttempts: 0}),
	)
	h.sub.Start(true)
	h.transport.last().listener.OnOpen()
	h.transport.last().listener.OnClose(CloseAbnormal, "server gone")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 3)
	assert.Equal(t, notify.LevelSuccess, got[0].Level)
	assert.Equal(t, notify.LevelWarning, got[1].Level)
	assert.Equal(t, notify.LevelError, got[2].Level)
	assert.Equal(t, Failed, h.sub.State())
}

func TestOnChange(t *testing.T) {
	var mu sync.Mutex
	var snaps []Snapshot
	h := newHarness(t, WithOnChange(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		snaps = append(snaps, s)
	}))

	h.sub.Start(true)
	h.transport.last().listener.OnOpen()
	h.transport.last().listener.OnMessage([]byte(`{"lowStock":3}`))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, snaps, 3)
	assert.Equal(t, Connecting, snaps[0].State)
	assert.True(t, snaps[1].Connected)
	assert.Equal(t, map[string]any{"lowStock": float64(3)}, snaps[2].Payload)
	assert.Equal(t, h.clock.Now(), snaps[2].UpdatedAt)
}

func TestObserverCanCallBack(t *testing.T) {
	var h *testHarness
	var states []State
	h = newHarness(t, WithObserver(func(e Event) {
		if e.Type == EventConnectSucceeded {
			states = append(states, h.sub.State())
			_ = h.sub.Send("hello")
		}
	}))

	h.sub.Start(true)
	h.transport.last().listener.OnOpen()

	require.Equal(t, []State{Open}, states)
	assert.Len(t, h.transport.last().sentMessages(), 1)
}

func TestDecodeError(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := &DecodeError{Size: 5, Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "5 bytes")
}
