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

// Package websocket implements the subscription transport on top of gorilla/websocket.
package websocket

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/kidneykidney/inventory-with-better-ui--sub001/pkg/subscription"
	"go.uber.org/zap"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultReadLimit        = 1 << 20

	// closeGracePeriod bounds how long the read loop waits for the peer to
	// acknowledge a close frame
	closeGracePeriod = time.Second
)

// Transport dials WebSocket connections for a subscription
type Transport struct {
	dialer       *gws.Dialer
	header       http.Header
	writeTimeout time.Duration
	readLimit    int64
	logger       *zap.Logger
}

// Option configures a Transport
type Option func(*Transport)

// WithHandshakeTimeout bounds the opening handshake
func WithHandshakeTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.dialer.HandshakeTimeout = d
		}
	}
}

// WithHeader adds a header to the handshake request
func WithHeader(key, value string) Option {
	return func(t *Transport) {
		t.header.Add(key, value)
	}
}

// WithTLSConfig sets the TLS configuration used for wss endpoints
func WithTLSConfig(cfg *tls.Config) Option {
	return func(t *Transport) {
		t.dialer.TLSClientConfig = cfg
	}
}

// WithWriteTimeout sets the deadline applied to each write
func WithWriteTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.writeTimeout = d
		}
	}
}

// WithReadLimit sets the maximum size in bytes of an inbound message
func WithReadLimit(n int64) Option {
	return func(t *Transport) {
		if n > 0 {
			t.readLimit = n
		}
	}
}

// WithLogger sets the logger for connection diagnostics
func WithLogger(logger *zap.Logger) Option {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates a WebSocket transport
func New(opts ...Option) *Transport {
	t := &Transport{
		dialer: &gws.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: DefaultHandshakeTimeout,
		},
		header:       http.Header{},
		writeTimeout: DefaultWriteTimeout,
		readLimit:    DefaultReadLimit,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(zap.String("component", "websocket-transport"))
	return t
}

// Open starts dialing endpoint in the background and returns immediately.
// The outcome is reported to l.
func (t *Transport) Open(endpoint string, l subscription.Listener) (subscription.Conn, error) {
	if l == nil {
		return nil, errors.New("listener cannot be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &conn{
		transport: t,
		endpoint:  endpoint,
		listener:  l,
		cancel:    cancel,
	}
	go c.run(ctx)
	return c, nil
}

// conn is a single WebSocket connection. Callbacks are only ever invoked from
// the run goroutine.
type conn struct {
	transport *Transport
	endpoint  string
	listener  subscription.Listener
	cancel    context.CancelFunc

	mu          sync.Mutex
	ws          *gws.Conn
	closed      bool
	closeCode   int
	closeReason string

	writeMu sync.Mutex
}

func (c *conn) run(ctx context.Context) {
	defer c.cancel()

	logger := c.transport.logger.With(zap.String("url", c.endpoint))

	ws, resp, err := c.transport.dialer.DialContext(ctx, c.endpoint, c.transport.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if code, reason, closed := c.closeRequested(); closed {
			logger.Debug("Dial abandoned, connection closed before open")
			c.listener.OnClose(code, reason)
			return
		}
		if resp != nil {
			err = fmt.Errorf("handshake failed with status %d: %w", resp.StatusCode, err)
		}
		logger.Debug("WebSocket dial failed", zap.Error(err))
		c.listener.OnError(err)
		c.listener.OnClose(subscription.CloseAbnormal, "")
		return
	}

	c.mu.Lock()
	if c.closed {
		code, reason := c.closeCode, c.closeReason
		c.mu.Unlock()
		logger.Debug("Dial completed after close, dropping connection")
		_ = ws.WriteControl(gws.CloseMessage, gws.FormatCloseMessage(code, reason), time.Now().Add(c.transport.writeTimeout))
		_ = ws.Close()
		c.listener.OnClose(code, reason)
		return
	}
	c.ws = ws
	c.mu.Unlock()

	ws.SetReadLimit(c.transport.readLimit)
	c.listener.OnOpen()
	c.readLoop(ws, logger)
}

func (c *conn) readLoop(ws *gws.Conn, logger *zap.Logger) {
	defer ws.Close()

	for {
		messageType, message, err := ws.ReadMessage()
		if err != nil {
			var closeErr *gws.CloseError
			if errors.As(err, &closeErr) {
				logger.Debug("WebSocket closed",
					zap.Int("code", closeErr.Code),
					zap.String("reason", closeErr.Text),
				)
				c.listener.OnClose(closeErr.Code, closeErr.Text)
				return
			}
			if code, reason, closed := c.closeRequested(); closed {
				c.listener.OnClose(code, reason)
				return
			}
			logger.Debug("WebSocket read failed", zap.Error(err))
			c.listener.OnError(err)
			c.listener.OnClose(subscription.CloseAbnormal, "")
			return
		}

		if messageType != gws.TextMessage && messageType != gws.BinaryMessage {
			continue
		}
		c.listener.OnMessage(message)
	}
}

// Send writes data as a single text frame
func (c *conn) Send(data []byte) error {
	c.mu.Lock()
	ws := c.ws
	closed := c.closed
	c.mu.Unlock()

	if ws == nil || closed {
		return subscription.ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := ws.SetWriteDeadline(time.Now().Add(c.transport.writeTimeout)); err != nil {
		return err
	}
	return ws.WriteMessage(gws.TextMessage, data)
}

// Close closes the connection with code. Before open it cancels the dial.
func (c *conn) Close(code int, reason string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	ws := c.ws
	c.mu.Unlock()

	if ws == nil {
		c.cancel()
		return nil
	}

	c.writeMu.Lock()
	err := ws.WriteControl(gws.CloseMessage, gws.FormatCloseMessage(code, reason), time.Now().Add(c.transport.writeTimeout))
	c.writeMu.Unlock()

	// The read loop exits once the peer echoes the close frame or the grace period ends.
	_ = ws.SetReadDeadline(time.Now().Add(closeGracePeriod))
	if err != nil && !errors.Is(err, gws.ErrCloseSent) {
		_ = ws.Close()
		return fmt.Errorf("failed to send close frame: %w", err)
	}
	return nil
}

func (c *conn) closeRequested() (int, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode, c.closeReason, c.closed
}
