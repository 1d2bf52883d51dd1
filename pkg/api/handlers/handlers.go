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

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kidneykidney/inventory-with-better-ui--sub001/pkg/api/middleware"
	"github.com/kidneykidney/inventory-with-better-ui--sub001/pkg/subscription"
	"go.uber.org/zap"
)

// Stream is the part of a subscription the status API needs
type Stream interface {
	Snapshot() subscription.Snapshot
	Send(msg any) error
	Restart()
}

// StatusResponse is the body of GET /status
type StatusResponse struct {
	State        string    `json:"state"`
	Connected    bool      `json:"connected"`
	RetryCount   int       `json:"retry_count"`
	ConnectionID string    `json:"connection_id,omitempty"`
	Error        string    `json:"error,omitempty"`
	Payload      any       `json:"payload"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MessageResponse is the body returned by the mutating endpoints
type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StatusHandler serves the stream status endpoints
type StatusHandler struct {
	stream Stream
	logger *zap.Logger
}

// NewStatusHandler creates a handler backed by stream
func NewStatusHandler(stream Stream, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		stream: stream,
		logger: logger,
	}
}

// RegisterRoutes mounts the status endpoints on r
func (h *StatusHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/health", h.Health)
	r.GET("/status", h.Status)
	r.POST("/messages", h.SendMessage)
	r.POST("/restart", h.Restart)
}

// Health handles GET /health
func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Status handles GET /status
func (h *StatusHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, newStatusResponse(h.stream.Snapshot()))
}

func newStatusResponse(snap subscription.Snapshot) StatusResponse {
	resp := StatusResponse{
		State:        snap.State.String(),
		Connected:    snap.Connected,
		RetryCount:   snap.RetryCount,
		ConnectionID: snap.ConnectionID,
		Payload:      snap.Payload,
		UpdatedAt:    snap.UpdatedAt,
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	return resp
}

// SendMessage handles POST /messages. The JSON body is forwarded to the stream.
func (h *StatusHandler) SendMessage(c *gin.Context) {
	log := middleware.GetLogger(c, h.logger)

	var body any
	if err := c.ShouldBindJSON(&body); err != nil {
		log.Warn("Invalid message body", zap.Error(err))
		c.JSON(http.StatusBadRequest, MessageResponse{
			Status:  "error",
			Message: "Invalid JSON body: " + err.Error(),
		})
		return
	}

	connected := h.stream.Snapshot().Connected

	// Send is a no-op while disconnected but still records the dropped message.
	if err := h.stream.Send(body); err != nil {
		log.Error("Failed to send stream message", zap.Error(err))
		c.JSON(http.StatusBadGateway, MessageResponse{
			Status:  "error",
			Message: "Failed to send message: " + err.Error(),
		})
		return
	}

	if !connected {
		c.JSON(http.StatusConflict, MessageResponse{
			Status:  "warning",
			Message: "Stream is not connected, message not sent",
		})
		return
	}

	c.JSON(http.StatusAccepted, MessageResponse{
		Status:  "accepted",
		Message: "Message sent",
	})
}

// Restart handles POST /restart
func (h *StatusHandler) Restart(c *gin.Context) {
	middleware.GetLogger(c, h.logger).Info("Restarting stream subscription")
	h.stream.Restart()
	c.JSON(http.StatusAccepted, MessageResponse{
		Status:  "accepted",
		Message: "Stream subscription restarted",
	})
}
