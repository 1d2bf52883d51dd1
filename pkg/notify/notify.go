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

// Package notify provides the notification sink that components receive
// explicitly instead of looking up a process-wide handler.
package notify

import (
	"time"

	"go.uber.org/zap"
)

// Level is the severity of a notification
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a user-facing message raised by a component
type Notification struct {
	Level   Level     `json:"level"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Notifier receives notifications. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a plain function to the Notifier interface
type Func func(n Notification)

// Notify calls f(n)
func (f Func) Notify(n Notification) {
	f(n)
}

// Nop discards every notification
var Nop Notifier = Func(func(Notification) {})

// Multi fans a notification out to every notifier in order
type Multi []Notifier

// Notify forwards n to each non-nil notifier
func (m Multi) Notify(n Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(n)
		}
	}
}

// Log writes notifications to a zap logger
type Log struct {
	logger *zap.Logger
}

// NewLog creates a notifier that logs through logger
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// Notify logs n at a level matching its severity
func (l *Log) Notify(n Notification) {
	fields := []zap.Field{
		zap.String("title", n.Title),
		zap.String("level", string(n.Level)),
		zap.Time("time", n.Time),
	}

	switch n.Level {
	case LevelError:
		l.logger.Error(n.Message, fields...)
	case LevelWarning:
		l.logger.Warn(n.Message, fields...)
	default:
		l.logger.Info(n.Message, fields...)
	}
}
