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

package cmd

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kidneykidney/inventory-with-better-ui--sub001/pkg/config"
	"github.com/kidneykidney/inventory-with-better-ui--sub001/pkg/subscription"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print stream payloads and connectivity changes as JSON lines",
	Long: "Connect to the configured stream and print every decoded payload and every " +
		"connectivity change as a JSON line on stdout until interrupted",
	Example: CliName + " watch --endpoint ws://localhost:8000/ws/analytics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// stdout carries the JSON lines
		log, err := newLogger(cfg.Logging, "stderr")
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runWatch(ctx, cfg, log, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(ctx context.Context, cfg *config.Config, log *zap.Logger, out io.Writer) error {
	p := newPrinter(out)

	sub, err := newSubscription(cfg, log,
		subscription.WithObserver(p.observe),
		subscription.WithOnChange(p.onChange),
	)
	if err != nil {
		return err
	}

	log.Info("Watching stream", zap.String("endpoint", cfg.Stream.Endpoint))
	sub.Start(true)
	<-ctx.Done()
	sub.Stop()
	return nil
}

// line is one JSON line written by watch
type line struct {
	Type       string    `json:"type"`
	State      string    `json:"state,omitempty"`
	Connected  *bool     `json:"connected,omitempty"`
	RetryCount *int      `json:"retry_count,omitempty"`
	Error      string    `json:"error,omitempty"`
	Payload    any       `json:"payload,omitempty"`
	Time       time.Time `json:"time"`
}

// printer turns subscription callbacks into JSON lines
type printer struct {
	mu        sync.Mutex
	enc       *json.Encoder
	lastState subscription.State
	started   bool
	pending   bool
}

func newPrinter(out io.Writer) *printer {
	return &printer{enc: json.NewEncoder(out)}
}

func (p *printer) observe(e subscription.Event) {
	if e.Type != subscription.EventMessageReceived {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = true
}

func (p *printer) onChange(s subscription.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || s.State != p.lastState {
		p.started = true
		p.lastState = s.State
		connected, retries := s.Connected, s.RetryCount
		l := line{
			Type:       "state",
			State:      s.State.String(),
			Connected:  &connected,
			RetryCount: &retries,
			Time:       s.UpdatedAt,
		}
		if s.Err != nil {
			l.Error = s.Err.Error()
		}
		_ = p.enc.Encode(l)
	}

	if p.pending {
		p.pending = false
		_ = p.enc.Encode(line{Type: "payload", Payload: s.Payload, Time: s.UpdatedAt})
	}
}
