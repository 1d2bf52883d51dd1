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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kidneykidney/inventory-with-better-ui--sub001/pkg/api"
	"github.com/kidneykidney/inventory-with-better-ui--sub001/pkg/config"
	"github.com/kidneykidney/inventory-with-better-ui--sub001/pkg/metrics"
	"github.com/kidneykidney/inventory-with-better-ui--sub001/pkg/subscription"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the stream subscription with the status API and metrics server",
	Long: "Run the stream subscription and expose its state through the status API and " +
		"Prometheus metrics until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		log, err := newLogger(cfg.Logging, "")
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runServe(ctx, cfg, log)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("Starting livefeed",
		zap.String("endpoint", cfg.Stream.Endpoint),
		zap.Int("max_attempts", cfg.Stream.MaxAttempts),
		zap.Bool("metrics_enabled", cfg.Metrics.Enabled),
		zap.Bool("server_enabled", cfg.Server.Enabled),
		zap.Bool("auth_token_configured", cfg.Stream.AuthToken != ""),
	)

	metrics.SetEnabled(cfg.Metrics.Enabled)
	metrics.Init()

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(&cfg.Metrics, log)
		if err := metricsServer.Start(); err != nil {
			return err
		}
		metrics.StartMemoryMetricsUpdater(ctx, 15*time.Second)
	}

	sub, err := newSubscription(cfg, log,
		subscription.WithObserver(metrics.RecordStreamEvent),
		subscription.WithOnChange(func(s subscription.Snapshot) {
			metrics.RecordState(s.State)
		}),
	)
	if err != nil {
		return err
	}
	sub.Start(true)

	var apiServer *api.Server
	if cfg.Server.Enabled {
		apiServer = api.NewServer(&cfg.Server, sub, log)
		if err := apiServer.Start(); err != nil {
			sub.Stop()
			return err
		}
	}

	<-ctx.Done()
	log.Info("Shutting down livefeed")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if apiServer != nil {
		if err := apiServer.Stop(shutdownCtx); err != nil {
			log.Error("Failed to stop status API server", zap.Error(err))
		}
	}

	sub.Stop()

	if metricsServer != nil {
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			log.Error("Failed to stop metrics server", zap.Error(err))
		}
	}

	log.Info("livefeed stopped")
	return nil
}
