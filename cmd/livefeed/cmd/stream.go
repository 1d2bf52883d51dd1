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
	"crypto/tls"
	"fmt"

	"github.com/kidneykidney/inventory-with-better-ui--sub001/pkg/config"
	"github.com/kidneykidney/inventory-with-better-ui--sub001/pkg/decoder"
	"github.com/kidneykidney/inventory-with-better-ui--sub001/pkg/logger"
	"github.com/kidneykidney/inventory-with-better-ui--sub001/pkg/notify"
	"github.com/kidneykidney/inventory-with-better-ui--sub001/pkg/subscription"
	"github.com/kidneykidney/inventory-with-better-ui--sub001/pkg/transport/websocket"
	"go.uber.org/zap"
)

// loadConfig loads the configuration file and applies command line overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if endpointOverride != "" {
		cfg.Stream.Endpoint = endpointOverride
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return cfg, nil
}

func newLogger(cfg config.LoggingConfig, output string) (*zap.Logger, error) {
	log, err := logger.NewLogger(logger.Config{
		Level:  cfg.Level,
		Format: cfg.Format,
		Output: output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, nil
}

func newDecoder(cfg config.StreamConfig) (subscription.Decoder, error) {
	if cfg.SchemaPath == "" {
		return decoder.JSON{}, nil
	}
	return decoder.NewSchemaFromFile(cfg.SchemaPath)
}

func newTransport(cfg config.StreamConfig, log *zap.Logger) *websocket.Transport {
	opts := []websocket.Option{
		websocket.WithLogger(log),
		websocket.WithHandshakeTimeout(cfg.HandshakeTimeout),
		websocket.WithWriteTimeout(cfg.WriteTimeout),
		websocket.WithReadLimit(cfg.ReadLimit),
	}
	if cfg.AuthToken != "" {
		opts = append(opts, websocket.WithHeader("Authorization", "Bearer "+cfg.AuthToken))
	}
	if cfg.InsecureSkipVerify {
		log.Debug("TLS certificate verification disabled (insecure_skip_verify=true)")
		opts = append(opts, websocket.WithTLSConfig(&tls.Config{InsecureSkipVerify: true}))
	}
	return websocket.New(opts...)
}

// newSubscription builds a subscription from configuration. Extra options are
// applied after the configured ones.
func newSubscription(cfg *config.Config, log *zap.Logger, extra ...subscription.Option) (*subscription.Subscription, error) {
	dec, err := newDecoder(cfg.Stream)
	if err != nil {
		return nil, err
	}

	opts := []subscription.Option{
		subscription.WithLogger(log),
		subscription.WithDecoder(dec),
		subscription.WithNotifier(notify.NewLog(log.Named("notify"))),
		subscription.WithBackoff(subscription.BackoffPolicy{
			Initial:     cfg.Stream.BackoffInitial,
			Max:         cfg.Stream.BackoffMax,
			MaxAttempts: cfg.Stream.MaxAttempts,
		}),
	}

	return subscription.New(cfg.Stream.Endpoint, newTransport(cfg.Stream, log), append(opts, extra...)...)
}
