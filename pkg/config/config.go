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

package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	toml "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables that override the config file
const EnvPrefix = "LIVEFEED_"

// Config holds all configuration for the live feed
type Config struct {
	Stream  StreamConfig  `koanf:"stream"`
	Logging LoggingConfig `koanf:"logging"`
	Metrics MetricsConfig `koanf:"metrics"`
	Server  ServerConfig  `koanf:"server"`
}

// StreamConfig holds the stream subscription configuration
type StreamConfig struct {
	// Endpoint is the ws:// or wss:// address of the stream
	Endpoint string `koanf:"endpoint"`

	// MaxAttempts is the number of reconnects tried before giving up
	MaxAttempts int `koanf:"max_attempts"`

	BackoffInitial time.Duration `koanf:"backoff_initial"`
	BackoffMax     time.Duration `koanf:"backoff_max"`

	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
	WriteTimeout     time.Duration `koanf:"write_timeout"`

	// ReadLimit is the largest inbound message accepted, in bytes
	ReadLimit int64 `koanf:"read_limit"`

	InsecureSkipVerify bool `koanf:"insecure_skip_verify"`

	// SchemaPath optionally points to a JSON Schema every message must satisfy
	SchemaPath string `koanf:"schema_path"`

	// AuthToken is sent as a bearer token on the handshake when set
	AuthToken string `koanf:"auth_token"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
	Port    int  `koanf:"port"`
}

// ServerConfig holds the status API configuration
type ServerConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// AllowedOrigins lists the origins allowed by CORS; "*" allows any origin
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// LoadConfig loads configuration from file, environment variables, and defaults
// Priority: Environment variables > Config file > Defaults
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), parserFor(configPath)); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Double underscores (__) preserve literal underscores in field names
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			WeaklyTypedInput: true,
			Result:           cfg,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// parserFor picks the YAML parser for .yaml/.yml files and TOML otherwise
func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	default:
		return toml.Parser()
	}
}

// envKey maps LIVEFEED_STREAM_MAX__ATTEMPTS to stream.max_attempts
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "__", "%UNDERSCORE%")
	s = strings.ReplaceAll(s, "_", ".")
	return strings.ReplaceAll(s, "%UNDERSCORE%", "_")
}

// DefaultConfig returns a Config populated with default values
func DefaultConfig() *Config {
	return &Config{
		Stream: StreamConfig{
			Endpoint:         "ws://localhost:8000/ws/analytics",
			MaxAttempts:      5,
			BackoffInitial:   1 * time.Second,
			BackoffMax:       30 * time.Second,
			HandshakeTimeout: 10 * time.Second,
			WriteTimeout:     5 * time.Second,
			ReadLimit:        1 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9091,
		},
		Server: ServerConfig{
			Enabled:         false,
			Port:            9092,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	u, err := url.Parse(c.Stream.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid stream.endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("stream.endpoint must use ws or wss, got: %s", c.Stream.Endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("stream.endpoint is missing a host: %s", c.Stream.Endpoint)
	}

	if c.Stream.MaxAttempts < 0 {
		return fmt.Errorf("stream.max_attempts cannot be negative, got: %d", c.Stream.MaxAttempts)
	}
	if c.Stream.BackoffInitial <= 0 {
		return fmt.Errorf("stream.backoff_initial must be positive, got: %s", c.Stream.BackoffInitial)
	}
	if c.Stream.BackoffMax < c.Stream.BackoffInitial {
		return fmt.Errorf("stream.backoff_max (%s) must be >= stream.backoff_initial (%s)",
			c.Stream.BackoffMax, c.Stream.BackoffInitial)
	}
	if c.Stream.HandshakeTimeout <= 0 {
		return fmt.Errorf("stream.handshake_timeout must be positive, got: %s", c.Stream.HandshakeTimeout)
	}
	if c.Stream.WriteTimeout <= 0 {
		return fmt.Errorf("stream.write_timeout must be positive, got: %s", c.Stream.WriteTimeout)
	}
	if c.Stream.ReadLimit <= 0 {
		return fmt.Errorf("stream.read_limit must be positive, got: %d", c.Stream.ReadLimit)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid logging.format: %s (must be json, text, or console)", c.Logging.Format)
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics.port: %d (must be 1-65535)", c.Metrics.Port)
		}
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return fmt.Errorf("invalid server.port: %d (must be 1-65535)", c.Server.Port)
		}
		if c.Metrics.Enabled && c.Metrics.Port == c.Server.Port {
			return fmt.Errorf("metrics.port cannot be same as server.port")
		}
		if c.Server.ShutdownTimeout <= 0 {
			return fmt.Errorf("server.shutdown_timeout must be positive, got: %s", c.Server.ShutdownTimeout)
		}
		if len(c.Server.AllowedOrigins) == 0 {
			return fmt.Errorf("server.allowed_origins cannot be empty when server is enabled")
		}
	}

	return nil
}
