// Package config provides configuration for the replay engine.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the replay engine configuration.
type Config struct {
	// Control surface (HTTP API and viewer WebSocket)
	ControlPort int `env:"CONTROL_PORT" envDefault:"8095"`

	// Backend settings
	BackendURL       string `env:"BACKEND_URL" envDefault:"http://localhost:5000"`
	BackendTimeoutMs int    `env:"BACKEND_TIMEOUT_MS" envDefault:"10000"`

	// Session settings
	MaxQuestions   int    `env:"MAX_QUESTIONS" envDefault:"20"`
	TickLengthMs   int    `env:"TICK_LENGTH_MS" envDefault:"500"`
	FlushTimeoutMs int    `env:"FLUSH_TIMEOUT_MS" envDefault:"5000"`
	Options        string `env:"REPLAY_OPTIONS"` // query string, each value JSON encoded

	// Simulation engine selection
	SimEngine string `env:"SIM_ENGINE" envDefault:"grid"`

	// Viewer settings
	APIKey         string `env:"API_KEY"` // Static API key for hello.api_key validation
	PingIntervalMs int    `env:"WS_PING_INTERVAL_MS" envDefault:"30000"`
	WriteTimeoutMs int    `env:"WS_WRITE_TIMEOUT_MS" envDefault:"10000"`
	ReadTimeoutMs  int    `env:"WS_READ_TIMEOUT_MS" envDefault:"60000"`
	MaxMessageSize int64  `env:"WS_MAX_MESSAGE_SIZE" envDefault:"65536"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.MaxQuestions <= 0 {
		return nil, fmt.Errorf("MAX_QUESTIONS must be positive, got %d", cfg.MaxQuestions)
	}
	if cfg.TickLengthMs <= 0 {
		return nil, fmt.Errorf("TICK_LENGTH_MS must be positive, got %d", cfg.TickLengthMs)
	}
	return cfg, nil
}

// BackendTimeout returns the per-request backend timeout.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.BackendTimeoutMs) * time.Millisecond
}

// TickLength returns the playback tick period.
func (c *Config) TickLength() time.Duration {
	return time.Duration(c.TickLengthMs) * time.Millisecond
}

// FlushTimeout bounds the final answer flush on shutdown.
func (c *Config) FlushTimeout() time.Duration {
	return time.Duration(c.FlushTimeoutMs) * time.Millisecond
}

// PingInterval returns the viewer ping interval.
func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalMs) * time.Millisecond
}

// WriteTimeout returns the viewer write deadline.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMs) * time.Millisecond
}

// ReadTimeout returns the viewer read deadline.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMs) * time.Millisecond
}
