// Meshboard - Mesh Network Operations Console
// Copyright 2026 Meshboard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meshlabs/meshboard

// Package config provides layered configuration for Meshboard.
//
// Configuration is assembled from three sources, later layers overriding
// earlier ones:
//  1. Built-in defaults
//  2. Optional YAML config file (config.yaml, or MESHBOARD_CONFIG_PATH)
//  3. Environment variables prefixed MESHBOARD_
//
// Environment variable names map to config paths by section:
// MESHBOARD_BACKEND_URL -> backend.url,
// MESHBOARD_REALTIME_MAX_ATTEMPTS -> realtime.max_attempts.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the Meshboard server.
type Config struct {
	Backend  BackendConfig  `koanf:"backend"`
	Realtime RealtimeConfig `koanf:"realtime"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// BackendConfig describes the mesh platform backend that Meshboard
// consumes: its REST API (baseline seeding) and its push channel.
type BackendConfig struct {
	// URL is the base URL of the mesh backend, e.g. "https://mesh.example.com".
	URL string `koanf:"url" validate:"required,url"`

	// Token is the bearer token for REST calls and for the subscribe_user
	// replay after reconnects. Token issuance is out of scope; the value is
	// provided by the operator.
	Token string `koanf:"token"`

	// UserID identifies the console session toward the backend push router.
	// When set, the session replays subscribe_user after every open.
	UserID string `koanf:"user_id"`

	// Timeout applies to individual REST requests.
	Timeout time.Duration `koanf:"timeout"`

	// RateLimit caps REST requests per second during seeding; RateBurst is
	// the token-bucket burst size.
	RateLimit float64 `koanf:"rate_limit" validate:"gte=0"`
	RateBurst int     `koanf:"rate_burst" validate:"gte=0"`
}

// RealtimeConfig tunes the push-channel session and the reconciled
// collection bounds.
type RealtimeConfig struct {
	// Path is the push-channel endpoint relative to the backend URL.
	Path string `koanf:"path"`

	// MaxAttempts is the reconnect budget after a transport close. Once
	// exhausted the session stays Failed until Connect is called again.
	MaxAttempts int `koanf:"max_attempts" validate:"gte=0"`

	// RetryDelay is the fixed wait between reconnect attempts.
	RetryDelay time.Duration `koanf:"retry_delay"`

	// HandshakeTimeout bounds the WebSocket dial.
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`

	// TrailLength is the per-user position history capacity.
	TrailLength int `koanf:"trail_length" validate:"gt=0"`

	// FeedCapacity bounds the alert and message feeds.
	FeedCapacity int `koanf:"feed_capacity" validate:"gt=0"`
}

// ServerConfig configures the HTTP surface (read-only API, browser hub,
// metrics).
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gte=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig configures the zerolog facade.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. File and env
// layers override these.
func defaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:       "http://127.0.0.1:8080",
			Token:     "",
			UserID:    "",
			Timeout:   30 * time.Second,
			RateLimit: 10,
			RateBurst: 20,
		},
		Realtime: RealtimeConfig{
			Path:             "/ws",
			MaxAttempts:      5,
			RetryDelay:       3 * time.Second,
			HandshakeTimeout: 10 * time.Second,
			TrailLength:      50,
			FeedCapacity:     50,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8787,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration for consistency. Struct tags cover the
// per-field constraints; cross-field rules are checked by hand.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if c.Realtime.RetryDelay <= 0 {
		return fmt.Errorf("config validation: realtime.retry_delay must be positive, got %s", c.Realtime.RetryDelay)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("config validation: backend.timeout must be positive, got %s", c.Backend.Timeout)
	}
	return nil
}
