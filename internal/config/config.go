// Portcullis - Embeddable Authorization Decision Engine
// Copyright 2026 Portcullis Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullis-io/portcullis

// Package config loads and validates Portcullis configuration from
// layered sources: built-in defaults, an optional YAML file, and
// environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for the Portcullis server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Store    StoreConfig    `koanf:"store"`
	Events   EventsConfig   `koanf:"events"`
	Engine   EngineConfig   `koanf:"engine"`
	Audit    AuditConfig    `koanf:"audit"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// StoreConfig selects and configures the durable key-value backend.
type StoreConfig struct {
	// Backend is "badger" or "memory". The memory backend loses all
	// state on restart and exists for tests and ephemeral deployments.
	Backend string `koanf:"backend"`

	// Path is the Badger data directory. Ignored by the memory backend.
	Path string `koanf:"path"`
}

// EventsConfig selects and configures the event sink.
type EventsConfig struct {
	// Sink is "log", "bus", "nats", or "discard".
	Sink string `koanf:"sink"`

	// TopicPrefix prefixes bus and NATS topics, e.g. "portcullis".
	TopicPrefix string `koanf:"topic_prefix"`

	NATS NATSConfig `koanf:"nats"`
}

// NATSConfig configures the NATS event sink and optional embedded server.
type NATSConfig struct {
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	Port           int    `koanf:"port"`
}

// EngineConfig holds decision engine tuning.
type EngineConfig struct {
	StepUpPriority  int    `koanf:"step_up_priority"`
	StepUpAttribute string `koanf:"step_up_attribute"`
}

// AuditConfig holds audit trail settings.
type AuditConfig struct {
	Enabled    bool    `koanf:"enabled"`
	LogGranted bool    `koanf:"log_granted"`
	LogDenied  bool    `koanf:"log_denied"`
	SampleRate float64 `koanf:"sample_rate"`
	BufferSize int     `koanf:"buffer_size"`
}

// SecurityConfig holds API authentication and rate limiting settings.
type SecurityConfig struct {
	// AuthDisabled turns off bearer token verification on the admin
	// API. Never disable auth outside development.
	AuthDisabled bool `koanf:"auth_disabled"`

	// JWTSecret signs and verifies admin API bearer tokens (HS256).
	// Required unless AuthDisabled is true.
	JWTSecret string `koanf:"jwt_secret"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for inconsistencies that would
// cause runtime failures or insecure deployments.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive")
	}

	switch c.Store.Backend {
	case "badger":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path required for badger backend")
		}
	case "memory":
	default:
		return fmt.Errorf("store.backend %q unknown (badger, memory)", c.Store.Backend)
	}

	switch c.Events.Sink {
	case "log", "bus", "discard":
	case "nats":
		if !c.Events.NATS.EmbeddedServer && c.Events.NATS.URL == "" {
			return fmt.Errorf("events.nats.url required when embedded server disabled")
		}
	default:
		return fmt.Errorf("events.sink %q unknown (log, bus, nats, discard)", c.Events.Sink)
	}

	if c.Engine.StepUpPriority < 0 {
		return fmt.Errorf("engine.step_up_priority must be non-negative")
	}
	if c.Audit.SampleRate < 0 || c.Audit.SampleRate > 1 {
		return fmt.Errorf("audit.sample_rate %v out of range [0,1]", c.Audit.SampleRate)
	}

	if !c.Security.AuthDisabled {
		if c.Security.JWTSecret == "" {
			return fmt.Errorf("security.jwt_secret required when auth enabled")
		}
		if len(c.Security.JWTSecret) < 32 && c.IsProduction() {
			return fmt.Errorf("security.jwt_secret must be at least 32 characters in production")
		}
	}
	if c.Security.AuthDisabled && c.IsProduction() {
		return fmt.Errorf("security.auth_disabled not permitted in production")
	}

	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}
