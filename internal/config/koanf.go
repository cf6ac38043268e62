// Portcullis - Embeddable Authorization Decision Engine
// Copyright 2026 Portcullis Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullis-io/portcullis

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/portcullis/config.yaml",
	"/etc/portcullis/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8443,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Store: StoreConfig{
			Backend: "badger",
			Path:    "/data/portcullis",
		},
		Events: EventsConfig{
			Sink:        "log",
			TopicPrefix: "portcullis",
			NATS: NATSConfig{
				URL:            "nats://127.0.0.1:4222",
				EmbeddedServer: false,
				StoreDir:       "/data/nats/jetstream",
				Port:           4222,
			},
		},
		Engine: EngineConfig{
			StepUpPriority:  100,
			StepUpAttribute: "mfa",
		},
		Audit: AuditConfig{
			Enabled:    true,
			LogGranted: true,
			LogDenied:  true,
			SampleRate: 1.0,
			BufferSize: 1000,
		},
		Security: SecurityConfig{
			AuthDisabled:      false,
			JWTSecret:         "",
			RateLimitReqs:     100,
			RateLimitWindow:   1 * time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if found)
//  3. Environment variables: override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, or empty.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when supplied via environment variables.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated strings to slices for
// known slice fields. Env vars arrive as plain strings.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML): leave alone.
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config
// paths. Unmapped variables are dropped so that random environment
// variables never pollute the configuration.
//
// Examples:
//   - PORTCULLIS_HTTP_PORT -> server.port
//   - PORTCULLIS_STORE_BACKEND -> store.backend
//   - PORTCULLIS_JWT_SECRET -> security.jwt_secret
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"portcullis_http_host":   "server.host",
		"portcullis_http_port":   "server.port",
		"portcullis_timeout":     "server.timeout",
		"portcullis_environment": "server.environment",
		"environment":            "server.environment",

		// Store
		"portcullis_store_backend": "store.backend",
		"portcullis_store_path":    "store.path",

		// Events
		"portcullis_events_sink":    "events.sink",
		"portcullis_topic_prefix":   "events.topic_prefix",
		"portcullis_nats_url":       "events.nats.url",
		"portcullis_nats_embedded":  "events.nats.embedded_server",
		"portcullis_nats_store_dir": "events.nats.store_dir",
		"portcullis_nats_port":      "events.nats.port",

		// Engine
		"portcullis_step_up_priority":  "engine.step_up_priority",
		"portcullis_step_up_attribute": "engine.step_up_attribute",

		// Audit
		"portcullis_audit_enabled":     "audit.enabled",
		"portcullis_audit_granted":     "audit.log_granted",
		"portcullis_audit_denied":      "audit.log_denied",
		"portcullis_audit_sample_rate": "audit.sample_rate",
		"portcullis_audit_buffer":      "audit.buffer_size",

		// Security
		"portcullis_auth_disabled":      "security.auth_disabled",
		"portcullis_jwt_secret":         "security.jwt_secret",
		"portcullis_rate_limit_reqs":    "security.rate_limit_reqs",
		"portcullis_rate_limit_window":  "security.rate_limit_window",
		"portcullis_disable_rate_limit": "security.rate_limit_disabled",
		"portcullis_cors_origins":       "security.cors_origins",

		// Logging
		"portcullis_log_level":  "logging.level",
		"portcullis_log_format": "logging.format",
		"portcullis_log_caller": "logging.caller",
		"log_level":             "logging.level",
		"log_format":            "logging.format",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	return ""
}
