// Portcullis - Embeddable Authorization Decision Engine
// Copyright 2026 Portcullis Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullis-io/portcullis

// Command server runs the Portcullis authorization server: the decision
// engine and its management API behind a supervised HTTP server, backed
// by a durable role/policy/assignment store and an event stream.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/portcullis-io/portcullis/internal/api"
	"github.com/portcullis-io/portcullis/internal/authz"
	"github.com/portcullis-io/portcullis/internal/config"
	"github.com/portcullis-io/portcullis/internal/events"
	"github.com/portcullis-io/portcullis/internal/kvstore"
	"github.com/portcullis-io/portcullis/internal/logging"
	"github.com/portcullis-io/portcullis/internal/middleware"
	"github.com/portcullis-io/portcullis/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("server exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("store", cfg.Store.Backend).
		Str("events", cfg.Events.Sink).
		Msg("starting portcullis")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("store close error")
		}
	}()

	sink, embedded, err := openSink(cfg)
	if err != nil {
		return fmt.Errorf("open event sink: %w", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logging.Error().Err(err).Msg("event sink close error")
		}
		if embedded != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := embedded.Shutdown(shutdownCtx); err != nil {
				logging.Error().Err(err).Msg("embedded nats shutdown error")
			}
		}
	}()

	roles, err := authz.NewRoleCatalog(ctx, store, sink)
	if err != nil {
		return fmt.Errorf("role catalog: %w", err)
	}
	policies, err := authz.NewPolicyCatalog(ctx, store, sink)
	if err != nil {
		return fmt.Errorf("policy catalog: %w", err)
	}
	assignments, err := authz.NewAssignmentStore(store, roles, sink)
	if err != nil {
		return fmt.Errorf("assignment store: %w", err)
	}

	audit := authz.NewAuditLogger(authz.AuditConfig{
		Enabled:    cfg.Audit.Enabled,
		LogGranted: cfg.Audit.LogGranted,
		LogDenied:  cfg.Audit.LogDenied,
		SampleRate: cfg.Audit.SampleRate,
		BufferSize: cfg.Audit.BufferSize,
	})
	defer audit.Close()

	engine := authz.NewEngine(roles, policies, assignments, sink, audit, authz.EngineConfig{
		StepUpPriority:  cfg.Engine.StepUpPriority,
		StepUpAttribute: cfg.Engine.StepUpAttribute,
	})

	handler := api.NewHandler(engine, roles, policies, assignments)
	auth := api.NewAuthenticator(cfg.Security.JWTSecret, cfg.Security.AuthDisabled)

	var limiter *middleware.RateLimiter
	if !cfg.Security.RateLimitDisabled {
		limiter = middleware.NewRateLimiter(cfg.Security.RateLimitReqs, cfg.Security.RateLimitWindow)
		defer limiter.Close()
	}

	router := api.NewRouter(handler, auth, limiter, cfg)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddAPIService(supervisor.NewHTTPService(server, 10*time.Second))

	logging.Info().Str("addr", server.Addr).Msg("portcullis ready")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logging.Info().Msg("portcullis stopped")
	return nil
}

// openStore builds the configured key-value backend.
func openStore(cfg *config.Config) (kvstore.Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		logging.Warn().Msg("memory store configured, state is lost on restart")
		return kvstore.NewMemoryStore(), nil
	case "badger":
		if err := os.MkdirAll(cfg.Store.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		return kvstore.OpenBadger(cfg.Store.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// openSink builds the configured event sink, starting an embedded NATS
// server first when requested.
func openSink(cfg *config.Config) (events.Sink, *events.EmbeddedServer, error) {
	switch cfg.Events.Sink {
	case "discard":
		return events.Discard{}, nil, nil
	case "log":
		return events.LogSink{}, nil, nil
	case "bus":
		return newBusSink(cfg), nil, nil
	case "nats":
		var embedded *events.EmbeddedServer
		url := cfg.Events.NATS.URL
		if cfg.Events.NATS.EmbeddedServer {
			srv, err := events.NewEmbeddedServer(events.ServerConfig{
				Port:     cfg.Events.NATS.Port,
				StoreDir: cfg.Events.NATS.StoreDir,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("start embedded nats: %w", err)
			}
			embedded = srv
			url = srv.ClientURL()
		}

		natsCfg := events.DefaultNATSConfig()
		natsCfg.URL = url
		natsCfg.TopicPrefix = cfg.Events.TopicPrefix + "."
		sink, err := events.NewNATSSink(natsCfg, nil)
		if err != nil {
			if embedded != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = embedded.Shutdown(shutdownCtx)
			}
			return nil, nil, err
		}
		return sink, embedded, nil
	default:
		return nil, nil, fmt.Errorf("unknown event sink %q", cfg.Events.Sink)
	}
}

// newBusSink builds an in-process Watermill gochannel sink. Embedding
// applications subscribe to the same pub/sub to observe decisions.
func newBusSink(cfg *config.Config) events.Sink {
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, events.WatermillLogger())
	return events.NewBusSink(pubsub, cfg.Events.TopicPrefix+".")
}
