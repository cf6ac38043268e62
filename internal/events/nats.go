// Portcullis - Embeddable Authorization Decision Engine
// Copyright 2026 Portcullis Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullis-io/portcullis

package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"
)

// NATSConfig holds configuration for the NATS event publisher.
type NATSConfig struct {
	// URL is the NATS server URL (e.g. nats://127.0.0.1:4222).
	URL string

	// TopicPrefix is prepended to event names to form subjects.
	TopicPrefix string

	// MaxReconnects limits reconnection attempts (-1 for unlimited).
	MaxReconnects int

	// ReconnectWait is the delay between reconnection attempts.
	ReconnectWait time.Duration

	// BreakerMaxFailures opens the circuit after this many consecutive
	// publish failures.
	BreakerMaxFailures uint32

	// BreakerOpenTimeout is how long the circuit stays open before a
	// half-open probe.
	BreakerOpenTimeout time.Duration
}

// DefaultNATSConfig returns production defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:                "nats://127.0.0.1:4222",
		TopicPrefix:        "portcullis.",
		MaxReconnects:      -1,
		ReconnectWait:      2 * time.Second,
		BreakerMaxFailures: 5,
		BreakerOpenTimeout: 30 * time.Second,
	}
}

// NATSSink publishes events over NATS JetStream through Watermill, with a
// circuit breaker so a dead broker cannot stall permission checks.
type NATSSink struct {
	bus     *BusSink
	breaker *gobreaker.CircuitBreaker[interface{}]
	mu      sync.RWMutex
	closed  bool
}

// NewNATSSink connects to NATS and builds the sink.
func NewNATSSink(cfg NATSConfig, logger watermill.LoggerAdapter) (*NATSSink, error) {
	if logger == nil {
		logger = WatermillLogger()
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	publisher, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:   false,
			TrackMsgId: true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill nats publisher: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:    "events-nats-publish",
		Timeout: cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
		},
	})

	return &NATSSink{
		bus:     NewBusSink(publisher, cfg.TopicPrefix),
		breaker: breaker,
	}, nil
}

// Publish delivers the event through the circuit breaker. When the circuit
// is open the event is dropped with an error; the decision path treats
// that as non-fatal.
func (s *NATSSink) Publish(ctx context.Context, event Event) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("nats sink is closed")
	}
	s.mu.RUnlock()

	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.bus.Publish(ctx, event)
	})
	return err
}

// Close shuts down the underlying publisher.
func (s *NATSSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.bus.Close()
}
