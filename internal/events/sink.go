// Portcullis - Embeddable Authorization Decision Engine
// Copyright 2026 Portcullis Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullis-io/portcullis

package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/portcullis-io/portcullis/internal/logging"
)

// LogSink writes every event to the structured log at info level.
// It is the default sink when no event bus is configured, keeping an
// audit trail available in minimal deployments.
type LogSink struct{}

// Publish logs the event.
func (LogSink) Publish(ctx context.Context, event Event) error {
	logging.Ctx(ctx).Info().
		Str("event_id", event.ID).
		Str("event", event.Name).
		Interface("payload", event.Payload).
		Msg("authz event")
	return nil
}

// Close is a no-op.
func (LogSink) Close() error { return nil }

// BusSink publishes events to a Watermill publisher, one topic per event
// name. It works with any Watermill transport; in-process deployments use
// the gochannel pub/sub, standalone deployments the NATS publisher.
type BusSink struct {
	publisher   message.Publisher
	topicPrefix string
}

// NewBusSink wraps a Watermill publisher. topicPrefix is prepended to the
// event name to form the topic (e.g. "portcullis." + "permission:granted").
func NewBusSink(publisher message.Publisher, topicPrefix string) *BusSink {
	return &BusSink{publisher: publisher, topicPrefix: topicPrefix}
}

// Publish serializes the event and publishes it to its topic.
func (s *BusSink) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Name, err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("event", event.Name)

	if err := s.publisher.Publish(s.Topic(event.Name), msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Name, err)
	}
	return nil
}

// Topic returns the bus topic for an event name.
func (s *BusSink) Topic(eventName string) string {
	if s.topicPrefix == "" {
		return eventName
	}
	return s.topicPrefix + eventName
}

// Close closes the underlying publisher.
func (s *BusSink) Close() error {
	return s.publisher.Close()
}

// Deserialize decodes a bus message produced by BusSink back into an Event.
func Deserialize(msg *message.Message) (Event, error) {
	var event Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}

// WatermillLogger adapts the Portcullis logger to watermill.LoggerAdapter
// so bus internals log through the same stream as everything else.
func WatermillLogger() watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logging.NewSlogLogger())
}
