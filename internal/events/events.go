// Portcullis - Embeddable Authorization Decision Engine
// Copyright 2026 Portcullis Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullis-io/portcullis

// Package events defines the decision and catalog events published by the
// engine, and the sinks that carry them.
//
// The engine never owns a global emitter. It accepts an injected Sink at
// construction; fan-out, buffering, and transport are the sink's concern.
// A missing subscriber never affects a decision: publish failures are
// logged and dropped, not propagated into the authorization path.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event names published by the engine and catalogs.
const (
	PermissionGranted = "permission:granted"
	PermissionDenied  = "permission:denied"
	RoleAssigned      = "role:assigned"
	RoleRemoved       = "role:removed"
	RoleCreated       = "role:created"
	RoleUpdated       = "role:updated"
	RoleDeleted       = "role:deleted"
	PolicyCreated     = "policy:created"
	PolicyDeleted     = "policy:deleted"
)

// Event is a single named occurrence with a structured payload.
type Event struct {
	// ID is a unique identifier for this event.
	ID string `json:"id"`

	// Name is one of the event name constants above.
	Name string `json:"name"`

	// Timestamp is when the event was created.
	Timestamp time.Time `json:"timestamp"`

	// Payload carries event-specific fields (subject_id, resource, action,
	// role_id, policy_id, reason).
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// New creates an event with a fresh ID and the current timestamp.
func New(name string, payload map[string]interface{}) Event {
	return Event{
		ID:        uuid.New().String(),
		Name:      name,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// Sink receives events published by the engine and catalogs.
// Implementations must be safe for concurrent use and must not block the
// caller beyond their configured publish timeout.
type Sink interface {
	// Publish delivers the event. Errors indicate transport failure only;
	// callers treat them as non-fatal.
	Publish(ctx context.Context, event Event) error

	// Close flushes and releases the sink.
	Close() error
}

// Discard is a Sink that drops every event. It backs deployments that run
// the engine without any event consumer.
type Discard struct{}

// Publish drops the event.
func (Discard) Publish(context.Context, Event) error { return nil }

// Close is a no-op.
func (Discard) Close() error { return nil }
