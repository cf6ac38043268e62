// Portcullis - Embeddable Authorization Decision Engine
// Copyright 2026 Portcullis Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullis-io/portcullis

// Package kvstore provides the durable key-value persistence layer behind
// the role catalog, policy catalog, and assignment store.
//
// Two implementations are provided and chosen at construction time:
//
//   - BadgerStore: durable storage on BadgerDB, suitable for production.
//   - MemoryStore: process-local map, for the explicit in-memory-only
//     configuration variant and for tests. Nothing survives a restart.
//
// Key scheme used by the catalogs:
//
//	user:<subject_id>:roles  -> JSON array of role ids
//	role:<role_id>           -> JSON role definition
//	policy:<policy_id>       -> JSON policy definition
package kvstore

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get when the key has no value.
var ErrKeyNotFound = errors.New("key not found")

// Store is the durable key-value contract consumed by the catalogs and
// the assignment store. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Scan returns all key/value pairs whose key starts with prefix.
	// Used at startup to restore persisted catalogs.
	Scan(ctx context.Context, prefix string) (map[string][]byte, error)

	// Close releases the store's resources.
	Close() error
}
