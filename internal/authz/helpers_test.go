// Portcullis - Embeddable Authorization Decision Engine
// Copyright 2026 Portcullis Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullis-io/portcullis

package authz

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/portcullis-io/portcullis/internal/events"
	"github.com/portcullis-io/portcullis/internal/kvstore"
)

// captureSink records published events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *captureSink) Publish(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) Close() error { return nil }

func (s *captureSink) named(name string) []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.Event
	for _, e := range s.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// failingStore simulates an unavailable durable store.
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) Get(context.Context, string) ([]byte, error) { return nil, errStoreDown }
func (failingStore) Set(context.Context, string, []byte) error   { return errStoreDown }
func (failingStore) Delete(context.Context, string) error        { return errStoreDown }
func (failingStore) Scan(context.Context, string) (map[string][]byte, error) {
	return nil, errStoreDown
}
func (failingStore) Close() error { return nil }

// newTestCatalogs builds a memory-backed catalog set plus a capture sink.
func newTestCatalogs(t *testing.T) (*RoleCatalog, *PolicyCatalog, *AssignmentStore, *captureSink) {
	t.Helper()
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	sink := &captureSink{}

	roles, err := NewRoleCatalog(ctx, store, sink)
	if err != nil {
		t.Fatalf("NewRoleCatalog() error: %v", err)
	}
	policies, err := NewPolicyCatalog(ctx, store, sink)
	if err != nil {
		t.Fatalf("NewPolicyCatalog() error: %v", err)
	}
	assignments, err := NewAssignmentStore(store, roles, sink)
	if err != nil {
		t.Fatalf("NewAssignmentStore() error: %v", err)
	}
	return roles, policies, assignments, sink
}

// newTestEngine builds an engine over fresh memory-backed catalogs.
func newTestEngine(t *testing.T) (*Engine, *RoleCatalog, *PolicyCatalog, *AssignmentStore, *captureSink) {
	t.Helper()
	roles, policies, assignments, sink := newTestCatalogs(t)
	engine := NewEngine(roles, policies, assignments, sink, nil, DefaultEngineConfig())
	return engine, roles, policies, assignments, sink
}
