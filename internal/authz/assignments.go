// Portcullis - Embeddable Authorization Decision Engine
// Copyright 2026 Portcullis Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullis-io/portcullis

package authz

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/portcullis-io/portcullis/internal/events"
	"github.com/portcullis-io/portcullis/internal/kvstore"
	"github.com/portcullis-io/portcullis/internal/logging"
)

func assignmentKey(subjectID string) string {
	return "user:" + subjectID + ":roles"
}

// AssignmentStore maps subjects to role-id sets. Reads go through an
// in-process cache (read-through on miss); writes go to the durable store
// first, then refresh the cache. Cache entries never expire on their own:
// invalidation happens only on an explicit write or a process restart.
//
// This gives eventual consistency within a single-process deployment. A
// second process instance's cache can go stale relative to a write made
// here; coordinating across processes is the caller's responsibility.
type AssignmentStore struct {
	mu    sync.RWMutex
	cache map[string][]string
	store kvstore.Store
	roles *RoleCatalog
	sink  events.Sink
}

// NewAssignmentStore creates the store. roles is consulted to reject
// assignments to unknown role ids.
func NewAssignmentStore(store kvstore.Store, roles *RoleCatalog, sink events.Sink) (*AssignmentStore, error) {
	if store == nil {
		return nil, errors.New("store is required (use kvstore.NewMemoryStore for the in-memory variant)")
	}
	if roles == nil {
		return nil, errors.New("role catalog is required")
	}
	if sink == nil {
		sink = events.Discard{}
	}

	return &AssignmentStore{
		cache: make(map[string][]string),
		store: store,
		roles: roles,
		sink:  sink,
	}, nil
}

// GetRoles returns the subject's role-id set, sorted. A subject with no
// record yields an empty set, not an error.
func (s *AssignmentStore) GetRoles(ctx context.Context, subjectID string) ([]string, error) {
	s.mu.RLock()
	cached, ok := s.cache[subjectID]
	s.mu.RUnlock()
	if ok {
		AssignmentCacheHits.Inc()
		return append([]string(nil), cached...), nil
	}

	AssignmentCacheMisses.Inc()
	roleIDs, err := s.load(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[subjectID] = roleIDs
	s.mu.Unlock()

	return append([]string(nil), roleIDs...), nil
}

// load fetches the subject's role set from the durable store.
func (s *AssignmentStore) load(ctx context.Context, subjectID string) ([]string, error) {
	value, err := s.store.Get(ctx, assignmentKey(subjectID))
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load assignments for %s: %w: %v", subjectID, ErrStoreUnavailable, err)
	}

	var roleIDs []string
	if err := json.Unmarshal(value, &roleIDs); err != nil {
		return nil, fmt.Errorf("malformed assignments for %s: %w", subjectID, err)
	}
	sort.Strings(roleIDs)
	return roleIDs, nil
}

// Assign adds roleID to the subject's role set. Fails with ErrNotFound if
// the role is not in the catalog. Re-assigning an already-held role is a
// no-op (set semantics).
func (s *AssignmentStore) Assign(ctx context.Context, subjectID, roleID string) error {
	if _, ok := s.roles.lookup(roleID); !ok {
		return fmt.Errorf("assign role %s to %s: %w", roleID, subjectID, ErrNotFound)
	}

	current, err := s.GetRoles(ctx, subjectID)
	if err != nil {
		return err
	}
	for _, id := range current {
		if id == roleID {
			return nil
		}
	}

	updated := append(current, roleID)
	sort.Strings(updated)
	if err := s.persist(ctx, subjectID, updated); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[subjectID] = updated
	s.mu.Unlock()

	AssignmentMutationsTotal.WithLabelValues("assign").Inc()
	logging.Ctx(ctx).Info().Str("subject", subjectID).Str("role", roleID).Msg("role assigned")
	s.emit(ctx, events.RoleAssigned, subjectID, roleID)
	return nil
}

// Unassign removes roleID from the subject's role set. Removing a role
// the subject does not hold is a no-op.
func (s *AssignmentStore) Unassign(ctx context.Context, subjectID, roleID string) error {
	current, err := s.GetRoles(ctx, subjectID)
	if err != nil {
		return err
	}

	updated := current[:0]
	removed := false
	for _, id := range current {
		if id == roleID {
			removed = true
			continue
		}
		updated = append(updated, id)
	}
	if !removed {
		return nil
	}

	if err := s.persist(ctx, subjectID, updated); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[subjectID] = updated
	s.mu.Unlock()

	AssignmentMutationsTotal.WithLabelValues("unassign").Inc()
	logging.Ctx(ctx).Info().Str("subject", subjectID).Str("role", roleID).Msg("role removed")
	s.emit(ctx, events.RoleRemoved, subjectID, roleID)
	return nil
}

// Invalidate drops the subject's cache entry, forcing the next read to
// hit the durable store.
func (s *AssignmentStore) Invalidate(subjectID string) {
	s.mu.Lock()
	delete(s.cache, subjectID)
	s.mu.Unlock()
}

func (s *AssignmentStore) persist(ctx context.Context, subjectID string, roleIDs []string) error {
	data, err := json.Marshal(roleIDs)
	if err != nil {
		return fmt.Errorf("marshal assignments for %s: %w", subjectID, err)
	}
	if err := s.store.Set(ctx, assignmentKey(subjectID), data); err != nil {
		return fmt.Errorf("persist assignments for %s: %w: %v", subjectID, ErrStoreUnavailable, err)
	}
	return nil
}

func (s *AssignmentStore) emit(ctx context.Context, name, subjectID, roleID string) {
	event := events.New(name, map[string]interface{}{
		"subject_id": subjectID,
		"role_id":    roleID,
	})
	if err := s.sink.Publish(ctx, event); err != nil {
		logging.Ctx(ctx).Warn().Str("event", name).Err(err).Msg("event publish failed")
	}
}
