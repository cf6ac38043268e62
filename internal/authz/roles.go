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

const roleKeyPrefix = "role:"

func roleKey(id string) string { return roleKeyPrefix + id }

// RoleCatalog owns role definitions. Custom roles are persisted to the
// injected store and restored at construction; built-in roles are seeded
// exactly once per process and never persisted.
//
// The catalog map is guarded by an RWMutex. Writers hold the lock only
// for the map update; the store round trip happens outside it so
// in-flight checks never block on I/O.
type RoleCatalog struct {
	mu    sync.RWMutex
	roles map[string]*Role
	store kvstore.Store
	sink  events.Sink
}

// NewRoleCatalog seeds the built-in roles, restores persisted custom
// roles from the store, and returns the catalog. A persisted role whose
// id collides with a built-in is skipped with a warning rather than
// shadowing the system role.
func NewRoleCatalog(ctx context.Context, store kvstore.Store, sink events.Sink) (*RoleCatalog, error) {
	if store == nil {
		return nil, errors.New("store is required (use kvstore.NewMemoryStore for the in-memory variant)")
	}
	if sink == nil {
		sink = events.Discard{}
	}

	c := &RoleCatalog{
		roles: make(map[string]*Role),
		store: store,
		sink:  sink,
	}

	for _, role := range builtinRoles() {
		c.roles[role.ID] = role
	}

	persisted, err := store.Scan(ctx, roleKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("restore roles: %w", err)
	}
	for key, value := range persisted {
		var role Role
		if err := json.Unmarshal(value, &role); err != nil {
			logging.Warn().Str("key", key).Err(err).Msg("skipping malformed persisted role")
			continue
		}
		if role.ID == "" {
			logging.Warn().Str("key", key).Msg("skipping persisted role with empty id")
			continue
		}
		if existing, ok := c.roles[role.ID]; ok && existing.IsSystem {
			logging.Warn().Str("role", role.ID).Msg("persisted role collides with built-in, skipping")
			continue
		}
		if role.Permissions == nil {
			role.Permissions = []Permission{}
		}
		c.roles[role.ID] = &role
	}

	logging.Info().Int("roles", len(c.roles)).Msg("role catalog ready")
	return c, nil
}

// validateRole rejects roles the catalog cannot hold.
func validateRole(role *Role) error {
	if role == nil {
		return fmt.Errorf("%w: role is required", ErrInvalidInput)
	}
	return validateStruct(role)
}

// CreateRole adds a custom role. It fails with ErrDuplicateID if the id
// exists and ErrImmutableSystemRole if the role claims system status.
func (c *RoleCatalog) CreateRole(ctx context.Context, role *Role) error {
	if err := validateRole(role); err != nil {
		return err
	}
	if role.IsSystem {
		return fmt.Errorf("create role %s: %w", role.ID, ErrImmutableSystemRole)
	}

	stored := role.Clone()
	if stored.Permissions == nil {
		stored.Permissions = []Permission{}
	}

	c.mu.Lock()
	if _, exists := c.roles[stored.ID]; exists {
		c.mu.Unlock()
		return fmt.Errorf("create role %s: %w", stored.ID, ErrDuplicateID)
	}
	c.roles[stored.ID] = stored
	c.mu.Unlock()

	if err := c.persist(ctx, stored); err != nil {
		c.mu.Lock()
		delete(c.roles, stored.ID)
		c.mu.Unlock()
		return err
	}

	RoleMutationsTotal.WithLabelValues("create").Inc()
	logging.Ctx(ctx).Info().Str("role", stored.ID).Msg("role created")
	c.emit(ctx, events.RoleCreated, stored)
	return nil
}

// UpdateRole replaces an existing custom role's definition. Built-in
// roles fail with ErrImmutableSystemRole.
func (c *RoleCatalog) UpdateRole(ctx context.Context, role *Role) error {
	if err := validateRole(role); err != nil {
		return err
	}

	stored := role.Clone()
	if stored.Permissions == nil {
		stored.Permissions = []Permission{}
	}
	stored.IsSystem = false

	c.mu.Lock()
	existing, ok := c.roles[stored.ID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("update role %s: %w", stored.ID, ErrNotFound)
	}
	if existing.IsSystem {
		c.mu.Unlock()
		return fmt.Errorf("update role %s: %w", stored.ID, ErrImmutableSystemRole)
	}
	c.roles[stored.ID] = stored
	c.mu.Unlock()

	if err := c.persist(ctx, stored); err != nil {
		// Restore the previous definition so memory and store stay aligned.
		c.mu.Lock()
		c.roles[stored.ID] = existing
		c.mu.Unlock()
		return err
	}

	RoleMutationsTotal.WithLabelValues("update").Inc()
	logging.Ctx(ctx).Info().Str("role", stored.ID).Msg("role updated")
	c.emit(ctx, events.RoleUpdated, stored)
	return nil
}

// DeleteRole removes a custom role. Built-in roles fail with
// ErrImmutableSystemRole.
func (c *RoleCatalog) DeleteRole(ctx context.Context, id string) error {
	c.mu.Lock()
	existing, ok := c.roles[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("delete role %s: %w", id, ErrNotFound)
	}
	if existing.IsSystem {
		c.mu.Unlock()
		return fmt.Errorf("delete role %s: %w", id, ErrImmutableSystemRole)
	}
	delete(c.roles, id)
	c.mu.Unlock()

	if err := c.store.Delete(ctx, roleKey(id)); err != nil {
		c.mu.Lock()
		c.roles[id] = existing
		c.mu.Unlock()
		return fmt.Errorf("delete role %s: %w: %v", id, ErrStoreUnavailable, err)
	}

	RoleMutationsTotal.WithLabelValues("delete").Inc()
	logging.Ctx(ctx).Info().Str("role", id).Msg("role deleted")
	c.emit(ctx, events.RoleDeleted, existing)
	return nil
}

// GetRole returns a copy of the role, or ErrNotFound.
func (c *RoleCatalog) GetRole(id string) (*Role, error) {
	c.mu.RLock()
	role, ok := c.roles[id]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("get role %s: %w", id, ErrNotFound)
	}
	return role.Clone(), nil
}

// ListRoles returns copies of all roles, sorted by id.
func (c *RoleCatalog) ListRoles() []*Role {
	c.mu.RLock()
	roles := make([]*Role, 0, len(c.roles))
	for _, role := range c.roles {
		roles = append(roles, role.Clone())
	}
	c.mu.RUnlock()

	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	return roles
}

// lookup returns the live role pointer for the engine's read path.
// Engine code must treat the result as immutable.
func (c *RoleCatalog) lookup(id string) (*Role, bool) {
	c.mu.RLock()
	role, ok := c.roles[id]
	c.mu.RUnlock()
	return role, ok
}

func (c *RoleCatalog) persist(ctx context.Context, role *Role) error {
	data, err := json.Marshal(role)
	if err != nil {
		return fmt.Errorf("marshal role %s: %w", role.ID, err)
	}
	if err := c.store.Set(ctx, roleKey(role.ID), data); err != nil {
		return fmt.Errorf("persist role %s: %w: %v", role.ID, ErrStoreUnavailable, err)
	}
	return nil
}

func (c *RoleCatalog) emit(ctx context.Context, name string, role *Role) {
	event := events.New(name, map[string]interface{}{
		"role_id": role.ID,
		"name":    role.Name,
	})
	if err := c.sink.Publish(ctx, event); err != nil {
		logging.Ctx(ctx).Warn().Str("event", name).Err(err).Msg("event publish failed")
	}
}
