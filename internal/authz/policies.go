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

const policyKeyPrefix = "policy:"

func policyKey(id string) string { return policyKeyPrefix + id }

// PolicyCatalog owns allow/deny policies. Policies are append-mostly:
// creation and deletion are supported, in-place update is not. Deny
// precedence is a property of the engine's evaluation order, so no
// mutation here can weaken it.
type PolicyCatalog struct {
	mu       sync.RWMutex
	policies map[string]*Policy
	store    kvstore.Store
	sink     events.Sink
}

// NewPolicyCatalog restores persisted policies from the store and returns
// the catalog.
func NewPolicyCatalog(ctx context.Context, store kvstore.Store, sink events.Sink) (*PolicyCatalog, error) {
	if store == nil {
		return nil, errors.New("store is required (use kvstore.NewMemoryStore for the in-memory variant)")
	}
	if sink == nil {
		sink = events.Discard{}
	}

	c := &PolicyCatalog{
		policies: make(map[string]*Policy),
		store:    store,
		sink:     sink,
	}

	persisted, err := store.Scan(ctx, policyKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("restore policies: %w", err)
	}
	for key, value := range persisted {
		var policy Policy
		if err := json.Unmarshal(value, &policy); err != nil {
			logging.Warn().Str("key", key).Err(err).Msg("skipping malformed persisted policy")
			continue
		}
		if policy.ID == "" {
			logging.Warn().Str("key", key).Msg("skipping persisted policy with empty id")
			continue
		}
		c.policies[policy.ID] = &policy
	}

	logging.Info().Int("policies", len(c.policies)).Msg("policy catalog ready")
	return c, nil
}

func validatePolicy(policy *Policy) error {
	if policy == nil {
		return fmt.Errorf("%w: policy is required", ErrInvalidInput)
	}
	return validateStruct(policy)
}

// CreatePolicy adds a policy. Fails with ErrDuplicateID if the id exists.
func (c *PolicyCatalog) CreatePolicy(ctx context.Context, policy *Policy) error {
	if err := validatePolicy(policy); err != nil {
		return err
	}

	stored := policy.Clone()

	c.mu.Lock()
	if _, exists := c.policies[stored.ID]; exists {
		c.mu.Unlock()
		return fmt.Errorf("create policy %s: %w", stored.ID, ErrDuplicateID)
	}
	c.policies[stored.ID] = stored
	c.mu.Unlock()

	data, err := json.Marshal(stored)
	if err != nil {
		c.mu.Lock()
		delete(c.policies, stored.ID)
		c.mu.Unlock()
		return fmt.Errorf("marshal policy %s: %w", stored.ID, err)
	}
	if err := c.store.Set(ctx, policyKey(stored.ID), data); err != nil {
		c.mu.Lock()
		delete(c.policies, stored.ID)
		c.mu.Unlock()
		return fmt.Errorf("persist policy %s: %w: %v", stored.ID, ErrStoreUnavailable, err)
	}

	PolicyMutationsTotal.WithLabelValues("create").Inc()
	logging.Ctx(ctx).Info().Str("policy", stored.ID).Str("effect", string(stored.Effect)).Msg("policy created")
	c.emit(ctx, events.PolicyCreated, stored)
	return nil
}

// DeletePolicy removes a policy, or returns ErrNotFound.
func (c *PolicyCatalog) DeletePolicy(ctx context.Context, id string) error {
	c.mu.Lock()
	existing, ok := c.policies[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("delete policy %s: %w", id, ErrNotFound)
	}
	delete(c.policies, id)
	c.mu.Unlock()

	if err := c.store.Delete(ctx, policyKey(id)); err != nil {
		c.mu.Lock()
		c.policies[id] = existing
		c.mu.Unlock()
		return fmt.Errorf("delete policy %s: %w: %v", id, ErrStoreUnavailable, err)
	}

	PolicyMutationsTotal.WithLabelValues("delete").Inc()
	logging.Ctx(ctx).Info().Str("policy", id).Msg("policy deleted")
	c.emit(ctx, events.PolicyDeleted, existing)
	return nil
}

// GetPolicy returns a copy of the policy, or ErrNotFound.
func (c *PolicyCatalog) GetPolicy(id string) (*Policy, error) {
	c.mu.RLock()
	policy, ok := c.policies[id]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("get policy %s: %w", id, ErrNotFound)
	}
	return policy.Clone(), nil
}

// ListPolicies returns copies of all policies, sorted by id.
func (c *PolicyCatalog) ListPolicies() []*Policy {
	c.mu.RLock()
	policies := make([]*Policy, 0, len(c.policies))
	for _, policy := range c.policies {
		policies = append(policies, policy.Clone())
	}
	c.mu.RUnlock()

	sort.Slice(policies, func(i, j int) bool { return policies[i].ID < policies[j].ID })
	return policies
}

// denyPolicies returns the live deny policies for the engine's read path,
// sorted by id for deterministic evaluation. Engine code must treat the
// results as immutable.
func (c *PolicyCatalog) denyPolicies() []*Policy {
	c.mu.RLock()
	policies := make([]*Policy, 0, len(c.policies))
	for _, policy := range c.policies {
		if policy.Effect == EffectDeny {
			policies = append(policies, policy)
		}
	}
	c.mu.RUnlock()

	sort.Slice(policies, func(i, j int) bool { return policies[i].ID < policies[j].ID })
	return policies
}

func (c *PolicyCatalog) emit(ctx context.Context, name string, policy *Policy) {
	event := events.New(name, map[string]interface{}{
		"policy_id": policy.ID,
		"effect":    string(policy.Effect),
	})
	if err := c.sink.Publish(ctx, event); err != nil {
		logging.Ctx(ctx).Warn().Str("event", name).Err(err).Msg("event publish failed")
	}
}
