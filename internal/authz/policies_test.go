// Portcullis - Embeddable Authorization Decision Engine
// Copyright 2026 Portcullis Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullis-io/portcullis

package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/portcullis-io/portcullis/internal/events"
	"github.com/portcullis-io/portcullis/internal/kvstore"
)

func denyBilling() *Policy {
	return &Policy{
		ID:               "deny-billing",
		Name:             "Deny billing access",
		Effect:           EffectDeny,
		ResourcePatterns: []string{"billing:*"},
		Actions:          []string{"*"},
	}
}

func TestPolicyCatalog_CreateAndGet(t *testing.T) {
	_, policies, _, sink := newTestCatalogs(t)
	ctx := context.Background()

	if err := policies.CreatePolicy(ctx, denyBilling()); err != nil {
		t.Fatalf("CreatePolicy() error: %v", err)
	}

	got, err := policies.GetPolicy("deny-billing")
	if err != nil {
		t.Fatalf("GetPolicy() error: %v", err)
	}
	if got.Effect != EffectDeny || len(got.ResourcePatterns) != 1 {
		t.Errorf("GetPolicy() = %+v", got)
	}

	if created := sink.named(events.PolicyCreated); len(created) != 1 {
		t.Errorf("policy:created events = %d, want 1", len(created))
	}
}

func TestPolicyCatalog_CreatePolicy_DuplicateID(t *testing.T) {
	_, policies, _, _ := newTestCatalogs(t)
	ctx := context.Background()

	if err := policies.CreatePolicy(ctx, denyBilling()); err != nil {
		t.Fatalf("CreatePolicy() error: %v", err)
	}
	if err := policies.CreatePolicy(ctx, denyBilling()); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("CreatePolicy() duplicate error = %v, want ErrDuplicateID", err)
	}
}

func TestPolicyCatalog_CreatePolicy_Validation(t *testing.T) {
	_, policies, _, _ := newTestCatalogs(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		policy *Policy
	}{
		{"missing id", &Policy{Effect: EffectDeny, ResourcePatterns: []string{"*"}, Actions: []string{"*"}}},
		{"bad effect", &Policy{ID: "p", Effect: "block", ResourcePatterns: []string{"*"}, Actions: []string{"*"}}},
		{"no resources", &Policy{ID: "p", Effect: EffectDeny, Actions: []string{"*"}}},
		{"no actions", &Policy{ID: "p", Effect: EffectDeny, ResourcePatterns: []string{"*"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := policies.CreatePolicy(ctx, tt.policy); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("CreatePolicy() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestPolicyCatalog_DeletePolicy(t *testing.T) {
	_, policies, _, sink := newTestCatalogs(t)
	ctx := context.Background()

	if err := policies.CreatePolicy(ctx, denyBilling()); err != nil {
		t.Fatalf("CreatePolicy() error: %v", err)
	}
	if err := policies.DeletePolicy(ctx, "deny-billing"); err != nil {
		t.Fatalf("DeletePolicy() error: %v", err)
	}
	if _, err := policies.GetPolicy("deny-billing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPolicy() after delete error = %v, want ErrNotFound", err)
	}
	if err := policies.DeletePolicy(ctx, "deny-billing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeletePolicy() twice error = %v, want ErrNotFound", err)
	}

	if deleted := sink.named(events.PolicyDeleted); len(deleted) != 1 {
		t.Errorf("policy:deleted events = %d, want 1", len(deleted))
	}
}

func TestPolicyCatalog_DenyPoliciesFiltersAllow(t *testing.T) {
	_, policies, _, _ := newTestCatalogs(t)
	ctx := context.Background()

	if err := policies.CreatePolicy(ctx, denyBilling()); err != nil {
		t.Fatalf("CreatePolicy() error: %v", err)
	}
	allow := &Policy{
		ID:               "allow-docs",
		Effect:           EffectAllow,
		ResourcePatterns: []string{"docs:*"},
		Actions:          []string{"read"},
	}
	if err := policies.CreatePolicy(ctx, allow); err != nil {
		t.Fatalf("CreatePolicy() error: %v", err)
	}

	denies := policies.denyPolicies()
	if len(denies) != 1 || denies[0].ID != "deny-billing" {
		t.Errorf("denyPolicies() = %+v, want only deny-billing", denies)
	}

	if len(policies.ListPolicies()) != 2 {
		t.Error("ListPolicies() should include allow policies")
	}
}

func TestPolicyCatalog_PersistenceRestore(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()

	first, err := NewPolicyCatalog(ctx, store, events.Discard{})
	if err != nil {
		t.Fatalf("NewPolicyCatalog() error: %v", err)
	}
	if err := first.CreatePolicy(ctx, denyBilling()); err != nil {
		t.Fatalf("CreatePolicy() error: %v", err)
	}

	second, err := NewPolicyCatalog(ctx, store, events.Discard{})
	if err != nil {
		t.Fatalf("NewPolicyCatalog() restore error: %v", err)
	}
	restored, err := second.GetPolicy("deny-billing")
	if err != nil {
		t.Fatalf("GetPolicy() after restore error: %v", err)
	}
	if restored.Effect != EffectDeny {
		t.Errorf("restored policy = %+v", restored)
	}
}

func TestNewPolicyCatalog_SkipsEmptyIDRecord(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()

	// Valid JSON, but no id field: must be skipped, not inserted under "".
	if err := store.Set(ctx, policyKey("ghost"), []byte(`{"effect":"deny"}`)); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	catalog, err := NewPolicyCatalog(ctx, store, events.Discard{})
	if err != nil {
		t.Fatalf("NewPolicyCatalog() error: %v", err)
	}
	if len(catalog.ListPolicies()) != 0 {
		t.Errorf("ListPolicies() = %+v, want empty catalog", catalog.ListPolicies())
	}
	if _, err := catalog.GetPolicy(""); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPolicy(\"\") error = %v, want ErrNotFound", err)
	}
}
