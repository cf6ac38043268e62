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

func TestAssignmentStore_AssignGetRolesRoundTrip(t *testing.T) {
	_, _, assignments, sink := newTestCatalogs(t)
	ctx := context.Background()

	if err := assignments.Assign(ctx, "u1", RoleViewer); err != nil {
		t.Fatalf("Assign() error: %v", err)
	}

	roles, err := assignments.GetRoles(ctx, "u1")
	if err != nil {
		t.Fatalf("GetRoles() error: %v", err)
	}
	if len(roles) != 1 || roles[0] != RoleViewer {
		t.Errorf("GetRoles() = %v, want [viewer]", roles)
	}

	if assigned := sink.named(events.RoleAssigned); len(assigned) != 1 {
		t.Errorf("role:assigned events = %d, want 1", len(assigned))
	}
}

func TestAssignmentStore_AssignUnknownRole(t *testing.T) {
	_, _, assignments, _ := newTestCatalogs(t)

	err := assignments.Assign(context.Background(), "u1", "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Assign() error = %v, want ErrNotFound", err)
	}
}

func TestAssignmentStore_AssignIdempotent(t *testing.T) {
	_, _, assignments, sink := newTestCatalogs(t)
	ctx := context.Background()

	if err := assignments.Assign(ctx, "u1", RoleViewer); err != nil {
		t.Fatalf("Assign() error: %v", err)
	}
	if err := assignments.Assign(ctx, "u1", RoleViewer); err != nil {
		t.Fatalf("Assign() repeat error: %v", err)
	}

	roles, _ := assignments.GetRoles(ctx, "u1")
	if len(roles) != 1 {
		t.Errorf("GetRoles() = %v, want no duplicates", roles)
	}
	if assigned := sink.named(events.RoleAssigned); len(assigned) != 1 {
		t.Errorf("role:assigned events = %d, want 1 (no event for no-op)", len(assigned))
	}
}

func TestAssignmentStore_Unassign(t *testing.T) {
	_, _, assignments, sink := newTestCatalogs(t)
	ctx := context.Background()

	if err := assignments.Assign(ctx, "u1", RoleViewer); err != nil {
		t.Fatalf("Assign() error: %v", err)
	}
	if err := assignments.Assign(ctx, "u1", RoleEditor); err != nil {
		t.Fatalf("Assign() error: %v", err)
	}

	if err := assignments.Unassign(ctx, "u1", RoleViewer); err != nil {
		t.Fatalf("Unassign() error: %v", err)
	}

	roles, _ := assignments.GetRoles(ctx, "u1")
	if len(roles) != 1 || roles[0] != RoleEditor {
		t.Errorf("GetRoles() = %v, want [editor]", roles)
	}

	// Unassigning a role the subject does not hold is a no-op.
	if err := assignments.Unassign(ctx, "u1", RoleAdmin); err != nil {
		t.Errorf("Unassign(no-op) error: %v", err)
	}
	if removed := sink.named(events.RoleRemoved); len(removed) != 1 {
		t.Errorf("role:removed events = %d, want 1", len(removed))
	}
}

func TestAssignmentStore_UnknownSubjectEmptySet(t *testing.T) {
	_, _, assignments, _ := newTestCatalogs(t)

	roles, err := assignments.GetRoles(context.Background(), "stranger")
	if err != nil {
		t.Fatalf("GetRoles() error: %v", err)
	}
	if len(roles) != 0 {
		t.Errorf("GetRoles() = %v, want empty set", roles)
	}
}

func TestAssignmentStore_CacheReadThrough(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	roles, err := NewRoleCatalog(ctx, store, events.Discard{})
	if err != nil {
		t.Fatalf("NewRoleCatalog() error: %v", err)
	}
	assignments, err := NewAssignmentStore(store, roles, events.Discard{})
	if err != nil {
		t.Fatalf("NewAssignmentStore() error: %v", err)
	}

	if err := assignments.Assign(ctx, "u1", RoleViewer); err != nil {
		t.Fatalf("Assign() error: %v", err)
	}

	// Delete the backing record: the cached entry still answers reads
	// because entries never expire on their own.
	if err := store.Delete(ctx, assignmentKey("u1")); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	cached, err := assignments.GetRoles(ctx, "u1")
	if err != nil {
		t.Fatalf("GetRoles() error: %v", err)
	}
	if len(cached) != 1 {
		t.Errorf("GetRoles() = %v, want cached [viewer]", cached)
	}

	// Explicit invalidation forces the next read through to the store.
	assignments.Invalidate("u1")
	fresh, err := assignments.GetRoles(ctx, "u1")
	if err != nil {
		t.Fatalf("GetRoles() after invalidate error: %v", err)
	}
	if len(fresh) != 0 {
		t.Errorf("GetRoles() = %v, want empty after invalidation", fresh)
	}
}

func TestAssignmentStore_WritesPersist(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	roles, err := NewRoleCatalog(ctx, store, events.Discard{})
	if err != nil {
		t.Fatalf("NewRoleCatalog() error: %v", err)
	}

	first, err := NewAssignmentStore(store, roles, events.Discard{})
	if err != nil {
		t.Fatalf("NewAssignmentStore() error: %v", err)
	}
	if err := first.Assign(ctx, "u1", RoleEditor); err != nil {
		t.Fatalf("Assign() error: %v", err)
	}

	// A fresh store over the same backing data sees the assignment.
	second, err := NewAssignmentStore(store, roles, events.Discard{})
	if err != nil {
		t.Fatalf("NewAssignmentStore() error: %v", err)
	}
	restored, err := second.GetRoles(ctx, "u1")
	if err != nil {
		t.Fatalf("GetRoles() error: %v", err)
	}
	if len(restored) != 1 || restored[0] != RoleEditor {
		t.Errorf("GetRoles() = %v, want [editor]", restored)
	}
}

func TestAssignmentStore_StoreFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	roles, err := NewRoleCatalog(ctx, kvstore.NewMemoryStore(), events.Discard{})
	if err != nil {
		t.Fatalf("NewRoleCatalog() error: %v", err)
	}
	assignments, err := NewAssignmentStore(failingStore{}, roles, events.Discard{})
	if err != nil {
		t.Fatalf("NewAssignmentStore() error: %v", err)
	}

	if _, err := assignments.GetRoles(ctx, "u1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("GetRoles() error = %v, want ErrStoreUnavailable", err)
	}
	if err := assignments.Assign(ctx, "u1", RoleViewer); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Assign() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestAssignmentStore_ResultIsolation(t *testing.T) {
	_, _, assignments, _ := newTestCatalogs(t)
	ctx := context.Background()

	if err := assignments.Assign(ctx, "u1", RoleViewer); err != nil {
		t.Fatalf("Assign() error: %v", err)
	}

	roles, _ := assignments.GetRoles(ctx, "u1")
	roles[0] = "tampered"

	again, _ := assignments.GetRoles(ctx, "u1")
	if again[0] != RoleViewer {
		t.Error("GetRoles() exposed cache backing array to caller mutation")
	}
}
