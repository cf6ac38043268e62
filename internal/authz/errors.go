// Portcullis - Embeddable Authorization Decision Engine
// Copyright 2026 Portcullis Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullis-io/portcullis

package authz

import "errors"

// Catalog and assignment errors. Mutation operations surface these to the
// caller; Check never does — every internal fault becomes a denial.
var (
	// ErrDuplicateID is returned when creating a role or policy whose id
	// already exists in the catalog.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrNotFound is returned when a role, policy, or assignment that must
	// exist does not.
	ErrNotFound = errors.New("not found")

	// ErrImmutableSystemRole is returned on any attempt to create, update,
	// or delete a built-in role through the mutation API.
	ErrImmutableSystemRole = errors.New("built-in role is immutable")

	// ErrStoreUnavailable wraps durable-store failures during a mutation.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidInput is returned when a role or policy fails validation.
	ErrInvalidInput = errors.New("invalid input")
)
