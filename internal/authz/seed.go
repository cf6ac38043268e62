// Portcullis - Embeddable Authorization Decision Engine
// Copyright 2026 Portcullis Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullis-io/portcullis

package authz

// Built-in role ids.
const (
	RoleViewer = "viewer"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

// builtinRoles returns the system role set seeded exactly once at catalog
// construction. These never reach the durable store and can never be
// mutated through the API.
func builtinRoles() []*Role {
	return []*Role{
		{
			ID:          RoleViewer,
			Name:        "Viewer",
			Description: "Read-only access to all resources",
			Permissions: []Permission{
				{ID: "viewer-read", ResourcePattern: Wildcard, Action: "read"},
			},
			IsSystem: true,
			Priority: 10,
		},
		{
			ID:          RoleEditor,
			Name:        "Editor",
			Description: "Read and write access to all resources",
			Permissions: []Permission{
				{ID: "editor-read", ResourcePattern: Wildcard, Action: "read"},
				{ID: "editor-write", ResourcePattern: Wildcard, Action: "write"},
			},
			IsSystem: true,
			Priority: 50,
		},
		{
			ID:          RoleAdmin,
			Name:        "Administrator",
			Description: "Full access to all resources and actions",
			Permissions: []Permission{
				{ID: "admin-all", ResourcePattern: Wildcard, Action: Wildcard},
			},
			IsSystem: true,
			Priority: 100,
		},
	}
}
