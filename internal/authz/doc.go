// Portcullis - Embeddable Authorization Decision Engine
// Copyright 2026 Portcullis Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullis-io/portcullis

// Package authz implements the Portcullis authorization decision engine:
// given a subject, a resource, an action, and optional contextual
// attributes, it decides whether the action is permitted.
//
// # Components
//
//   - RoleCatalog: role definitions (built-in and custom), each a named
//     bundle of permissions. Built-in roles are seeded once at construction
//     and are immutable through the mutation API.
//   - PolicyCatalog: allow/deny policies with resource/action pattern sets
//     and attribute conditions. Deny policies override role grants.
//   - AssignmentStore: subject → role-id set, persisted in a key-value
//     store with an in-process read-through cache.
//   - MatchResource / EvaluateConditions: the pure pattern and condition
//     primitives shared by permissions and policies.
//   - Engine: orchestrates the above to answer Check requests and emits
//     decision events.
//
// # Decision pipeline
//
// A check fetches the subject's roles, scans each role's permissions for a
// grant (global wildcard fast path, then pattern match), consults deny
// policies on the first candidate grant (deny overrides allow), and gates
// high-priority roles behind a step-up signal when the request carries a
// context. Every internal fault is caught, logged, and converted to a
// denial: security decisions fail closed, never open.
//
// # Concurrency
//
// The catalogs and the assignment cache are shared mutable state guarded
// by RWMutexes. Writers hold exclusive access only for the map update, not
// for the store round trip, so in-flight checks are never blocked on I/O.
// Concurrent checks may observe either the pre- or post-write state of a
// concurrent mutation; no transactional isolation is provided.
package authz
