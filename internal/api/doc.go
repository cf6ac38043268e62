// Portcullis - Embeddable Authorization Decision Engine
// Copyright 2026 Portcullis Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullis-io/portcullis

// Package api exposes the Portcullis engine over HTTP.
//
// The decision endpoint POST /api/v1/check is open to any caller that
// passes the rate limiter; management endpoints (roles, policies,
// assignments) require a bearer token signed with the configured JWT
// secret. All responses are JSON.
package api
