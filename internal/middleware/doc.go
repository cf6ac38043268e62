// Portcullis - Embeddable Authorization Decision Engine
// Copyright 2026 Portcullis Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullis-io/portcullis

// Package middleware provides HTTP middleware for the Portcullis API:
// request ID propagation, per-client rate limiting, Prometheus request
// instrumentation, and CORS handling. All middleware uses the standard
// func(http.Handler) http.Handler form and composes with chi routers.
package middleware
