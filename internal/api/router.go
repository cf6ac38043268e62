// Portcullis - Embeddable Authorization Decision Engine
// Copyright 2026 Portcullis Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullis-io/portcullis

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/portcullis-io/portcullis/internal/config"
	"github.com/portcullis-io/portcullis/internal/middleware"
)

// Router wires handlers, authentication, and shared middleware into the
// HTTP surface.
type Router struct {
	handler *Handler
	auth    *Authenticator
	limiter *middleware.RateLimiter
	cfg     *config.Config
}

// NewRouter builds the router. The rate limiter may be nil when rate
// limiting is disabled.
func NewRouter(handler *Handler, auth *Authenticator, limiter *middleware.RateLimiter, cfg *config.Config) *Router {
	return &Router{
		handler: handler,
		auth:    auth,
		limiter: limiter,
		cfg:     cfg,
	}
}

// Setup returns the complete HTTP handler tree.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: router.cfg.Security.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", router.handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if router.limiter != nil {
			r.Use(router.limiter.Middleware)
		}
		r.Use(middleware.PrometheusMetrics)

		// Decision endpoint: hot path, open to rate-limited callers.
		r.Post("/check", router.handler.Check)

		// Management endpoints require a bearer token.
		r.Group(func(r chi.Router) {
			r.Use(router.auth.Middleware)

			r.Route("/roles", func(r chi.Router) {
				r.Post("/", router.handler.CreateRole)
				r.Get("/", router.handler.ListRoles)
				r.Get("/{id}", router.handler.GetRole)
				r.Put("/{id}", router.handler.UpdateRole)
				r.Delete("/{id}", router.handler.DeleteRole)
			})

			r.Route("/policies", func(r chi.Router) {
				r.Post("/", router.handler.CreatePolicy)
				r.Get("/", router.handler.ListPolicies)
				r.Get("/{id}", router.handler.GetPolicy)
				r.Delete("/{id}", router.handler.DeletePolicy)
			})

			r.Route("/subjects/{id}/roles", func(r chi.Router) {
				r.Get("/", router.handler.SubjectRoles)
				r.Post("/", router.handler.Assign)
				r.Delete("/{roleID}", router.handler.Unassign)
			})
		})
	})

	return r
}
