// Portcullis - Embeddable Authorization Decision Engine
// Copyright 2026 Portcullis Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullis-io/portcullis

package authz

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsTotal counts authorization decisions by outcome and reason.
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portcullis_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"decision", "reason"},
	)

	// DecisionDuration tracks the latency of authorization decisions.
	DecisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "portcullis_decision_duration_seconds",
			Help: "Duration of authorization decisions in seconds",
			// Buckets sized for in-memory checks with one store round trip
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"decision"},
	)

	// AssignmentCacheHits counts assignment reads served from the cache.
	AssignmentCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portcullis_assignment_cache_hits_total",
			Help: "Assignment lookups served from the in-process cache",
		},
	)

	// AssignmentCacheMisses counts assignment reads that hit the store.
	AssignmentCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portcullis_assignment_cache_misses_total",
			Help: "Assignment lookups that fell through to the durable store",
		},
	)

	// RoleMutationsTotal counts role catalog mutations by operation.
	RoleMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portcullis_role_mutations_total",
			Help: "Role catalog mutations by operation",
		},
		[]string{"operation"},
	)

	// PolicyMutationsTotal counts policy catalog mutations by operation.
	PolicyMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portcullis_policy_mutations_total",
			Help: "Policy catalog mutations by operation",
		},
		[]string{"operation"},
	)

	// AssignmentMutationsTotal counts assign/unassign operations.
	AssignmentMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portcullis_assignment_mutations_total",
			Help: "Assignment mutations by operation",
		},
		[]string{"operation"},
	)
)

// recordDecision records one decision's outcome, reason, and latency.
func recordDecision(allowed bool, reason string, duration time.Duration) {
	decision := "denied"
	if allowed {
		decision = "granted"
	}
	DecisionsTotal.WithLabelValues(decision, reason).Inc()
	DecisionDuration.WithLabelValues(decision).Observe(duration.Seconds())
}
