// Portcullis - Embeddable Authorization Decision Engine
// Copyright 2026 Portcullis Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullis-io/portcullis

package authz

import (
	"context"
	"time"

	"github.com/portcullis-io/portcullis/internal/events"
	"github.com/portcullis-io/portcullis/internal/logging"
)

// Denial reasons carried on permission:denied events and audit records.
const (
	ReasonNoRoles       = "no_roles"
	ReasonNoPermission  = "no_matching_permission"
	ReasonPolicyDeny    = "policy_deny"
	ReasonStepUp        = "step_up_required"
	ReasonInternalError = "internal_error"
	reasonGranted       = "granted"
)

// EngineConfig holds decision engine configuration.
type EngineConfig struct {
	// StepUpPriority is the role priority at or above which the step-up
	// gate applies when the request carries a context.
	StepUpPriority int

	// StepUpAttribute is the context attribute that must be boolean true
	// to pass the step-up gate.
	StepUpAttribute string
}

// DefaultEngineConfig returns default configuration: roles with priority
// 100 or higher require an "mfa" assertion.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		StepUpPriority:  100,
		StepUpAttribute: "mfa",
	}
}

// Engine answers permission checks. It is safe for concurrent use: each
// Check is an independent computation over the shared catalogs, whose
// internal synchronization is the only locking on the decision path.
type Engine struct {
	roles       *RoleCatalog
	policies    *PolicyCatalog
	assignments *AssignmentStore
	sink        events.Sink
	audit       *AuditLogger
	config      EngineConfig
}

// NewEngine wires the engine. sink may be nil (events are dropped);
// audit may be nil (no audit trail).
func NewEngine(roles *RoleCatalog, policies *PolicyCatalog, assignments *AssignmentStore, sink events.Sink, audit *AuditLogger, config EngineConfig) *Engine {
	if sink == nil {
		sink = events.Discard{}
	}
	if config.StepUpAttribute == "" {
		config.StepUpAttribute = "mfa"
	}
	if config.StepUpPriority == 0 {
		config.StepUpPriority = 100
	}

	return &Engine{
		roles:       roles,
		policies:    policies,
		assignments: assignments,
		sink:        sink,
		audit:       audit,
		config:      config,
	}
}

// Check decides whether the request's action is permitted. It never
// returns an error: every internal fault — store unavailable, malformed
// stored data, even a panic — is caught, logged, and converted to a
// denial. A denied check looks identical to the caller whether the cause
// was policy or failure; only logs and events distinguish the two.
//
// Role-level step-up conditions are evaluated only when the request
// carries a context at all. A request with no context bypasses the
// step-up gate entirely; callers relying on step-up enforcement must
// always supply a context.
func (e *Engine) Check(ctx context.Context, req CheckRequest) (allowed bool) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logging.Ctx(ctx).Error().
				Interface("panic", r).
				Str("subject", req.SubjectID).
				Str("resource", req.Resource).
				Msg("check panicked, failing closed")
			e.finish(ctx, req, start, false, ReasonInternalError, "")
			allowed = false
		}
	}()

	roleIDs, err := e.assignments.GetRoles(ctx, req.SubjectID)
	if err != nil {
		logging.Ctx(ctx).Error().
			Err(err).
			Str("subject", req.SubjectID).
			Msg("assignment lookup failed, failing closed")
		e.finish(ctx, req, start, false, ReasonInternalError, "")
		return false
	}

	if len(roleIDs) == 0 {
		e.finish(ctx, req, start, false, ReasonNoRoles, "")
		return false
	}

	for _, roleID := range roleIDs {
		role, ok := e.roles.lookup(roleID)
		if !ok {
			// Stale assignment to a deleted role: skipped, not an error.
			continue
		}

		if !e.roleGrants(role, req) {
			continue
		}

		// First granting role short-circuits further role scanning.
		if deniedBy := e.deniedByPolicy(req); deniedBy != "" {
			logging.Ctx(ctx).Debug().
				Str("subject", req.SubjectID).
				Str("policy", deniedBy).
				Msg("grant overridden by deny policy")
			e.finish(ctx, req, start, false, ReasonPolicyDeny, roleID)
			return false
		}

		if !e.passesStepUp(role, req) {
			e.finish(ctx, req, start, false, ReasonStepUp, roleID)
			return false
		}

		e.finish(ctx, req, start, true, reasonGranted, roleID)
		return true
	}

	e.finish(ctx, req, start, false, ReasonNoPermission, "")
	return false
}

// roleGrants reports whether any permission of the role covers the
// requested resource and action.
func (e *Engine) roleGrants(role *Role, req CheckRequest) bool {
	for _, perm := range role.Permissions {
		// Global wildcard fast path
		if perm.ResourcePattern == Wildcard && perm.Action == Wildcard {
			return true
		}
		if MatchResource(perm.ResourcePattern, req.Resource) && matchAction(perm.Action, req.Action) {
			return true
		}
	}
	return false
}

// deniedByPolicy returns the id of the first applicable deny policy, or
// empty. A deny policy applies when any of its resource patterns matches
// the requested resource, its action set covers the requested action, and
// its conditions (if any) hold against the request context. The check is
// independent of which role produced the candidate grant.
func (e *Engine) deniedByPolicy(req CheckRequest) string {
	for _, policy := range e.policies.denyPolicies() {
		if !actionInSet(policy.Actions, req.Action) {
			continue
		}

		matched := false
		for _, pattern := range policy.ResourcePatterns {
			if MatchResource(pattern, req.Resource) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		if len(policy.Conditions) == 0 || EvaluateConditions(policy.Conditions, req.Context) {
			return policy.ID
		}
	}
	return ""
}

// passesStepUp applies the role-level step-up gate. Requests without a
// context skip the gate entirely.
func (e *Engine) passesStepUp(role *Role, req CheckRequest) bool {
	if req.Context == nil {
		return true
	}
	if role.Priority < e.config.StepUpPriority {
		return true
	}

	asserted, ok := req.Context[e.config.StepUpAttribute].(bool)
	return ok && asserted
}

// finish emits the decision event, audit record, and metrics.
func (e *Engine) finish(ctx context.Context, req CheckRequest, start time.Time, allowed bool, reason, roleID string) {
	duration := time.Since(start)
	recordDecision(allowed, reason, duration)

	payload := map[string]interface{}{
		"subject_id": req.SubjectID,
		"resource":   req.Resource,
		"action":     req.Action,
	}
	name := events.PermissionDenied
	if allowed {
		name = events.PermissionGranted
		payload["role_id"] = roleID
	} else {
		payload["reason"] = reason
	}

	if err := e.sink.Publish(ctx, events.New(name, payload)); err != nil {
		logging.Ctx(ctx).Warn().Str("event", name).Err(err).Msg("event publish failed")
	}

	e.audit.Record(&AuditRecord{
		SubjectID: req.SubjectID,
		Resource:  req.Resource,
		Action:    req.Action,
		Decision:  allowed,
		Reason:    reason,
		RoleID:    roleID,
		Duration:  duration,
	})
}
