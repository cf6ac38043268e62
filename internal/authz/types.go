// Portcullis - Embeddable Authorization Decision Engine
// Copyright 2026 Portcullis Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullis-io/portcullis

package authz

// Wildcard is the pattern token matching any resource or action.
const Wildcard = "*"

// Operator names the comparison applied by a condition.
type Operator string

// Supported condition operators.
const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
)

// Effect is a policy's disposition.
type Effect string

// Policy effects. Only deny policies are consulted by the engine; allow
// policies are stored but grants originate from role permissions.
const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Condition is an attribute test evaluated against a check's context.
// Type names the context attribute to read (e.g. "mfa", "ip", "time").
type Condition struct {
	Type     string      `json:"type"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value"`
}

// Permission grants an action on resources matching a pattern.
// ResourcePattern and Action may be the Wildcard token.
type Permission struct {
	ID              string      `json:"id"`
	Name            string      `json:"name,omitempty"`
	ResourcePattern string      `json:"resource_pattern" validate:"required"`
	Action          string      `json:"action" validate:"required"`
	Conditions      []Condition `json:"conditions,omitempty"`
}

// Role is a named bundle of permissions. Built-in roles (IsSystem) are
// seeded at startup and immutable through the mutation API. Priority is
// only an attribute threshold for the step-up gate, never a tie-break
// between conflicting permissions.
type Role struct {
	ID          string       `json:"id" validate:"required"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Permissions []Permission `json:"permissions" validate:"dive"`
	IsSystem    bool         `json:"is_system"`
	Priority    int          `json:"priority"`
}

// Clone returns a deep copy. Catalog readers always receive clones so a
// caller mutation can never corrupt shared state mid-check.
func (r *Role) Clone() *Role {
	clone := *r
	clone.Permissions = make([]Permission, len(r.Permissions))
	copy(clone.Permissions, r.Permissions)
	for i, perm := range r.Permissions {
		if perm.Conditions != nil {
			conds := make([]Condition, len(perm.Conditions))
			copy(conds, perm.Conditions)
			clone.Permissions[i].Conditions = conds
		}
	}
	return &clone
}

// Policy applies an effect to requests matching any of its resource
// patterns and any of its actions, optionally gated by conditions.
type Policy struct {
	ID               string      `json:"id" validate:"required"`
	Name             string      `json:"name"`
	Effect           Effect      `json:"effect" validate:"required,oneof=allow deny"`
	ResourcePatterns []string    `json:"resource_patterns" validate:"min=1"`
	Actions          []string    `json:"actions" validate:"min=1"`
	Conditions       []Condition `json:"conditions,omitempty"`
}

// Clone returns a deep copy.
func (p *Policy) Clone() *Policy {
	clone := *p
	clone.ResourcePatterns = append([]string(nil), p.ResourcePatterns...)
	clone.Actions = append([]string(nil), p.Actions...)
	if p.Conditions != nil {
		clone.Conditions = append([]Condition(nil), p.Conditions...)
	}
	return &clone
}

// CheckRequest is one permission check. Context carries the caller-supplied
// attribute mapping; the engine never fetches context itself.
type CheckRequest struct {
	SubjectID string                 `json:"subject_id" validate:"required"`
	Resource  string                 `json:"resource"`
	Action    string                 `json:"action"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// Validate reports whether the request carries the fields a check needs.
// The returned error wraps ErrInvalidInput.
func (r *CheckRequest) Validate() error {
	return validateStruct(r)
}
