// Portcullis - Embeddable Authorization Decision Engine
// Copyright 2026 Portcullis Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullis-io/portcullis

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/portcullis-io/portcullis/internal/authz"
	"github.com/portcullis-io/portcullis/internal/logging"
)

// Handler bundles the engine and catalogs behind HTTP endpoints.
type Handler struct {
	engine      *authz.Engine
	roles       *authz.RoleCatalog
	policies    *authz.PolicyCatalog
	assignments *authz.AssignmentStore
}

// NewHandler creates the API handler set.
func NewHandler(engine *authz.Engine, roles *authz.RoleCatalog, policies *authz.PolicyCatalog, assignments *authz.AssignmentStore) *Handler {
	return &Handler{
		engine:      engine,
		roles:       roles,
		policies:    policies,
		assignments: assignments,
	}
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, authz.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, authz.ErrDuplicateID):
		status = http.StatusConflict
	case errors.Is(err, authz.ErrImmutableSystemRole):
		status = http.StatusForbidden
	case errors.Is(err, authz.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, authz.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// Check evaluates an authorization request.
// POST /api/v1/check
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var req authz.CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	allowed := h.engine.Check(r.Context(), req)
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

// CreateRole registers a custom role.
// POST /api/v1/roles
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var role authz.Role
	if err := json.NewDecoder(r.Body).Decode(&role); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := h.roles.CreateRole(r.Context(), &role); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

// ListRoles returns the full role catalog.
// GET /api/v1/roles
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"roles": h.roles.ListRoles()})
}

// GetRole returns one role by id.
// GET /api/v1/roles/{id}
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.roles.GetRole(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

// UpdateRole replaces a custom role's definition.
// PUT /api/v1/roles/{id}
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var role authz.Role
	if err := json.NewDecoder(r.Body).Decode(&role); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	role.ID = chi.URLParam(r, "id")

	if err := h.roles.UpdateRole(r.Context(), &role); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

// DeleteRole removes a custom role.
// DELETE /api/v1/roles/{id}
func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	if err := h.roles.DeleteRole(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreatePolicy registers a standalone policy.
// POST /api/v1/policies
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var policy authz.Policy
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := h.policies.CreatePolicy(r.Context(), &policy); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, policy)
}

// ListPolicies returns the full policy catalog.
// GET /api/v1/policies
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"policies": h.policies.ListPolicies()})
}

// GetPolicy returns one policy by id.
// GET /api/v1/policies/{id}
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := h.policies.GetPolicy(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

// DeletePolicy removes a policy.
// DELETE /api/v1/policies/{id}
func (h *Handler) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	if err := h.policies.DeletePolicy(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// assignmentRequest is the body for assign and unassign calls.
type assignmentRequest struct {
	RoleID string `json:"role_id"`
}

// Assign grants a role to a subject.
// POST /api/v1/subjects/{id}/roles
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "role_id is required"})
		return
	}

	subjectID := chi.URLParam(r, "id")
	if err := h.assignments.Assign(r.Context(), subjectID, req.RoleID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unassign revokes a role from a subject.
// DELETE /api/v1/subjects/{id}/roles/{roleID}
func (h *Handler) Unassign(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "id")
	roleID := chi.URLParam(r, "roleID")
	if err := h.assignments.Unassign(r.Context(), subjectID, roleID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubjectRoles lists the role ids assigned to a subject.
// GET /api/v1/subjects/{id}/roles
func (h *Handler) SubjectRoles(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "id")
	roleIDs, err := h.assignments.GetRoles(r.Context(), subjectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"subject_id": subjectID,
		"roles":      roleIDs,
	})
}

// Health reports liveness.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
