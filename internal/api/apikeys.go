// ABOUTME: Workspace API key handlers: create, list, revoke.
// ABOUTME: The raw key is returned exactly once at creation; only the hash is stored.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Milo6x/dutyleak/internal/apperror"
	"github.com/Milo6x/dutyleak/internal/auth"
	"github.com/Milo6x/dutyleak/internal/authz"
	"github.com/Milo6x/dutyleak/internal/store"
)

type apiKeyResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Role       string  `json:"role"`
	CreatedAt  string  `json:"created_at"`
	ExpiresAt  *string `json:"expires_at,omitempty"`
	LastUsedAt *string `json:"last_used_at,omitempty"`
	RevokedAt  *string `json:"revoked_at,omitempty"`
}

func apiKeyToResponse(k store.APIKey) apiKeyResponse {
	fmtTime := func(t *time.Time) *string {
		if t == nil {
			return nil
		}
		s := t.Format(time.RFC3339)
		return &s
	}
	return apiKeyResponse{
		ID:         k.ID.String(),
		Name:       k.Name,
		Role:       k.Role,
		CreatedAt:  k.CreatedAt.Format(time.RFC3339),
		ExpiresAt:  fmtTime(k.ExpiresAt),
		LastUsedAt: fmtTime(k.LastUsedAt),
		RevokedAt:  fmtTime(k.RevokedAt),
	}
}

// createAPIKeyHandler handles POST /api/v1/workspaces/{workspace_id}/api-keys.
//
// A key's role may not exceed the creator's own role: requests made with the
// key are capped at min(key role, member role) at auth time, but refusing the
// grant up front keeps the key inventory honest.
func (srv *Server) createAPIKeyHandler(w http.ResponseWriter, r *http.Request) {
	if err := srv.requirePermission(r, authz.PermAPIKeyCreate); err != nil {
		writeError(w, r, err)
		return
	}
	workspaceID, _ := r.Context().Value(ctxWorkspaceID).(uuid.UUID)
	userID, _ := r.Context().Value(ctxUserID).(uuid.UUID)
	actorRole, _ := r.Context().Value(ctxRole).(authz.Role)

	var body struct {
		Name      string `json:"name"`
		Role      string `json:"role"`
		ExpiresIn *int   `json:"expires_in_days,omitempty"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" || len(body.Name) > 120 {
		writeError(w, r, apperror.Validation([]apperror.FieldError{
			{Path: "body.name", Message: "must be 1-120 characters"},
		}))
		return
	}
	keyRole, ok := authz.ParseRoleStrict(body.Role)
	if !ok || keyRole == authz.RoleOwner {
		writeError(w, r, apperror.Validation([]apperror.FieldError{
			{Path: "body.role", Message: "must be one of viewer, member, admin"},
		}))
		return
	}
	if keyRole > actorRole {
		writeError(w, r, apperror.Forbidden("cannot create a key with a role above your own"))
		return
	}
	var expiresAt *time.Time
	if body.ExpiresIn != nil {
		if *body.ExpiresIn < 1 || *body.ExpiresIn > 365 {
			writeError(w, r, apperror.Validation([]apperror.FieldError{
				{Path: "body.expires_in_days", Message: "must be between 1 and 365"},
			}))
			return
		}
		t := time.Now().AddDate(0, 0, *body.ExpiresIn)
		expiresAt = &t
	}

	rawKey, keyHash, err := auth.GenerateAPIKey()
	if err != nil {
		writeError(w, r, apperror.Internal(err).In("api.apikeys", "create"))
		return
	}
	key, err := srv.store.CreateAPIKey(r.Context(), workspaceID, userID, keyHash, body.Name, keyRole.String(), expiresAt)
	if err != nil {
		writeError(w, r, apperror.Internal(err).In("api.apikeys", "create"))
		return
	}

	resp := struct {
		apiKeyResponse
		Key string `json:"key"` // shown once, never retrievable again
	}{apiKeyToResponse(*key), rawKey}
	writeJSON(w, http.StatusCreated, resp)
}

// listAPIKeysHandler handles GET /api/v1/workspaces/{workspace_id}/api-keys.
// Hashes are never included; revoked keys stay listed for audit purposes.
func (srv *Server) listAPIKeysHandler(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := r.Context().Value(ctxWorkspaceID).(uuid.UUID)

	keys, err := srv.store.ListAPIKeys(r.Context(), workspaceID)
	if err != nil {
		writeError(w, r, apperror.Internal(err).In("api.apikeys", "list"))
		return
	}
	out := make([]apiKeyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, apiKeyToResponse(k))
	}
	writeJSON(w, http.StatusOK, map[string]any{"api_keys": out})
}

// revokeAPIKeyHandler handles DELETE /api/v1/workspaces/{workspace_id}/api-keys/{id}.
// Revocation is permanent; re-enable by creating a new key.
func (srv *Server) revokeAPIKeyHandler(w http.ResponseWriter, r *http.Request) {
	if err := srv.requirePermission(r, authz.PermAPIKeyRevoke); err != nil {
		writeError(w, r, err)
		return
	}
	workspaceID, _ := r.Context().Value(ctxWorkspaceID).(uuid.UUID)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, apperror.Validation([]apperror.FieldError{
			{Path: "path.id", Message: "must be a valid UUID"},
		}))
		return
	}

	if err := srv.store.RevokeAPIKey(r.Context(), workspaceID, id); err != nil {
		writeError(w, r, apperror.Internal(err).In("api.apikeys", "revoke"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
