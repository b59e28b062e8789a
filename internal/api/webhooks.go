// ABOUTME: Workspace webhook handlers: create, list, rotate secret, delete.
// ABOUTME: The signing secret is returned exactly once at create/rotate time.
package api

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Milo6x/dutyleak/internal/apperror"
	"github.com/Milo6x/dutyleak/internal/authz"
	"github.com/Milo6x/dutyleak/internal/store"
)

type webhookResponse struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	CustomHeaders map[string]string `json:"custom_headers"`
	Active        bool              `json:"active"`
	CreatedAt     string            `json:"created_at"`
}

func webhookToResponse(w store.Webhook) webhookResponse {
	return webhookResponse{
		ID:            w.ID.String(),
		URL:           w.URL,
		CustomHeaders: w.CustomHeaders,
		Active:        w.Active,
		CreatedAt:     w.CreatedAt.Format(time.RFC3339),
	}
}

// newWebhookSecret generates a 32-byte hex signing secret with a whsec_ prefix.
func newWebhookSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(buf), nil
}

func validateWebhookURL(raw string) *apperror.AppError {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return apperror.Validation([]apperror.FieldError{
			{Path: "body.url", Message: "must be an absolute http(s) URL"},
		})
	}
	return nil
}

// createWebhookHandler handles POST /api/v1/workspaces/{workspace_id}/webhooks.
// SSRF protection happens at delivery time: the safeurl client refuses private
// address space, so URL validation here is shape-only.
func (srv *Server) createWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := srv.requirePermission(r, authz.PermWorkspaceUpdate); err != nil {
		writeError(w, r, err)
		return
	}
	workspaceID, _ := r.Context().Value(ctxWorkspaceID).(uuid.UUID)
	userID, _ := r.Context().Value(ctxUserID).(uuid.UUID)

	var body struct {
		URL           string            `json:"url"`
		CustomHeaders map[string]string `json:"custom_headers,omitempty"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	body.URL = strings.TrimSpace(body.URL)
	if appErr := validateWebhookURL(body.URL); appErr != nil {
		writeError(w, r, appErr)
		return
	}
	if len(body.CustomHeaders) > 10 {
		writeError(w, r, apperror.Validation([]apperror.FieldError{
			{Path: "body.custom_headers", Message: "at most 10 custom headers"},
		}))
		return
	}

	secret, err := newWebhookSecret()
	if err != nil {
		writeError(w, r, apperror.Internal(err).In("api.webhooks", "create"))
		return
	}
	wh, err := srv.store.CreateWebhook(r.Context(), workspaceID, body.URL, secret, body.CustomHeaders, userID)
	if err != nil {
		writeError(w, r, apperror.Internal(err).In("api.webhooks", "create"))
		return
	}

	resp := struct {
		webhookResponse
		SigningSecret string `json:"signing_secret"` // shown once, never retrievable again
	}{webhookToResponse(*wh), secret}
	writeJSON(w, http.StatusCreated, resp)
}

// listWebhooksHandler handles GET /api/v1/workspaces/{workspace_id}/webhooks.
// Signing secrets are never included.
func (srv *Server) listWebhooksHandler(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := r.Context().Value(ctxWorkspaceID).(uuid.UUID)

	hooks, err := srv.store.ListWebhooks(r.Context(), workspaceID)
	if err != nil {
		writeError(w, r, apperror.Internal(err).In("api.webhooks", "list"))
		return
	}
	out := make([]webhookResponse, 0, len(hooks))
	for _, h := range hooks {
		out = append(out, webhookToResponse(h))
	}
	writeJSON(w, http.StatusOK, map[string]any{"webhooks": out})
}

// rotateWebhookSecretHandler handles POST .../webhooks/{id}/rotate.
// The previous secret stays valid as a secondary signature until the next rotation.
func (srv *Server) rotateWebhookSecretHandler(w http.ResponseWriter, r *http.Request) {
	if err := srv.requirePermission(r, authz.PermWorkspaceUpdate); err != nil {
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

	secret, err := newWebhookSecret()
	if err != nil {
		writeError(w, r, apperror.Internal(err).In("api.webhooks", "rotate"))
		return
	}
	rotated, err := srv.store.RotateWebhookSecret(r.Context(), workspaceID, id, secret)
	if err != nil {
		writeError(w, r, apperror.Internal(err).In("api.webhooks", "rotate"))
		return
	}
	if !rotated {
		writeError(w, r, apperror.NotFound("webhook"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signing_secret": secret})
}

// deleteWebhookHandler handles DELETE .../webhooks/{id}.
func (srv *Server) deleteWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := srv.requirePermission(r, authz.PermWorkspaceUpdate); err != nil {
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

	if err := srv.store.DeleteWebhook(r.Context(), workspaceID, id); err != nil {
		writeError(w, r, apperror.Internal(err).In("api.webhooks", "delete"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
