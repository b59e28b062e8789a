// ABOUTME: Workspace management handlers: CRUD, members, invitations.
// ABOUTME: Chi-style handlers — per-route role middleware plus in-handler permission checks.
package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Milo6x/dutyleak/internal/apperror"
	"github.com/Milo6x/dutyleak/internal/authz"
	"github.com/Milo6x/dutyleak/internal/notify"
)

const invitationTTL = 7 * 24 * time.Hour

// workspaceResponse is the JSON shape for a workspace.
type workspaceResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Plan      string `json:"plan"`
	CreatedAt string `json:"created_at"`
}

// ── Workspace CRUD ────────────────────────────────────────────────────────────

// createWorkspaceHandler handles POST /api/v1/workspaces.
// The creator becomes the workspace's owner atomically.
func (srv *Server) createWorkspaceHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(uuid.UUID)

	var body struct {
		Name string `json:"name"`
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

	ws, err := srv.store.CreateWorkspaceWithOwner(r.Context(), body.Name, userID)
	if err != nil {
		writeError(w, r, apperror.Internal(err).In("api.workspaces", "create"))
		return
	}

	writeJSON(w, http.StatusCreated, workspaceResponse{
		ID:        ws.ID.String(),
		Name:      ws.Name,
		Plan:      ws.Plan,
		CreatedAt: ws.CreatedAt.Format(time.RFC3339),
	})
}

// listWorkspacesHandler handles GET /api/v1/workspaces.
// Returns the caller's workspace memberships.
func (srv *Server) listWorkspacesHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(uuid.UUID)

	memberships, err := srv.store.ListUserWorkspaces(r.Context(), userID)
	if err != nil {
		writeError(w, r, apperror.Internal(err).In("api.workspaces", "list"))
		return
	}

	type entry struct {
		WorkspaceID string `json:"workspace_id"`
		Name        string `json:"name"`
		Role        string `json:"role"`
	}
	out := make([]entry, 0, len(memberships))
	for _, m := range memberships {
		out = append(out, entry{WorkspaceID: m.WorkspaceID.String(), Name: m.WorkspaceName, Role: m.Role})
	}
	writeJSON(w, http.StatusOK, map[string]any{"workspaces": out})
}

// getWorkspaceHandler handles GET /api/v1/workspaces/{workspace_id}.
func (srv *Server) getWorkspaceHandler(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := r.Context().Value(ctxWorkspaceID).(uuid.UUID)

	ws, err := srv.store.GetWorkspaceByID(r.Context(), workspaceID)
	if err != nil {
		writeError(w, r, apperror.Internal(err).In("api.workspaces", "get"))
		return
	}
	if ws == nil {
		writeError(w, r, apperror.NotFound("workspace"))
		return
	}
	writeJSON(w, http.StatusOK, workspaceResponse{
		ID:        ws.ID.String(),
		Name:      ws.Name,
		Plan:      ws.Plan,
		CreatedAt: ws.CreatedAt.Format(time.RFC3339),
	})
}

// updateWorkspaceHandler handles PATCH /api/v1/workspaces/{workspace_id}. Admin+.
func (srv *Server) updateWorkspaceHandler(w http.ResponseWriter, r *http.Request) {
	if err := srv.requirePermission(r, authz.PermWorkspaceUpdate); err != nil {
		writeError(w, r, err)
		return
	}
	workspaceID, _ := r.Context().Value(ctxWorkspaceID).(uuid.UUID)

	var body struct {
		Name string `json:"name"`
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

	ws, err := srv.store.UpdateWorkspace(r.Context(), workspaceID, body.Name)
	if err != nil {
		writeError(w, r, apperror.Internal(err).In("api.workspaces", "update"))
		return
	}
	if ws == nil {
		writeError(w, r, apperror.NotFound("workspace"))
		return
	}
	writeJSON(w, http.StatusOK, workspaceResponse{
		ID:        ws.ID.String(),
		Name:      ws.Name,
		Plan:      ws.Plan,
		CreatedAt: ws.CreatedAt.Format(time.RFC3339),
	})
}

// deleteWorkspaceHandler handles DELETE /api/v1/workspaces/{workspace_id}. Owner only.
func (srv *Server) deleteWorkspaceHandler(w http.ResponseWriter, r *http.Request) {
	if err := srv.requirePermission(r, authz.PermWorkspaceDelete); err != nil {
		writeError(w, r, err)
		return
	}
	workspaceID, _ := r.Context().Value(ctxWorkspaceID).(uuid.UUID)

	if err := srv.store.SoftDeleteWorkspace(r.Context(), workspaceID); err != nil {
		writeError(w, r, apperror.Internal(err).In("api.workspaces", "delete"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Members ───────────────────────────────────────────────────────────────────

// listMembersHandler handles GET /api/v1/workspaces/{workspace_id}/members.
func (srv *Server) listMembersHandler(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := r.Context().Value(ctxWorkspaceID).(uuid.UUID)

	members, err := srv.store.ListMembers(r.Context(), workspaceID)
	if err != nil {
		writeError(w, r, apperror.Internal(err).In("api.members", "list"))
		return
	}

	type entry struct {
		UserID      string `json:"user_id"`
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
		Role        string `json:"role"`
		JoinedAt    string `json:"joined_at"`
	}
	out := make([]entry, 0, len(members))
	for _, m := range members {
		out = append(out, entry{
			UserID:      m.UserID.String(),
			Email:       m.Email,
			DisplayName: m.DisplayName,
			Role:        m.Role,
			JoinedAt:    m.JoinedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": out})
}

// updateMemberRoleHandler handles PATCH /api/v1/workspaces/{workspace_id}/members/{user_id}.
//
// Two strict-> checks apply: the actor must outrank the target's CURRENT role
// (CanActOnRole) and must outrank the role being ASSIGNED (CanAssignRole).
// Demoting the last owner is refused — a workspace must always have an owner.
func (srv *Server) updateMemberRoleHandler(w http.ResponseWriter, r *http.Request) {
	if err := srv.requirePermission(r, authz.PermMemberRoleChange); err != nil {
		writeError(w, r, err)
		return
	}
	workspaceID, _ := r.Context().Value(ctxWorkspaceID).(uuid.UUID)
	actorRole, _ := r.Context().Value(ctxRole).(authz.Role)

	targetID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		writeError(w, r, apperror.Validation([]apperror.FieldError{
			{Path: "path.user_id", Message: "must be a valid UUID"},
		}))
		return
	}

	var body struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	newRole, ok := authz.ParseRoleStrict(body.Role)
	if !ok {
		writeError(w, r, apperror.Validation([]apperror.FieldError{
			{Path: "body.role", Message: "must be one of viewer, member, admin, owner"},
		}))
		return
	}

	currentRoleStr, err := srv.store.GetMemberRole(r.Context(), workspaceID, targetID)
	if err != nil {
		writeError(w, r, apperror.Internal(err).In("api.members", "role_change"))
		return
	}
	if currentRoleStr == nil {
		writeError(w, r, apperror.NotFound("member"))
		return
	}
	currentRole := authz.ParseRole(*currentRoleStr)

	if !authz.CanActOnRole(actorRole, currentRole) {
		writeError(w, r, apperror.Forbidden("cannot act on a member with an equal or higher role"))
		return
	}
	if !authz.CanAssignRole(actorRole, newRole) {
		writeError(w, r, apperror.Forbidden("cannot assign a role equal to or higher than your own"))
		return
	}

	// Last-owner protection: a demotion from owner needs another owner standing.
	if currentRole == authz.RoleOwner && newRole != authz.RoleOwner {
		owners, err := srv.store.GetOwnerCount(r.Context(), workspaceID)
		if err != nil {
			writeError(w, r, apperror.Internal(err).In("api.members", "role_change"))
			return
		}
		if owners <= 1 {
			writeError(w, r, apperror.Conflict("cannot demote the last owner"))
			return
		}
	}

	if err := srv.store.UpdateMemberRole(r.Context(), workspaceID, targetID, newRole.String()); err != nil {
		writeError(w, r, apperror.Internal(err).In("api.members", "role_change"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user_id": targetID.String(), "role": newRole.String()})
}

// removeMemberHandler handles DELETE /api/v1/workspaces/{workspace_id}/members/{user_id}.
// Self-removal (leaving) is always allowed except for the last owner.
func (srv *Server) removeMemberHandler(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := r.Context().Value(ctxWorkspaceID).(uuid.UUID)
	actorID, _ := r.Context().Value(ctxUserID).(uuid.UUID)
	actorRole, _ := r.Context().Value(ctxRole).(authz.Role)

	targetID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		writeError(w, r, apperror.Validation([]apperror.FieldError{
			{Path: "path.user_id", Message: "must be a valid UUID"},
		}))
		return
	}

	currentRoleStr, err := srv.store.GetMemberRole(r.Context(), workspaceID, targetID)
	if err != nil {
		writeError(w, r, apperror.Internal(err).In("api.members", "remove"))
		return
	}
	if currentRoleStr == nil {
		writeError(w, r, apperror.NotFound("member"))
		return
	}
	currentRole := authz.ParseRole(*currentRoleStr)

	if targetID != actorID {
		if err := srv.requirePermission(r, authz.PermMemberRemove); err != nil {
			writeError(w, r, err)
			return
		}
		if !authz.CanActOnRole(actorRole, currentRole) {
			writeError(w, r, apperror.Forbidden("cannot remove a member with an equal or higher role"))
			return
		}
	}

	if currentRole == authz.RoleOwner {
		owners, err := srv.store.GetOwnerCount(r.Context(), workspaceID)
		if err != nil {
			writeError(w, r, apperror.Internal(err).In("api.members", "remove"))
			return
		}
		if owners <= 1 {
			writeError(w, r, apperror.Conflict("cannot remove the last owner"))
			return
		}
	}

	if err := srv.store.RemoveMember(r.Context(), workspaceID, targetID); err != nil {
		writeError(w, r, apperror.Internal(err).In("api.members", "remove"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Invitations ───────────────────────────────────────────────────────────────

// createInvitationHandler handles POST /api/v1/workspaces/{workspace_id}/invitations.
// The invited role must be strictly below the actor's (owner cannot be invited).
// The invitation email is sent best-effort: a send failure never fails the request.
func (srv *Server) createInvitationHandler(w http.ResponseWriter, r *http.Request) {
	if err := srv.requirePermission(r, authz.PermMemberInvite); err != nil {
		writeError(w, r, err)
		return
	}
	workspaceID, _ := r.Context().Value(ctxWorkspaceID).(uuid.UUID)
	actorID, _ := r.Context().Value(ctxUserID).(uuid.UUID)
	actorRole, _ := r.Context().Value(ctxRole).(authz.Role)

	var body struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	body.Email = strings.TrimSpace(strings.ToLower(body.Email))
	if body.Email == "" || !strings.Contains(body.Email, "@") {
		writeError(w, r, apperror.Validation([]apperror.FieldError{
			{Path: "body.email", Message: "must be a valid email address"},
		}))
		return
	}
	role, ok := authz.ParseRoleStrict(body.Role)
	if !ok || role == authz.RoleOwner {
		writeError(w, r, apperror.Validation([]apperror.FieldError{
			{Path: "body.role", Message: "must be one of viewer, member, admin"},
		}))
		return
	}
	if !authz.CanAssignRole(actorRole, role) {
		writeError(w, r, apperror.Forbidden("cannot invite at a role equal to or higher than your own"))
		return
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		writeError(w, r, apperror.Internal(err).In("api.invitations", "create"))
		return
	}
	token := hex.EncodeToString(tokenBytes)

	inv, err := srv.store.CreateInvitation(r.Context(), workspaceID, body.Email, role.String(), token, actorID, time.Now().Add(invitationTTL))
	if err != nil {
		writeError(w, r, apperror.Internal(err).In("api.invitations", "create"))
		return
	}

	// Send the invitation email in the background.
	if ws, wsErr := srv.store.GetWorkspaceByID(r.Context(), workspaceID); wsErr == nil && ws != nil {
		acceptURL := srv.cfg.ExternalURL + "/invitations/" + token
		subject, htmlBody, textBody := notify.InvitationEmail(ws.Name, role.String(), acceptURL)
		smtp := notify.SmtpConfig{
			Host: srv.cfg.SMTPHost, Port: srv.cfg.SMTPPort, From: srv.cfg.SMTPFrom,
			Username: srv.cfg.SMTPUsername, Password: srv.cfg.SMTPPassword, TLS: srv.cfg.SMTPTLS,
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 30*time.Second)
			defer cancel()
			if err := notify.EmailSend(ctx, smtp, []string{body.Email}, subject, htmlBody, textBody); err != nil {
				slog.WarnContext(ctx, "invitation email send failed", "error", err)
			}
		}()
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"id":         inv.ID.String(),
		"email":      inv.Email,
		"role":       inv.Role,
		"token":      inv.Token,
		"expires_at": inv.ExpiresAt.Format(time.RFC3339),
	})
}

// listInvitationsHandler handles GET /api/v1/workspaces/{workspace_id}/invitations.
// Returns pending, unexpired invitations only.
func (srv *Server) listInvitationsHandler(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := r.Context().Value(ctxWorkspaceID).(uuid.UUID)

	invs, err := srv.store.ListInvitations(r.Context(), workspaceID)
	if err != nil {
		writeError(w, r, apperror.Internal(err).In("api.invitations", "list"))
		return
	}

	type entry struct {
		ID        string `json:"id"`
		Email     string `json:"email"`
		Role      string `json:"role"`
		CreatedAt string `json:"created_at"`
		ExpiresAt string `json:"expires_at"`
	}
	out := make([]entry, 0, len(invs))
	for _, inv := range invs {
		out = append(out, entry{
			ID:        inv.ID.String(),
			Email:     inv.Email,
			Role:      inv.Role,
			CreatedAt: inv.CreatedAt.Format(time.RFC3339),
			ExpiresAt: inv.ExpiresAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"invitations": out})
}

// cancelInvitationHandler handles DELETE /api/v1/workspaces/{workspace_id}/invitations/{id}.
func (srv *Server) cancelInvitationHandler(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := r.Context().Value(ctxWorkspaceID).(uuid.UUID)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, apperror.Validation([]apperror.FieldError{
			{Path: "path.id", Message: "must be a valid UUID"},
		}))
		return
	}

	if err := srv.store.CancelInvitation(r.Context(), workspaceID, id); err != nil {
		writeError(w, r, apperror.Internal(err).In("api.invitations", "cancel"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
