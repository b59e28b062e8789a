// ABOUTME: RequireWorkspaceRole middleware — resolves the workspace for a request
// ABOUTME: and enforces membership with a minimum role, capped by any API key role.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Milo6x/dutyleak/internal/apperror"
	"github.com/Milo6x/dutyleak/internal/authz"
)

// resolveWorkspaceID determines which workspace a request addresses.
//
// The {workspace_id} path parameter wins when present. Without it, membership
// decides: exactly one membership resolves to that workspace; zero memberships
// is AUTH_NO_WORKSPACE (the client must create or join a workspace first);
// more than one is WORKSPACE_SELECTION_REQUIRED. A workspace is never picked
// silently from multiple memberships — an arbitrary default would route one
// tenant's request into another tenant's data.
func (srv *Server) resolveWorkspaceID(r *http.Request, userID uuid.UUID) (uuid.UUID, error) {
	if raw := chi.URLParam(r, "workspace_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, apperror.Validation([]apperror.FieldError{
				{Path: "path.workspace_id", Message: "must be a valid UUID"},
			})
		}
		return id, nil
	}

	memberships, err := srv.store.ListUserWorkspaces(r.Context(), userID)
	if err != nil {
		return uuid.Nil, apperror.Internal(err).In("api.workspace", "resolve")
	}
	switch len(memberships) {
	case 0:
		return uuid.Nil, apperror.NoWorkspace()
	case 1:
		return memberships[0].WorkspaceID, nil
	default:
		return uuid.Nil, apperror.WorkspaceSelectionRequired()
	}
}

// authorizeWorkspace resolves the workspace for r and verifies userID is a
// member with at least minRole. apiKeyRole, when non-empty, caps the effective
// role to min(workspaceRole, apiKeyRole). Returns the workspace and effective
// role on success.
//
// The threshold comparison is >=: any role at or above minRole passes. This is
// deliberately looser than the strict > used for acting on other members —
// holding a role grants that role's routes, but never authority over peers.
func (srv *Server) authorizeWorkspace(r *http.Request, userID uuid.UUID, apiKeyRole string, minRole authz.Role) (uuid.UUID, authz.Role, error) {
	workspaceID, err := srv.resolveWorkspaceID(r, userID)
	if err != nil {
		return uuid.Nil, 0, err
	}

	roleStr, err := srv.store.GetMemberRole(r.Context(), workspaceID, userID)
	if err != nil {
		return uuid.Nil, 0, apperror.Internal(err).In("api.workspace", "member_role")
	}
	if roleStr == nil {
		return uuid.Nil, 0, apperror.Forbidden("not a member of this workspace")
	}

	effectiveRole := authz.ParseRole(*roleStr)

	// Cap effective role to the API key's role when the request is API-key-authenticated.
	if apiKeyRole != "" {
		if keyRole := authz.ParseRole(apiKeyRole); keyRole < effectiveRole {
			effectiveRole = keyRole
		}
	}

	if effectiveRole < minRole {
		return uuid.Nil, 0, apperror.Forbidden("")
	}
	return workspaceID, effectiveRole, nil
}

// RequireWorkspaceRole returns a middleware that verifies the authenticated
// user is a member of the resolved workspace with at least minRole. On success
// it injects ctxWorkspaceID and ctxRole into the request context.
//
// Must run after RequireAuthenticated.
func (srv *Server) RequireWorkspaceRole(minRole authz.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := r.Context().Value(ctxUserID).(uuid.UUID)
			if !ok {
				writeError(w, r, apperror.Unauthenticated(""))
				return
			}
			apiKeyRole, _ := r.Context().Value(ctxAPIKeyRole).(string)

			workspaceID, effectiveRole, err := srv.authorizeWorkspace(r, userID, apiKeyRole, minRole)
			if err != nil {
				writeError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), ctxWorkspaceID, workspaceID)
			ctx = context.WithValue(ctx, ctxRole, effectiveRole)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requirePermission checks the effective role's grant for perm against the
// server's permission table. Handlers call this for checks finer than the
// route-level role threshold.
func (srv *Server) requirePermission(r *http.Request, perm authz.Permission) error {
	role, ok := r.Context().Value(ctxRole).(authz.Role)
	if !ok {
		return apperror.Unauthenticated("")
	}
	if !srv.permTable.HasPermission(role, perm) {
		return apperror.Forbidden("")
	}
	return nil
}
