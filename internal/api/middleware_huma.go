// ABOUTME: Huma operation middleware adapters for the auth and workspace guards.
// ABOUTME: Reuses the same authenticate/authorizeWorkspace logic as the chi middleware.
package api

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"

	"github.com/Milo6x/dutyleak/internal/authz"
)

// authGuard is a huma operation middleware requiring a valid session or API
// key. Injects ctxUserID (and ctxAPIKeyRole) into the operation context.
func (srv *Server) authGuard() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		r, w := humachi.Unwrap(ctx)
		userID, keyRole, err := srv.authenticate(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx = huma.WithValue(ctx, ctxUserID, userID)
		if keyRole != "" {
			ctx = huma.WithValue(ctx, ctxAPIKeyRole, keyRole)
		}
		next(ctx)
	}
}

// wsGuard is a huma operation middleware for workspace-scoped operations:
// authentication, workspace resolution, and role threshold in one step.
// Injects ctxUserID, ctxWorkspaceID, and ctxRole into the operation context.
func (srv *Server) wsGuard(minRole authz.Role) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		r, w := humachi.Unwrap(ctx)
		userID, keyRole, err := srv.authenticate(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		workspaceID, role, err := srv.authorizeWorkspace(r, userID, keyRole, minRole)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx = huma.WithValue(ctx, ctxUserID, userID)
		ctx = huma.WithValue(ctx, ctxWorkspaceID, workspaceID)
		ctx = huma.WithValue(ctx, ctxRole, role)
		next(ctx)
	}
}
