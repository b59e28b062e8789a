// ABOUTME: RequireAuthenticated middleware for JWT cookie or API key Bearer auth.
// ABOUTME: Injects userID and (for API keys) apiKeyRole into the request context.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Milo6x/dutyleak/internal/apperror"
	"github.com/Milo6x/dutyleak/internal/auth"
)

// authenticate validates the request's credentials: an API key Bearer token or
// a JWT access-token cookie. Returns the user ID and, for API key requests, the
// key's role (empty string for cookie auth). The returned error is always an
// UNAUTHENTICATED AppError.
func (srv *Server) authenticate(r *http.Request) (uuid.UUID, string, error) {
	// Try API key first (Authorization: Bearer <key>).
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		rawKey := strings.TrimPrefix(authHeader, "Bearer ")
		userID, keyRole, ok := srv.checkAPIKey(r, rawKey)
		if !ok {
			return uuid.Nil, "", apperror.Unauthenticated("invalid API key")
		}
		return userID, keyRole, nil
	}
	// Try JWT access-token cookie.
	cookie, err := r.Cookie("access_token")
	if err != nil {
		return uuid.Nil, "", apperror.Unauthenticated("")
	}
	claims, err := auth.ParseAccessToken(cookie.Value, []byte(srv.cfg.JWTSecret))
	if err != nil {
		return uuid.Nil, "", apperror.Unauthenticated("invalid or expired access token")
	}
	return claims.UserID, "", nil
}

// RequireAuthenticated returns a middleware that requires a valid JWT access-token
// cookie or an API key Bearer token. On success it injects ctxUserID (and for API
// keys also ctxAPIKeyRole) into the request context.
//
// Authentication is always checked before authorization: an unauthenticated
// request gets 401 UNAUTHENTICATED even on routes it would also lack the role for.
func (srv *Server) RequireAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, keyRole, err := srv.authenticate(r)
			if err != nil {
				writeError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), ctxUserID, userID)
			if keyRole != "" {
				ctx = context.WithValue(ctx, ctxAPIKeyRole, keyRole)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// checkAPIKey validates rawKey against the database. Returns the creating
// user's ID and the key role, or ok=false if the key is invalid.
func (srv *Server) checkAPIKey(r *http.Request, rawKey string) (uuid.UUID, string, bool) {
	hash := auth.HashAPIKey(rawKey)
	key, err := srv.store.LookupAPIKey(r.Context(), hash)
	if err != nil || key == nil {
		return uuid.Nil, "", false
	}
	// Defense-in-depth: constant-time compare to prevent timing attacks.
	if subtle.ConstantTimeCompare([]byte(key.KeyHash), []byte(hash)) != 1 {
		return uuid.Nil, "", false
	}
	// Record last-used asynchronously — do not block the request path.
	go func() {
		bgCtx := context.WithoutCancel(r.Context())
		_ = srv.store.UpdateAPIKeyLastUsed(bgCtx, key.ID)
	}()
	return key.CreatedByUserID, key.Role, true
}
