// ABOUTME: Request context key types and constants for the api package.
// ABOUTME: Used by middleware to inject auth state and by handlers to read it.
package api

type contextKey int

const (
	ctxUserID      contextKey = iota // uuid.UUID — authenticated user
	ctxWorkspaceID                   // uuid.UUID — workspace resolved for this request
	ctxRole                          // authz.Role — effective role for this request
	ctxAPIKeyRole                    // string — role from the API key (may cap workspace role)
)
