// Package store provides the data access layer. Queries run directly on
// *pgxpool.Pool; dynamic list queries are built with squirrel. Workspace-scoped
// operations go through WorkspaceTx, which sets the RLS tenant variable for the
// duration of the transaction.
package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// psql is the shared squirrel builder with PostgreSQL placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store is the central data access object. Callers use the domain methods
// (users, workspaces, products, jobs) rather than the pool directly.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying pgxpool for callers that need pgx native
// operations (e.g., CSV bulk import via CopyFrom).
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// WorkspaceTx opens a transaction and sets app.workspace_id = workspaceID for
// its duration. RLS policies on workspace-scoped tables use this setting to
// filter rows to the specified workspace. Safe for connection pooling:
// SET LOCAL resets on commit or rollback.
//
// Use this for all workspace-scoped operations from HTTP handlers.
func (s *Store) WorkspaceTx(ctx context.Context, workspaceID uuid.UUID, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on panic or fn error
	// SET LOCAL does not accept parameterized values in PostgreSQL; formatting
	// is safe here because workspaceID is a typed uuid.UUID, not user-supplied text.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL app.workspace_id = '%s'", workspaceID)); err != nil {
		return fmt.Errorf("set workspace_id: %w", err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// WorkerTx opens a transaction with RLS bypass enabled. ONLY for background
// worker goroutines (batch classifier, rate refresh, retention) and for the
// few auth-path queries that must run before any workspace context exists.
// NEVER call from workspace-scoped HTTP handler code paths.
func (s *Store) WorkerTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin worker tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	if _, err := tx.Exec(ctx, "SET LOCAL app.bypass_rls = 'on'"); err != nil {
		return fmt.Errorf("set bypass_rls: %w", err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
