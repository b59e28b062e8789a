// ABOUTME: Store methods for API key lifecycle management.
// ABOUTME: LookupAPIKey is the authentication hot-path; does not take workspaceID.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// APIKey is a row in the api_keys table.
type APIKey struct {
	ID              uuid.UUID
	WorkspaceID     uuid.UUID
	CreatedByUserID uuid.UUID
	KeyHash         string
	Name            string
	Role            string
	CreatedAt       time.Time
	ExpiresAt       *time.Time
	LastUsedAt      *time.Time
	RevokedAt       *time.Time
}

const apiKeyColumns = "id, workspace_id, created_by_user_id, key_hash, name, role, created_at, expires_at, last_used_at, revoked_at"

func scanAPIKey(row pgx.Row) (*APIKey, error) {
	var k APIKey
	err := row.Scan(&k.ID, &k.WorkspaceID, &k.CreatedByUserID, &k.KeyHash, &k.Name,
		&k.Role, &k.CreatedAt, &k.ExpiresAt, &k.LastUsedAt, &k.RevokedAt)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// CreateAPIKey inserts a new API key record. keyHash is sha256(raw_key).
// expiresAt may be nil for a never-expiring key.
func (s *Store) CreateAPIKey(ctx context.Context, workspaceID, createdBy uuid.UUID, keyHash, name, role string, expiresAt *time.Time) (*APIKey, error) {
	var key *APIKey
	err := s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		row, err := scanAPIKey(tx.QueryRow(ctx,
			`INSERT INTO api_keys (workspace_id, created_by_user_id, key_hash, name, role, expires_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING `+apiKeyColumns,
			workspaceID, createdBy, keyHash, name, role, expiresAt))
		if err != nil {
			return err
		}
		key = row
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}
	return key, nil
}

// LookupAPIKey returns the active (non-revoked, non-expired) key matching
// keyHash, or (nil, nil) if not found. Runs with RLS bypass: this is the
// authentication path, before any workspace context exists. Caller is
// responsible for validating workspace membership.
func (s *Store) LookupAPIKey(ctx context.Context, keyHash string) (*APIKey, error) {
	var key *APIKey
	err := s.WorkerTx(ctx, func(tx pgx.Tx) error {
		row, err := scanAPIKey(tx.QueryRow(ctx,
			`SELECT `+apiKeyColumns+` FROM api_keys
			 WHERE key_hash = $1
			   AND revoked_at IS NULL
			   AND (expires_at IS NULL OR expires_at > now())`, keyHash))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		key = row
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("lookup api key: %w", err)
	}
	return key, nil
}

// ListAPIKeys returns all API keys for a workspace ordered by creation time
// descending. key_hash is excluded from the result — never expose hashes to
// the API layer.
func (s *Store) ListAPIKeys(ctx context.Context, workspaceID uuid.UUID) ([]APIKey, error) {
	var result []APIKey
	err := s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT id, workspace_id, created_by_user_id, '', name, role, created_at, expires_at, last_used_at, revoked_at
			 FROM api_keys
			 WHERE workspace_id = $1
			 ORDER BY created_at DESC`, workspaceID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var k APIKey
			if err := rows.Scan(&k.ID, &k.WorkspaceID, &k.CreatedByUserID, &k.KeyHash, &k.Name,
				&k.Role, &k.CreatedAt, &k.ExpiresAt, &k.LastUsedAt, &k.RevokedAt); err != nil {
				return err
			}
			result = append(result, k)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return result, nil
}

// RevokeAPIKey marks the key as revoked. A wrong workspaceID is silently a no-op.
func (s *Store) RevokeAPIKey(ctx context.Context, workspaceID, id uuid.UUID) error {
	return s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE api_keys SET revoked_at = now()
			 WHERE workspace_id = $1 AND id = $2 AND revoked_at IS NULL`,
			workspaceID, id); err != nil {
			return fmt.Errorf("revoke api key: %w", err)
		}
		return nil
	})
}

// UpdateAPIKeyLastUsed records the current time as last_used_at for the key.
func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}
