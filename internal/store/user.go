// ABOUTME: Store methods for user authentication: creation, lookup, token versioning.
// ABOUTME: These are global-table operations — no workspaceID parameter, no RLS.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// User is a row in the users table.
type User struct {
	ID                  uuid.UUID
	Email               string
	DisplayName         string
	PasswordHash        *string
	PasswordHashVersion int32
	TokenVersion        int32
	CreatedAt           time.Time
	LastLoginAt         *time.Time
}

const userColumns = "id, email, display_name, password_hash, password_hash_version, token_version, created_at, last_login_at"

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash,
		&u.PasswordHashVersion, &u.TokenVersion, &u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user row. Returns the created user.
// Pass an empty passwordHash for OAuth-only accounts.
func (s *Store) CreateUser(ctx context.Context, email, displayName, passwordHash string, hashVersion int) (*User, error) {
	var ph *string
	if passwordHash != "" {
		ph = &passwordHash
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (email, display_name, password_hash, password_hash_version)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		email, displayName, ph, int32(hashVersion)) //nolint:gosec // hashVersion is a small constant (1-255)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUserByID returns the user with the given ID, or (nil, nil) if not found.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns the user with the given email, or (nil, nil) if not found.
// SECURITY: call only from auth flows — never from workspace-admin endpoints.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// UpdateLastLogin sets last_login_at to now for the given user.
func (s *Store) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE users SET last_login_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// IncrementTokenVersion increments token_version and returns the new value.
// Used by logout-all to immediately invalidate all outstanding refresh tokens.
func (s *Store) IncrementTokenVersion(ctx context.Context, id uuid.UUID) (int32, error) {
	var v int32
	err := s.pool.QueryRow(ctx,
		`UPDATE users SET token_version = token_version + 1 WHERE id = $1
		 RETURNING token_version`, id).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("increment token version: %w", err)
	}
	return v, nil
}

// UpdatePasswordHash replaces the password hash and bumps token_version to
// invalidate all active sessions (forces re-login after password change).
func (s *Store) UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string, hashVersion int) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE users
		 SET password_hash = $2, password_hash_version = $3, token_version = token_version + 1
		 WHERE id = $1`,
		id, passwordHash, int32(hashVersion)); err != nil { //nolint:gosec // hashVersion is a small constant (1-255)
		return fmt.Errorf("update password hash: %w", err)
	}
	return nil
}

// UpsertUserIdentity creates or updates a user_identities row for the given provider.
func (s *Store) UpsertUserIdentity(ctx context.Context, userID uuid.UUID, provider, providerUserID, email string) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO user_identities (user_id, provider, provider_user_id, email)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (provider, provider_user_id)
		 DO UPDATE SET email = EXCLUDED.email, updated_at = now()`,
		userID, provider, providerUserID, email); err != nil {
		return fmt.Errorf("upsert user identity: %w", err)
	}
	return nil
}

// GetUserByProviderID returns the user linked to the given OAuth provider identity,
// or (nil, nil) if no such identity exists.
func (s *Store) GetUserByProviderID(ctx context.Context, provider, providerUserID string) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT u.id, u.email, u.display_name, u.password_hash, u.password_hash_version,
		        u.token_version, u.created_at, u.last_login_at
		 FROM users u
		 JOIN user_identities ui ON ui.user_id = u.id
		 WHERE ui.provider = $1 AND ui.provider_user_id = $2`,
		provider, providerUserID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by provider id: %w", err)
	}
	return u, nil
}

// RefreshToken is a row in the refresh_tokens table.
type RefreshToken struct {
	JTI           uuid.UUID
	UserID        uuid.UUID
	TokenVersion  int32
	ExpiresAt     time.Time
	UsedAt        *time.Time
	ReplacedByJTI *uuid.UUID
	CreatedAt     time.Time
}

// CreateRefreshToken inserts a new refresh token row.
func (s *Store) CreateRefreshToken(ctx context.Context, jti, userID uuid.UUID, tokenVersion int, expiresAt time.Time) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (jti, user_id, token_version, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		jti, userID, int32(tokenVersion), expiresAt); err != nil { //nolint:gosec // tokenVersion is a small counter
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken returns the refresh token for the given JTI, or (nil, nil) if not found.
func (s *Store) GetRefreshToken(ctx context.Context, jti uuid.UUID) (*RefreshToken, error) {
	var rt RefreshToken
	err := s.pool.QueryRow(ctx,
		`SELECT jti, user_id, token_version, expires_at, used_at, replaced_by_jti, created_at
		 FROM refresh_tokens WHERE jti = $1`, jti).
		Scan(&rt.JTI, &rt.UserID, &rt.TokenVersion, &rt.ExpiresAt, &rt.UsedAt, &rt.ReplacedByJTI, &rt.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return &rt, nil
}

// MarkRefreshTokenUsed sets used_at and records the JTI of the replacement token.
func (s *Store) MarkRefreshTokenUsed(ctx context.Context, jti, replacedByJTI uuid.UUID) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE refresh_tokens SET used_at = now(), replaced_by_jti = $2 WHERE jti = $1`,
		jti, replacedByJTI); err != nil {
		return fmt.Errorf("mark refresh token used: %w", err)
	}
	return nil
}

// DeleteExpiredRefreshTokens removes tokens expired more than 60 seconds ago.
// Returns the number of rows deleted.
func (s *Store) DeleteExpiredRefreshTokens(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < now() - interval '60 seconds'`)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
