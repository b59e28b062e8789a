// ABOUTME: Store methods for workspace webhook destinations.
// ABOUTME: ListActiveWebhooks runs with RLS bypass for worker-side delivery.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Webhook is a row in the workspace_webhooks table.
type Webhook struct {
	ID                     uuid.UUID
	WorkspaceID            uuid.UUID
	URL                    string
	SigningSecret          string
	SigningSecretSecondary *string
	CustomHeaders          map[string]string
	Active                 bool
	CreatedBy              *uuid.UUID
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

const webhookColumns = "id, workspace_id, url, signing_secret, signing_secret_secondary, custom_headers, active, created_by, created_at, updated_at"

func scanWebhook(row pgx.Row) (*Webhook, error) {
	var w Webhook
	var headers []byte
	err := row.Scan(&w.ID, &w.WorkspaceID, &w.URL, &w.SigningSecret, &w.SigningSecretSecondary,
		&headers, &w.Active, &w.CreatedBy, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(headers, &w.CustomHeaders); err != nil {
		return nil, fmt.Errorf("decode custom headers: %w", err)
	}
	return &w, nil
}

// CreateWebhook inserts a webhook destination. The signing secret is generated
// by the caller and shown to the user exactly once.
func (s *Store) CreateWebhook(ctx context.Context, workspaceID uuid.UUID, url, signingSecret string, customHeaders map[string]string, createdBy uuid.UUID) (*Webhook, error) {
	if customHeaders == nil {
		customHeaders = map[string]string{}
	}
	headers, err := json.Marshal(customHeaders)
	if err != nil {
		return nil, fmt.Errorf("create webhook: encode headers: %w", err)
	}
	var wh *Webhook
	err = s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		row, err := scanWebhook(tx.QueryRow(ctx,
			`INSERT INTO workspace_webhooks (workspace_id, url, signing_secret, custom_headers, created_by)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING `+webhookColumns,
			workspaceID, url, signingSecret, headers, createdBy))
		if err != nil {
			return err
		}
		wh = row
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create webhook: %w", err)
	}
	return wh, nil
}

// ListWebhooks returns all webhook destinations for a workspace, newest first.
// Signing secrets are excluded — they are shown once at create/rotate time only.
func (s *Store) ListWebhooks(ctx context.Context, workspaceID uuid.UUID) ([]Webhook, error) {
	var result []Webhook
	err := s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT id, workspace_id, url, '', NULL::text, custom_headers, active, created_by, created_at, updated_at
			 FROM workspace_webhooks
			 WHERE workspace_id = $1
			 ORDER BY created_at DESC`, workspaceID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			w, err := scanWebhook(rows)
			if err != nil {
				return err
			}
			result = append(result, *w)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	return result, nil
}

// ListActiveWebhooks returns active destinations including secrets, for
// worker-side delivery. Runs with RLS bypass — workers have no tenant context.
func (s *Store) ListActiveWebhooks(ctx context.Context, workspaceID uuid.UUID) ([]Webhook, error) {
	var result []Webhook
	err := s.WorkerTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT `+webhookColumns+`
			 FROM workspace_webhooks
			 WHERE workspace_id = $1 AND active
			 ORDER BY created_at ASC`, workspaceID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			w, err := scanWebhook(rows)
			if err != nil {
				return err
			}
			result = append(result, *w)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list active webhooks: %w", err)
	}
	return result, nil
}

// RotateWebhookSecret installs a new primary secret and keeps the old one as
// secondary so receivers can migrate. Returns false if the webhook is missing.
func (s *Store) RotateWebhookSecret(ctx context.Context, workspaceID, id uuid.UUID, newSecret string) (bool, error) {
	var rotated bool
	err := s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE workspace_webhooks
			 SET signing_secret_secondary = signing_secret,
			     signing_secret = $3,
			     updated_at = now()
			 WHERE workspace_id = $1 AND id = $2`,
			workspaceID, id, newSecret)
		if err != nil {
			return err
		}
		rotated = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rotate webhook secret: %w", err)
	}
	return rotated, nil
}

// DeleteWebhook removes a webhook destination. A wrong workspaceID is a no-op.
func (s *Store) DeleteWebhook(ctx context.Context, workspaceID, id uuid.UUID) error {
	return s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM workspace_webhooks WHERE workspace_id = $1 AND id = $2`,
			workspaceID, id); err != nil {
			return fmt.Errorf("delete webhook: %w", err)
		}
		return nil
	})
}
