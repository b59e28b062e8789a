// ABOUTME: Store methods for HS code classification history.
// ABOUTME: Classifications are append-only; the active one is a pointer on products.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Classification is one HS code assignment for a product. Rows are never
// updated or deleted; overrides append a new row and repoint the product.
type Classification struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	ProductID   uuid.UUID
	HSCode      string
	Description string
	Confidence  float64
	// Source is llm_primary, llm_fallback, or manual.
	Source    string
	Model     *string
	Rationale *string
	CreatedBy *uuid.UUID
	CreatedAt time.Time
}

const classificationColumns = `id, workspace_id, product_id, hs_code, description, confidence,
	source, model, rationale, created_by, created_at`

func scanClassification(row pgx.Row) (*Classification, error) {
	var c Classification
	err := row.Scan(&c.ID, &c.WorkspaceID, &c.ProductID, &c.HSCode, &c.Description,
		&c.Confidence, &c.Source, &c.Model, &c.Rationale, &c.CreatedBy, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateClassificationParams holds the fields for recording a classification.
type CreateClassificationParams struct {
	ProductID   uuid.UUID
	HSCode      string
	Description string
	Confidence  float64
	Source      string
	Model       *string
	Rationale   *string
	CreatedBy   *uuid.UUID
}

// CreateClassification appends a classification row and, when activate is
// true, repoints the product's active classification in the same transaction.
func (s *Store) CreateClassification(ctx context.Context, workspaceID uuid.UUID, p CreateClassificationParams, activate bool) (*Classification, error) {
	var cls *Classification
	err := s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		row, err := scanClassification(tx.QueryRow(ctx,
			`INSERT INTO classifications (workspace_id, product_id, hs_code, description, confidence, source, model, rationale, created_by)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING `+classificationColumns,
			workspaceID, p.ProductID, p.HSCode, p.Description, p.Confidence,
			p.Source, p.Model, p.Rationale, p.CreatedBy))
		if err != nil {
			return fmt.Errorf("insert classification: %w", err)
		}
		cls = row
		if activate {
			if _, err := tx.Exec(ctx,
				`UPDATE products SET active_classification_id = $3, updated_at = now()
				 WHERE id = $1 AND workspace_id = $2 AND deleted_at IS NULL`,
				p.ProductID, workspaceID, cls.ID); err != nil {
				return fmt.Errorf("activate classification: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cls, nil
}

// GetClassification returns the classification with the given id within
// workspaceID, or (nil, nil) if not found.
func (s *Store) GetClassification(ctx context.Context, workspaceID, id uuid.UUID) (*Classification, error) {
	var cls *Classification
	err := s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		row, err := scanClassification(tx.QueryRow(ctx,
			`SELECT `+classificationColumns+` FROM classifications
			 WHERE id = $1 AND workspace_id = $2`, id, workspaceID))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get classification: %w", err)
		}
		cls = row
		return nil
	})
	return cls, err
}

// ListProductClassifications returns the classification history for a product,
// newest first.
func (s *Store) ListProductClassifications(ctx context.Context, workspaceID, productID uuid.UUID) ([]Classification, error) {
	var result []Classification
	err := s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT `+classificationColumns+` FROM classifications
			 WHERE workspace_id = $1 AND product_id = $2
			 ORDER BY created_at DESC, id DESC`, workspaceID, productID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c Classification
			if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.ProductID, &c.HSCode, &c.Description,
				&c.Confidence, &c.Source, &c.Model, &c.Rationale, &c.CreatedBy, &c.CreatedAt); err != nil {
				return err
			}
			result = append(result, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list product classifications: %w", err)
	}
	return result, nil
}

// ListUnclassifiedProductIDs returns IDs of active products with no active
// classification, oldest first, capped at limit. Used by the batch classifier.
func (s *Store) ListUnclassifiedProductIDs(ctx context.Context, workspaceID uuid.UUID, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT id FROM products
			 WHERE workspace_id = $1 AND deleted_at IS NULL AND active_classification_id IS NULL
			 ORDER BY created_at ASC
			 LIMIT $2`, workspaceID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list unclassified products: %w", err)
	}
	return ids, nil
}
