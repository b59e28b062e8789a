// ABOUTME: Store methods for duty-saving recommendations.
// ABOUTME: Recommendations are upserted per product; status tracks user review.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Recommendation is a candidate duty saving for one product: an alternative
// HS code or trade lane with the projected saving per unit.
type Recommendation struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	ProductID   uuid.UUID
	// Kind is reclassify, trade_agreement, or origin_shift.
	Kind            string
	CurrentHSCode   string
	SuggestedHSCode *string
	TradeAgreement  *string
	CurrentDuty     float64
	ProjectedDuty   float64
	SavingPerUnit   float64
	Rationale       string
	// Status is pending, accepted, or dismissed.
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

const recommendationColumns = `id, workspace_id, product_id, kind, current_hs_code, suggested_hs_code,
	trade_agreement, current_duty, projected_duty, saving_per_unit, rationale, status, created_at, updated_at`

func scanRecommendation(row pgx.Row) (*Recommendation, error) {
	var r Recommendation
	err := row.Scan(&r.ID, &r.WorkspaceID, &r.ProductID, &r.Kind, &r.CurrentHSCode,
		&r.SuggestedHSCode, &r.TradeAgreement, &r.CurrentDuty, &r.ProjectedDuty,
		&r.SavingPerUnit, &r.Rationale, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpsertRecommendation inserts or refreshes the recommendation for
// (product, kind). Re-running the engine updates projections in place but
// never resurrects a dismissed recommendation.
func (s *Store) UpsertRecommendation(ctx context.Context, workspaceID uuid.UUID, r Recommendation) (*Recommendation, error) {
	var rec *Recommendation
	err := s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		row, err := scanRecommendation(tx.QueryRow(ctx,
			`INSERT INTO recommendations (workspace_id, product_id, kind, current_hs_code, suggested_hs_code,
			                              trade_agreement, current_duty, projected_duty, saving_per_unit, rationale, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'pending')
			 ON CONFLICT (workspace_id, product_id, kind)
			 DO UPDATE SET current_hs_code = EXCLUDED.current_hs_code,
			               suggested_hs_code = EXCLUDED.suggested_hs_code,
			               trade_agreement = EXCLUDED.trade_agreement,
			               current_duty = EXCLUDED.current_duty,
			               projected_duty = EXCLUDED.projected_duty,
			               saving_per_unit = EXCLUDED.saving_per_unit,
			               rationale = EXCLUDED.rationale,
			               updated_at = now()
			 WHERE recommendations.status <> 'dismissed'
			 RETURNING `+recommendationColumns,
			workspaceID, r.ProductID, r.Kind, r.CurrentHSCode, r.SuggestedHSCode,
			r.TradeAgreement, r.CurrentDuty, r.ProjectedDuty, r.SavingPerUnit, r.Rationale))
		if errors.Is(err, pgx.ErrNoRows) {
			// Dismissed row blocked the upsert; nothing to return.
			return nil
		}
		if err != nil {
			return err
		}
		rec = row
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("upsert recommendation: %w", err)
	}
	return rec, nil
}

// ListRecommendations returns recommendations for a workspace ordered by
// saving descending. status filters when non-empty; productID filters when
// non-nil.
func (s *Store) ListRecommendations(ctx context.Context, workspaceID uuid.UUID, status string, productID *uuid.UUID, limit int) ([]Recommendation, error) {
	sb := psql.Select(
		"id", "workspace_id", "product_id", "kind", "current_hs_code", "suggested_hs_code",
		"trade_agreement", "current_duty", "projected_duty", "saving_per_unit",
		"rationale", "status", "created_at", "updated_at").
		From("recommendations").
		Where(sq.Eq{"workspace_id": workspaceID}).
		OrderBy("saving_per_unit DESC, id ASC").
		Limit(uint64(limit)) //nolint:gosec // G115: limit validated by caller

	if status != "" {
		sb = sb.Where(sq.Eq{"status": status})
	}
	if productID != nil {
		sb = sb.Where(sq.Eq{"product_id": *productID})
	}

	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("list recommendations: build query: %w", err)
	}

	var result []Recommendation
	err = s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("list recommendations: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r Recommendation
			if err := rows.Scan(&r.ID, &r.WorkspaceID, &r.ProductID, &r.Kind, &r.CurrentHSCode,
				&r.SuggestedHSCode, &r.TradeAgreement, &r.CurrentDuty, &r.ProjectedDuty,
				&r.SavingPerUnit, &r.Rationale, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
				return fmt.Errorf("list recommendations: scan: %w", err)
			}
			result = append(result, r)
		}
		return rows.Err()
	})
	return result, err
}

// UpdateRecommendationStatus marks a recommendation accepted or dismissed.
// Returns (nil, nil) if the recommendation does not exist in the workspace.
func (s *Store) UpdateRecommendationStatus(ctx context.Context, workspaceID, id uuid.UUID, status string) (*Recommendation, error) {
	var rec *Recommendation
	err := s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		row, err := scanRecommendation(tx.QueryRow(ctx,
			`UPDATE recommendations SET status = $3, updated_at = now()
			 WHERE id = $1 AND workspace_id = $2
			 RETURNING `+recommendationColumns,
			id, workspaceID, status))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("update recommendation status: %w", err)
		}
		rec = row
		return nil
	})
	return rec, err
}
