// ABOUTME: Store methods for the product catalog: CRUD, keyset-paginated listing,
// ABOUTME: and bulk CSV import via pgx CopyFrom. All methods are workspace-scoped.
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

// Product is a row in the products table.
type Product struct {
	ID                     uuid.UUID
	WorkspaceID            uuid.UUID
	SKU                    string
	Title                  string
	Description            *string
	DeclaredValue          float64
	Currency               string
	OriginCountry          string
	DestinationCountry     string
	ActiveClassificationID *uuid.UUID
	CreatedAt              time.Time
	UpdatedAt              time.Time
	DeletedAt              *time.Time
}

const productColumns = `id, workspace_id, sku, title, description, declared_value, currency,
	origin_country, destination_country, active_classification_id, created_at, updated_at, deleted_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.WorkspaceID, &p.SKU, &p.Title, &p.Description,
		&p.DeclaredValue, &p.Currency, &p.OriginCountry, &p.DestinationCountry,
		&p.ActiveClassificationID, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProductParams holds the fields for creating a product.
type CreateProductParams struct {
	SKU                string
	Title              string
	Description        *string
	DeclaredValue      float64
	Currency           string
	OriginCountry      string
	DestinationCountry string
}

// UpdateProductParams holds the mutable fields for updating a product.
type UpdateProductParams struct {
	Title              string
	Description        *string
	DeclaredValue      float64
	Currency           string
	OriginCountry      string
	DestinationCountry string
}

// CreateProduct inserts a new product. The partial unique index on
// (workspace_id, sku) WHERE deleted_at IS NULL enforces SKU uniqueness.
func (s *Store) CreateProduct(ctx context.Context, workspaceID uuid.UUID, p CreateProductParams) (*Product, error) {
	var prod *Product
	err := s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		row, err := scanProduct(tx.QueryRow(ctx,
			`INSERT INTO products (workspace_id, sku, title, description, declared_value, currency, origin_country, destination_country)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING `+productColumns,
			workspaceID, p.SKU, p.Title, p.Description, p.DeclaredValue, p.Currency,
			p.OriginCountry, p.DestinationCountry))
		if err != nil {
			return err
		}
		prod = row
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return prod, nil
}

// GetProduct returns the product with the given id within workspaceID, or
// (nil, nil) if not found or soft-deleted.
func (s *Store) GetProduct(ctx context.Context, workspaceID, id uuid.UUID) (*Product, error) {
	var prod *Product
	err := s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		row, err := scanProduct(tx.QueryRow(ctx,
			`SELECT `+productColumns+` FROM products
			 WHERE id = $1 AND workspace_id = $2 AND deleted_at IS NULL`, id, workspaceID))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get product: %w", err)
		}
		prod = row
		return nil
	})
	return prod, err
}

// GetProductBySKU returns the product with the given SKU, or (nil, nil) if not found.
func (s *Store) GetProductBySKU(ctx context.Context, workspaceID uuid.UUID, sku string) (*Product, error) {
	var prod *Product
	err := s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		row, err := scanProduct(tx.QueryRow(ctx,
			`SELECT `+productColumns+` FROM products
			 WHERE workspace_id = $1 AND sku = $2 AND deleted_at IS NULL`, workspaceID, sku))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get product by sku: %w", err)
		}
		prod = row
		return nil
	})
	return prod, err
}

// ListProducts returns a page of non-deleted products for a workspace ordered
// by created_at DESC, id DESC. Caller passes limit+1 to detect whether a next
// page exists. afterTime and afterID are the cursor from the last item on the
// previous page. search, when non-empty, filters on SKU and title.
func (s *Store) ListProducts(ctx context.Context, workspaceID uuid.UUID, search string, afterTime *time.Time, afterID *uuid.UUID, limit int) ([]Product, error) {
	sb := psql.Select(
		"id", "workspace_id", "sku", "title", "description", "declared_value", "currency",
		"origin_country", "destination_country", "active_classification_id",
		"created_at", "updated_at", "deleted_at").
		From("products").
		Where(sq.Eq{"workspace_id": workspaceID}).
		Where("deleted_at IS NULL").
		OrderBy("created_at DESC, id DESC").
		Limit(uint64(limit)) //nolint:gosec // G115: limit validated by caller

	if search != "" {
		like := "%" + search + "%"
		sb = sb.Where(sq.Or{sq.ILike{"sku": like}, sq.ILike{"title": like}})
	}
	if afterTime != nil && afterID != nil {
		sb = sb.Where("(created_at, id) < (?, ?)", *afterTime, *afterID)
	}

	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("list products: build query: %w", err)
	}

	var result []Product
	err = s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("list products: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var p Product
			if err := rows.Scan(&p.ID, &p.WorkspaceID, &p.SKU, &p.Title, &p.Description,
				&p.DeclaredValue, &p.Currency, &p.OriginCountry, &p.DestinationCountry,
				&p.ActiveClassificationID, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt); err != nil {
				return fmt.Errorf("list products: scan: %w", err)
			}
			result = append(result, p)
		}
		return rows.Err()
	})
	return result, err
}

// UpdateProduct updates the mutable fields of a product. Returns (nil, nil) if
// the product is not found or has been soft-deleted.
func (s *Store) UpdateProduct(ctx context.Context, workspaceID, id uuid.UUID, p UpdateProductParams) (*Product, error) {
	var prod *Product
	err := s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		row, err := scanProduct(tx.QueryRow(ctx,
			`UPDATE products
			 SET title = $3, description = $4, declared_value = $5, currency = $6,
			     origin_country = $7, destination_country = $8, updated_at = now()
			 WHERE id = $1 AND workspace_id = $2 AND deleted_at IS NULL
			 RETURNING `+productColumns,
			id, workspaceID, p.Title, p.Description, p.DeclaredValue, p.Currency,
			p.OriginCountry, p.DestinationCountry))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		prod = row
		return nil
	})
	return prod, err
}

// DeleteProduct soft-deletes a product by setting deleted_at.
func (s *Store) DeleteProduct(ctx context.Context, workspaceID, id uuid.UUID) error {
	return s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE products SET deleted_at = now()
			 WHERE id = $1 AND workspace_id = $2 AND deleted_at IS NULL`, id, workspaceID); err != nil {
			return fmt.Errorf("delete product: %w", err)
		}
		return nil
	})
}

// SetActiveClassification points the product at its active classification row.
// A nil classificationID clears the pointer.
func (s *Store) SetActiveClassification(ctx context.Context, workspaceID, productID uuid.UUID, classificationID *uuid.UUID) error {
	return s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE products SET active_classification_id = $3, updated_at = now()
			 WHERE id = $1 AND workspace_id = $2 AND deleted_at IS NULL`,
			productID, workspaceID, classificationID); err != nil {
			return fmt.Errorf("set active classification: %w", err)
		}
		return nil
	})
}

// BulkInsertProducts inserts products in one round trip via COPY. Rows that
// collide with an existing SKU are the caller's problem: run SKU dedup before
// calling. Returns the number of rows inserted.
func (s *Store) BulkInsertProducts(ctx context.Context, workspaceID uuid.UUID, params []CreateProductParams) (int64, error) {
	var inserted int64
	err := s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		n, err := tx.CopyFrom(ctx,
			pgx.Identifier{"products"},
			[]string{"workspace_id", "sku", "title", "description", "declared_value", "currency", "origin_country", "destination_country"},
			pgx.CopyFromSlice(len(params), func(i int) ([]any, error) {
				p := params[i]
				return []any{workspaceID, p.SKU, p.Title, p.Description, p.DeclaredValue,
					p.Currency, p.OriginCountry, p.DestinationCountry}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy products: %w", err)
		}
		inserted = n
		return nil
	})
	return inserted, err
}

// CountProducts returns the number of active products in a workspace.
func (s *Store) CountProducts(ctx context.Context, workspaceID uuid.UUID) (int64, error) {
	var n int64
	err := s.WorkspaceTx(ctx, workspaceID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM products WHERE workspace_id = $1 AND deleted_at IS NULL`,
			workspaceID).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}
