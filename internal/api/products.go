// ABOUTME: Product catalog operations: CRUD, keyset-paginated listing, CSV import.
// ABOUTME: All operations are workspace-scoped via the wsGuard middleware.
package api

import (
	"context"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/Milo6x/dutyleak/internal/apperror"
	"github.com/Milo6x/dutyleak/internal/authz"
	"github.com/Milo6x/dutyleak/internal/store"
)

// productBody is the JSON shape of a product in API responses.
type productBody struct {
	ID                     string  `json:"id"`
	SKU                    string  `json:"sku"`
	Title                  string  `json:"title"`
	Description            *string `json:"description,omitempty"`
	DeclaredValue          float64 `json:"declared_value"`
	Currency               string  `json:"currency"`
	OriginCountry          string  `json:"origin_country"`
	DestinationCountry     string  `json:"destination_country"`
	ActiveClassificationID *string `json:"active_classification_id,omitempty"`
	CreatedAt              string  `json:"created_at"`
	UpdatedAt              string  `json:"updated_at"`
}

func productToBody(p store.Product) productBody {
	b := productBody{
		ID:                 p.ID.String(),
		SKU:                p.SKU,
		Title:              p.Title,
		Description:        p.Description,
		DeclaredValue:      p.DeclaredValue,
		Currency:           p.Currency,
		OriginCountry:      p.OriginCountry,
		DestinationCountry: p.DestinationCountry,
		CreatedAt:          p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          p.UpdatedAt.Format(time.RFC3339),
	}
	if p.ActiveClassificationID != nil {
		s := p.ActiveClassificationID.String()
		b.ActiveClassificationID = &s
	}
	return b
}

// ── Cursor encoding ───────────────────────────────────────────────────────────

// encodeCursor packs the (created_at, id) keyset position into an opaque token.
func encodeCursor(t time.Time, id uuid.UUID) string {
	raw := t.Format(time.RFC3339Nano) + "|" + id.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(s string) (time.Time, uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return time.Time{}, uuid.Nil, errors.New("malformed cursor")
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, uuid.Nil, errors.New("malformed cursor")
	}
	t, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, uuid.Nil, errors.New("malformed cursor")
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return time.Time{}, uuid.Nil, errors.New("malformed cursor")
	}
	return t, id, nil
}

// ── Create ────────────────────────────────────────────────────────────────────

type createProductInput struct {
	WorkspaceID string `path:"workspace_id" format:"uuid"`
	Body        struct {
		SKU                string  `json:"sku"                 minLength:"1" maxLength:"64"`
		Title              string  `json:"title"               minLength:"1" maxLength:"500"`
		Description        *string `json:"description,omitempty" maxLength:"5000"`
		DeclaredValue      float64 `json:"declared_value"      minimum:"0"`
		Currency           string  `json:"currency"            minLength:"3" maxLength:"3" doc:"ISO 4217 currency code"`
		OriginCountry      string  `json:"origin_country"      minLength:"2" maxLength:"2" doc:"ISO 3166-1 alpha-2 country code"`
		DestinationCountry string  `json:"destination_country" minLength:"2" maxLength:"2" doc:"ISO 3166-1 alpha-2 country code"`
	}
}

type productOutput struct {
	Body productBody
}

func (srv *Server) createProductHandler(ctx context.Context, input *createProductInput) (*productOutput, error) {
	workspaceID, _ := ctx.Value(ctxWorkspaceID).(uuid.UUID)

	params := store.CreateProductParams{
		SKU:                strings.TrimSpace(input.Body.SKU),
		Title:              strings.TrimSpace(input.Body.Title),
		Description:        input.Body.Description,
		DeclaredValue:      input.Body.DeclaredValue,
		Currency:           strings.ToUpper(input.Body.Currency),
		OriginCountry:      strings.ToUpper(input.Body.OriginCountry),
		DestinationCountry: strings.ToUpper(input.Body.DestinationCountry),
	}

	p, err := srv.store.CreateProduct(ctx, workspaceID, params)
	if err != nil {
		if pgErrCode(err) == "23505" {
			return nil, appErr(apperror.Conflict("a product with this SKU already exists"))
		}
		return nil, appErr(apperror.Internal(err).In("api.products", "create"))
	}
	return &productOutput{Body: productToBody(*p)}, nil
}

// ── Get ───────────────────────────────────────────────────────────────────────

type getProductInput struct {
	WorkspaceID string `path:"workspace_id" format:"uuid"`
	ID          string `path:"id"           format:"uuid"`
}

func (srv *Server) getProductHandler(ctx context.Context, input *getProductInput) (*productOutput, error) {
	workspaceID, _ := ctx.Value(ctxWorkspaceID).(uuid.UUID)

	id, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, appErr(apperror.Validation([]apperror.FieldError{
			{Path: "path.id", Message: "must be a valid UUID"},
		}))
	}
	p, err := srv.store.GetProduct(ctx, workspaceID, id)
	if err != nil {
		return nil, appErr(apperror.Internal(err).In("api.products", "get"))
	}
	if p == nil {
		return nil, appErr(apperror.NotFound("product"))
	}
	return &productOutput{Body: productToBody(*p)}, nil
}

// ── List ──────────────────────────────────────────────────────────────────────

type listProductsInput struct {
	WorkspaceID string `path:"workspace_id" format:"uuid"`
	Cursor      string `query:"cursor" doc:"Opaque pagination cursor from a previous response"`
	Limit       int    `query:"limit"  minimum:"1" maximum:"100" default:"20"`
	Search      string `query:"search" maxLength:"200" doc:"Filter on SKU and title (substring match)"`
}

type listProductsOutput struct {
	Body struct {
		Products   []productBody `json:"products"`
		NextCursor *string       `json:"next_cursor,omitempty"`
	}
}

func (srv *Server) listProductsHandler(ctx context.Context, input *listProductsInput) (*listProductsOutput, error) {
	workspaceID, _ := ctx.Value(ctxWorkspaceID).(uuid.UUID)

	var afterTime *time.Time
	var afterID *uuid.UUID
	if input.Cursor != "" {
		t, id, err := decodeCursor(input.Cursor)
		if err != nil {
			return nil, appErr(apperror.Validation([]apperror.FieldError{
				{Path: "query.cursor", Message: err.Error()},
			}))
		}
		afterTime, afterID = &t, &id
	}

	// Fetch limit+1 to detect whether a next page exists.
	products, err := srv.store.ListProducts(ctx, workspaceID, input.Search, afterTime, afterID, input.Limit+1)
	if err != nil {
		return nil, appErr(apperror.Internal(err).In("api.products", "list"))
	}

	out := &listProductsOutput{}
	out.Body.Products = make([]productBody, 0, len(products))
	if len(products) > input.Limit {
		last := products[input.Limit-1]
		cursor := encodeCursor(last.CreatedAt, last.ID)
		out.Body.NextCursor = &cursor
		products = products[:input.Limit]
	}
	for _, p := range products {
		out.Body.Products = append(out.Body.Products, productToBody(p))
	}
	return out, nil
}

// ── Update ────────────────────────────────────────────────────────────────────

type updateProductInput struct {
	WorkspaceID string `path:"workspace_id" format:"uuid"`
	ID          string `path:"id"           format:"uuid"`
	Body        struct {
		Title              string  `json:"title"               minLength:"1" maxLength:"500"`
		Description        *string `json:"description,omitempty" maxLength:"5000"`
		DeclaredValue      float64 `json:"declared_value"      minimum:"0"`
		Currency           string  `json:"currency"            minLength:"3" maxLength:"3"`
		OriginCountry      string  `json:"origin_country"      minLength:"2" maxLength:"2"`
		DestinationCountry string  `json:"destination_country" minLength:"2" maxLength:"2"`
	}
}

func (srv *Server) updateProductHandler(ctx context.Context, input *updateProductInput) (*productOutput, error) {
	workspaceID, _ := ctx.Value(ctxWorkspaceID).(uuid.UUID)

	id, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, appErr(apperror.Validation([]apperror.FieldError{
			{Path: "path.id", Message: "must be a valid UUID"},
		}))
	}
	params := store.UpdateProductParams{
		Title:              strings.TrimSpace(input.Body.Title),
		Description:        input.Body.Description,
		DeclaredValue:      input.Body.DeclaredValue,
		Currency:           strings.ToUpper(input.Body.Currency),
		OriginCountry:      strings.ToUpper(input.Body.OriginCountry),
		DestinationCountry: strings.ToUpper(input.Body.DestinationCountry),
	}
	p, err := srv.store.UpdateProduct(ctx, workspaceID, id, params)
	if err != nil {
		return nil, appErr(apperror.Internal(err).In("api.products", "update"))
	}
	if p == nil {
		return nil, appErr(apperror.NotFound("product"))
	}
	return &productOutput{Body: productToBody(*p)}, nil
}

// ── Delete ────────────────────────────────────────────────────────────────────

type deleteProductInput struct {
	WorkspaceID string `path:"workspace_id" format:"uuid"`
	ID          string `path:"id"           format:"uuid"`
}

type deleteProductOutput struct{}

func (srv *Server) deleteProductHandler(ctx context.Context, input *deleteProductInput) (*deleteProductOutput, error) {
	workspaceID, _ := ctx.Value(ctxWorkspaceID).(uuid.UUID)

	id, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, appErr(apperror.Validation([]apperror.FieldError{
			{Path: "path.id", Message: "must be a valid UUID"},
		}))
	}
	if err := srv.store.DeleteProduct(ctx, workspaceID, id); err != nil {
		return nil, appErr(apperror.Internal(err).In("api.products", "delete"))
	}
	return &deleteProductOutput{}, nil
}

// ── CSV import ────────────────────────────────────────────────────────────────

// csvHeader is the required first row of a product import file, in order.
var csvHeader = []string{"sku", "title", "description", "declared_value", "currency", "origin_country", "destination_country"}

type importProductsInput struct {
	WorkspaceID string `path:"workspace_id" format:"uuid"`
	RawBody     []byte `contentType:"text/csv"`
}

type importProductsOutput struct {
	Body struct {
		Imported int64  `json:"imported"`
		JobID    string `json:"job_id"`
	}
}

// parseProductCSV validates the CSV payload into insertable rows. All rows are
// validated before any row is accepted: an import either fully parses or is
// rejected with per-row field errors.
func parseProductCSV(r io.Reader, maxRows int) ([]store.CreateProductParams, []apperror.FieldError) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, []apperror.FieldError{{Path: "body", Message: "missing CSV header row"}}
	}
	for i, want := range csvHeader {
		if strings.TrimSpace(strings.ToLower(header[i])) != want {
			return nil, []apperror.FieldError{{
				Path:    "body",
				Message: fmt.Sprintf("header column %d must be %q", i+1, want),
			}}
		}
	}

	var rows []store.CreateProductParams
	var fieldErrs []apperror.FieldError
	seen := make(map[string]int) // SKU -> first row number
	rowNum := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rowNum++
		if err != nil {
			fieldErrs = append(fieldErrs, apperror.FieldError{
				Path: fmt.Sprintf("row[%d]", rowNum), Message: err.Error(),
			})
			continue
		}
		if rowNum-1 > maxRows {
			return nil, []apperror.FieldError{{
				Path:    "body",
				Message: fmt.Sprintf("too many rows: the limit is %d per import", maxRows),
			}}
		}

		sku := strings.TrimSpace(record[0])
		title := strings.TrimSpace(record[1])
		value, valueErr := strconv.ParseFloat(strings.TrimSpace(record[3]), 64)
		currency := strings.ToUpper(strings.TrimSpace(record[4]))
		origin := strings.ToUpper(strings.TrimSpace(record[5]))
		destination := strings.ToUpper(strings.TrimSpace(record[6]))

		rowErr := func(col, msg string) {
			fieldErrs = append(fieldErrs, apperror.FieldError{
				Path: fmt.Sprintf("row[%d].%s", rowNum, col), Message: msg,
			})
		}
		if sku == "" || len(sku) > 64 {
			rowErr("sku", "must be 1-64 characters")
		} else if first, dup := seen[sku]; dup {
			rowErr("sku", fmt.Sprintf("duplicate of row %d", first))
		} else {
			seen[sku] = rowNum
		}
		if title == "" || len(title) > 500 {
			rowErr("title", "must be 1-500 characters")
		}
		if valueErr != nil || value < 0 {
			rowErr("declared_value", "must be a non-negative number")
		}
		if len(currency) != 3 {
			rowErr("currency", "must be a 3-letter ISO 4217 code")
		}
		if len(origin) != 2 {
			rowErr("origin_country", "must be a 2-letter ISO 3166-1 code")
		}
		if len(destination) != 2 {
			rowErr("destination_country", "must be a 2-letter ISO 3166-1 code")
		}

		var description *string
		if d := strings.TrimSpace(record[2]); d != "" {
			description = &d
		}
		rows = append(rows, store.CreateProductParams{
			SKU:                sku,
			Title:              title,
			Description:        description,
			DeclaredValue:      value,
			Currency:           currency,
			OriginCountry:      origin,
			DestinationCountry: destination,
		})
	}
	if len(fieldErrs) > 0 {
		return nil, fieldErrs
	}
	if len(rows) == 0 {
		return nil, []apperror.FieldError{{Path: "body", Message: "no data rows"}}
	}
	return rows, nil
}

// importProductsHandler bulk-imports products from CSV and enqueues a batch
// classification job for the workspace. The lock key serializes batches per
// workspace: a second import while one is classifying queues behind it.
func (srv *Server) importProductsHandler(ctx context.Context, input *importProductsInput) (*importProductsOutput, error) {
	workspaceID, _ := ctx.Value(ctxWorkspaceID).(uuid.UUID)

	rows, fieldErrs := parseProductCSV(strings.NewReader(string(input.RawBody)), srv.cfg.BatchMaxProducts)
	if fieldErrs != nil {
		return nil, appErr(apperror.Validation(fieldErrs))
	}

	inserted, err := srv.store.BulkInsertProducts(ctx, workspaceID, rows)
	if err != nil {
		if pgErrCode(err) == "23505" {
			return nil, appErr(apperror.Conflict("one or more SKUs already exist in this workspace"))
		}
		return nil, appErr(apperror.Internal(err).In("api.products", "import"))
	}

	payload, _ := json.Marshal(map[string]string{"workspace_id": workspaceID.String()})
	lockKey := store.QueueClassifyBatch + ":" + workspaceID.String()
	jobID, err := srv.store.EnqueueJob(ctx, store.QueueClassifyBatch, 0, payload, &lockKey, 3, nil)
	if err != nil {
		return nil, appErr(apperror.Internal(err).In("api.products", "import"))
	}

	out := &importProductsOutput{}
	out.Body.Imported = inserted
	out.Body.JobID = jobID.String()
	return out, nil
}

// ── Route registration ────────────────────────────────────────────────────────

func registerProductRoutes(api huma.API, srv *Server) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-product",
		Method:        http.MethodPost,
		Path:          "/workspaces/{workspace_id}/products",
		Tags:          []string{"products"},
		Summary:       "Create a product",
		DefaultStatus: http.StatusCreated,
		Middlewares:   huma.Middlewares{srv.wsGuard(authz.RoleMember)},
	}, srv.createProductHandler)

	huma.Register(api, huma.Operation{
		OperationID: "list-products",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_id}/products",
		Tags:        []string{"products"},
		Summary:     "List products (keyset-paginated)",
		Middlewares: huma.Middlewares{srv.wsGuard(authz.RoleViewer)},
	}, srv.listProductsHandler)

	huma.Register(api, huma.Operation{
		OperationID: "get-product",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_id}/products/{id}",
		Tags:        []string{"products"},
		Summary:     "Get a product",
		Middlewares: huma.Middlewares{srv.wsGuard(authz.RoleViewer)},
	}, srv.getProductHandler)

	huma.Register(api, huma.Operation{
		OperationID: "update-product",
		Method:      http.MethodPut,
		Path:        "/workspaces/{workspace_id}/products/{id}",
		Tags:        []string{"products"},
		Summary:     "Update a product",
		Middlewares: huma.Middlewares{srv.wsGuard(authz.RoleMember)},
	}, srv.updateProductHandler)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-product",
		Method:        http.MethodDelete,
		Path:          "/workspaces/{workspace_id}/products/{id}",
		Tags:          []string{"products"},
		Summary:       "Soft-delete a product",
		DefaultStatus: http.StatusNoContent,
		Middlewares:   huma.Middlewares{srv.wsGuard(authz.RoleMember)},
	}, srv.deleteProductHandler)

	huma.Register(api, huma.Operation{
		OperationID:   "import-products",
		Method:        http.MethodPost,
		Path:          "/workspaces/{workspace_id}/products/import",
		Tags:          []string{"products"},
		Summary:       "Bulk-import products from CSV and enqueue batch classification",
		DefaultStatus: http.StatusAccepted,
		Middlewares:   huma.Middlewares{srv.wsGuard(authz.RoleMember)},
	}, srv.importProductsHandler)
}
