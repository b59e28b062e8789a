// ABOUTME: Integration tests for store/product.go — CRUD, keyset pagination, COPY import.
// ABOUTME: Includes an RLS isolation check using the NOBYPASSRLS app role.
package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Milo6x/dutyleak/internal/store"
	"github.com/Milo6x/dutyleak/internal/testutil"
)

// newWorkspace creates a user and a workspace owned by them.
func newWorkspace(t *testing.T, s *testutil.TestDB, name string) *store.Workspace {
	t.Helper()
	ctx := context.Background()
	user, err := s.CreateUser(ctx, name+"@example.com", name, "", 0)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	ws, err := s.CreateWorkspaceWithOwner(ctx, name, user.ID)
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	return ws
}

func productParams(sku string) store.CreateProductParams {
	return store.CreateProductParams{
		SKU:                sku,
		Title:              "Widget " + sku,
		DeclaredValue:      12.5,
		Currency:           "USD",
		OriginCountry:      "CN",
		DestinationCountry: "US",
	}
}

func TestCreateAndGetProduct(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	ws := newWorkspace(t, s, "ProdWS")

	p, err := s.CreateProduct(ctx, ws.ID, productParams("SKU-1"))
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if p.SKU != "SKU-1" || p.WorkspaceID != ws.ID {
		t.Errorf("unexpected product: %+v", p)
	}

	got, err := s.GetProduct(ctx, ws.ID, p.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if got == nil || got.ID != p.ID {
		t.Fatalf("GetProduct = %+v, want ID %v", got, p.ID)
	}

	bySKU, err := s.GetProductBySKU(ctx, ws.ID, "SKU-1")
	if err != nil {
		t.Fatalf("GetProductBySKU: %v", err)
	}
	if bySKU == nil || bySKU.ID != p.ID {
		t.Errorf("GetProductBySKU = %+v, want ID %v", bySKU, p.ID)
	}

	missing, err := s.GetProduct(ctx, ws.ID, uuid.New())
	if err != nil {
		t.Fatalf("GetProduct(missing): %v", err)
	}
	if missing != nil {
		t.Error("GetProduct(missing) should return nil")
	}
}

func TestCreateProduct_DuplicateSKU(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	ws := newWorkspace(t, s, "DupWS")

	if _, err := s.CreateProduct(ctx, ws.ID, productParams("DUP-1")); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := s.CreateProduct(ctx, ws.ID, productParams("DUP-1")); err == nil {
		t.Error("duplicate SKU in the same workspace should fail")
	}

	// The same SKU in a different workspace is fine.
	other := newWorkspace(t, s, "DupWS2")
	if _, err := s.CreateProduct(ctx, other.ID, productParams("DUP-1")); err != nil {
		t.Errorf("same SKU in another workspace: %v", err)
	}
}

func TestDeleteProduct_FreesSKU(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	ws := newWorkspace(t, s, "SoftDelWS")

	p, err := s.CreateProduct(ctx, ws.ID, productParams("GONE-1"))
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if err := s.DeleteProduct(ctx, ws.ID, p.ID); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}

	// Soft-deleted products disappear from reads.
	got, err := s.GetProduct(ctx, ws.ID, p.ID)
	if err != nil {
		t.Fatalf("GetProduct after delete: %v", err)
	}
	if got != nil {
		t.Error("soft-deleted product should not be readable")
	}

	// The partial unique index only covers live rows, so the SKU is reusable.
	if _, err := s.CreateProduct(ctx, ws.ID, productParams("GONE-1")); err != nil {
		t.Errorf("recreating a soft-deleted SKU: %v", err)
	}
}

func TestListProducts_KeysetPagination(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	ws := newWorkspace(t, s, "PageWS")

	// Five products with deterministic, strictly increasing created_at.
	base := time.Now().Add(-1 * time.Hour).UTC().Truncate(time.Millisecond)
	for i := 0; i < 5; i++ {
		p, err := s.CreateProduct(ctx, ws.ID, productParams(fmt.Sprintf("PAGE-%d", i)))
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if _, err := s.Pool().Exec(ctx,
			"UPDATE products SET created_at = $2 WHERE id = $1",
			p.ID, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("set created_at: %v", err)
		}
	}

	// Newest first: PAGE-4, PAGE-3, PAGE-2.
	page1, err := s.ListProducts(ctx, ws.ID, "", nil, nil, 3)
	if err != nil {
		t.Fatalf("ListProducts page 1: %v", err)
	}
	if len(page1) != 3 {
		t.Fatalf("page 1 size = %d, want 3", len(page1))
	}
	if page1[0].SKU != "PAGE-4" || page1[2].SKU != "PAGE-2" {
		t.Errorf("page 1 order: %s .. %s, want PAGE-4 .. PAGE-2", page1[0].SKU, page1[2].SKU)
	}

	// Cursor after the last item of page 1 yields PAGE-1, PAGE-0.
	last := page1[2]
	page2, err := s.ListProducts(ctx, ws.ID, "", &last.CreatedAt, &last.ID, 3)
	if err != nil {
		t.Fatalf("ListProducts page 2: %v", err)
	}
	if len(page2) != 2 {
		t.Fatalf("page 2 size = %d, want 2", len(page2))
	}
	if page2[0].SKU != "PAGE-1" || page2[1].SKU != "PAGE-0" {
		t.Errorf("page 2 order: %s, %s, want PAGE-1, PAGE-0", page2[0].SKU, page2[1].SKU)
	}
}

func TestListProducts_Search(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	ws := newWorkspace(t, s, "SearchWS")

	brass := productParams("BRASS-1")
	brass.Title = "Brass fitting"
	steel := productParams("STEEL-1")
	steel.Title = "Steel pipe"
	if _, err := s.CreateProduct(ctx, ws.ID, brass); err != nil {
		t.Fatalf("create brass: %v", err)
	}
	if _, err := s.CreateProduct(ctx, ws.ID, steel); err != nil {
		t.Fatalf("create steel: %v", err)
	}

	// Case-insensitive match on title.
	got, err := s.ListProducts(ctx, ws.ID, "brass", nil, nil, 10)
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(got) != 1 || got[0].SKU != "BRASS-1" {
		t.Errorf("search result: %+v, want BRASS-1 only", got)
	}

	// Match on SKU too.
	got, err = s.ListProducts(ctx, ws.ID, "STEEL", nil, nil, 10)
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(got) != 1 || got[0].SKU != "STEEL-1" {
		t.Errorf("SKU search result: %+v, want STEEL-1 only", got)
	}
}

func TestBulkInsertProducts(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	ws := newWorkspace(t, s, "BulkWS")

	rows := []store.CreateProductParams{
		productParams("BULK-1"), productParams("BULK-2"), productParams("BULK-3"),
	}
	n, err := s.BulkInsertProducts(ctx, ws.ID, rows)
	if err != nil {
		t.Fatalf("BulkInsertProducts: %v", err)
	}
	if n != 3 {
		t.Errorf("inserted = %d, want 3", n)
	}

	count, err := s.CountProducts(ctx, ws.ID)
	if err != nil {
		t.Fatalf("CountProducts: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	// A COPY that collides with an existing SKU fails as a whole.
	if _, err := s.BulkInsertProducts(ctx, ws.ID, []store.CreateProductParams{
		productParams("BULK-9"), productParams("BULK-1"),
	}); err == nil {
		t.Error("bulk insert with duplicate SKU should fail")
	}
	count, _ = s.CountProducts(ctx, ws.ID)
	if count != 3 {
		t.Errorf("count after failed bulk insert = %d, want 3 (atomic)", count)
	}
}

// TestRLSIsolation verifies the row-level security net under the NOBYPASSRLS
// app role: no tenant context means no rows, and a workspace context exposes
// only that workspace's rows.
func TestRLSIsolation(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	ws1 := newWorkspace(t, s, "TenantA")
	ws2 := newWorkspace(t, s, "TenantB")
	if _, err := s.CreateProduct(ctx, ws1.ID, productParams("A-1")); err != nil {
		t.Fatalf("create in ws1: %v", err)
	}
	if _, err := s.CreateProduct(ctx, ws2.ID, productParams("B-1")); err != nil {
		t.Fatalf("create in ws2: %v", err)
	}

	// App role without tenant context sees nothing.
	var n int
	if err := s.AppStore.Pool().QueryRow(ctx, "SELECT count(*) FROM products").Scan(&n); err != nil {
		t.Fatalf("count without context: %v", err)
	}
	if n != 0 {
		t.Errorf("rows visible without tenant context = %d, want 0", n)
	}

	// With ws1 context, only ws1's product is visible.
	err := s.AppStore.WorkspaceTx(ctx, ws1.ID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, "SELECT count(*) FROM products").Scan(&n)
	})
	if err != nil {
		t.Fatalf("count in ws1 context: %v", err)
	}
	if n != 1 {
		t.Errorf("rows visible in ws1 context = %d, want 1", n)
	}
}
