package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/tbourn/go-product-importer/internal/domain"
	"github.com/tbourn/go-product-importer/internal/jobs"
	"github.com/tbourn/go-product-importer/internal/repo"
)

func seedProduct(t *testing.T, a *testAPI, sku, name string, price float64) *domain.Product {
	t.Helper()
	p := &domain.Product{SKU: sku, Name: name, Price: price, IsActive: true}
	if err := repo.CreateProduct(context.Background(), a.db, p); err != nil {
		t.Fatalf("seed product %s: %v", sku, err)
	}
	return p
}

// drainEvents pops queued notification tasks and returns their event types.
func drainEvents(t *testing.T, a *testAPI) []string {
	t.Helper()
	var out []string
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		task, err := a.queue.Dequeue(ctx)
		cancel()
		if err != nil {
			return out
		}
		if task.Kind == jobs.KindNotify && task.Notify != nil {
			out = append(out, task.Notify.Event)
		}
	}
}

func TestCreateProduct_Success(t *testing.T) {
	a := newTestAPI(t)

	price := 9.99
	w := a.do(t, http.MethodPost, "/products", CreateProductRequest{
		SKU: "SKU-1", Name: "Widget", Price: &price, Quantity: 5,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var p domain.Product
	decodeJSON(t, w, &p)
	if p.ID == "" || p.SKU != "SKU-1" || !p.IsActive {
		t.Fatalf("unexpected product: %+v", p)
	}

	events := drainEvents(t, a)
	if len(events) != 1 || events[0] != domain.EventProductCreated {
		t.Fatalf("expected one created event, got %v", events)
	}
}

func TestCreateProduct_DuplicateSKU_CaseInsensitive(t *testing.T) {
	a := newTestAPI(t)
	seedProduct(t, a, "ABC-1", "Existing", 1)

	price := 2.0
	w := a.do(t, http.MethodPost, "/products", CreateProductRequest{
		SKU: "abc-1", Name: "Dup", Price: &price,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp ErrorResponse
	decodeJSON(t, w, &resp)
	if resp.Code != ErrCodeConflict {
		t.Fatalf("code = %q", resp.Code)
	}
}

func TestCreateProduct_Validation(t *testing.T) {
	a := newTestAPI(t)
	price := 1.0
	neg := -1.0

	cases := []struct {
		name string
		req  CreateProductRequest
	}{
		{"bad sku", CreateProductRequest{SKU: "bad sku!", Name: "n", Price: &price}},
		{"missing price", CreateProductRequest{SKU: "S-1", Name: "n"}},
		{"negative price", CreateProductRequest{SKU: "S-1", Name: "n", Price: &neg}},
		{"negative quantity", CreateProductRequest{SKU: "S-1", Name: "n", Price: &price, Quantity: -2}},
	}
	for _, c := range cases {
		w := a.do(t, http.MethodPost, "/products", c.req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, body %s", c.name, w.Code, w.Body.String())
		}
	}
}

func TestGetProduct(t *testing.T) {
	a := newTestAPI(t)
	p := seedProduct(t, a, "S-1", "Widget", 1)

	w := a.do(t, http.MethodGet, "/products/"+p.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got domain.Product
	decodeJSON(t, w, &got)
	if got.ID != p.ID || got.SKU != "S-1" {
		t.Fatalf("unexpected product: %+v", got)
	}

	w = a.do(t, http.MethodGet, "/products/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing product status = %d", w.Code)
	}
}

func TestUpdateProduct_PartialFields(t *testing.T) {
	a := newTestAPI(t)
	p := seedProduct(t, a, "S-1", "Old", 1)

	newName := "New"
	newPrice := 3.5
	w := a.do(t, http.MethodPut, "/products/"+p.ID, UpdateProductRequest{
		Name: &newName, Price: &newPrice,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var got domain.Product
	decodeJSON(t, w, &got)
	if got.Name != "New" || got.Price != 3.5 {
		t.Fatalf("fields not updated: %+v", got)
	}
	if got.SKU != "S-1" {
		t.Fatalf("untouched fields must survive: %+v", got)
	}

	events := drainEvents(t, a)
	if len(events) != 1 || events[0] != domain.EventProductUpdated {
		t.Fatalf("expected one updated event, got %v", events)
	}
}

func TestUpdateProduct_RejectsEmptyName(t *testing.T) {
	a := newTestAPI(t)
	p := seedProduct(t, a, "S-1", "Old", 1)

	empty := ""
	w := a.do(t, http.MethodPut, "/products/"+p.ID, UpdateProductRequest{Name: &empty})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestDeleteProduct(t *testing.T) {
	a := newTestAPI(t)
	p := seedProduct(t, a, "S-1", "Widget", 1)

	w := a.do(t, http.MethodDelete, "/products/"+p.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if _, err := repo.GetProduct(context.Background(), a.db, p.ID); err != repo.ErrNotFound {
		t.Fatalf("product should be gone, got %v", err)
	}

	events := drainEvents(t, a)
	if len(events) != 1 || events[0] != domain.EventProductDeleted {
		t.Fatalf("expected one deleted event, got %v", events)
	}

	w = a.do(t, http.MethodDelete, "/products/"+p.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("double delete status = %d", w.Code)
	}
}

func TestBulkDeleteProducts(t *testing.T) {
	a := newTestAPI(t)
	for i := 0; i < 3; i++ {
		seedProduct(t, a, fmt.Sprintf("S-%d", i), "n", 1)
	}

	w := a.do(t, http.MethodDelete, "/products", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	decodeJSON(t, w, &body)
	if body["count"] != float64(3) {
		t.Fatalf("count = %v", body["count"])
	}

	events := drainEvents(t, a)
	if len(events) != 1 || events[0] != domain.EventProductBulkDeleted {
		t.Fatalf("expected one bulk_deleted event, got %v", events)
	}
}

func TestListProducts_PaginationAndSearch(t *testing.T) {
	a := newTestAPI(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		p := &domain.Product{
			SKU: fmt.Sprintf("S-%d", i), Name: fmt.Sprintf("Item %d", i),
			Price: 1, IsActive: i%2 == 0,
			CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute),
		}
		if err := repo.CreateProduct(ctx, a.db, p); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	w := a.do(t, http.MethodGet, "/products?page=2&per_page=3", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ProductListResponse
	decodeJSON(t, w, &resp)
	if resp.Total != 7 || resp.Page != 2 || resp.PerPage != 3 || resp.TotalPages != 3 {
		t.Fatalf("unexpected pagination meta: %+v", resp)
	}
	if len(resp.Products) != 3 {
		t.Fatalf("expected 3 items, got %d", len(resp.Products))
	}

	// Filters combine.
	w = a.do(t, http.MethodGet, "/products?search=item&is_active=true", nil)
	decodeJSON(t, w, &resp)
	if resp.Total != 4 {
		t.Fatalf("expected 4 active matches, got %d", resp.Total)
	}

	// per_page is capped.
	w = a.do(t, http.MethodGet, "/products?per_page=5000", nil)
	decodeJSON(t, w, &resp)
	if resp.PerPage != 100 {
		t.Fatalf("per_page should cap at 100, got %d", resp.PerPage)
	}
}
