package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"tokokasir/backend/internal/domain"
	"tokokasir/backend/internal/store"
)

func seedProduct(t *testing.T, s *Store, id string, stock int) {
	t.Helper()
	_, err := s.CreateProduct(context.Background(), domain.Product{
		ID:            id,
		Name:          "Produk " + id,
		UnitPrice:     1000,
		StockQuantity: stock,
		Category:      "Umum",
		IsActive:      true,
	})
	if err != nil {
		t.Fatalf("seed product %s: %v", id, err)
	}
}

func saleFor(productID string, qty int) domain.Sale {
	return domain.Sale{
		PaymentMethod: domain.PaymentCash,
		CashierID:     "user_a",
		Lines: []domain.SaleLine{
			{ProductID: productID, ProductName: "x", Quantity: qty, UnitPrice: 1000, LineRevenue: int64(qty) * 1000},
		},
	}
}

func TestCommitSaleConcurrentNeverOversells(t *testing.T) {
	s := New()
	seedProduct(t, s, "p1", 10)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CommitSale(context.Background(), saleFor("p1", 1))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, store.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 || conflicts != 15 {
		t.Fatalf("expected 10 successes and 15 conflicts, got %d and %d", succeeded, conflicts)
	}
	p, err := s.GetProduct(context.Background(), "p1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if p.StockQuantity != 0 {
		t.Fatalf("expected stock 0, got %d", p.StockQuantity)
	}
}

func TestCommitSaleIsAllOrNothing(t *testing.T) {
	s := New()
	seedProduct(t, s, "p1", 5)
	seedProduct(t, s, "p2", 1)

	sale := domain.Sale{
		PaymentMethod: domain.PaymentCard,
		CashierID:     "user_a",
		Lines: []domain.SaleLine{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 2},
		},
	}
	if _, err := s.CommitSale(context.Background(), sale); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	p1, _ := s.GetProduct(context.Background(), "p1")
	if p1.StockQuantity != 5 {
		t.Fatalf("expected p1 stock untouched at 5, got %d", p1.StockQuantity)
	}
	sales, _ := s.ListSales(context.Background(), store.SaleFilter{})
	if len(sales) != 0 {
		t.Fatalf("expected no sale recorded, got %d", len(sales))
	}
}

func TestCommitSaleDuplicateLinesAreCumulative(t *testing.T) {
	s := New()
	seedProduct(t, s, "p1", 5)

	sale := domain.Sale{
		PaymentMethod: domain.PaymentCash,
		CashierID:     "user_a",
		Lines: []domain.SaleLine{
			{ProductID: "p1", Quantity: 3},
			{ProductID: "p1", Quantity: 3},
		},
	}
	if _, err := s.CommitSale(context.Background(), sale); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict for combined quantity 6 over stock 5, got %v", err)
	}
}

func TestCommitSaleUnknownProduct(t *testing.T) {
	s := New()
	if _, err := s.CommitSale(context.Background(), saleFor("missing", 1)); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAdjustStockRejectsNegative(t *testing.T) {
	s := New()
	seedProduct(t, s, "p1", 2)

	_, err := s.AdjustStock(context.Background(), "p1", -3)
	var stockErr *store.StockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected stock error, got %v", err)
	}
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected stock error to match ErrInsufficientStock")
	}

	p, err := s.AdjustStock(context.Background(), "p1", 4)
	if err != nil {
		t.Fatalf("adjust up: %v", err)
	}
	if p.StockQuantity != 6 {
		t.Fatalf("expected stock 6, got %d", p.StockQuantity)
	}
}

func TestListSalesFiltersAndOrdersNewestFirst(t *testing.T) {
	s := New()
	seedProduct(t, s, "p1", 100)

	for i, method := range []string{domain.PaymentCash, domain.PaymentCard, domain.PaymentCash} {
		sale := saleFor("p1", 1)
		sale.PaymentMethod = method
		sale.CreatedAt = int64(1000 * (i + 1))
		if _, err := s.CommitSale(context.Background(), sale); err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
	}

	cash, err := s.ListSales(context.Background(), store.SaleFilter{PaymentMethod: domain.PaymentCash})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cash) != 2 || cash[0].CreatedAt != 3000 || cash[1].CreatedAt != 1000 {
		t.Fatalf("unexpected cash sales order: %+v", cash)
	}

	window, _ := s.ListSales(context.Background(), store.SaleFilter{From: 2000, To: 3000})
	if len(window) != 1 || window[0].CreatedAt != 2000 {
		t.Fatalf("expected half-open window to return only the 2000 sale, got %+v", window)
	}

	paged, _ := s.ListSales(context.Background(), store.SaleFilter{Limit: 1, Offset: 1})
	if len(paged) != 1 || paged[0].CreatedAt != 2000 {
		t.Fatalf("expected second newest sale, got %+v", paged)
	}
}

func TestListProductsVisibility(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, p := range []domain.Product{
		{ID: "shared", Name: "Shared", Category: "B", IsActive: true},
		{ID: "mine", Name: "Mine", Category: "A", IsActive: true, OwnerID: "user_a"},
		{ID: "theirs", Name: "Theirs", Category: "A", IsActive: true, OwnerID: "user_b"},
		{ID: "gone", Name: "Gone", Category: "A", IsActive: false},
	} {
		if _, err := s.CreateProduct(ctx, p); err != nil {
			t.Fatalf("create %s: %v", p.ID, err)
		}
	}

	products, err := s.ListProducts(ctx, store.ProductFilter{VisibleTo: "user_a", ActiveOnly: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(products) != 2 || products[0].ID != "mine" || products[1].ID != "shared" {
		t.Fatalf("unexpected visible products: %+v", products)
	}
}

func TestCommitSaleInactiveProduct(t *testing.T) {
	s := New()
	seedProduct(t, s, "p1", 5)

	product, _ := s.GetProduct(context.Background(), "p1")
	product.IsActive = false
	if _, err := s.UpdateProduct(context.Background(), *product, 0); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if _, err := s.CommitSale(context.Background(), saleFor("p1", 1)); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected inactive product to be not found, got %v", err)
	}
	product, _ = s.GetProduct(context.Background(), "p1")
	if product.StockQuantity != 5 {
		t.Fatalf("expected stock 5 untouched, got %d", product.StockQuantity)
	}
}

func TestUpdateProductStockDeltaIsAllOrNothing(t *testing.T) {
	s := New()
	seedProduct(t, s, "p1", 2)

	product, _ := s.GetProduct(context.Background(), "p1")
	product.Name = "Nama Baru"
	_, err := s.UpdateProduct(context.Background(), *product, -3)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	current, _ := s.GetProduct(context.Background(), "p1")
	if current.Name != "Produk p1" || current.StockQuantity != 2 {
		t.Fatalf("expected failed update to change nothing, got %+v", current)
	}

	updated, err := s.UpdateProduct(context.Background(), *product, 4)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Nama Baru" || updated.StockQuantity != 6 {
		t.Fatalf("expected renamed product with stock 6, got %+v", updated)
	}
}
