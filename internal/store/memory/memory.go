package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"tokokasir/backend/internal/domain"
	"tokokasir/backend/internal/store"
	"tokokasir/backend/internal/xid"
)

type Store struct {
	mu           sync.RWMutex
	products     map[string]domain.Product
	sales        map[string]domain.Sale
	saleLines    map[string][]domain.SaleLine
	settings     map[string]domain.BusinessSettings
	usersByID    map[string]domain.UserAccount
	userIDByName map[string]string
}

func New() *Store {
	return &Store{
		products:     make(map[string]domain.Product),
		sales:        make(map[string]domain.Sale),
		saleLines:    make(map[string][]domain.SaleLine),
		settings:     make(map[string]domain.BusinessSettings),
		usersByID:    make(map[string]domain.UserAccount),
		userIDByName: make(map[string]string),
	}
}

// NewSeeded returns a store with a demo account and a shared starter catalog.
// The demo password comes from SEED_ADMIN_PASSWORD; the dev default is only
// meant for local runs without DATABASE_URL.
func NewSeeded() *Store {
	s := New()

	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
		zap.S().Warn("[memory-store] using default dev credentials, set SEED_ADMIN_PASSWORD to override")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		zap.S().Fatalf("[memory-store] failed to hash seed password: %v", err)
	}
	admin := domain.UserAccount{
		ID:           "user_admin",
		Username:     "admin",
		Name:         "Admin Toko",
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UnixMilli(),
	}
	s.usersByID[admin.ID] = admin
	s.userIDByName[admin.Username] = admin.ID

	cost := func(v int64) *int64 { return &v }
	now := time.Now().UnixMilli()
	for _, p := range []domain.Product{
		{ID: "prod_mie", Name: "Mie Goreng Instan", Category: "Makanan", UnitPrice: 3500, UnitCost: cost(2700), StockQuantity: 120},
		{ID: "prod_telur", Name: "Telur 10 Butir", Category: "Makanan", UnitPrice: 26500, UnitCost: cost(23000), StockQuantity: 40},
		{ID: "prod_susu", Name: "Susu UHT 1L", Category: "Minuman", UnitPrice: 18900, UnitCost: cost(13600), StockQuantity: 60},
		{ID: "prod_kopi", Name: "Kopi Sachet", Category: "Minuman", UnitPrice: 2600, UnitCost: cost(1700), StockQuantity: 200},
		{ID: "prod_air", Name: "Air Mineral 600ml", Category: "Minuman", UnitPrice: 3900, UnitCost: cost(3200), StockQuantity: 150},
		{ID: "prod_keripik", Name: "Keripik Singkong", Category: "Snack", UnitPrice: 12800, StockQuantity: 35},
		{ID: "prod_sabun", Name: "Sabun Mandi", Category: "Rumah Tangga", UnitPrice: 7400, UnitCost: cost(5000), StockQuantity: 50},
	} {
		p.IsActive = true
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
	}
	return s
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := cloneProduct(p)
	return &clone, nil
}

func (s *Store) ListProducts(_ context.Context, filter store.ProductFilter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		if filter.VisibleTo != "" && !p.CanAccess(filter.VisibleTo) {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		products = append(products, cloneProduct(p))
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.Category, b.Category)
	})
	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.UnitPrice < 0 || product.StockQuantity < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrAlreadyExists
	}
	now := time.Now().UnixMilli()
	if product.CreatedAt == 0 {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	s.products[product.ID] = cloneProduct(product)

	clone := cloneProduct(product)
	return &clone, nil
}

// UpdateProduct replaces the descriptive fields and moves stock by stockDelta
// under one lock.
func (s *Store) UpdateProduct(_ context.Context, product domain.Product, stockDelta int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if existing.StockQuantity+stockDelta < 0 {
		return nil, &store.StockError{ProductID: existing.ID, ProductName: existing.Name, Requested: -stockDelta, Available: existing.StockQuantity}
	}
	existing.Name = product.Name
	existing.UnitPrice = product.UnitPrice
	existing.UnitCost = cloneCost(product.UnitCost)
	existing.Category = product.Category
	existing.IsActive = product.IsActive
	existing.StockQuantity += stockDelta
	existing.UpdatedAt = time.Now().UnixMilli()
	s.products[product.ID] = existing

	clone := cloneProduct(existing)
	return &clone, nil
}

func (s *Store) AdjustStock(_ context.Context, id string, delta int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if p.StockQuantity+delta < 0 {
		return nil, &store.StockError{ProductID: p.ID, ProductName: p.Name, Requested: -delta, Available: p.StockQuantity}
	}
	p.StockQuantity += delta
	p.UpdatedAt = time.Now().UnixMilli()
	s.products[id] = p

	clone := cloneProduct(p)
	return &clone, nil
}

func (s *Store) CommitSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}

	decrements := make(map[string]int, len(sale.Lines))
	for _, line := range sale.Lines {
		if line.Quantity < 1 {
			return nil, store.ErrInvalidInput
		}
		decrements[line.ProductID] += line.Quantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for productID, qty := range decrements {
		p, ok := s.products[productID]
		if !ok || !p.IsActive {
			return nil, store.ErrNotFound
		}
		if p.StockQuantity < qty {
			return nil, store.ErrConflict
		}
	}

	now := time.Now().UnixMilli()
	for productID, qty := range decrements {
		p := s.products[productID]
		p.StockQuantity -= qty
		p.UpdatedAt = now
		s.products[productID] = p
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt == 0 {
		sale.CreatedAt = now
	}
	lines := make([]domain.SaleLine, len(sale.Lines))
	for i, line := range sale.Lines {
		if line.ID == "" {
			line.ID = xid.New("line")
		}
		line.SaleID = sale.ID
		line.UnitCost = cloneCost(line.UnitCost)
		lines[i] = line
	}

	header := sale
	header.Lines = nil
	s.sales[sale.ID] = header
	s.saleLines[sale.ID] = lines

	committed := header
	committed.Lines = cloneLines(lines)
	return &committed, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	sale.Lines = cloneLines(s.saleLines[id])
	return &sale, nil
}

func (s *Store) ListSales(_ context.Context, filter store.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if filter.CashierID != "" && sale.CashierID != filter.CashierID {
			continue
		}
		if filter.From != 0 && sale.CreatedAt < filter.From {
			continue
		}
		if filter.To != 0 && sale.CreatedAt >= filter.To {
			continue
		}
		if filter.PaymentMethod != "" && sale.PaymentMethod != filter.PaymentMethod {
			continue
		}
		if filter.CustomerName != "" && sale.CustomerName != filter.CustomerName {
			continue
		}
		sales = append(sales, sale)
	}

	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.CreatedAt != b.CreatedAt {
			if a.CreatedAt > b.CreatedAt {
				return -1
			}
			return 1
		}
		return strings.Compare(b.ID, a.ID)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(sales) {
			return []domain.Sale{}, nil
		}
		sales = sales[filter.Offset:]
	}
	if filter.Limit > 0 && len(sales) > filter.Limit {
		sales = sales[:filter.Limit]
	}
	return sales, nil
}

func (s *Store) GetSaleLines(_ context.Context, saleIDs []string) (map[string][]domain.SaleLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]domain.SaleLine, len(saleIDs))
	for _, id := range saleIDs {
		if lines, ok := s.saleLines[id]; ok {
			result[id] = cloneLines(lines)
		}
	}
	return result, nil
}

func (s *Store) GetSettings(_ context.Context, ownerID string) (*domain.BusinessSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, ok := s.settings[ownerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &settings, nil
}

func (s *Store) UpsertSettings(_ context.Context, settings domain.BusinessSettings) (*domain.BusinessSettings, error) {
	if settings.OwnerID == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	settings.UpdatedAt = time.Now().UnixMilli()
	s.settings[settings.OwnerID] = settings
	return &settings, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || user.PasswordHash == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.userIDByName[username]; exists {
		return store.ErrAlreadyExists
	}
	user.Username = username
	if user.ID == "" {
		user.ID = xid.New("user")
	}
	if user.CreatedAt == 0 {
		user.CreatedAt = time.Now().UnixMilli()
	}
	s.usersByID[user.ID] = user
	s.userIDByName[username] = user.ID
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.userIDByName[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, store.ErrNotFound
	}
	user := s.usersByID[id]
	return &user, nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func cloneCost(src *int64) *int64 {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}

func cloneProduct(src domain.Product) domain.Product {
	src.UnitCost = cloneCost(src.UnitCost)
	return src
}

func cloneLines(src []domain.SaleLine) []domain.SaleLine {
	if src == nil {
		return nil
	}
	out := make([]domain.SaleLine, len(src))
	for i, line := range src {
		line.UnitCost = cloneCost(line.UnitCost)
		out[i] = line
	}
	return out
}
