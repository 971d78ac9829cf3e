package store

import (
	"context"
	"errors"
	"fmt"

	"tokokasir/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrConflict means a concurrent commit took the stock between validation
	// and apply. It is the only error a caller may retry blindly.
	ErrConflict      = errors.New("stock changed concurrently, retry the sale")
	ErrInvalidInput  = errors.New("invalid input")
	ErrAlreadyExists = errors.New("already exists")
)

// StockError reports a product that cannot cover the requested quantity.
type StockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (requested %d, available %d)", e.ProductName, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}

type ProductFilter struct {
	// VisibleTo limits results to shared products and those owned by this actor.
	VisibleTo  string
	Category   string
	ActiveOnly bool
}

// SaleFilter bounds are epoch milliseconds, From inclusive and To exclusive.
// Zero values leave a bound open. Results are newest first.
type SaleFilter struct {
	CashierID     string
	From          int64
	To            int64
	PaymentMethod string
	CustomerName  string
	Limit         int
	Offset        int
}

type ProductStore interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	// UpdateProduct writes the descriptive fields and applies stockDelta as
	// one unit. A delta that would leave stock negative fails with a
	// *StockError and nothing is written.
	UpdateProduct(ctx context.Context, product domain.Product, stockDelta int) (*domain.Product, error)
	// AdjustStock applies delta and fails with a *StockError if the result
	// would be negative.
	AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error)
}

type SaleStore interface {
	// CommitSale decrements stock for every line and records the sale with its
	// lines as one unit. A decrement that would go negative yields ErrConflict,
	// a missing or inactive product yields ErrNotFound, and nothing is written.
	CommitSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	// ListSales returns sale headers without lines.
	ListSales(ctx context.Context, filter SaleFilter) ([]domain.Sale, error)
	GetSaleLines(ctx context.Context, saleIDs []string) (map[string][]domain.SaleLine, error)
}

type SettingsStore interface {
	GetSettings(ctx context.Context, ownerID string) (*domain.BusinessSettings, error)
	UpsertSettings(ctx context.Context, settings domain.BusinessSettings) (*domain.BusinessSettings, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	GetUserByID(ctx context.Context, id string) (*domain.UserAccount, error)
}

type Repository interface {
	ProductStore
	SaleStore
	SettingsStore
	UserStore
}
