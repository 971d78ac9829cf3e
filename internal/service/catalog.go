package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"go.uber.org/zap"

	"tokokasir/backend/internal/domain"
	"tokokasir/backend/internal/store"
)

const (
	// maxUnitAmount caps price and cost so line and sale totals stay within int64.
	maxUnitAmount int64 = 1_000_000_000_000
	// maxStock is the largest stock a postgres INTEGER column holds.
	maxStock = math.MaxInt32
)

func checkAmount(field string, amount int64) error {
	if amount < 0 || amount > maxUnitAmount {
		return fmt.Errorf("%w: %s must be between 0 and %d", store.ErrInvalidInput, field, maxUnitAmount)
	}
	return nil
}

func checkStock(stock int) error {
	if stock < 0 || stock > maxStock {
		return fmt.Errorf("%w: stock must be between 0 and %d", store.ErrInvalidInput, maxStock)
	}
	return nil
}

func (s *Service) ListProducts(ctx context.Context, category string) ([]domain.Product, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, store.ProductFilter{
		VisibleTo:  actor.UserID,
		Category:   strings.TrimSpace(category),
		ActiveOnly: true,
	})
}

// Categories returns the distinct categories of the active products the actor
// can see, sorted.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	products, err := s.ListProducts(ctx, "")
	if err != nil {
		return nil, err
	}

	categories := make([]string, 0, 8)
	for _, p := range products {
		if p.Category == "" || slices.Contains(categories, p.Category) {
			continue
		}
		categories = append(categories, p.Category)
	}
	slices.Sort(categories)
	return categories, nil
}

// GetProduct hides products owned by someone else behind ErrNotFound.
func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	product, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	if !product.CanAccess(actor.UserID) {
		return domain.Product{}, store.ErrNotFound
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" || req.Category == "" {
		return domain.Product{}, fmt.Errorf("%w: name and category are required", store.ErrInvalidInput)
	}
	if err := checkAmount("price", req.UnitPrice); err != nil {
		return domain.Product{}, err
	}
	if req.UnitCost != nil {
		if err := checkAmount("cost", *req.UnitCost); err != nil {
			return domain.Product{}, err
		}
	}
	if err := checkStock(req.Stock); err != nil {
		return domain.Product{}, err
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:          req.Name,
		UnitPrice:     req.UnitPrice,
		UnitCost:      req.UnitCost,
		StockQuantity: req.Stock,
		Category:      req.Category,
		IsActive:      true,
		OwnerID:       actor.UserID,
	})
	if err != nil {
		return domain.Product{}, err
	}
	zap.S().Infow("product created", "product_id", created.ID, "owner", actor.UserID)
	return *created, nil
}

// mutableProduct loads a product the actor is allowed to change.
func (s *Service) mutableProduct(ctx context.Context, actor domain.Actor, id string) (*domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: product id required", store.ErrInvalidInput)
	}
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.CanAccess(actor.UserID) {
		return nil, fmt.Errorf("%w: product %s belongs to another account", ErrForbidden, id)
	}
	return product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	existing, err := s.mutableProduct(ctx, actor, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: name must not be empty", store.ErrInvalidInput)
		}
		updated.Name = name
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return domain.Product{}, fmt.Errorf("%w: category must not be empty", store.ErrInvalidInput)
		}
		updated.Category = category
	}
	if req.UnitPrice != nil {
		if err := checkAmount("price", *req.UnitPrice); err != nil {
			return domain.Product{}, err
		}
		updated.UnitPrice = *req.UnitPrice
	}
	if req.UnitCost != nil {
		if err := checkAmount("cost", *req.UnitCost); err != nil {
			return domain.Product{}, err
		}
		cost := *req.UnitCost
		updated.UnitCost = &cost
	}

	// A stock target becomes a delta against the stock just read. The store
	// applies it with the field changes and rejects a negative result, so a
	// sale landing in between fails the whole update.
	delta := 0
	if req.Stock != nil {
		if err := checkStock(*req.Stock); err != nil {
			return domain.Product{}, err
		}
		delta = *req.Stock - existing.StockQuantity
	}

	result, err := s.repo.UpdateProduct(ctx, updated, delta)
	if err != nil {
		return domain.Product{}, err
	}
	return *result, nil
}

// DeactivateProduct soft-deletes so historical sale lines keep a valid product.
func (s *Service) DeactivateProduct(ctx context.Context, id string) error {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return err
	}
	product, err := s.mutableProduct(ctx, actor, id)
	if err != nil {
		return err
	}
	if !product.IsActive {
		return nil
	}
	product.IsActive = false
	if _, err := s.repo.UpdateProduct(ctx, *product, 0); err != nil {
		return err
	}
	zap.S().Infow("product deactivated", "product_id", product.ID, "actor", actor.UserID)
	return nil
}

func (s *Service) AdjustStock(ctx context.Context, id string, delta int) (domain.Product, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	product, err := s.mutableProduct(ctx, actor, id)
	if err != nil {
		return domain.Product{}, err
	}
	if delta == 0 {
		return *product, nil
	}
	if delta > maxStock || delta < -maxStock || product.StockQuantity+delta > maxStock {
		return domain.Product{}, fmt.Errorf("%w: stock must not exceed %d", store.ErrInvalidInput, maxStock)
	}

	adjusted, err := s.repo.AdjustStock(ctx, product.ID, delta)
	if err != nil {
		var stockErr *store.StockError
		if errors.As(err, &stockErr) {
			zap.S().Infow("stock correction rejected", "product_id", product.ID, "delta", delta, "available", stockErr.Available)
		}
		return domain.Product{}, err
	}
	zap.S().Infow("stock adjusted", "product_id", adjusted.ID, "delta", delta, "stock", adjusted.StockQuantity)
	return *adjusted, nil
}
