package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"tokokasir/backend/internal/domain"
	"tokokasir/backend/internal/store"
)

// CommitSale validates the cart against current stock, prices every line from
// a snapshot of its product, and hands the sale to the store to decrement stock
// and record header and lines atomically.
//
// Lines for the same product are not merged. They are checked in order against
// the stock left by earlier lines, so the first line that overdraws fails.
func (s *Service) CommitSale(ctx context.Context, req domain.CommitSaleRequest) (domain.CommitSaleResponse, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.CommitSaleResponse{}, err
	}

	req.PaymentMethod = strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if len(req.Items) == 0 {
		return domain.CommitSaleResponse{}, fmt.Errorf("%w: cart is empty", store.ErrInvalidInput)
	}
	if !domain.ValidPaymentMethod(req.PaymentMethod) {
		return domain.CommitSaleResponse{}, fmt.Errorf("%w: unknown payment method %q", store.ErrInvalidInput, req.PaymentMethod)
	}
	for i := range req.Items {
		req.Items[i].ProductID = strings.TrimSpace(req.Items[i].ProductID)
		if req.Items[i].ProductID == "" {
			return domain.CommitSaleResponse{}, fmt.Errorf("%w: line %d has no product", store.ErrInvalidInput, i+1)
		}
		if req.Items[i].Quantity < 1 {
			return domain.CommitSaleResponse{}, fmt.Errorf("%w: line %d quantity must be positive", store.ErrInvalidInput, i+1)
		}
	}

	sale := domain.Sale{
		CreatedAt:     s.now().UnixMilli(),
		PaymentMethod: req.PaymentMethod,
		CashierID:     actor.UserID,
		CustomerName:  req.CustomerName,
		Lines:         make([]domain.SaleLine, 0, len(req.Items)),
	}
	products := make(map[string]domain.Product, len(req.Items))
	remaining := make(map[string]int, len(req.Items))

	for i, item := range req.Items {
		product, seen := products[item.ProductID]
		if !seen {
			fetched, err := s.repo.GetProduct(ctx, item.ProductID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return domain.CommitSaleResponse{}, fmt.Errorf("product %s: %w", item.ProductID, store.ErrNotFound)
				}
				return domain.CommitSaleResponse{}, err
			}
			if !fetched.IsActive || !fetched.CanAccess(actor.UserID) {
				return domain.CommitSaleResponse{}, fmt.Errorf("product %s: %w", item.ProductID, store.ErrNotFound)
			}
			product = *fetched
			products[item.ProductID] = product
			remaining[item.ProductID] = product.StockQuantity
		}

		if item.Quantity > remaining[item.ProductID] {
			return domain.CommitSaleResponse{}, &store.StockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   item.Quantity,
				Available:   remaining[item.ProductID],
			}
		}
		remaining[item.ProductID] -= item.Quantity

		line, ok := snapshotLine(product, item.Quantity)
		if ok {
			sale.TotalRevenue, ok = addAmount(sale.TotalRevenue, line.LineRevenue)
		}
		if ok {
			sale.TotalCost, ok = addAmount(sale.TotalCost, line.LineCost)
		}
		if !ok {
			return domain.CommitSaleResponse{}, fmt.Errorf("%w: line %d total is out of range", store.ErrInvalidInput, i+1)
		}
		sale.Lines = append(sale.Lines, line)
	}
	sale.TotalProfit = sale.TotalRevenue - sale.TotalCost

	committed, err := s.repo.CommitSale(ctx, sale)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			zap.S().Infow("sale commit lost a stock race", "cashier", actor.UserID, "error", err)
		}
		return domain.CommitSaleResponse{}, err
	}

	s.invalidateStats(ctx, actor.UserID)
	zap.S().Infow("sale committed",
		"sale_id", committed.ID,
		"cashier", actor.UserID,
		"lines", len(committed.Lines),
		"revenue", committed.TotalRevenue,
	)

	return domain.CommitSaleResponse{
		SaleID:       committed.ID,
		TotalRevenue: committed.TotalRevenue,
		TotalCost:    committed.TotalCost,
		TotalProfit:  committed.TotalProfit,
	}, nil
}

// snapshotLine prices a line from the product as it is now. ok is false when
// an amount is negative or the line total overflows int64.
func snapshotLine(product domain.Product, quantity int) (domain.SaleLine, bool) {
	line := domain.SaleLine{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    quantity,
		UnitPrice:   product.UnitPrice,
	}
	var ok bool
	if line.LineRevenue, ok = mulAmount(product.UnitPrice, quantity); !ok {
		return domain.SaleLine{}, false
	}
	if product.UnitCost != nil {
		cost := *product.UnitCost
		line.UnitCost = &cost
		if line.LineCost, ok = mulAmount(cost, quantity); !ok {
			return domain.SaleLine{}, false
		}
	}
	return line, true
}

func mulAmount(amount int64, quantity int) (int64, bool) {
	if amount < 0 || quantity < 0 {
		return 0, false
	}
	if quantity > 0 && amount > math.MaxInt64/int64(quantity) {
		return 0, false
	}
	return amount * int64(quantity), true
}

func addAmount(a, b int64) (int64, bool) {
	if b > math.MaxInt64-a {
		return 0, false
	}
	return a + b, true
}

// GetSale returns a sale of the calling cashier with its lines.
func (s *Service) GetSale(ctx context.Context, id string) (domain.SaleDetail, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.SaleDetail{}, err
	}
	sale, err := s.repo.GetSale(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.SaleDetail{}, err
	}
	if sale.CashierID != actor.UserID {
		return domain.SaleDetail{}, store.ErrNotFound
	}
	names := map[string]string{}
	return domain.SaleDetail{Sale: *sale, CashierName: s.cashierName(ctx, names, sale.CashierID)}, nil
}

// Receipt gathers what a printable receipt shows: business header, the sale,
// and a link to the payment QR when one is configured.
func (s *Service) Receipt(ctx context.Context, saleID string) (domain.Receipt, error) {
	detail, err := s.GetSale(ctx, saleID)
	if err != nil {
		return domain.Receipt{}, err
	}
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return domain.Receipt{}, err
	}

	receipt := domain.Receipt{Settings: settings, Sale: detail}
	if settings.QRImageID != "" {
		qrURL, err := s.images.PresignView(ctx, settings.QRImageID)
		if err != nil {
			zap.S().Debugw("receipt QR link unavailable", "sale_id", detail.ID, "error", err)
		} else {
			receipt.QRImageURL = qrURL
		}
	}
	return receipt, nil
}

func (s *Service) cashierName(ctx context.Context, names map[string]string, cashierID string) string {
	if name, ok := names[cashierID]; ok {
		return name
	}
	name := "Unknown"
	user, err := s.repo.GetUserByID(ctx, cashierID)
	if err == nil {
		name = user.DisplayName()
	} else if !errors.Is(err, store.ErrNotFound) {
		zap.S().Warnw("[service] cashier lookup failed", "cashier", cashierID, "error", err)
	}
	names[cashierID] = name
	return name
}
