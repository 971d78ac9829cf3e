package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tokokasir/backend/internal/domain"
	"tokokasir/backend/internal/store"
)

const (
	defaultRecentLimit      = 10
	defaultTransactionLimit = 20
	dayLayout               = "2006-01-02"
)

// SummarizeSales folds sale headers into totals. Profit is the sum of stored
// sale profits, never recomputed from lines.
func SummarizeSales(sales []domain.Sale) domain.SalesStats {
	var stats domain.SalesStats
	for _, sale := range sales {
		stats.TotalRevenue += sale.TotalRevenue
		stats.TotalCost += sale.TotalCost
		stats.TotalProfit += sale.TotalProfit
		stats.TotalTransactions++
	}
	stats.AverageTransaction = averageTransaction(stats.TotalRevenue, stats.TotalTransactions)
	return stats
}

func averageTransaction(revenue int64, transactions int) float64 {
	if transactions == 0 {
		return 0
	}
	return decimal.NewFromInt(revenue).
		Div(decimal.NewFromInt(int64(transactions))).
		Round(2).
		InexactFloat64()
}

// DailyBreakdown groups sales by calendar day in loc, keyed YYYY-MM-DD.
func DailyBreakdown(sales []domain.Sale, loc *time.Location) map[string]domain.DailyStat {
	days := make(map[string]domain.DailyStat)
	for _, sale := range sales {
		key := time.UnixMilli(sale.CreatedAt).In(loc).Format(dayLayout)
		day := days[key]
		day.Revenue += sale.TotalRevenue
		day.Cost += sale.TotalCost
		day.Profit += sale.TotalProfit
		day.Transactions++
		days[key] = day
	}
	return days
}

func PaymentMethodBreakdown(sales []domain.Sale) map[string]int {
	methods := make(map[string]int)
	for _, sale := range sales {
		methods[sale.PaymentMethod]++
	}
	return methods
}

// StatsForRange summarizes the actor's sales created in [start, end).
func (s *Service) StatsForRange(ctx context.Context, start time.Time, end time.Time) (domain.SalesStats, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.SalesStats{}, err
	}
	if !end.After(start) {
		return domain.SalesStats{}, fmt.Errorf("%w: range end must be after start", store.ErrInvalidInput)
	}
	sales, err := s.repo.ListSales(ctx, store.SaleFilter{
		CashierID: actor.UserID,
		From:      start.UnixMilli(),
		To:        end.UnixMilli(),
	})
	if err != nil {
		return domain.SalesStats{}, err
	}
	return SummarizeSales(sales), nil
}

func (s *Service) startOfDay(t time.Time) time.Time {
	local := t.In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
}

func (s *Service) TodayStats(ctx context.Context) (domain.TodayStats, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.TodayStats{}, err
	}
	start := s.startOfDay(s.now())
	end := start.AddDate(0, 0, 1)
	day := start.Format(dayLayout)

	key := statsKeyPrefix(actor.UserID) + "today:" + day
	return cachedStats(ctx, s, key, func() (domain.TodayStats, error) {
		stats, err := s.StatsForRange(ctx, start, end)
		if err != nil {
			return domain.TodayStats{}, err
		}
		return domain.TodayStats{SalesStats: stats, Date: day}, nil
	})
}

func (s *Service) MonthlyStats(ctx context.Context) (domain.MonthlyStats, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.MonthlyStats{}, err
	}
	now := s.now().In(s.loc)
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 1, 0)
	month := start.Format("2006-01")

	key := statsKeyPrefix(actor.UserID) + "month:" + month
	return cachedStats(ctx, s, key, func() (domain.MonthlyStats, error) {
		sales, err := s.repo.ListSales(ctx, store.SaleFilter{
			CashierID: actor.UserID,
			From:      start.UnixMilli(),
			To:        end.UnixMilli(),
		})
		if err != nil {
			return domain.MonthlyStats{}, err
		}
		return domain.MonthlyStats{
			SalesStats: SummarizeSales(sales),
			Month:      month,
			DailyStats: DailyBreakdown(sales, s.loc),
		}, nil
	})
}

func (s *Service) RecentSales(ctx context.Context, limit int) ([]domain.SaleDetail, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = defaultRecentLimit
	}
	sales, err := s.repo.ListSales(ctx, store.SaleFilter{CashierID: actor.UserID, Limit: limit})
	if err != nil {
		return nil, err
	}
	return s.withDetails(ctx, sales)
}

// ListTransactions pages through the actor's sales, newest first. Both date
// bounds are inclusive.
func (s *Service) ListTransactions(ctx context.Context, q domain.TransactionQuery) ([]domain.SaleDetail, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	filter, err := transactionFilter(actor.UserID, q.StartDate, q.EndDate)
	if err != nil {
		return nil, err
	}
	if q.PaymentMethod != "" {
		method := strings.ToLower(strings.TrimSpace(q.PaymentMethod))
		if !domain.ValidPaymentMethod(method) {
			return nil, fmt.Errorf("%w: unknown payment method %q", store.ErrInvalidInput, q.PaymentMethod)
		}
		filter.PaymentMethod = method
	}
	if q.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", store.ErrInvalidInput)
	}
	filter.CustomerName = strings.TrimSpace(q.CustomerName)
	filter.Limit = q.Limit
	if filter.Limit < 1 {
		filter.Limit = defaultTransactionLimit
	}
	filter.Offset = q.Offset

	sales, err := s.repo.ListSales(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.withDetails(ctx, sales)
}

func (s *Service) TransactionStats(ctx context.Context, startDate *int64, endDate *int64) (domain.TransactionStats, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.TransactionStats{}, err
	}
	filter, err := transactionFilter(actor.UserID, startDate, endDate)
	if err != nil {
		return domain.TransactionStats{}, err
	}

	key := fmt.Sprintf("%stx:%d:%d", statsKeyPrefix(actor.UserID), filter.From, filter.To)
	return cachedStats(ctx, s, key, func() (domain.TransactionStats, error) {
		sales, err := s.repo.ListSales(ctx, filter)
		if err != nil {
			return domain.TransactionStats{}, err
		}
		return domain.TransactionStats{
			SalesStats:     SummarizeSales(sales),
			PaymentMethods: PaymentMethodBreakdown(sales),
		}, nil
	})
}

func transactionFilter(actorID string, startDate *int64, endDate *int64) (store.SaleFilter, error) {
	filter := store.SaleFilter{CashierID: actorID}
	if startDate != nil {
		if *startDate < 0 {
			return filter, fmt.Errorf("%w: start_date must not be negative", store.ErrInvalidInput)
		}
		filter.From = *startDate
	}
	if endDate != nil {
		if *endDate < 0 {
			return filter, fmt.Errorf("%w: end_date must not be negative", store.ErrInvalidInput)
		}
		filter.To = *endDate + 1
	}
	if startDate != nil && endDate != nil && *endDate < *startDate {
		return filter, fmt.Errorf("%w: end_date is before start_date", store.ErrInvalidInput)
	}
	return filter, nil
}

func (s *Service) withDetails(ctx context.Context, sales []domain.Sale) ([]domain.SaleDetail, error) {
	ids := make([]string, len(sales))
	for i, sale := range sales {
		ids[i] = sale.ID
	}
	lines, err := s.repo.GetSaleLines(ctx, ids)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, 2)
	details := make([]domain.SaleDetail, len(sales))
	for i, sale := range sales {
		sale.Lines = lines[sale.ID]
		details[i] = domain.SaleDetail{Sale: sale, CashierName: s.cashierName(ctx, names, sale.CashierID)}
	}
	return details, nil
}
