package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tokokasir/backend/internal/domain"
	"tokokasir/backend/internal/store"
	"tokokasir/backend/internal/xid"
)

type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
}

// New opens the pool and pings it. lockTimeout bounds how long a sale commit
// waits on a row lock held by a concurrent commit before reporting a conflict.
func New(ctx context.Context, databaseURL string, lockTimeout time.Duration) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &Store{db: db, lockTimeout: lockTimeout}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const productColumns = `id, name, unit_price, unit_cost, stock_quantity, category, is_active, owner_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		p       domain.Product
		cost    sql.NullInt64
		ownerID sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &p.UnitPrice, &cost, &p.StockQuantity, &p.Category, &p.IsActive, &ownerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.UnitCost = int64Ptr(cost)
	p.OwnerID = ownerID.String
	return &p, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return p, err
}

func (s *Store) ListProducts(ctx context.Context, filter store.ProductFilter) ([]domain.Product, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 2)
	if filter.ActiveOnly {
		where = append(where, "is_active = true")
	}
	if filter.VisibleTo != "" {
		args = append(args, filter.VisibleTo)
		where = append(where, fmt.Sprintf("(owner_id IS NULL OR owner_id = $%d)", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY category, name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.UnitPrice < 0 || product.StockQuantity < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UnixMilli()
	if product.CreatedAt == 0 {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, product.ID, product.Name, product.UnitPrice, nullInt64(product.UnitCost), product.StockQuantity,
		product.Category, product.IsActive, nullIfEmpty(product.OwnerID), product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrAlreadyExists
		}
		return nil, mapCommitError(err)
	}
	return &product, nil
}

// UpdateProduct writes fields and the stock delta in one conditional
// statement, so a delta that would go negative changes nothing.
func (s *Store) UpdateProduct(ctx context.Context, product domain.Product, stockDelta int) (*domain.Product, error) {
	updated, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, unit_price = $3, unit_cost = $4, category = $5, is_active = $6, updated_at = $7,
			stock_quantity = stock_quantity + $8
		WHERE id = $1 AND stock_quantity + $8 >= 0
		RETURNING `+productColumns,
		product.ID, product.Name, product.UnitPrice, nullInt64(product.UnitCost), product.Category, product.IsActive,
		time.Now().UnixMilli(), stockDelta))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	current, err := s.GetProduct(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	return nil, &store.StockError{ProductID: current.ID, ProductName: current.Name, Requested: -stockDelta, Available: current.StockQuantity}
}

func (s *Store) AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error) {
	updated, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $2, updated_at = $3
		WHERE id = $1 AND stock_quantity + $2 >= 0
		RETURNING `+productColumns,
		id, delta, time.Now().UnixMilli()))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	current, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, &store.StockError{ProductID: current.ID, ProductName: current.Name, Requested: -delta, Available: current.StockQuantity}
}

// CommitSale runs the decrement-and-record in one transaction. Each product is
// decremented with a conditional update, so a commit that lost a race sees zero
// affected rows and rolls back. Rows are locked in product id order.
func (s *Store) CommitSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
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
	productIDs := make([]string, 0, len(decrements))
	for id := range decrements {
		productIDs = append(productIDs, id)
	}
	sort.Strings(productIDs)

	now := time.Now().UnixMilli()
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt == 0 {
		sale.CreatedAt = now
	}

	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	if _, err := pgTx.ExecContext(ctx, `SELECT set_config('lock_timeout', $1, true)`, fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())); err != nil {
		return nil, err
	}

	for _, productID := range productIDs {
		res, err := pgTx.ExecContext(ctx, `
			UPDATE products
			SET stock_quantity = stock_quantity - $2, updated_at = $3
			WHERE id = $1 AND is_active AND stock_quantity >= $2
		`, productID, decrements[productID], now)
		if err != nil {
			return nil, mapCommitError(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			var exists bool
			if err := pgTx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1 AND is_active)`, productID).Scan(&exists); err != nil {
				return nil, mapCommitError(err)
			}
			if !exists {
				return nil, store.ErrNotFound
			}
			return nil, store.ErrConflict
		}
	}

	if _, err := pgTx.ExecContext(ctx, `
		INSERT INTO sales (id, created_at, total_revenue, total_cost, total_profit, payment_method, cashier_id, customer_name)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, sale.ID, sale.CreatedAt, sale.TotalRevenue, sale.TotalCost, sale.TotalProfit, sale.PaymentMethod, sale.CashierID, nullIfEmpty(sale.CustomerName)); err != nil {
		return nil, mapCommitError(err)
	}

	lines := make([]domain.SaleLine, len(sale.Lines))
	for i, line := range sale.Lines {
		if line.ID == "" {
			line.ID = xid.New("line")
		}
		line.SaleID = sale.ID
		if _, err := pgTx.ExecContext(ctx, `
			INSERT INTO sale_lines (id, sale_id, line_no, product_id, product_name, quantity, unit_price, unit_cost, line_revenue, line_cost)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, line.ID, line.SaleID, i, line.ProductID, line.ProductName, line.Quantity, line.UnitPrice, nullInt64(line.UnitCost), line.LineRevenue, line.LineCost); err != nil {
			return nil, mapCommitError(err)
		}
		lines[i] = line
	}

	if err := pgTx.Commit(); err != nil {
		return nil, mapCommitError(err)
	}

	sale.Lines = lines
	return &sale, nil
}

const saleColumns = `id, created_at, total_revenue, total_cost, total_profit, payment_method, cashier_id, customer_name`

func scanSale(row rowScanner) (*domain.Sale, error) {
	var (
		sale     domain.Sale
		customer sql.NullString
	)
	if err := row.Scan(&sale.ID, &sale.CreatedAt, &sale.TotalRevenue, &sale.TotalCost, &sale.TotalProfit, &sale.PaymentMethod, &sale.CashierID, &customer); err != nil {
		return nil, err
	}
	sale.CustomerName = customer.String
	return &sale, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	lines, err := s.GetSaleLines(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	sale.Lines = lines[id]
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter store.SaleFilter) ([]domain.Sale, error) {
	where := make([]string, 0, 5)
	args := make([]any, 0, 7)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.CashierID != "" {
		add("cashier_id = $%d", filter.CashierID)
	}
	if filter.From != 0 {
		add("created_at >= $%d", filter.From)
	}
	if filter.To != 0 {
		add("created_at < $%d", filter.To)
	}
	if filter.PaymentMethod != "" {
		add("payment_method = $%d", filter.PaymentMethod)
	}
	if filter.CustomerName != "" {
		add("customer_name = $%d", filter.CustomerName)
	}

	query := `SELECT ` + saleColumns + ` FROM sales`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 32)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) GetSaleLines(ctx context.Context, saleIDs []string) (map[string][]domain.SaleLine, error) {
	result := make(map[string][]domain.SaleLine, len(saleIDs))
	if len(saleIDs) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, product_name, quantity, unit_price, unit_cost, line_revenue, line_cost
		FROM sale_lines
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, line_no
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			line domain.SaleLine
			cost sql.NullInt64
		)
		if err := rows.Scan(&line.ID, &line.SaleID, &line.ProductID, &line.ProductName, &line.Quantity, &line.UnitPrice, &cost, &line.LineRevenue, &line.LineCost); err != nil {
			return nil, err
		}
		line.UnitCost = int64Ptr(cost)
		result[line.SaleID] = append(result[line.SaleID], line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) GetSettings(ctx context.Context, ownerID string) (*domain.BusinessSettings, error) {
	var (
		settings domain.BusinessSettings
		qr       sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT owner_id, business_name, business_address, business_phone, qr_image_id, updated_at
		FROM business_settings
		WHERE owner_id = $1
	`, ownerID).Scan(&settings.OwnerID, &settings.BusinessName, &settings.BusinessAddress, &settings.BusinessPhone, &qr, &settings.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	settings.QRImageID = qr.String
	return &settings, nil
}

func (s *Store) UpsertSettings(ctx context.Context, settings domain.BusinessSettings) (*domain.BusinessSettings, error) {
	if settings.OwnerID == "" {
		return nil, store.ErrInvalidInput
	}
	settings.UpdatedAt = time.Now().UnixMilli()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO business_settings (owner_id, business_name, business_address, business_phone, qr_image_id, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (owner_id) DO UPDATE SET
			business_name = EXCLUDED.business_name,
			business_address = EXCLUDED.business_address,
			business_phone = EXCLUDED.business_phone,
			qr_image_id = EXCLUDED.qr_image_id,
			updated_at = EXCLUDED.updated_at
	`, settings.OwnerID, settings.BusinessName, settings.BusinessAddress, settings.BusinessPhone, nullIfEmpty(settings.QRImageID), settings.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || user.PasswordHash == "" {
		return store.ErrInvalidInput
	}
	if user.ID == "" {
		user.ID = xid.New("user")
	}
	if user.CreatedAt == 0 {
		user.CreatedAt = time.Now().UnixMilli()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (id, username, name, password_hash, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.ID, user.Username, user.Name, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	return s.getUser(ctx, "username", strings.ToLower(strings.TrimSpace(username)))
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.UserAccount, error) {
	return s.getUser(ctx, "id", id)
}

func (s *Store) getUser(ctx context.Context, column string, value string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, name, password_hash, created_at
		FROM app_users
		WHERE `+column+` = $1
	`, value).Scan(&user.ID, &user.Username, &user.Name, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// mapCommitError turns lock waits, serialization failures and deadlocks into
// ErrConflict, and a dangling owner or cashier reference into ErrNotFound.
func mapCommitError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.Code)
		case "23503":
			return fmt.Errorf("%w: %s", store.ErrNotFound, pgErr.ConstraintName)
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullInt64(val *int64) any {
	if val == nil {
		return nil
	}
	return *val
}

func int64Ptr(val sql.NullInt64) *int64 {
	if !val.Valid {
		return nil
	}
	v := val.Int64
	return &v
}
