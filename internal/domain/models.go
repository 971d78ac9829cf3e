package domain

const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentTransfer = "transfer"
)

// ValidPaymentMethod reports whether method is one of the accepted tender types.
func ValidPaymentMethod(method string) bool {
	switch method {
	case PaymentCash, PaymentCard, PaymentTransfer:
		return true
	}
	return false
}

type Actor struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type UserAccount struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"`
	CreatedAt    int64  `json:"created_at"`
}

// DisplayName is what receipts and transaction lists show for a cashier.
func (u UserAccount) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// Product timestamps are epoch milliseconds. An empty OwnerID marks a shared
// catalog entry.
type Product struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	UnitPrice     int64  `json:"unit_price"`
	UnitCost      *int64 `json:"unit_cost,omitempty"`
	StockQuantity int    `json:"stock_quantity"`
	Category      string `json:"category"`
	IsActive      bool   `json:"is_active"`
	OwnerID       string `json:"owner_id,omitempty"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
}

// CanAccess reports whether actorID may see or mutate the product.
func (p Product) CanAccess(actorID string) bool {
	return p.OwnerID == "" || p.OwnerID == actorID
}

type ProductCreateRequest struct {
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	UnitCost  *int64 `json:"unit_cost,omitempty"`
	Stock     int    `json:"stock"`
	Category  string `json:"category"`
}

type ProductUpdateRequest struct {
	Name      *string `json:"name,omitempty"`
	UnitPrice *int64  `json:"unit_price,omitempty"`
	UnitCost  *int64  `json:"unit_cost,omitempty"`
	Stock     *int    `json:"stock,omitempty"`
	Category  *string `json:"category,omitempty"`
}

type StockAdjustRequest struct {
	Delta int `json:"delta"`
}

// SaleLine carries copies of the product fields at sale time. Line totals are
// never recomputed from the live product.
type SaleLine struct {
	ID          string `json:"id"`
	SaleID      string `json:"sale_id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	UnitCost    *int64 `json:"unit_cost,omitempty"`
	LineRevenue int64  `json:"line_revenue"`
	LineCost    int64  `json:"line_cost"`
}

type Sale struct {
	ID            string     `json:"id"`
	CreatedAt     int64      `json:"created_at"`
	TotalRevenue  int64      `json:"total_revenue"`
	TotalCost     int64      `json:"total_cost"`
	TotalProfit   int64      `json:"total_profit"`
	PaymentMethod string     `json:"payment_method"`
	CashierID     string     `json:"cashier_id"`
	CustomerName  string     `json:"customer_name,omitempty"`
	Lines         []SaleLine `json:"items,omitempty"`
}

type SaleDetail struct {
	Sale
	CashierName string `json:"cashier_name"`
}

type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CommitSaleRequest struct {
	Items         []CartItem `json:"items"`
	PaymentMethod string     `json:"payment_method"`
	CustomerName  string     `json:"customer_name,omitempty"`
}

type CommitSaleResponse struct {
	SaleID       string `json:"sale_id"`
	TotalRevenue int64  `json:"total_revenue"`
	TotalCost    int64  `json:"total_cost"`
	TotalProfit  int64  `json:"total_profit"`
}

type SalesStats struct {
	TotalRevenue       int64   `json:"total_revenue"`
	TotalCost          int64   `json:"total_cost"`
	TotalProfit        int64   `json:"total_profit"`
	TotalTransactions  int     `json:"total_transactions"`
	AverageTransaction float64 `json:"average_transaction"`
}

type DailyStat struct {
	Revenue      int64 `json:"revenue"`
	Cost         int64 `json:"cost"`
	Profit       int64 `json:"profit"`
	Transactions int   `json:"transactions"`
}

type MonthlyStats struct {
	SalesStats
	Month      string               `json:"month"`
	DailyStats map[string]DailyStat `json:"daily_stats"`
}

type TodayStats struct {
	SalesStats
	Date string `json:"date"`
}

type TransactionStats struct {
	SalesStats
	PaymentMethods map[string]int `json:"payment_methods"`
}

// TransactionQuery bounds are epoch milliseconds; both ends are inclusive.
type TransactionQuery struct {
	StartDate     *int64
	EndDate       *int64
	PaymentMethod string
	CustomerName  string
	Limit         int
	Offset        int
}

type BusinessSettings struct {
	OwnerID         string `json:"owner_id"`
	BusinessName    string `json:"business_name"`
	BusinessAddress string `json:"business_address"`
	BusinessPhone   string `json:"business_phone"`
	QRImageID       string `json:"qr_image_id,omitempty"`
	UpdatedAt       int64  `json:"updated_at,omitempty"`
}

type SettingsUpdateRequest struct {
	BusinessName    string  `json:"business_name"`
	BusinessAddress string  `json:"business_address"`
	BusinessPhone   string  `json:"business_phone"`
	QRImageID       *string `json:"qr_image_id,omitempty"`
}

type UploadURLResponse struct {
	UploadURL string `json:"upload_url"`
	StorageID string `json:"storage_id"`
	ExpiresAt int64  `json:"expires_at"`
}

type Receipt struct {
	Settings   BusinessSettings `json:"settings"`
	Sale       SaleDetail       `json:"sale"`
	QRImageURL string           `json:"qr_image_url,omitempty"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
	User        Actor  `json:"user"`
}
