package httpapi

import (
	"bytes"
	"html/template"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
	"go.uber.org/zap"

	"tokokasir/backend/internal/domain"
)

// formatRupiah renders an integer amount with dot thousand separators.
func formatRupiah(amount int64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var out []byte
	for i := range len(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, digits[i])
	}
	if negative {
		return "-Rp " + string(out)
	}
	return "Rp " + string(out)
}

type receiptView struct {
	domain.Receipt
	PrintedAt string
}

// receiptHTMLTmpl auto-escapes every user-controlled field.
var receiptHTMLTmpl = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"rupiah": formatRupiah,
}).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Struk {{.Sale.ID}}</title>
  <style>
    body { font-family: monospace; margin: 16px; max-width: 320px; }
    table { width: 100%; border-collapse: collapse; }
    td { padding: 2px 0; font-size: 12px; vertical-align: top; }
    .num { text-align: right; }
    .center { text-align: center; }
    hr { border: none; border-top: 1px dashed #000; }
  </style>
</head>
<body>
  <div class="center">
    <strong>{{if .Settings.BusinessName}}{{.Settings.BusinessName}}{{else}}Toko{{end}}</strong>
    {{if .Settings.BusinessAddress}}<div>{{.Settings.BusinessAddress}}</div>{{end}}
    {{if .Settings.BusinessPhone}}<div>{{.Settings.BusinessPhone}}</div>{{end}}
  </div>
  <hr />
  <div>No: {{.Sale.ID}}</div>
  <div>Waktu: {{.PrintedAt}}</div>
  <div>Kasir: {{.Sale.CashierName}}</div>
  {{if .Sale.CustomerName}}<div>Pelanggan: {{.Sale.CustomerName}}</div>{{end}}
  <hr />
  <table>
    {{range .Sale.Lines}}<tr><td>{{.ProductName}}<br />{{.Quantity}} x {{rupiah .UnitPrice}}</td><td class="num">{{rupiah .LineRevenue}}</td></tr>{{end}}
  </table>
  <hr />
  <table>
    <tr><td><strong>Total</strong></td><td class="num"><strong>{{rupiah .Sale.TotalRevenue}}</strong></td></tr>
    <tr><td>Pembayaran</td><td class="num">{{.Sale.PaymentMethod}}</td></tr>
  </table>
  {{if .QRImageURL}}<div class="center"><img src="{{.QRImageURL}}" alt="QR pembayaran" width="160" /></div>{{end}}
  <p class="center">Terima kasih</p>
</body>
</html>
`))

func receiptToPrintableHTML(receipt domain.Receipt, loc *time.Location) string {
	view := receiptView{
		Receipt:   receipt,
		PrintedAt: time.UnixMilli(receipt.Sale.CreatedAt).In(loc).Format("02/01/2006 15:04"),
	}
	var buf bytes.Buffer
	if err := receiptHTMLTmpl.Execute(&buf, view); err != nil {
		zap.S().Errorw("receipt rendering failed", "sale_id", receipt.Sale.ID, "error", err)
		return "<!doctype html><html><body><p>Receipt rendering error.</p></body></html>"
	}
	return buf.String()
}

type transactionCSVRow struct {
	SaleID        string `csv:"sale_id"`
	CreatedAt     string `csv:"created_at"`
	Cashier       string `csv:"cashier"`
	Customer      string `csv:"customer_name"`
	PaymentMethod string `csv:"payment_method"`
	Items         int    `csv:"items"`
	TotalRevenue  int64  `csv:"total_revenue"`
	TotalCost     int64  `csv:"total_cost"`
	TotalProfit   int64  `csv:"total_profit"`
}

func transactionsToCSV(sales []domain.SaleDetail, loc *time.Location) ([]byte, error) {
	rows := make([]*transactionCSVRow, 0, len(sales))
	for _, sale := range sales {
		items := 0
		for _, line := range sale.Lines {
			items += line.Quantity
		}
		rows = append(rows, &transactionCSVRow{
			SaleID:        sale.ID,
			CreatedAt:     time.UnixMilli(sale.CreatedAt).In(loc).Format(time.RFC3339),
			Cashier:       sale.CashierName,
			Customer:      sale.CustomerName,
			PaymentMethod: sale.PaymentMethod,
			Items:         items,
			TotalRevenue:  sale.TotalRevenue,
			TotalCost:     sale.TotalCost,
			TotalProfit:   sale.TotalProfit,
		})
	}
	var buf bytes.Buffer
	if err := gocsv.Marshal(rows, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
