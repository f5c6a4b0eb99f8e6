package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GenericCustomer is sent as customer_name when no named customer is attached.
const GenericCustomer = "CLIENTE GENERAL"

type PaymentMethod string

const (
	PaymentCash       PaymentMethod = "CASH"
	PaymentElectronic PaymentMethod = "QR"
)

// CartLine is one product in the in-progress sale. A product appears in at
// most one line; Quantity is cumulative.
type CartLine struct {
	ProductID  int64           `json:"product_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
	StockAtAdd int             `json:"stock_at_add"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// SaleItem is what the backend receives: ids and quantities only, never prices.
type SaleItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type SaleRequest struct {
	CashDrawerID int64      `json:"cash_drawer_id"`
	CustomerName string     `json:"customer_name"`
	Items        []SaleItem `json:"items"`
	Preview      bool       `json:"preview,omitempty"`
}

// SalePreview is a provisional server-priced total for one cart version.
type SalePreview struct {
	Version uint64          `json:"version"`
	Total   decimal.Decimal `json:"total"`
}

type Sale struct {
	ID         int64           `json:"id"`
	SaleNumber string          `json:"sale_number"`
	Total      decimal.Decimal `json:"total"`
	Status     string          `json:"status"`
}

// Receipt is a print-only projection of a completed sale.
type Receipt struct {
	StoreName  string          `json:"store_name"`
	StoreTaxID string          `json:"store_tax_id,omitempty"`
	IssuedAt   time.Time       `json:"issued_at"`
	SaleNumber string          `json:"sale_number"`
	Cashier    string          `json:"cashier"`
	Customer   string          `json:"customer,omitempty"`
	Lines      []CartLine      `json:"lines"`
	Tax        TaxBreakdown    `json:"tax"`
	Method     PaymentMethod   `json:"method"`
	Received   decimal.Decimal `json:"received"`
	Change     decimal.Decimal `json:"change"`
}

func (r Receipt) Total() decimal.Decimal {
	return r.Tax.Total
}
