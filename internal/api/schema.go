package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dynatos/pos-terminal/internal/domain"
)

// decodeObject unmarshals a JSON object body. Anything that is not an object
// is rejected with ErrUnexpectedShape; an empty body or null reports empty=true.
func decodeObject(body []byte, dst any) (empty bool, err error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true, nil
	}
	if trimmed[0] != '{' {
		return false, fmt.Errorf("%w: expected object, got %.20q", ErrUnexpectedShape, trimmed)
	}
	if err := json.Unmarshal(trimmed, dst); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	return false, nil
}

// decodeList reads the {"items": [...]} envelope used by every list endpoint.
// A missing items key is an empty list.
func decodeList[T any](body []byte) ([]T, error) {
	var envelope struct {
		Items []T `json:"items"`
	}
	if _, err := decodeObject(body, &envelope); err != nil {
		return nil, err
	}
	if envelope.Items == nil {
		return []T{}, nil
	}
	return envelope.Items, nil
}

// money renders an amount as a bare JSON number.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// flexString accepts either a JSON string or a JSON number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type drawerDTO struct {
	ID            int64           `json:"id"`
	OpeningAmount decimal.Decimal `json:"opening_amount"`
	OpenedAt      string          `json:"opened_at"`
	Status        string          `json:"status"`
}

func (d drawerDTO) toDomain() domain.CashDrawer {
	status := domain.DrawerStatus(strings.ToUpper(d.Status))
	if status == "" {
		status = domain.DrawerStatusOpen
	}
	return domain.CashDrawer{
		ID:            d.ID,
		OpeningAmount: d.OpeningAmount,
		OpenedAt:      parseTime(d.OpenedAt),
		Status:        status,
	}
}

type summaryDTO struct {
	OpeningAmount decimal.Decimal `json:"opening_amount"`
	TotalSales    decimal.Decimal `json:"total_sales"`
	CashTotal     decimal.Decimal `json:"cash_total"`
	QRTotal       decimal.Decimal `json:"qr_total"`
	FinalTotal    decimal.Decimal `json:"final_total"`
}

type productDTO struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	SalePrice    decimal.Decimal `json:"sale_price"`
	CurrentStock int             `json:"current_stock"`
	CategoryID   int64           `json:"category_id"`
}

type categoryDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type saleDTO struct {
	ID         int64           `json:"id"`
	SaleNumber flexString      `json:"sale_number"`
	Total      decimal.Decimal `json:"total"`
	Status     string          `json:"status"`
}

type saleEnvelope struct {
	Sale *saleDTO `json:"sale"`
}

type userDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type loginResponse struct {
	Token string   `json:"token"`
	User  *userDTO `json:"user"`
}
