package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DrawerStatus string

const (
	DrawerStatusOpen   DrawerStatus = "OPEN"
	DrawerStatusClosed DrawerStatus = "CLOSED"
)

// CashDrawer is a till session bounded by an open and a close event.
// The terminal never edits it; it only asks the backend to open or close one.
type CashDrawer struct {
	ID            int64           `json:"id"`
	OpeningAmount decimal.Decimal `json:"opening_amount"`
	OpenedAt      time.Time       `json:"opened_at"`
	Status        DrawerStatus    `json:"status"`
}

// DrawerState is what the cashier area shows.
type DrawerState string

const (
	DrawerStateLoading DrawerState = "LOADING"
	DrawerStateNone    DrawerState = "NO_DRAWER"
	DrawerStateOpen    DrawerState = "DRAWER_OPEN"
)

var drawerTransitions = map[DrawerState][]DrawerState{
	DrawerStateLoading: {DrawerStateNone, DrawerStateOpen},
	DrawerStateNone:    {DrawerStateLoading},
	DrawerStateOpen:    {DrawerStateLoading},
}

// CanTransitionTo reports whether the lifecycle may move from s to next.
// Every move between NO_DRAWER and DRAWER_OPEN goes through LOADING.
func (s DrawerState) CanTransitionTo(next DrawerState) bool {
	for _, allowed := range drawerTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// String representation (for logging)
func (s DrawerState) String() string {
	return string(s)
}

// DrawerSummary is the end-of-shift reconciliation fetched before closing.
type DrawerSummary struct {
	DrawerID      int64           `json:"drawer_id"`
	OpeningAmount decimal.Decimal `json:"opening_amount"`
	TotalSales    decimal.Decimal `json:"total_sales"`
	CashTotal     decimal.Decimal `json:"cash_total"`
	QRTotal       decimal.Decimal `json:"qr_total"`
	FinalTotal    decimal.Decimal `json:"final_total"`
}

// ExpectedCash is the cash that should physically be in the till.
func (s DrawerSummary) ExpectedCash() decimal.Decimal {
	return s.OpeningAmount.Add(s.CashTotal)
}
