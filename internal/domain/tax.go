package domain

import "github.com/shopspring/decimal"

// TaxDivisor encodes the fixed 19% tax included in every price.
var TaxDivisor = decimal.RequireFromString("1.19")

type TaxBreakdown struct {
	Base  decimal.Decimal `json:"base"`
	Tax   decimal.Decimal `json:"tax"`
	Total decimal.Decimal `json:"total"`
}

// SplitTax splits a tax-inclusive total into base and tax. Presentation only;
// the result is never sent to the backend.
func SplitTax(total decimal.Decimal) TaxBreakdown {
	tax := total.Sub(total.Div(TaxDivisor))
	return TaxBreakdown{
		Base:  total.Sub(tax),
		Tax:   tax,
		Total: total,
	}
}
