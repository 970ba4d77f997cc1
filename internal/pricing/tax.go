package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-importadora/internal/money"
)

// TaxRate is the fixed VAT rate embedded in every price.
var TaxRate = decimal.RequireFromString("0.16")

var taxDivisor = decimal.NewFromInt(1).Add(TaxRate)

// TaxProfile combines the per-request invoice toggle with the per-client disclosure flag.
type TaxProfile struct {
	WantsInvoice      bool `json:"wantsInvoice"`
	DisclosureEnabled bool `json:"disclosureEnabled"`
}

// Discloses reports whether totals must be broken down into subtotal and tax.
// The client flag only counts when an invoice was requested.
func (p TaxProfile) Discloses() bool {
	return p.WantsInvoice && p.DisclosureEnabled
}

// Breakdown is the display-only decomposition of a charged bucket.
type Breakdown struct {
	Currency money.Currency `json:"currency"`
	Subtotal money.Amount   `json:"subtotal"`
	Tax      money.Amount   `json:"tax"`
	Total    money.Amount   `json:"total"`
}

// Decompose splits a tax-inclusive total. subtotal + tax always equals total.
func Decompose(c money.Currency, total decimal.Decimal) Breakdown {
	total = money.Round2(total)
	subtotal := money.Round2(total.Div(taxDivisor))
	tax := money.Round2(total.Sub(subtotal))
	return Breakdown{
		Currency: c,
		Subtotal: money.NewAmount(subtotal),
		Tax:      money.NewAmount(tax),
		Total:    money.NewAmount(total),
	}
}
