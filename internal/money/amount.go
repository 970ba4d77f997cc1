package money

import (
	"github.com/shopspring/decimal"
)

// Amount is a decimal that always serialises with exactly two decimals ("450.00").
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps d as an Amount.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// AmountPtr wraps d and returns its address, for optional fields.
func AmountPtr(d decimal.Decimal) *Amount {
	a := NewAmount(d)
	return &a
}

// MarshalJSON renders the amount as a quoted fixed-point string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.StringFixed(2) + `"`), nil
}

// Fixed returns the amount as a two-decimal string without currency symbol.
func (a Amount) Fixed() string {
	return a.StringFixed(2)
}
