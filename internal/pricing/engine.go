package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-importadora/internal/money"
)

// ErrInvalidItem is returned when a line item violates quantity or price constraints.
var ErrInvalidItem = errors.New("pricing: invalid line item")

// LineItem describes a cart line priced in its native currency.
type LineItem struct {
	ProductName    string          `json:"productName"`
	Presentation   string          `json:"presentation"`
	PackagingLabel string          `json:"packagingLabel,omitempty"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	Currency       money.Currency  `json:"currency"`
}

// Validate enforces quantity > 0 and unitPrice > 0.
func (it LineItem) Validate() error {
	if strings.TrimSpace(it.ProductName) == "" {
		return fmt.Errorf("%w: product name is required", ErrInvalidItem)
	}
	if it.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidItem)
	}
	if !it.UnitPrice.IsPositive() {
		return fmt.Errorf("%w: unit price must be positive", ErrInvalidItem)
	}
	return nil
}

// Total returns quantity × unitPrice.
func (it LineItem) Total() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Buckets holds the native-currency subtotals of a cart.
type Buckets struct {
	USD decimal.Decimal
	MXN decimal.Decimal
}

// Native returns the subtotal for the given currency.
func (b Buckets) Native(c money.Currency) decimal.Decimal {
	if c == money.MXN {
		return b.MXN
	}
	return b.USD
}

// Mixed reports whether both currencies carry a positive amount.
func (b Buckets) Mixed() bool {
	return b.USD.IsPositive() && b.MXN.IsPositive()
}

// Bucket sums line totals per native currency. Currency tags are normalised
// first so "usd", "" and unknown values all land in the USD bucket.
func Bucket(items []LineItem) Buckets {
	out := Buckets{USD: decimal.Zero, MXN: decimal.Zero}
	for _, it := range items {
		if it.Quantity <= 0 || !it.UnitPrice.IsPositive() {
			continue
		}
		switch money.ParseCurrency(string(it.Currency)) {
		case money.MXN:
			out.MXN = out.MXN.Add(it.Total())
		default:
			out.USD = out.USD.Add(it.Total())
		}
	}
	return out
}

// Normalize returns a copy of items with currency tags folded into the closed enum.
func Normalize(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, it := range items {
		it.Currency = money.ParseCurrency(string(it.Currency))
		it.ProductName = strings.TrimSpace(it.ProductName)
		out[i] = it
	}
	return out
}

// TruncateRate cuts a reference rate to two decimals without rounding up.
func TruncateRate(rate decimal.Decimal) decimal.Decimal {
	return money.Truncate2(rate)
}

// Combine expresses both buckets in the preferred currency using the already
// truncated rate. ok is false when a conversion is required and no rate is
// available; the returned total is then meaningless.
func Combine(b Buckets, preferred money.Currency, rate *decimal.Decimal) (total decimal.Decimal, ok bool) {
	usable := rate != nil && rate.IsPositive()
	switch preferred {
	case money.MXN:
		if !b.USD.IsPositive() {
			return money.Round2(b.MXN), true
		}
		if !usable {
			return decimal.Zero, false
		}
		return money.Round2(b.MXN.Add(b.USD.Mul(*rate))), true
	default:
		if !b.MXN.IsPositive() {
			return money.Round2(b.USD), true
		}
		if !usable {
			return decimal.Zero, false
		}
		return money.Round2(b.USD.Add(b.MXN.Div(*rate))), true
	}
}
