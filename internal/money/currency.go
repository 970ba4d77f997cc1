package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is the closed set of currencies a line item may be priced in.
type Currency string

const (
	// USD is the default currency for untagged or unknown line items.
	USD Currency = "USD"
	// MXN is the peso bucket.
	MXN Currency = "MXN"
)

// ParseCurrency normalises free-form tags ("usd", " MXN ", "") into the enum.
// Anything that is not recognisably MXN is treated as USD.
func ParseCurrency(tag string) Currency {
	switch strings.ToUpper(strings.TrimSpace(tag)) {
	case "MXN", "MXP", "PESOS", "MN":
		return MXN
	default:
		return USD
	}
}

// Other returns the opposite currency of the pair.
func (c Currency) Other() Currency {
	if c == MXN {
		return USD
	}
	return MXN
}

// Valid reports whether c is one of the supported values.
func (c Currency) Valid() bool {
	return c == USD || c == MXN
}

func (c Currency) String() string { return string(c) }

var hundred = decimal.NewFromInt(100)

// Round2 rounds half away from zero to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Truncate2 drops everything past the second decimal: floor(d*100)/100.
func Truncate2(d decimal.Decimal) decimal.Decimal {
	return d.Mul(hundred).Floor().Div(hundred)
}

// Format renders an amount with thousands separators and two decimals, e.g. "$1,923.00".
func Format(d decimal.Decimal) string {
	fixed := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}
	intPart, frac, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + "." + frac
}
