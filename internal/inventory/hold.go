package inventory

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-importadora/internal/pricing"
)

// HoldMinutes is the time-to-live of every inventory hold.
const HoldMinutes = 120

var presentationPattern = regexp.MustCompile(`^\s*(\d+(?:[.,]\d+)?)\s*([A-Za-z]+)\s*$`)

// SizeValue is the numeric part of a presentation. When the presentation could
// not be parsed it carries the original text instead.
type SizeValue struct {
	Number *decimal.Decimal
	Raw    string
}

// Parsed reports whether a numeric size was recognised.
func (v SizeValue) Parsed() bool { return v.Number != nil }

func (v SizeValue) String() string {
	if v.Number != nil {
		return v.Number.String()
	}
	return v.Raw
}

// MarshalJSON emits a JSON number when parsed and the raw string otherwise.
func (v SizeValue) MarshalJSON() ([]byte, error) {
	if v.Number != nil {
		return []byte(v.Number.String()), nil
	}
	return json.Marshal(v.Raw)
}

// UnmarshalJSON accepts either representation.
func (v *SizeValue) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*v = SizeValue{Raw: raw}
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return err
	}
	*v = SizeValue{Number: &d, Raw: string(data)}
	return nil
}

// ParsePresentation splits a compact size token like "10kg" or "2,5 lb".
// It never fails: unrecognised input is passed through with an empty unit.
func ParsePresentation(presentation string) (SizeValue, string) {
	m := presentationPattern.FindStringSubmatch(presentation)
	if m == nil {
		return SizeValue{Raw: presentation}, ""
	}
	d, err := decimal.NewFromString(strings.Replace(m[1], ",", ".", 1))
	if err != nil {
		return SizeValue{Raw: presentation}, ""
	}
	return SizeValue{Number: &d, Raw: m[1]}, m[2]
}

// HoldLine is one reserved cart line.
type HoldLine struct {
	ProductName string    `json:"productName"`
	SizeValue   SizeValue `json:"sizeValue"`
	SizeUnit    string    `json:"sizeUnit"`
	Quantity    int       `json:"quantity"`
}

// HoldRequest is sent to the inventory service once the order exists.
type HoldRequest struct {
	OrderID     string     `json:"orderId"`
	HoldMinutes int        `json:"holdMinutes"`
	Lines       []HoldLine `json:"lines"`
}

// BuildHold emits one line per cart item, preserving order.
func BuildHold(orderID string, items []pricing.LineItem) HoldRequest {
	lines := make([]HoldLine, 0, len(items))
	for _, it := range items {
		value, unit := ParsePresentation(it.Presentation)
		lines = append(lines, HoldLine{
			ProductName: it.ProductName,
			SizeValue:   value,
			SizeUnit:    unit,
			Quantity:    it.Quantity,
		})
	}
	return HoldRequest{OrderID: orderID, HoldMinutes: HoldMinutes, Lines: lines}
}
