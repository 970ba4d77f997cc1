package settlement

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-importadora/internal/credit"
	"github.com/noah-isme/backend-importadora/internal/money"
	"github.com/noah-isme/backend-importadora/internal/pricing"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Unit prices are stored as numeric(14, 4).
const (
	unitPriceScale  = 4
	unitPriceDigits = 10
)

var maxUnitPrice = decimal.New(1, unitPriceDigits)

// LineItemRequest is the wire form of a cart line.
type LineItemRequest struct {
	ProductName    string          `json:"productName" validate:"required,max=200"`
	Presentation   string          `json:"presentation" validate:"max=60"`
	PackagingLabel string          `json:"packagingLabel" validate:"max=120"`
	Quantity       int             `json:"quantity" validate:"gt=0"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	Currency       string          `json:"currency" validate:"omitempty,max=8"`
}

// SessionRequest is the body shared by quote, document and order endpoints.
type SessionRequest struct {
	ClientName        string            `json:"clientName" validate:"max=200"`
	Items             []LineItemRequest `json:"items" validate:"required,min=1,max=500,dive"`
	PreferredCurrency string            `json:"preferredCurrency" validate:"omitempty,oneof=USD MXN usd mxn"`
	WantsInvoice      bool              `json:"wantsInvoice"`
	Payment           string            `json:"payment" validate:"omitempty,max=16"`
	Shipping          Shipping          `json:"shipping"`
	Billing           Billing           `json:"billing"`
}

// FieldError describes one rejected field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// RequestError carries field-level details for the HTTP layer.
type RequestError struct {
	Fields []FieldError
	Err    error
}

func (e *RequestError) Error() string { return e.Err.Error() }

func (e *RequestError) Unwrap() error { return e.Err }

// DecodeSession reads, validates and converts a session body. fallbackClient is
// used when the body does not name the client (e.g. the gateway header).
func DecodeSession(body io.Reader, fallbackClient string) (Session, error) {
	var req SessionRequest
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return Session{}, &RequestError{Err: fmt.Errorf("%w: invalid payload: %v", ErrInvalidInput, err)}
	}
	return req.ToSession(fallbackClient)
}

// ToSession validates the request and builds the session.
func (req SessionRequest) ToSession(fallbackClient string) (Session, error) {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		out := &RequestError{Err: fmt.Errorf("%w: validation failed", ErrInvalidInput)}
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				out.Fields = append(out.Fields, FieldError{Field: fe.Namespace(), Rule: fe.Tag()})
			}
		}
		return Session{}, out
	}
	items := make([]pricing.LineItem, 0, len(req.Items))
	for i, it := range req.Items {
		if rule, msg := checkUnitPrice(it.UnitPrice); rule != "" {
			return Session{}, &RequestError{
				Fields: []FieldError{{Field: fmt.Sprintf("SessionRequest.Items[%d].UnitPrice", i), Rule: rule}},
				Err:    fmt.Errorf("%w: %s", ErrInvalidInput, msg),
			}
		}
		items = append(items, pricing.LineItem{
			ProductName:    strings.TrimSpace(it.ProductName),
			Presentation:   strings.TrimSpace(it.Presentation),
			PackagingLabel: strings.TrimSpace(it.PackagingLabel),
			Quantity:       it.Quantity,
			UnitPrice:      it.UnitPrice,
			Currency:       money.ParseCurrency(it.Currency),
		})
	}
	client := strings.TrimSpace(req.ClientName)
	if client == "" {
		client = strings.TrimSpace(fallbackClient)
	}
	return Session{
		ClientName:   client,
		Items:        items,
		Preferred:    money.ParseCurrency(req.PreferredCurrency),
		WantsInvoice: req.WantsInvoice,
		Payment:      credit.ParsePayment(req.Payment),
		Shipping:     req.Shipping,
		Billing:      req.Billing,
	}, nil
}

// checkUnitPrice returns the failed rule and a message, or "" when p fits the
// stored column.
func checkUnitPrice(p decimal.Decimal) (rule, msg string) {
	switch {
	case !p.IsPositive():
		return "gt", "unit price must be positive"
	case !p.Equal(p.Truncate(unitPriceScale)):
		return "scale", fmt.Sprintf("unit price allows at most %d decimals", unitPriceScale)
	case p.GreaterThanOrEqual(maxUnitPrice):
		return "lt", "unit price is too large"
	}
	return "", ""
}
