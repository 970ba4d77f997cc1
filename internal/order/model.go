package order

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-importadora/internal/credit"
	"github.com/noah-isme/backend-importadora/internal/money"
	"github.com/noah-isme/backend-importadora/internal/pricing"
	"github.com/noah-isme/backend-importadora/internal/settlement"
)

var (
	// ErrNotFound is returned when the order does not exist.
	ErrNotFound = errors.New("order: not found")
	// ErrInvalidTransition is returned for backward or unknown status changes.
	ErrInvalidTransition = errors.New("order: status transition not allowed")
	// ErrUnsupportedStatus is returned for status values outside the lifecycle.
	ErrUnsupportedStatus = errors.New("order: unsupported status")
)

// Status is the fulfilment state tracked by staff.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPacked    Status = "PACKED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCanceled  Status = "CANCELED"
)

// ParseStatus folds input into a known status.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(v)))
	if _, ok := statusRank[s]; ok || s == StatusCanceled {
		return s, nil
	}
	return "", ErrUnsupportedStatus
}

var statusRank = map[Status]int{
	StatusPending:   0,
	StatusPacked:    1,
	StatusShipped:   2,
	StatusDelivered: 3,
}

// CanTransition reports whether from -> to moves forward. Cancellation is only
// possible before the goods leave the warehouse.
func CanTransition(from, to Status) bool {
	if to == StatusCanceled {
		return from == StatusPending || from == StatusPacked
	}
	fromRank, okFrom := statusRank[from]
	toRank, okTo := statusRank[to]
	return okFrom && okTo && toRank > fromRank
}

// Order is a persisted settlement. Summary is stored as computed and never recomputed.
type Order struct {
	ID                uuid.UUID           `json:"orderId"`
	ClientName        string              `json:"clientName"`
	Status            Status              `json:"status"`
	PreferredCurrency money.Currency      `json:"preferredCurrency"`
	WantsInvoice      bool                `json:"wantsInvoice"`
	Payment           credit.Payment      `json:"payment"`
	DueDate           *time.Time          `json:"dueDate,omitempty"`
	Items             []pricing.LineItem  `json:"items"`
	Summary           pricing.Summary     `json:"summary"`
	Credit            credit.Decision     `json:"credit"`
	Shipping          settlement.Shipping `json:"shipping"`
	Billing           settlement.Billing  `json:"billing"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

// ListFilter narrows admin order listings.
type ListFilter struct {
	Status     Status
	ClientName string
	Limit      int
	Offset     int
}
