package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-importadora/internal/credit"
	"github.com/noah-isme/backend-importadora/internal/events"
	"github.com/noah-isme/backend-importadora/internal/inventory"
	"github.com/noah-isme/backend-importadora/internal/pricing"
	"github.com/noah-isme/backend-importadora/internal/settlement"
)

// WarnHoldFailed is attached to a created order whose inventory hold was not placed.
const WarnHoldFailed = "inventory hold could not be placed; stock is not reserved"

// Calculator computes settlement results for a session.
type Calculator interface {
	Compute(ctx context.Context, sess settlement.Session) (settlement.Result, error)
}

// HoldPlacer reserves stock for a persisted order.
type HoldPlacer interface {
	Place(ctx context.Context, orderID string, items []pricing.LineItem) (inventory.HoldRequest, error)
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// CreateOutput is returned to the client after an order is placed.
type CreateOutput struct {
	OrderID  uuid.UUID       `json:"orderId"`
	Status   Status          `json:"status"`
	Summary  pricing.Summary `json:"summary"`
	Payment  credit.Decision `json:"payment"`
	Warnings []string        `json:"warnings,omitempty"`
}

// Service owns the order lifecycle.
type Service struct {
	Store      Store
	Settlement Calculator
	Holds      HoldPlacer
	Events     Emitter
	Logger     zerolog.Logger
	Now        func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create computes the settlement, persists it and places the inventory hold.
// The stored summary is the one shown to the client; it is never recomputed.
func (s *Service) Create(ctx context.Context, sess settlement.Session) (CreateOutput, error) {
	if s == nil || s.Store == nil || s.Settlement == nil {
		return CreateOutput{}, errors.New("order service not configured")
	}
	res, err := s.Settlement.Compute(ctx, sess)
	if err != nil {
		return CreateOutput{}, err
	}
	if err := res.RequireAvailable(); err != nil {
		return CreateOutput{}, err
	}

	now := s.now()
	o := &Order{
		ClientName:        sess.ClientName,
		Status:            StatusPending,
		PreferredCurrency: res.Summary.PreferredCurrency,
		WantsInvoice:      sess.WantsInvoice,
		Payment:           res.Credit.Payment,
		DueDate:           res.Credit.DueDate,
		Items:             sess.Items,
		Summary:           res.Summary,
		Credit:            res.Credit,
		Shipping:          sess.Shipping,
		Billing:           sess.Billing,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.Store.CreateOrder(ctx, o); err != nil {
		return CreateOutput{}, fmt.Errorf("persist order: %w", err)
	}
	s.Logger.Info().
		Str("order_id", o.ID.String()).
		Str("client", o.ClientName).
		Str("currency", string(o.PreferredCurrency)).
		Str("payment", string(o.Payment)).
		Msg("order_created")

	s.emit(ctx, events.TopicOrderCreated, o.ID, map[string]any{
		"orderId":    o.ID.String(),
		"clientName": o.ClientName,
		"currency":   o.PreferredCurrency,
		"grandTotal": o.Summary.GrandTotal,
		"payment":    o.Payment,
	})

	warnings := append([]string(nil), res.Warnings...)
	if s.Holds != nil {
		if _, err := s.Holds.Place(ctx, o.ID.String(), o.Items); err != nil && !errors.Is(err, inventory.ErrNotConfigured) {
			warnings = append(warnings, WarnHoldFailed)
			s.emit(ctx, events.TopicInventoryHoldFail, o.ID, map[string]any{
				"orderId": o.ID.String(),
				"reason":  err.Error(),
			})
		}
	}

	return CreateOutput{
		OrderID:  o.ID,
		Status:   o.Status,
		Summary:  o.Summary,
		Payment:  o.Credit,
		Warnings: warnings,
	}, nil
}

// Get loads a persisted order.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	if s == nil || s.Store == nil {
		return Order{}, errors.New("order service not configured")
	}
	return s.Store.GetOrder(ctx, id)
}

// List returns a page of orders and the total matching count.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Order, int, error) {
	if s == nil || s.Store == nil {
		return nil, 0, errors.New("order service not configured")
	}
	return s.Store.ListOrders(ctx, f)
}

// UpdateStatus moves an order forward through its lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, target Status) (Order, error) {
	if s == nil || s.Store == nil {
		return Order{}, errors.New("order service not configured")
	}
	current, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !CanTransition(current.Status, target) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, target)
	}
	updated, err := s.Store.UpdateStatus(ctx, id, current.Status, target)
	if err != nil {
		return Order{}, err
	}
	from := current.Status
	current.Status = target
	current.UpdatedAt = updated

	s.Logger.Info().Str("order_id", id.String()).Str("from", string(from)).Str("to", string(target)).Msg("order_status_changed")
	s.emit(ctx, events.TopicOrderStatusChanged, id, map[string]any{
		"orderId": id.String(),
		"from":    from,
		"to":      target,
	})
	return current, nil
}

func (s *Service) emit(ctx context.Context, topic string, id uuid.UUID, payload any) {
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Emit(ctx, topic, id, payload); err != nil {
		s.Logger.Warn().Err(err).Str("topic", topic).Str("order_id", id.String()).Msg("domain_event_failed")
	}
}
