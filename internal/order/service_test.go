package order

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-importadora/internal/credit"
	"github.com/noah-isme/backend-importadora/internal/events"
	"github.com/noah-isme/backend-importadora/internal/fx"
	"github.com/noah-isme/backend-importadora/internal/inventory"
	"github.com/noah-isme/backend-importadora/internal/ledger"
	"github.com/noah-isme/backend-importadora/internal/money"
	"github.com/noah-isme/backend-importadora/internal/pricing"
	"github.com/noah-isme/backend-importadora/internal/settlement"
)

type memStore struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]Order
	createErr error
}

func newMemStore() *memStore {
	return &memStore{orders: map[uuid.UUID]Order{}}
}

func (m *memStore) CreateOrder(_ context.Context, o *Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o.ID = uuid.New()
	m.orders[o.ID] = *o
	return nil
}

func (m *memStore) GetOrder(_ context.Context, id uuid.UUID) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	if o.Status != from {
		return time.Time{}, ErrInvalidTransition
	}
	o.Status = to
	o.UpdatedAt = time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	m.orders[id] = o
	return o.UpdatedAt, nil
}

func (m *memStore) ListOrders(_ context.Context, f ListFilter) ([]Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.ClientName != "" && o.ClientName != f.ClientName {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	total := len(out)
	if f.Offset < len(out) {
		out = out[f.Offset:]
	} else {
		out = nil
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

type stubLedger struct {
	rec ledger.Record
	err error
}

func (s stubLedger) Lookup(context.Context, string) (ledger.Record, error) { return s.rec, s.err }

type stubHolder struct {
	holds []inventory.HoldRequest
	err   error
}

func (s *stubHolder) PlaceHold(_ context.Context, h inventory.HoldRequest) error {
	s.holds = append(s.holds, h)
	return s.err
}

type captureEmitter struct {
	topics []string
}

func (c *captureEmitter) Emit(_ context.Context, topic string, id uuid.UUID, _ any) (events.Event, error) {
	c.topics = append(c.topics, topic)
	return events.Event{ID: uuid.New(), Topic: topic, AggregateID: id}, nil
}

var today = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func newService(store *memStore, quote *fx.Quote, holder *stubHolder) (*Service, *captureEmitter) {
	gw := fx.Static{Quote: quote}
	emitter := &captureEmitter{}
	return &Service{
		Store: store,
		Settlement: &settlement.Service{
			FX:     gw,
			Ledger: stubLedger{rec: ledger.Record{ClientName: "Frutas del Norte", BlockedFlag: "no", TermDays: 30, DisclosureFlag: "si"}},
			Logger: zerolog.Nop(),
			Now:    func() time.Time { return today },
		},
		Holds:  &inventory.Placer{Holder: holder, Logger: zerolog.Nop()},
		Events: emitter,
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return today },
	}, emitter
}

func mixedSession() settlement.Session {
	return settlement.Session{
		ClientName: "Frutas del Norte",
		Items: []pricing.LineItem{
			{ProductName: "Limón", Presentation: "20kg", Quantity: 1, UnitPrice: decimal.RequireFromString("100"), Currency: money.USD},
			{ProductName: "Chile", Presentation: "10kg", Quantity: 1, UnitPrice: decimal.RequireFromString("100"), Currency: money.MXN},
		},
		Preferred:    money.MXN,
		WantsInvoice: true,
		Payment:      credit.PaymentCredit,
	}
}

func TestCreatePersistsSummaryAndPlacesHold(t *testing.T) {
	store := newMemStore()
	holder := &stubHolder{}
	svc, emitter := newService(store, &fx.Quote{Rate: decimal.RequireFromString("18.237"), AsOf: today}, holder)

	out, err := svc.Create(context.Background(), mixedSession())
	require.NoError(t, err)
	require.Equal(t, StatusPending, out.Status)
	require.Equal(t, "1923.00", out.Summary.GrandTotal.Fixed())
	require.Equal(t, credit.PaymentCredit, out.Payment.Payment)
	require.NotNil(t, out.Payment.DueDate)
	require.Equal(t, "2026-04-01", out.Payment.DueDate.Format(time.DateOnly))
	require.Empty(t, out.Warnings)

	stored, err := store.GetOrder(context.Background(), out.OrderID)
	require.NoError(t, err)
	require.Equal(t, out.Summary.GrandTotal.Fixed(), stored.Summary.GrandTotal.Fixed())
	require.Len(t, stored.Items, 2)

	require.Len(t, holder.holds, 1)
	require.Equal(t, out.OrderID.String(), holder.holds[0].OrderID)
	require.Equal(t, inventory.HoldMinutes, holder.holds[0].HoldMinutes)
	require.Equal(t, []string{events.TopicOrderCreated}, emitter.topics)
}

func TestCreateFailsWithoutRate(t *testing.T) {
	store := newMemStore()
	svc, emitter := newService(store, nil, &stubHolder{})

	_, err := svc.Create(context.Background(), mixedSession())
	require.ErrorIs(t, err, settlement.ErrRateUnavailable)
	require.Empty(t, store.orders)
	require.Empty(t, emitter.topics)
}

func TestCreateHoldFailureIsWarning(t *testing.T) {
	store := newMemStore()
	svc, emitter := newService(store, &fx.Quote{Rate: decimal.RequireFromString("18.23"), AsOf: today}, &stubHolder{err: inventory.ErrRejected})

	out, err := svc.Create(context.Background(), mixedSession())
	require.NoError(t, err)
	require.Contains(t, out.Warnings, WarnHoldFailed)
	require.Len(t, store.orders, 1)
	require.Equal(t, []string{events.TopicOrderCreated, events.TopicInventoryHoldFail}, emitter.topics)
}

func TestCreateStoreFailure(t *testing.T) {
	store := newMemStore()
	store.createErr = errors.New("db down")
	svc, _ := newService(store, &fx.Quote{Rate: decimal.RequireFromString("18.23"), AsOf: today}, &stubHolder{})

	_, err := svc.Create(context.Background(), mixedSession())
	require.ErrorContains(t, err, "persist order")
}

func TestUpdateStatusForwardOnly(t *testing.T) {
	store := newMemStore()
	svc, emitter := newService(store, &fx.Quote{Rate: decimal.RequireFromString("18.23"), AsOf: today}, &stubHolder{})
	out, err := svc.Create(context.Background(), mixedSession())
	require.NoError(t, err)

	ord, err := svc.UpdateStatus(context.Background(), out.OrderID, StatusShipped)
	require.NoError(t, err)
	require.Equal(t, StatusShipped, ord.Status)

	_, err = svc.UpdateStatus(context.Background(), out.OrderID, StatusPacked)
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.UpdateStatus(context.Background(), out.OrderID, StatusCanceled)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.UpdateStatus(context.Background(), uuid.New(), StatusPacked)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, []string{events.TopicOrderCreated, events.TopicOrderStatusChanged}, emitter.topics)
}

func TestCanTransition(t *testing.T) {
	require.True(t, CanTransition(StatusPending, StatusPacked))
	require.True(t, CanTransition(StatusPending, StatusDelivered))
	require.True(t, CanTransition(StatusPacked, StatusCanceled))
	require.False(t, CanTransition(StatusShipped, StatusCanceled))
	require.False(t, CanTransition(StatusDelivered, StatusShipped))
	require.False(t, CanTransition(StatusPacked, StatusPacked))
	require.False(t, CanTransition(StatusCanceled, StatusPacked))

	s, err := ParseStatus(" packed ")
	require.NoError(t, err)
	require.Equal(t, StatusPacked, s)
	_, err = ParseStatus("OUT_FOR_DELIVERY")
	require.ErrorIs(t, err, ErrUnsupportedStatus)
}
