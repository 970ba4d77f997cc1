package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotConfigured is returned by a Bus without a store.
	ErrNotConfigured = errors.New("events: store not configured")
	// ErrInvalidEvent covers unknown topics, nil aggregates and malformed payloads.
	ErrInvalidEvent = errors.New("events: invalid event")
)

// Event is a persisted domain event.
type Event struct {
	ID          uuid.UUID       `json:"id"`
	Topic       string          `json:"topic"`
	AggregateID uuid.UUID       `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// EventStore appends events to the domain_events table.
type EventStore interface {
	InsertDomainEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (Event, error)
}

// Notifier is told about every event after it is stored.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Bus stores order events and then fans them out to notifiers.
type Bus struct {
	Store     EventStore
	Notifiers []Notifier
}

// Emit stores the event and notifies every notifier in order. A notifier
// failure does not undo the insert: the stored event is returned together
// with the joined notifier errors.
func (b *Bus) Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (Event, error) {
	if b == nil || b.Store == nil {
		return Event{}, ErrNotConfigured
	}
	topic = strings.TrimSpace(topic)
	if !KnownTopic(topic) {
		return Event{}, fmt.Errorf("%w: unknown topic %q", ErrInvalidEvent, topic)
	}
	if aggregateID == uuid.Nil {
		return Event{}, fmt.Errorf("%w: aggregate id is required", ErrInvalidEvent)
	}
	body, err := encodePayload(payload)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	ev, err := b.Store.InsertDomainEvent(ctx, topic, aggregateID, body)
	if err != nil {
		return Event{}, fmt.Errorf("events: persist event: %w", err)
	}
	var errs []error
	for _, n := range b.Notifiers {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("events: notify %s: %w", topic, err))
		}
	}
	return ev, errors.Join(errs...)
}

// encodePayload turns payload into a JSON document. Raw bytes and strings are
// taken as already-encoded JSON; nil and empty input become "{}".
func encodePayload(payload any) ([]byte, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
		return []byte("{}"), nil
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	case string:
		raw = []byte(strings.TrimSpace(v))
	default:
		return json.Marshal(v)
	}
	if len(raw) == 0 {
		return []byte("{}"), nil
	}
	if !json.Valid(raw) {
		return nil, errors.New("payload is not valid json")
	}
	return append([]byte(nil), raw...), nil
}
