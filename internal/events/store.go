package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const insertDomainEvent = `
INSERT INTO domain_events (topic, aggregate_id, payload)
VALUES ($1, $2, $3)
RETURNING id, topic, aggregate_id, payload, occurred_at`

// PGStore persists events in the domain_events table.
type PGStore struct {
	DB DBTX
}

// InsertDomainEvent implements EventStore.
func (s PGStore) InsertDomainEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (Event, error) {
	var ev Event
	err := s.DB.QueryRow(ctx, insertDomainEvent, topic, aggregateID, payload).
		Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt)
	if err != nil {
		return Event{}, fmt.Errorf("insert domain event: %w", err)
	}
	return ev, nil
}

const listEventsForAggregate = `
SELECT id, topic, aggregate_id, payload, occurred_at
FROM domain_events
WHERE aggregate_id = $1
ORDER BY occurred_at, id`

// ListForAggregate returns the events of one aggregate in emission order.
func (s PGStore) ListForAggregate(ctx context.Context, aggregateID uuid.UUID) ([]Event, error) {
	rows, err := s.DB.Query(ctx, listEventsForAggregate, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("list domain events: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
		var ev Event
		err := row.Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt)
		return ev, err
	})
}
