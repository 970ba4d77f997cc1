package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-importadora/internal/credit"
	"github.com/noah-isme/backend-importadora/internal/events"
	"github.com/noah-isme/backend-importadora/internal/money"
	"github.com/noah-isme/backend-importadora/internal/pricing"
)

// Store persists orders.
type Store interface {
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (time.Time, error)
	ListOrders(ctx context.Context, f ListFilter) ([]Order, int, error)
}

// PGStore is the pgx-backed Store.
type PGStore struct {
	Pool *pgxpool.Pool
}

const insertOrder = `
INSERT INTO orders (
    client_name, status, preferred_currency, wants_invoice, payment_method, due_date,
    grand_total, exchange_rate, summary, credit, shipping, billing
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id, created_at, updated_at`

const insertOrderItem = `
INSERT INTO order_items (
    order_id, position, product_name, presentation, packaging_label, quantity, unit_price, currency, line_total
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// CreateOrder inserts the order and its items in one transaction.
func (s PGStore) CreateOrder(ctx context.Context, o *Order) error {
	if s.Pool == nil {
		return errors.New("order store not configured")
	}
	if o.Summary.GrandTotal == nil {
		return errors.New("order: grand total is required")
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var rate *decimal.Decimal
	if o.Summary.Rate != nil {
		r := o.Summary.Rate.Decimal
		rate = &r
	}
	if err := tx.QueryRow(ctx, insertOrder,
		o.ClientName,
		string(o.Status),
		string(o.PreferredCurrency),
		o.WantsInvoice,
		string(o.Payment),
		o.DueDate,
		o.Summary.GrandTotal.Decimal,
		rate,
		o.Summary,
		o.Credit,
		o.Shipping,
		o.Billing,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	for i, it := range o.Items {
		if _, err := tx.Exec(ctx, insertOrderItem,
			o.ID, i, it.ProductName, it.Presentation, it.PackagingLabel,
			it.Quantity, it.UnitPrice, string(it.Currency), money.Round2(it.Total()),
		); err != nil {
			return fmt.Errorf("insert order item %d: %w", i, err)
		}
	}
	return tx.Commit(ctx)
}

const selectOrderColumns = `
SELECT id, client_name, status, preferred_currency, wants_invoice, payment_method, due_date,
       summary, credit, shipping, billing, created_at, updated_at
FROM orders`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o                         Order
		status, currency, payment string
	)
	err := row.Scan(&o.ID, &o.ClientName, &status, &currency, &o.WantsInvoice, &payment, &o.DueDate,
		&o.Summary, &o.Credit, &o.Shipping, &o.Billing, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	o.PreferredCurrency = money.Currency(currency)
	o.Payment = credit.ParsePayment(payment)
	return o, nil
}

const selectOrderItems = `
SELECT product_name, presentation, packaging_label, quantity, unit_price, currency
FROM order_items
WHERE order_id = $1
ORDER BY position`

// GetOrder loads an order with its items.
func (s PGStore) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	if s.Pool == nil {
		return Order{}, errors.New("order store not configured")
	}
	o, err := scanOrder(s.Pool.QueryRow(ctx, selectOrderColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("load order: %w", err)
	}
	rows, err := s.Pool.Query(ctx, selectOrderItems, id)
	if err != nil {
		return Order{}, fmt.Errorf("load order items: %w", err)
	}
	o.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (pricing.LineItem, error) {
		var (
			it       pricing.LineItem
			currency string
		)
		err := row.Scan(&it.ProductName, &it.Presentation, &it.PackagingLabel, &it.Quantity, &it.UnitPrice, &currency)
		it.Currency = money.Currency(currency)
		return it, err
	})
	if err != nil {
		return Order{}, fmt.Errorf("scan order items: %w", err)
	}
	return o, nil
}

const updateOrderStatus = `
UPDATE orders SET status = $3, updated_at = now()
WHERE id = $1 AND status = $2
RETURNING updated_at`

// UpdateStatus moves the order only if it is still in the expected state.
func (s PGStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (time.Time, error) {
	if s.Pool == nil {
		return time.Time{}, errors.New("order store not configured")
	}
	var updated time.Time
	err := s.Pool.QueryRow(ctx, updateOrderStatus, id, string(from), string(to)).Scan(&updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrInvalidTransition
		}
		return time.Time{}, fmt.Errorf("update order status: %w", err)
	}
	return updated, nil
}

// ListOrders returns a page of orders (without items) and the total count.
func (s PGStore) ListOrders(ctx context.Context, f ListFilter) ([]Order, int, error) {
	if s.Pool == nil {
		return nil, 0, errors.New("order store not configured")
	}
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if name := strings.TrimSpace(f.ClientName); name != "" {
		args = append(args, strings.ToLower(name))
		where = append(where, fmt.Sprintf("lower(client_name) = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM orders`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, f.Offset)
	query := fmt.Sprintf("%s%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d", selectOrderColumns, clause, len(args)-1, len(args))
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Order, error) {
		return scanOrder(row)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan orders: %w", err)
	}
	return orders, total, nil
}

// EventStore returns the domain event store sharing this pool.
func (s PGStore) EventStore() events.PGStore {
	return events.PGStore{DB: s.Pool}
}
