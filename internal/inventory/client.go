package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-importadora/internal/obs"
	"github.com/noah-isme/backend-importadora/internal/pricing"
	"github.com/noah-isme/backend-importadora/internal/resilience"
)

var (
	// ErrNotConfigured is returned when no inventory endpoint is set.
	ErrNotConfigured = errors.New("inventory: hold endpoint not configured")
	// ErrRejected is returned when the inventory service refuses the hold.
	ErrRejected = errors.New("inventory: hold rejected")
)

// Holder places reservations against available stock.
type Holder interface {
	PlaceHold(ctx context.Context, req HoldRequest) error
}

// HTTPClient posts hold requests to the inventory service.
type HTTPClient struct {
	URL  string
	HTTP resilience.HTTPClient
}

// PlaceHold sends the request; any non-2xx status is an error.
func (c *HTTPClient) PlaceHold(ctx context.Context, hold HoldRequest) error {
	if c == nil || strings.TrimSpace(c.URL) == "" {
		return ErrNotConfigured
	}
	body, err := json.Marshal(hold)
	if err != nil {
		return fmt.Errorf("inventory: encode hold: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("inventory: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("inventory: place hold: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// Placer places holds best-effort: failures are logged and counted, never fatal.
type Placer struct {
	Holder Holder
	Logger zerolog.Logger
}

// Place builds and submits the hold for a persisted order. The returned error is
// informational only; callers surface it as a warning.
func (p *Placer) Place(ctx context.Context, orderID string, items []pricing.LineItem) (HoldRequest, error) {
	hold := BuildHold(orderID, items)
	if p == nil || p.Holder == nil {
		obs.Count(obs.InventoryHoldTotal, "skipped")
		return hold, ErrNotConfigured
	}
	if err := p.Holder.PlaceHold(ctx, hold); err != nil {
		obs.Count(obs.InventoryHoldTotal, "error")
		p.Logger.Warn().Err(err).Str("order_id", orderID).Int("lines", len(hold.Lines)).Msg("inventory_hold_failed")
		return hold, err
	}
	obs.Count(obs.InventoryHoldTotal, "ok")
	p.Logger.Info().Str("order_id", orderID).Int("hold_minutes", hold.HoldMinutes).Msg("inventory_hold_placed")
	return hold, nil
}
