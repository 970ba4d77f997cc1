package fx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-importadora/internal/obs"
	"github.com/noah-isme/backend-importadora/internal/resilience"
)

var (
	// ErrNotConfigured is returned when no rate endpoint is set.
	ErrNotConfigured = errors.New("fx: rate endpoint not configured")
	// ErrUnavailable wraps transport and upstream failures.
	ErrUnavailable = errors.New("fx: rate unavailable")
	// ErrInvalidQuote is returned when the upstream payload cannot be trusted.
	ErrInvalidQuote = errors.New("fx: invalid quote")
)

// Quote is the daily reference rate in MXN per 1 USD.
type Quote struct {
	Rate decimal.Decimal
	AsOf time.Time
}

// Gateway supplies the daily reference rate.
type Gateway interface {
	FetchDailyRate(ctx context.Context) (*Quote, error)
}

type ratePayload struct {
	Rate json.Number `json:"rate"`
	Date string      `json:"date"`
}

// HTTPGateway reads {"rate": number, "date": "YYYY-MM-DD"} from a single endpoint.
type HTTPGateway struct {
	URL    string
	HTTP   resilience.HTTPClient
	Logger zerolog.Logger
}

// FetchDailyRate performs one lookup. Callers treat any error as "rate unavailable".
func (g *HTTPGateway) FetchDailyRate(ctx context.Context) (*Quote, error) {
	if g == nil || strings.TrimSpace(g.URL) == "" {
		obs.Count(obs.FXFetchTotal, "skipped")
		return nil, ErrNotConfigured
	}
	start := time.Now()
	quote, err := g.fetch(ctx)
	obs.Observe(obs.FXFetchLatency, obs.DurationMillis(time.Since(start)))
	if err != nil {
		obs.Count(obs.FXFetchTotal, "error")
		g.Logger.Warn().Err(err).Str("url", g.URL).Msg("fx_fetch_failed")
		return nil, err
	}
	obs.Count(obs.FXFetchTotal, "ok")
	return quote, nil
}

func (g *HTTPGateway) fetch(ctx context.Context) (*Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("fx: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := g.HTTP.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	dec := json.NewDecoder(io.LimitReader(resp.Body, 64<<10))
	dec.UseNumber()
	var payload ratePayload
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidQuote, err)
	}
	return parseQuote(payload)
}

func parseQuote(p ratePayload) (*Quote, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(p.Rate.String()))
	if err != nil {
		return nil, fmt.Errorf("%w: rate %q", ErrInvalidQuote, p.Rate.String())
	}
	if !rate.IsPositive() {
		return nil, fmt.Errorf("%w: non-positive rate", ErrInvalidQuote)
	}
	asOf, err := parseDate(p.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q", ErrInvalidQuote, p.Date)
	}
	return &Quote{Rate: rate, AsOf: asOf}, nil
}

func parseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range []string{time.DateOnly, time.RFC3339, "02/01/2006"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognised date")
}

// Static always returns the same quote, or Err when set. Used for local runs and tests.
type Static struct {
	Quote *Quote
	Err   error
}

// FetchDailyRate implements Gateway.
func (s Static) FetchDailyRate(context.Context) (*Quote, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Quote == nil {
		return nil, ErrUnavailable
	}
	q := *s.Quote
	return &q, nil
}
