package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-importadora/internal/common"
)

// Allower decides whether one more call fits in the window for key.
type Allower interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error)
}

// Config selects the bucket for a request and its budget.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler applies a Config in front of a route group.
type Handler struct {
	Limiter Allower
	Config  Config
	// OnError replaces the default warning log when the limiter fails.
	OnError func(error)
}

// ClientKey buckets by the normalised client name, or by IP for anonymous
// callers.
func ClientKey(scope string) func(*http.Request) string {
	return func(r *http.Request) string {
		if name, ok := common.ClientName(r.Context()); ok {
			return scope + ":client:" + strings.ToLower(strings.TrimSpace(name))
		}
		return scope + ":ip:" + common.ClientIP(r)
	}
}

// Middleware rejects over-budget requests with 429 RATE_LIMITED. A limiter
// error lets the request through.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter == nil || h.Config.Key == nil {
			next.ServeHTTP(w, r)
			return
		}
		allowed, remaining, reset, err := h.Limiter.Allow(r.Context(), h.Config.Key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			h.limiterFailed(r, err)
			next.ServeHTTP(w, r)
			return
		}
		setLimitHeaders(w.Header(), max(h.Config.Max, 0), remaining, reset)
		if allowed {
			next.ServeHTTP(w, r)
			return
		}
		wait := retryAfter(reset)
		w.Header().Set("Retry-After", strconv.Itoa(wait))
		common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many quote requests", map[string]any{"retryAfterSeconds": wait})
	})
}

func (h Handler) limiterFailed(r *http.Request, err error) {
	if h.OnError != nil {
		h.OnError(err)
		return
	}
	zerolog.Ctx(r.Context()).Warn().Err(err).Msg("rate_limiter_unavailable")
}

func setLimitHeaders(hdr http.Header, limit, remaining int, reset time.Time) {
	hdr.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	hdr.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	hdr.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
}

// retryAfter rounds the wait up to whole seconds so clients never retry early.
func retryAfter(reset time.Time) int {
	secs := math.Ceil(time.Until(reset).Seconds())
	if secs < 0 {
		return 0
	}
	return int(secs)
}
