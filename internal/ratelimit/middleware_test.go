package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-importadora/internal/common"
)

func newClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func quoteRequest(client string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	if client != "" {
		req.Header.Set(common.ClientHeader, client)
	}
	return req
}

func TestHandlerMiddlewareEnforcesLimitPerClient(t *testing.T) {
	handler := Handler{
		Limiter: Limiter{Client: newClient(t), Prefix: "ratelimit:"},
		Config:  Config{Key: ClientKey("quotes"), Window: time.Second, Max: 1},
	}
	counted := common.ClientIdentity(handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	rr := httptest.NewRecorder()
	counted.ServeHTTP(rr, quoteRequest("Frutas del Norte"))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	counted.ServeHTTP(rr, quoteRequest("frutas del norte "))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Equal(t, "1", rr.Header().Get("X-RateLimit-Limit"))
	require.Contains(t, rr.Body.String(), "RATE_LIMITED")

	rr = httptest.NewRecorder()
	counted.ServeHTTP(rr, quoteRequest("Mercado Central"))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestClientKeyFallsBackToIP(t *testing.T) {
	require.Equal(t, "quotes:ip:10.0.0.7", ClientKey("quotes")(quoteRequest("")))
}

func TestHandlerMiddlewareOnError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer func() { _ = client.Close() }()

	called := false
	handler := Handler{
		Limiter: Limiter{Client: client, Prefix: "ratelimit:"},
		Config:  Config{Key: func(*http.Request) string { return "err" }, Window: time.Second, Max: 1},
		OnError: func(error) { called = true },
	}
	counted := handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	counted.ServeHTTP(rr, quoteRequest(""))
	require.Equal(t, http.StatusOK, rr.Code, "limiter errors fail open")
	require.True(t, called)
}

type fixedAllower struct {
	reset time.Time
}

func (f fixedAllower) Allow(context.Context, string, time.Duration, int) (bool, int, time.Time, error) {
	return false, 0, f.reset, nil
}

func TestHandlerRetryAfterRoundsUp(t *testing.T) {
	handler := Handler{
		Limiter: fixedAllower{reset: time.Now().Add(1500 * time.Millisecond)},
		Config:  Config{Key: ClientKey("quotes"), Window: time.Minute, Max: 10},
	}
	rr := httptest.NewRecorder()
	handler.Middleware(http.NotFoundHandler()).ServeHTTP(rr, quoteRequest(""))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Equal(t, "2", rr.Header().Get("Retry-After"))
	require.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
}
