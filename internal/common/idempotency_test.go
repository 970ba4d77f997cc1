package common_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-importadora/internal/common"
)

func newIdem(t *testing.T) (common.Idem, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return common.Idem{R: client, TTL: time.Minute, Scope: "orders"}, mr
}

func doRequest(h http.Handler, client, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)
	req.Header.Set(common.IdempotencyHeader, key)
	req.Header.Set(common.ClientHeader, client)
	rr := httptest.NewRecorder()
	common.ClientIdentity(h).ServeHTTP(rr, req)
	return rr
}

func TestIdempotencyRejectsReplay(t *testing.T) {
	idem, _ := newIdem(t)
	calls := 0
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	require.Equal(t, http.StatusCreated, doRequest(h, "Frutas del Norte", "k-1").Code)
	replay := doRequest(h, "Frutas del Norte", "k-1")
	require.Equal(t, http.StatusConflict, replay.Code)
	require.Contains(t, replay.Body.String(), "IDEMPOTENT_REPLAY")
	require.Equal(t, http.StatusCreated, doRequest(h, "Mercado Central", "k-1").Code)
	require.Equal(t, 2, calls)
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	idem, mr := newIdem(t)
	status := http.StatusInternalServerError
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))

	require.Equal(t, http.StatusInternalServerError, doRequest(h, "c", "k-2").Code)
	require.Empty(t, mr.Keys())
	status = http.StatusCreated
	require.Equal(t, http.StatusCreated, doRequest(h, "c", "k-2").Code)
	require.Len(t, mr.Keys(), 1)
}

func TestIdempotencyReleasesKeyOnClientError(t *testing.T) {
	idem, mr := newIdem(t)
	status := http.StatusUnprocessableEntity
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))

	// rate unavailable, then the gateway recovers and the same key is retried
	require.Equal(t, http.StatusUnprocessableEntity, doRequest(h, "Frutas del Norte", "k-3").Code)
	require.Empty(t, mr.Keys())
	status = http.StatusCreated
	require.Equal(t, http.StatusCreated, doRequest(h, "Frutas del Norte", "k-3").Code)
	require.Equal(t, http.StatusConflict, doRequest(h, "Frutas del Norte", "k-3").Code)
}

func TestIdempotencyReleasesKeyOnPanic(t *testing.T) {
	idem, mr := newIdem(t)
	h := idem.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	require.Panics(t, func() { doRequest(h, "c", "k-4") })
	require.Empty(t, mr.Keys())
}

func TestIdempotencyWithoutHeaderPassesThrough(t *testing.T) {
	idem, mr := newIdem(t)
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusNoContent, doRequest(h, "c", "").Code)
	}
	require.Empty(t, mr.Keys())
}

func TestWriteErrorHidesUnknownErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	common.WriteError(rr, http.ErrHandlerTimeout)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "timeout")

	rr = httptest.NewRecorder()
	common.WriteError(rr, common.NewAppError("RATE_UNAVAILABLE", "exchange rate unavailable", http.StatusUnprocessableEntity, nil))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), "RATE_UNAVAILABLE")
}
