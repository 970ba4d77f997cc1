package resilience

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPClient sends requests to one outbound dependency. Transport errors and
// 5xx answers are retried with jittered backoff and reported to Breaker.
type HTTPClient struct {
	Client      *http.Client
	Breaker     *Breaker
	BaseBackoff time.Duration
	MaxAttempts int
	Jitter      float64
	// Timeout bounds each attempt; zero falls back to Client.Timeout.
	Timeout time.Duration
}

// UpstreamError is the last 5xx seen once retries are exhausted.
type UpstreamError struct {
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("resilience: upstream answered %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Do sends req, replaying its body on every attempt. A response below 500 is
// returned as-is for the caller to judge. ErrOpenCircuit is returned as soon
// as the breaker refuses an attempt.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	body, err := bufferBody(req)
	if err != nil {
		return nil, fmt.Errorf("resilience: buffer request body: %w", err)
	}
	attempts := max(cl.MaxAttempts, 1)
	base := cl.BaseBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if cl.Breaker != nil && !cl.Breaker.Allow(ctx) {
			return nil, ErrOpenCircuit
		}
		resp, err := cl.doOnce(ctx, withBody(ctx, req, body))
		switch {
		case err != nil:
			lastErr = err
		case resp.StatusCode >= http.StatusInternalServerError:
			lastErr = &UpstreamError{StatusCode: resp.StatusCode}
			drain(resp)
		default:
			cl.report(ctx, true)
			return resp, nil
		}
		cl.report(ctx, false)
		if attempt < attempts {
			if err := sleep(ctx, Backoff(base, attempt, cl.Jitter)); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

func (cl HTTPClient) report(ctx context.Context, success bool) {
	if cl.Breaker != nil {
		cl.Breaker.Report(ctx, success)
	}
}

// doOnce performs one attempt. The per-call timeout stays armed until the
// caller closes the response body.
func (cl HTTPClient) doOnce(ctx context.Context, req *http.Request) (*http.Response, error) {
	timeout := cl.Timeout
	if timeout <= 0 {
		timeout = cl.Client.Timeout
	}
	callCtx, cancel := context.WithCancel(ctx)
	if timeout > 0 {
		cancel()
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	resp, err := cl.Client.Do(req.WithContext(callCtx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer func() { _ = req.Body.Close() }()
	return io.ReadAll(req.Body)
}

func withBody(ctx context.Context, req *http.Request, body []byte) *http.Request {
	clone := req.Clone(ctx)
	if body == nil {
		return clone
	}
	clone.Body = io.NopCloser(bytes.NewReader(body))
	clone.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	clone.ContentLength = int64(len(body))
	return clone
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Healthy reports ErrOpenCircuit while the dependency's breaker is open.
func (cl HTTPClient) Healthy(context.Context) error {
	if cl.Breaker != nil && cl.Breaker.State() == Open {
		return ErrOpenCircuit
	}
	return nil
}

// ClientConfig describes an outbound dependency guarded by a breaker.
type ClientConfig struct {
	Target       string
	Timeout      time.Duration
	MaxAttempts  int
	MinRequests  int
	FailureRatio float64
	OpenFor      time.Duration
}

// NewHTTPClient builds a traced, breaker-guarded client for one named dependency.
func NewHTTPClient(cfg ClientConfig, logger zerolog.Logger) HTTPClient {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 2
	}
	minRequests := cfg.MinRequests
	if minRequests <= 0 {
		minRequests = 5
	}
	breaker := NewBreaker(BreakerConfig{
		Target:       cfg.Target,
		MinRequests:  minRequests,
		FailureRatio: cfg.FailureRatio,
		OpenFor:      cfg.OpenFor,
		Logger:       logger,
	})
	return HTTPClient{
		Client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Breaker:     breaker,
		BaseBackoff: 150 * time.Millisecond,
		MaxAttempts: attempts,
		Jitter:      0.2,
		Timeout:     cfg.Timeout,
	}
}
