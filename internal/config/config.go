package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	FXRateURL string
	FXTimeout time.Duration

	LedgerSpreadsheetID   string
	LedgerRange           string
	LedgerTimeout         time.Duration
	GoogleCredentialsFile string

	InventoryHoldURL string
	InventoryTimeout time.Duration

	ChromePath string
	PDFTimeout time.Duration

	IdempotencyTTL       time.Duration
	QuoteRateLimitMax    int
	QuoteRateLimitWindow time.Duration
	BodyLimitBytes       int64

	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenFor      time.Duration

	HealthDBTimeout    time.Duration
	HealthRedisTimeout time.Duration

	Obs Obs
}

// Obs groups logging, metrics and tracing switches.
type Obs struct {
	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	EnablePrometheus bool
	EnableTracing    bool
	OTLPEndpoint     string
	TracingExporter  string
	SamplingRatio    float64
	MetricsBuckets   string
	EnablePprof      bool
	PprofUser        string
	PprofPass        string
}

// Load reads the environment, after merging an optional .env file, into a
// Config. Malformed numbers and durations are errors rather than silent
// defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) (*Config, error) {
	e := envReader{k: k}
	cfg := &Config{
		AppEnv:             e.str("APP_ENV", "development"),
		Port:               e.str("PORT", "8080"),
		DatabaseURL:        e.str("DATABASE_URL", ""),
		RedisURL:           e.str("REDIS_URL", ""),
		CORSAllowedOrigins: splitList(e.str("CORS_ALLOWED_ORIGINS", "")),

		FXRateURL: e.str("FX_RATE_URL", ""),
		FXTimeout: e.dur("FX_TIMEOUT", 3*time.Second),

		LedgerSpreadsheetID:   e.str("LEDGER_SPREADSHEET_ID", ""),
		LedgerRange:           e.str("LEDGER_RANGE", "Clientes!A:D"),
		LedgerTimeout:         e.dur("LEDGER_TIMEOUT", 5*time.Second),
		GoogleCredentialsFile: e.str("GOOGLE_CREDENTIALS_FILE", ""),

		InventoryHoldURL: e.str("INVENTORY_HOLD_URL", ""),
		InventoryTimeout: e.dur("INVENTORY_TIMEOUT", 3*time.Second),

		ChromePath: e.str("CHROME_PATH", ""),
		PDFTimeout: e.dur("PDF_TIMEOUT", 30*time.Second),

		IdempotencyTTL:       e.dur("IDEMPOTENCY_TTL", 24*time.Hour),
		QuoteRateLimitMax:    e.integer("QUOTE_RATE_LIMIT_MAX", 60),
		QuoteRateLimitWindow: e.dur("QUOTE_RATE_LIMIT_WINDOW", time.Minute),
		BodyLimitBytes:       int64(e.integer("BODY_LIMIT_BYTES", 1<<20)),

		BreakerMinRequests:  e.integer("BREAKER_MIN_REQUESTS", 5),
		BreakerFailureRatio: e.float("BREAKER_FAILURE_RATIO", 0.5),
		BreakerOpenFor:      e.dur("BREAKER_OPEN_FOR", 30*time.Second),

		HealthDBTimeout:    e.millis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		HealthRedisTimeout: e.millis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),

		Obs: Obs{
			LogFormat:        e.str("OBS_LOG_FORMAT", "json"),
			LogLevel:         e.str("OBS_LOG_LEVEL", "info"),
			MetricsNamespace: e.str("OBS_METRICS_NAMESPACE", "importadora"),
			EnablePrometheus: e.boolean("OBS_ENABLE_PROMETHEUS", true),
			EnableTracing:    e.boolean("OBS_ENABLE_TRACING", false),
			OTLPEndpoint:     e.str("OBS_OTLP_ENDPOINT", ""),
			TracingExporter:  e.str("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio:    e.float("OBS_TRACING_SAMPLING_RATIO", 1.0),
			MetricsBuckets:   e.str("OBS_METRICS_BUCKETS_MS", ""),
			EnablePprof:      e.boolean("OBS_ENABLE_PPROF", false),
			PprofUser:        e.str("SECURE_PPROF_BASIC_AUTH_USER", ""),
			PprofPass:        e.str("SECURE_PPROF_BASIC_AUTH_PASS", ""),
		},
	}
	if err := errors.Join(append(e.errs, cfg.validate()...)...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required"))
	}
	if c.LedgerSpreadsheetID != "" && c.GoogleCredentialsFile == "" {
		errs = append(errs, errors.New("GOOGLE_CREDENTIALS_FILE is required when LEDGER_SPREADSHEET_ID is set"))
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		errs = append(errs, errors.New("BREAKER_FAILURE_RATIO must be in (0, 1]"))
	}
	if c.HealthDBTimeout <= 0 || c.HealthRedisTimeout <= 0 {
		errs = append(errs, errors.New("HEALTH_READY_*_TIMEOUT_MS must be positive"))
	}
	if c.QuoteRateLimitMax <= 0 {
		errs = append(errs, errors.New("QUOTE_RATE_LIMIT_MAX must be positive"))
	}
	return errs
}

// HTTPAddr returns the listen address, accepting PORT as "8080" or ":8080".
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// envReader reads typed values from koanf and keeps every parse failure so
// Load reports them together.
type envReader struct {
	k    *koanf.Koanf
	errs []error
}

func (e *envReader) raw(key string) (string, bool) {
	v := strings.TrimSpace(e.k.String(key))
	return v, v != ""
}

func (e *envReader) str(key, def string) string {
	if v, ok := e.raw(key); ok {
		return v
	}
	return def
}

func (e *envReader) dur(key string, def time.Duration) time.Duration {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (e *envReader) integer(key string, def int) int {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

// millis reads a whole number of milliseconds.
func (e *envReader) millis(key string, def int) time.Duration {
	return time.Duration(e.integer(key, def)) * time.Millisecond
}

func (e *envReader) float(key string, def float64) float64 {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (e *envReader) boolean(key string, def bool) bool {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	}
	e.errs = append(e.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
	return def
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
