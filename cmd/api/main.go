package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-importadora/internal/config"
	"github.com/noah-isme/backend-importadora/internal/events"
	"github.com/noah-isme/backend-importadora/internal/export"
	"github.com/noah-isme/backend-importadora/internal/fx"
	"github.com/noah-isme/backend-importadora/internal/health"
	"github.com/noah-isme/backend-importadora/internal/inventory"
	"github.com/noah-isme/backend-importadora/internal/ledger"
	"github.com/noah-isme/backend-importadora/internal/obs"
	"github.com/noah-isme/backend-importadora/internal/order"
	"github.com/noah-isme/backend-importadora/internal/quote"
	"github.com/noah-isme/backend-importadora/internal/resilience"
	"github.com/noah-isme/backend-importadora/internal/settlement"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("api_exited")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	metricsEnabled := cfg.Obs.EnablePrometheus
	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
	resilience.MustRegisterMetrics(cfg.Obs.MetricsNamespace, nil)

	tracingEnabled := cfg.Obs.EnableTracing
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "importadora-api",
			Endpoint:      cfg.Obs.OTLPEndpoint,
			Exporter:      cfg.Obs.TracingExporter,
			SamplingRatio: cfg.Obs.SamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("tracing_disabled")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("tracer_shutdown_failed")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := openPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := openRedis(ctx, cfg.RedisURL, metricsEnabled, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis_close_failed")
		}
	}()

	fxClient := outboundClient(cfg, "fx_gateway", cfg.FXTimeout, logger)
	var fxGateway fx.Gateway
	if cfg.FXRateURL != "" {
		fxGateway = &fx.HTTPGateway{URL: cfg.FXRateURL, HTTP: fxClient, Logger: logger}
	} else {
		logger.Warn().Msg("FX_RATE_URL not set; converted totals will be unavailable")
	}

	var ledgerSource ledger.Source
	if cfg.LedgerSpreadsheetID != "" {
		src, err := ledger.NewSheetsSource(ctx, cfg.GoogleCredentialsFile, cfg.LedgerSpreadsheetID, cfg.LedgerRange)
		if err != nil {
			logger.Error().Err(err).Msg("ledger_disabled")
		} else {
			src.Logger = logger
			ledgerSource = src
		}
	} else {
		logger.Warn().Msg("LEDGER_SPREADSHEET_ID not set; credit terms disabled")
	}

	settlementSvc := &settlement.Service{
		FX:            fxGateway,
		Ledger:        ledgerSource,
		Logger:        logger,
		LedgerTimeout: cfg.LedgerTimeout,
	}

	inventoryClient := outboundClient(cfg, "inventory", cfg.InventoryTimeout, logger)
	placer := &inventory.Placer{Logger: logger}
	if cfg.InventoryHoldURL != "" {
		placer.Holder = &inventory.HTTPClient{URL: cfg.InventoryHoldURL, HTTP: inventoryClient}
	}

	orderStore := order.PGStore{Pool: pool}
	bus := &events.Bus{
		Store:     orderStore.EventStore(),
		Notifiers: []events.Notifier{events.LogNotifier{Logger: logger}},
	}
	renderer := &export.Renderer{ChromePath: cfg.ChromePath, Timeout: cfg.PDFTimeout, Logger: logger}
	orderSvc := &order.Service{
		Store:      orderStore,
		Settlement: settlementSvc,
		Holds:      placer,
		Events:     bus,
		Logger:     logger,
	}

	deps := routerDeps{
		Config:  cfg,
		Logger:  logger,
		Quotes:  &quote.Handler{Svc: settlementSvc, Renderer: renderer, Logger: logger},
		Orders:  &order.Handler{Svc: orderSvc, Renderer: renderer, Logger: logger},
		Admin:   &order.AdminHandler{Svc: orderSvc},
		Redis:   redisClient,
		Tracing: tracingEnabled,
		Health: health.Handler{Probes: []health.Probe{
			{Name: "db", Timeout: cfg.HealthDBTimeout, Check: pool.Ping},
			{Name: "redis", Timeout: cfg.HealthRedisTimeout, Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}},
			{Name: "fx_gateway", Optional: true, Check: fxClient.Healthy},
			{Name: "inventory", Optional: true, Check: inventoryClient.Healthy},
		}},
	}
	if metricsEnabled {
		deps.Metrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), nil)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop, release := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer release()
	go func() {
		<-stop.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful_shutdown_failed")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("api_listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info().Msg("api_stopped")
	return nil
}

func openPostgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "importadora-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func openRedis(ctx context.Context, url string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Warn().Err(err).Msg("redis_tracing_disabled")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Warn().Err(err).Msg("redis_metrics_disabled")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func outboundClient(cfg *config.Config, target string, timeout time.Duration, logger zerolog.Logger) resilience.HTTPClient {
	return resilience.NewHTTPClient(resilience.ClientConfig{
		Target:       target,
		Timeout:      timeout,
		MinRequests:  cfg.BreakerMinRequests,
		FailureRatio: cfg.BreakerFailureRatio,
		OpenFor:      cfg.BreakerOpenFor,
	}, logger.With().Str("dependency", target).Logger())
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
