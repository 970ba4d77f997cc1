package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-importadora/internal/common"
	"github.com/noah-isme/backend-importadora/internal/config"
	"github.com/noah-isme/backend-importadora/internal/health"
	"github.com/noah-isme/backend-importadora/internal/obs"
	"github.com/noah-isme/backend-importadora/internal/order"
	"github.com/noah-isme/backend-importadora/internal/quote"
	"github.com/noah-isme/backend-importadora/internal/ratelimit"
	"github.com/noah-isme/backend-importadora/internal/security"
)

type routerDeps struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Quotes  *quote.Handler
	Orders  *order.Handler
	Admin   *order.AdminHandler
	Health  health.Handler
	Redis   *redis.Client
	Metrics *obs.HTTPMetrics
	Tracing bool
}

func newRouter(d routerDeps) http.Handler {
	cfg := d.Config
	idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL, Scope: "orders"}
	quoteLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: d.Redis, Prefix: "ratelimit:"},
		Config: ratelimit.Config{
			Key:    ratelimit.ClientKey("quotes"),
			Window: cfg.QuoteRateLimitWindow,
			Max:    cfg.QuoteRateLimitMax,
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(common.ClientIdentity)
	r.Use(obs.RoutePatternMiddleware)
	if d.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(security.Headers{EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", common.ClientHeader, common.IdempotencyHeader},
		ExposedHeaders:   []string{"X-Total-Count", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if d.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.Obs.EnablePprof {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.Obs.PprofUser, cfg.Obs.PprofPass))
	}
	r.Get("/health/live", d.Health.Live)
	r.Get("/health/ready", d.Health.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

		v.Group(func(q chi.Router) {
			q.Use(quoteLimit.Middleware)
			q.Post("/quotes", d.Quotes.Quote)
			q.Post("/quotes/document", d.Quotes.Document)
		})

		v.With(idem.Middleware).Post("/orders", d.Orders.Create)
		v.Get("/orders/{orderId}", d.Orders.Get)
		v.Get("/orders/{orderId}/document", d.Orders.Document)

		v.Route("/admin", func(admin chi.Router) {
			admin.Get("/orders", d.Admin.List)
			admin.Patch("/orders/{id}/status", d.Admin.PatchStatus)
		})
	})
	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
