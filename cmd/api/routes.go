package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/sales-api/internal/analytics"
	"github.com/noah-isme/sales-api/internal/catalog"
	"github.com/noah-isme/sales-api/internal/common"
	"github.com/noah-isme/sales-api/internal/health"
	"github.com/noah-isme/sales-api/internal/obs"
	"github.com/noah-isme/sales-api/internal/queue"
	"github.com/noah-isme/sales-api/internal/ratelimit"
	"github.com/noah-isme/sales-api/internal/sale"
	"github.com/noah-isme/sales-api/internal/security"
)

// routerDeps carries everything the HTTP surface needs; nil optional fields
// switch the corresponding feature off.
type routerDeps struct {
	Logger         zerolog.Logger
	Catalog        *catalog.Handler
	Sales          *sale.Handler
	Analytics      *analytics.Handler
	Health         health.Handler
	QueueAdmin     *queue.AdminHandler
	Redis          *redis.Client
	Limiter        *limiter.Limiter
	HTTPMetrics    *obs.HTTPMetrics
	Tracing        bool
	MetricsEnabled bool
	AllowedOrigins []string
	BodyLimit      int64
	IdempotencyTTL time.Duration
	SecureHeaders  security.Headers
	Pprof          http.Handler
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if d.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(d.SecureHeaders.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(d.AllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders: []string{"X-Total-Count", "X-Request-ID", "X-RateLimit-Remaining"},
		MaxAge:         300,
	}))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		common.JSONError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	if d.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if d.Pprof != nil {
		r.Mount("/debug/pprof", d.Pprof)
	}
	r.Get("/health/live", d.Health.Live)
	r.Get("/health/ready", d.Health.Ready)

	limited := func(next http.Handler) http.Handler { return next }
	if d.Limiter != nil {
		limited = ratelimit.Handler{
			Limiter: d.Limiter,
			Key:     ratelimit.ByClientIP,
			OnError: func(err error) { d.Logger.Warn().Err(err).Msg("rate limiter unavailable") },
		}.Middleware
	}
	idem := common.Idem{R: d.Redis, TTL: d.IdempotencyTTL}

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: d.BodyLimit}.Middleware)

		v.Route("/products", func(p chi.Router) {
			p.Get("/", d.Catalog.Products)
			p.Get("/category/{category}", d.Catalog.ProductsByCategory)
			p.Get("/{id}", d.Catalog.Product)
			p.Group(func(w chi.Router) {
				w.Use(limited)
				w.Post("/", d.Catalog.Create)
				w.Put("/{id}", d.Catalog.Update)
				w.Delete("/{id}", d.Catalog.Delete)
			})
		})

		v.Route("/sales", func(s chi.Router) {
			s.Get("/", d.Sales.List)
			s.Get("/stats", d.Analytics.Stats)
			s.Get("/stats/current-month", d.Analytics.CurrentMonth)
			s.Get("/{id}", d.Sales.Get)
			s.Group(func(w chi.Router) {
				w.Use(limited)
				w.With(idem.Middleware).Post("/", d.Sales.Create)
				w.Put("/{id}", d.Sales.Update)
				w.Patch("/{id}/status", d.Sales.UpdateStatus)
				w.Delete("/{id}", d.Sales.Delete)
			})
		})

		if d.QueueAdmin != nil {
			v.Get("/admin/queues/{queue}", d.QueueAdmin.Stats)
		}
	})
	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
