package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/sales-api/internal/analytics"
	"github.com/noah-isme/sales-api/internal/app"
	"github.com/noah-isme/sales-api/internal/catalog"
	"github.com/noah-isme/sales-api/internal/config"
	"github.com/noah-isme/sales-api/internal/health"
	"github.com/noah-isme/sales-api/internal/obs"
	"github.com/noah-isme/sales-api/internal/queue"
	"github.com/noah-isme/sales-api/internal/ratelimit"
	"github.com/noah-isme/sales-api/internal/sale"
	"github.com/noah-isme/sales-api/internal/security"
	"github.com/noah-isme/sales-api/internal/storage"
)

const serviceName = "sales-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	// Money leaves the API as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "sales")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", false)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   serviceName,
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stores, err := app.OpenStores(startCtx, cfg, serviceName, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open stores")
	}
	defer stores.Close()

	redisClient, err := app.OpenRedis(startCtx, cfg.RedisURL, metricsEnabled, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	} else {
		logger.Warn().Msg("REDIS_URL not set; caching, idempotency and shared rate limits disabled")
	}

	images, queueAdmin, closeImages := imageRemover(startCtx, cfg, logger)
	defer closeImages()

	svcs, err := newServices(cfg, stores, redisClient, images, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise services")
	}

	limiterStore, err := app.NewLimiterStore(redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limit store")
	}
	rateLimiter, err := ratelimit.New(limiterStore, cfg.RateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", "")), nil)
	}

	var pprofHandler http.Handler
	if envBool("OBS_ENABLE_PPROF", false) {
		pprofHandler = protectPprof(newPprofMux(), envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", ""), envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", ""))
	}

	handler := newRouter(routerDeps{
		Logger:         logger,
		Catalog:        catalog.NewHandler(catalog.HandlerConfig{Service: svcs.Catalog}),
		Sales:          sale.NewHandler(sale.HandlerConfig{Service: svcs.Sales}),
		Analytics:      &analytics.Handler{Svc: svcs.Analytics},
		Health:         health.Handler{Probes: readinessProbes(stores, redisClient), Timeout: envDurationMillis("HEALTH_READY_TIMEOUT_MS", 500)},
		QueueAdmin:     queueAdmin,
		Redis:          redisClient,
		Limiter:        rateLimiter,
		HTTPMetrics:    httpMetrics,
		Tracing:        tracingEnabled,
		MetricsEnabled: metricsEnabled,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		BodyLimit:      cfg.BodyLimitBytes,
		IdempotencyTTL: cfg.IdempotencyTTL,
		SecureHeaders: security.Headers{
			Enable:     envBool("SECURE_HEADERS_ENABLE", true),
			EnableHSTS: envBool("SECURE_HSTS_ENABLE", cfg.AppEnv == "production"),
		},
		Pprof: pprofHandler,
	})
	if tracingEnabled {
		handler = otelhttp.NewHandler(handler, "http.server", otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/metrics" && !strings.HasPrefix(r.URL.Path, "/health/")
		}))
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("store", cfg.StoreDriver).Msg("server starting")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
		health.SetReady(false)
		logger.Info().Msg("shutdown signal received")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), envDurationMillis("SHUTDOWN_TIMEOUT_MS", 15000))
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
		logger.Info().Msg("server stopped")
	}
}

// imageRemover picks the cleanup backend: the worker queue, direct GCS, or a no-op.
func imageRemover(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (catalog.ImageRemover, *queue.AdminHandler, func()) {
	switch {
	case cfg.ImageCleanupAsync:
		opt, err := app.AsynqRedisOpt(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("configure image cleanup queue")
		}
		client := asynq.NewClient(opt)
		inspector := asynq.NewInspector(opt)
		logger.Info().Msg("image cleanup queued to worker")
		return queue.Enqueuer{Client: client, Queue: queue.DefaultQueue},
			&queue.AdminHandler{Inspector: inspector},
			func() {
				_ = client.Close()
				_ = inspector.Close()
			}
	case cfg.ImageBucket != "":
		client, err := gcs.NewClient(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("create storage client; image cleanup disabled")
			return catalog.NopImageRemover{}, nil, func() {}
		}
		logger.Info().Str("bucket", cfg.ImageBucket).Msg("image cleanup via cloud storage")
		return storage.NewGCSRemover(client, cfg.ImageBucket), nil, func() { _ = client.Close() }
	default:
		return catalog.NopImageRemover{}, nil, func() {}
	}
}

func readinessProbes(stores app.Stores, rdb *redis.Client) map[string]health.Probe {
	probes := map[string]health.Probe{}
	if stores.Pool != nil {
		probes["db"] = func(ctx context.Context) error { return stores.Pool.Ping(ctx) }
	}
	if rdb != nil {
		probes["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return probes
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(val); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil && parsed > 0 {
			return time.Duration(parsed) * time.Millisecond
		}
	}
	return time.Duration(fallback) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
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
