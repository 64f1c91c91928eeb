package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sales-api/internal/app"
	"github.com/noah-isme/sales-api/internal/catalog"
	"github.com/noah-isme/sales-api/internal/config"
	"github.com/noah-isme/sales-api/internal/obs"
	"github.com/noah-isme/sales-api/internal/queue"
	"github.com/noah-isme/sales-api/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opt, err := app.AsynqRedisOpt(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("configure task queue")
	}

	remover, closeRemover := mustInitRemover(ctx, cfg, logger)
	defer closeRemover()

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency:     cfg.WorkerConcurrency,
		Queues:          map[string]int{queue.DefaultQueue: 1},
		ShutdownTimeout: 10 * time.Second,
		Logger:          asynqLogger{l: logger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Warn().Err(err).Str("type", task.Type()).Msg("task failed")
		}),
	})

	if addr := envOrDefault("WORKER_METRICS_ADDR", ""); addr != "" {
		go serveMetrics(ctx, addr, logger)
	}

	mux := queue.NewServeMux(queue.ImageDeleteHandler{Remover: remover, Logger: &logger})
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

// mustInitRemover returns the object storage remover, or a no-op when no bucket is set.
func mustInitRemover(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (catalog.ImageRemover, func()) {
	if cfg.ImageBucket == "" {
		logger.Warn().Msg("IMAGE_BUCKET not set; image removals are acknowledged without deleting anything")
		return catalog.NopImageRemover{}, func() {}
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("create storage client")
	}
	return storage.NewGCSRemover(client, cfg.ImageBucket), func() {
		if err := client.Close(); err != nil {
			logger.Error().Err(err).Msg("close storage client")
		}
	}
}

func serveMetrics(ctx context.Context, addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info().Str("addr", addr).Msg("worker metrics listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server")
	}
}

// asynqLogger routes asynq's internal logging through zerolog.
type asynqLogger struct {
	l zerolog.Logger
}

func (a asynqLogger) Debug(args ...any) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...any)  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...any) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...any) { a.l.Fatal().Msg(fmt.Sprint(args...)) }

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(val); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
