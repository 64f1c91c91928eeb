// Package app builds the infrastructure shared by the API, the worker and tools.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/sales-api/internal/catalog"
	"github.com/noah-isme/sales-api/internal/config"
	"github.com/noah-isme/sales-api/internal/db"
	"github.com/noah-isme/sales-api/internal/events"
	"github.com/noah-isme/sales-api/internal/obs"
	"github.com/noah-isme/sales-api/internal/repo"
	"github.com/noah-isme/sales-api/internal/sale"
)

// Stores groups the persistence backends selected by STORE_DRIVER.
type Stores struct {
	Products catalog.Store
	Sales    sale.Store
	Events   events.EventStore
	Pool     *pgxpool.Pool
}

// Close releases the pool when one was opened.
func (s Stores) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// OpenStores returns in-memory stores or pgx-backed repositories, migrating
// first when DB_AUTO_MIGRATE is set.
func OpenStores(ctx context.Context, cfg *config.Config, appName string, logger zerolog.Logger) (Stores, error) {
	if !cfg.UsesPostgres() {
		logger.Warn().Msg("using in-memory stores; data is lost on restart")
		return Stores{Products: catalog.NewMemoryStore(), Sales: sale.NewMemoryStore()}, nil
	}
	if cfg.DBAutoMigrate {
		if err := db.Up(cfg.DatabaseURL); err != nil {
			return Stores{}, err
		}
		logger.Info().Msg("database migrations applied")
	}
	pool, err := OpenPostgres(ctx, cfg.DatabaseURL, appName)
	if err != nil {
		return Stores{}, err
	}
	return Stores{
		Products: &repo.ProductRepo{DB: pool, Timeout: cfg.StoreQueryTimeout},
		Sales:    &repo.SaleRepo{DB: pool, Timeout: cfg.StoreQueryTimeout},
		Events:   &repo.EventRepo{DB: pool, Timeout: cfg.StoreQueryTimeout},
		Pool:     pool,
	}, nil
}

// OpenPostgres connects a traced pgx pool and verifies it with a ping.
func OpenPostgres(ctx context.Context, databaseURL, appName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = appName

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

// OpenRedis returns nil when no URL is configured; callers treat Redis as optional.
func OpenRedis(ctx context.Context, redisURL string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewLimiterStore backs rate limiting with Redis, or returns nil for the in-process store.
func NewLimiterStore(rdb *redis.Client) (limiter.Store, error) {
	if rdb == nil {
		return nil, nil
	}
	return limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "sales-api:ratelimit", MaxRetry: 3})
}

// AsynqRedisOpt converts a redis URL for asynq clients and servers.
func AsynqRedisOpt(redisURL string) (asynq.RedisConnOpt, error) {
	if redisURL == "" {
		return nil, errors.New("REDIS_URL is required for background jobs")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url for asynq: %w", err)
	}
	return opt, nil
}
