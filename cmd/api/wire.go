package main

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sales-api/internal/analytics"
	"github.com/noah-isme/sales-api/internal/app"
	"github.com/noah-isme/sales-api/internal/catalog"
	"github.com/noah-isme/sales-api/internal/config"
	"github.com/noah-isme/sales-api/internal/events"
	"github.com/noah-isme/sales-api/internal/pricing"
	"github.com/noah-isme/sales-api/internal/sale"
)

const resolverConcurrency = 8

type services struct {
	Catalog   *catalog.Service
	Sales     *sale.Service
	Analytics *analytics.Service
	Bus       *events.Bus
}

// newServices wires the domain services over the selected stores. Redis may be nil.
func newServices(cfg *config.Config, stores app.Stores, rdb *redis.Client, images catalog.ImageRemover, logger zerolog.Logger) (services, error) {
	analyticsLogger := logger.With().Str("component", "analytics").Logger()
	analyticsSvc := &analytics.Service{Q: stores.Sales, R: rdb, TTL: cfg.AnalyticsCacheTTL, Logger: &analyticsLogger}

	eventLogger := logger.With().Str("component", "events").Logger()
	bus := &events.Bus{
		Store: stores.Events,
		Notifiers: []events.Notifier{
			analyticsSvc,
			events.NotifierFunc(func(_ context.Context, ev events.Event) error {
				eventLogger.Debug().Str("topic", ev.Topic).Str("aggregate_id", ev.AggregateID.String()).Msg("domain event")
				return nil
			}),
		},
	}

	catalogLogger := logger.With().Str("component", "catalog").Logger()
	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Store:        stores.Products,
		Cache:        catalog.NewCache(rdb, cfg.CatalogCacheTTL),
		Images:       images,
		Events:       bus,
		Logger:       &catalogLogger,
		DefaultLimit: cfg.PageDefaultLimit,
		MaxLimit:     cfg.PageMaxLimit,
	})
	if err != nil {
		return services{}, err
	}

	saleLogger := logger.With().Str("component", "sale").Logger()
	saleSvc, err := sale.NewService(sale.ServiceConfig{
		Store:        stores.Sales,
		Resolver:     pricing.Resolver{Catalog: stores.Products, MaxConcurrency: resolverConcurrency},
		Products:     stores.Products,
		Events:       bus,
		Logger:       &saleLogger,
		DefaultLimit: cfg.PageDefaultLimit,
		MaxLimit:     cfg.PageMaxLimit,
	})
	if err != nil {
		return services{}, err
	}

	return services{Catalog: catalogSvc, Sales: saleSvc, Analytics: analyticsSvc, Bus: bus}, nil
}
