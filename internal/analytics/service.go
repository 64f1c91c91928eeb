package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/sales-api/internal/common"
	"github.com/noah-isme/sales-api/internal/events"
	"github.com/noah-isme/sales-api/internal/pricing"
	"github.com/noah-isme/sales-api/internal/sale"
)

// Querier defines the sale store reads required for statistics.
type Querier interface {
	AggregateCompleted(ctx context.Context, created sale.Range) (sale.Aggregate, error)
	List(ctx context.Context, filter sale.Filter, opts sale.ListOptions) ([]sale.Sale, int, error)
}

// Service derives revenue statistics from completed sales, caching the overview in Redis.
// Cache keys embed a generation number that Invalidate bumps, so an overview
// computed before a sale write can never be stored under a key that is read after it.
type Service struct {
	Q      Querier
	R      *redis.Client
	TTL    time.Duration
	Now    func() time.Time
	Logger *zerolog.Logger
}

// BasicStats summarises every completed sale.
type BasicStats struct {
	TotalSales        int           `json:"totalSales"`
	TotalRevenue      pricing.Money `json:"totalRevenue"`
	AverageOrderValue pricing.Money `json:"averageOrderValue"`
}

// PeriodStats summarises completed sales inside one calendar window.
type PeriodStats struct {
	Count   int           `json:"count"`
	Revenue pricing.Money `json:"revenue"`
}

// Overview is the payload of the stats endpoint.
type Overview struct {
	BasicStats
	CurrentMonthSales   int                         `json:"currentMonthSales"`
	CurrentMonthRevenue pricing.Money               `json:"currentMonthRevenue"`
	Periods             map[sale.Period]PeriodStats `json:"periods"`
}

const (
	cachePrefix   = "an:stats"
	generationKey = "an:gen"
)

func (s *Service) logger() *zerolog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	nop := zerolog.Nop()
	return &nop
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// BasicStats returns count, revenue and mean order value over completed sales.
// With no completed sales every figure is zero.
func (s *Service) BasicStats(ctx context.Context) (BasicStats, error) {
	if s == nil || s.Q == nil {
		return BasicStats{}, errors.New("analytics service not configured")
	}
	agg, err := s.Q.AggregateCompleted(ctx, sale.Range{})
	if err != nil {
		return BasicStats{}, common.StoreError(fmt.Errorf("aggregate completed sales: %w", err))
	}
	stats := BasicStats{TotalSales: agg.Count, TotalRevenue: decimal.Zero, AverageOrderValue: decimal.Zero}
	if agg.Count > 0 {
		stats.TotalRevenue = agg.Sum
		stats.AverageOrderValue = agg.Avg
	}
	return stats, nil
}

// CurrentMonthSales returns completed sales created in the current UTC calendar month.
func (s *Service) CurrentMonthSales(ctx context.Context) ([]sale.Sale, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("analytics service not configured")
	}
	items, _, err := s.Q.List(ctx,
		sale.Filter{Status: sale.StatusCompleted, Created: sale.MonthRange(s.now())},
		sale.ListOptions{Sort: sale.SortCreatedDesc},
	)
	if err != nil {
		return nil, common.StoreError(fmt.Errorf("list current month sales: %w", err))
	}
	return items, nil
}

// Overview combines basic stats, the current month and per-period breakdowns.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	now := s.now().UTC()
	key := cacheKey(cachePrefix, "overview", s.generation(ctx), now.Format("2006010215"))
	if cached, ok := s.fromCache(ctx, key); ok {
		return cached, nil
	}

	basic, err := s.BasicStats(ctx)
	if err != nil {
		return Overview{}, err
	}
	month, err := s.CurrentMonthSales(ctx)
	if err != nil {
		return Overview{}, err
	}
	out := Overview{
		BasicStats:          basic,
		CurrentMonthSales:   len(month),
		CurrentMonthRevenue: decimal.Zero,
		Periods:             make(map[sale.Period]PeriodStats, len(sale.Periods)),
	}
	for _, m := range month {
		out.CurrentMonthRevenue = out.CurrentMonthRevenue.Add(m.Total)
	}
	for _, p := range sale.Periods {
		agg, err := s.Q.AggregateCompleted(ctx, sale.PeriodRange(p, now))
		if err != nil {
			return Overview{}, common.StoreError(fmt.Errorf("aggregate %s: %w", p, err))
		}
		revenue := decimal.Zero
		if agg.Count > 0 {
			revenue = agg.Sum
		}
		out.Periods[p] = PeriodStats{Count: agg.Count, Revenue: revenue}
	}
	s.store(ctx, key, out)
	return out, nil
}

// Invalidate bumps the cache generation, then drops the stale entries.
func (s *Service) Invalidate(ctx context.Context) error {
	if s == nil || s.R == nil {
		return nil
	}
	if err := s.R.Incr(ctx, generationKey).Err(); err != nil {
		return err
	}
	iter := s.R.Scan(ctx, 0, cachePrefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.R.Del(ctx, keys...).Err()
}

// generation reads the current cache generation; a missing key is generation 0.
func (s *Service) generation(ctx context.Context) int64 {
	if s.R == nil || s.TTL <= 0 {
		return 0
	}
	gen, err := s.R.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		s.logger().Debug().Err(err).Msg("analytics cache generation read failed")
	}
	return gen
}

// Notify implements events.Notifier; sale writes invalidate cached statistics.
func (s *Service) Notify(ctx context.Context, ev events.Event) error {
	if !events.IsSaleTopic(ev.Topic) {
		return nil
	}
	return s.Invalidate(ctx)
}

func (s *Service) fromCache(ctx context.Context, key string) (Overview, bool) {
	if s.R == nil || s.TTL <= 0 {
		return Overview{}, false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return Overview{}, false
	}
	var out Overview
	if err := json.Unmarshal(data, &out); err != nil {
		return Overview{}, false
	}
	return out, true
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		s.logger().Debug().Err(err).Str("key", key).Msg("analytics cache encode failed")
		return
	}
	if err := s.R.Set(ctx, key, data, s.TTL).Err(); err != nil {
		s.logger().Debug().Err(err).Str("key", key).Msg("analytics cache write failed")
	}
}
