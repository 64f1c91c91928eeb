package obs

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SaleOperationsTotal counts sale writes by operation and outcome.
	SaleOperationsTotal *prometheus.CounterVec
	// SalesCreatedTotal counts persisted sales by initial status and payment method.
	SalesCreatedTotal *prometheus.CounterVec
	// PriceResolutionLatency records line-item resolution latency in milliseconds.
	PriceResolutionLatency *prometheus.HistogramVec
	// ImageCleanupTotal counts best-effort image removals by outcome.
	ImageCleanupTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SaleOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sale_operations_total",
			Help:      "Count of sale write operations by outcome.",
		}, []string{"operation", "result"})
		SalesCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_created_total",
			Help:      "Count of created sales by status and payment method.",
		}, []string{"status", "payment_method"})
		PriceResolutionLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "price_resolution_duration_ms",
			Help:      "Latency for resolving sale line item prices in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"result"})
		ImageCleanupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_cleanup_total",
			Help:      "Count of best-effort product image removals by outcome.",
		}, []string{"result"})

		mustRegisterCollector(reg, SaleOperationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SaleOperationsTotal = v
			}
		})
		mustRegisterCollector(reg, SalesCreatedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SalesCreatedTotal = v
			}
		})
		mustRegisterCollector(reg, PriceResolutionLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				PriceResolutionLatency = v
			}
		})
		mustRegisterCollector(reg, ImageCleanupTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ImageCleanupTotal = v
			}
		})
	})
}

// RecordSaleOperation increments SaleOperationsTotal when registered.
func RecordSaleOperation(operation string, err error) {
	if SaleOperationsTotal == nil {
		return
	}
	SaleOperationsTotal.WithLabelValues(operation, resultLabel(err)).Inc()
}

// RecordSaleCreated increments SalesCreatedTotal when registered.
func RecordSaleCreated(status, paymentMethod string) {
	if SalesCreatedTotal == nil {
		return
	}
	SalesCreatedTotal.WithLabelValues(status, paymentMethod).Inc()
}

// ObservePriceResolution records resolver latency when registered.
func ObservePriceResolution(d time.Duration, err error) {
	if PriceResolutionLatency == nil {
		return
	}
	PriceResolutionLatency.WithLabelValues(resultLabel(err)).Observe(DurationMillis(d))
}

// RecordImageCleanup increments ImageCleanupTotal when registered.
func RecordImageCleanup(err error) {
	if ImageCleanupTotal == nil {
		return
	}
	ImageCleanupTotal.WithLabelValues(resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
