package obs_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sales-api/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("sales", []float64{1, 10}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/api/v1/sales"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodPost, "/api/v1/sales", "201"))
	require.Equal(t, float64(1), total)
	require.NotZero(t, testutil.CollectAndCount(metrics.ReqDur))
	require.Equal(t, float64(0), testutil.ToFloat64(metrics.InFlight))
}

func TestDomainMetricsHelpers(t *testing.T) {
	registry := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("sales", registry)

	obs.RecordSaleOperation("create", nil)
	obs.RecordSaleOperation("create", errors.New("boom"))
	obs.RecordSaleCreated("pending", "cash")
	obs.ObservePriceResolution(3*time.Millisecond, nil)
	obs.RecordImageCleanup(nil)

	require.Equal(t, float64(1), testutil.ToFloat64(obs.SaleOperationsTotal.WithLabelValues("create", "ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(obs.SaleOperationsTotal.WithLabelValues("create", "error")))
	require.Equal(t, float64(1), testutil.ToFloat64(obs.SalesCreatedTotal.WithLabelValues("pending", "cash")))
	require.Equal(t, float64(1), testutil.ToFloat64(obs.ImageCleanupTotal.WithLabelValues("ok")))
	require.Equal(t, 1, testutil.CollectAndCount(obs.PriceResolutionLatency))
}

func TestHTTPMetricsReuseOnSecondRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("sales", nil, registry)
	second := obs.NewHTTPMetrics("sales", nil, registry)
	require.Same(t, first.ReqTotal, second.ReqTotal)
}

func TestResponseBytesCounted(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("sales", nil, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/api/v1/products"))
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, float64(5), testutil.ToFloat64(metrics.RespBytes.WithLabelValues("/api/v1/products")))
}

func TestParseBucketsCSV(t *testing.T) {
	require.Nil(t, obs.ParseBucketsCSV(" "))
	require.Equal(t, []float64{5, 10, 2.5}, obs.ParseBucketsCSV("5, 10,,x,-1,2.5"))
}
