package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"lokkagw/internal/domain"
)

type PrometheusMetrics struct {
	childCallDuration      *prometheus.HistogramVec
	childCalls             *prometheus.CounterVec
	catalogRefreshes       *prometheus.CounterVec
	catalogRefreshDuration prometheus.Histogram
	catalogTools           prometheus.Gauge
	httpDuration           *prometheus.HistogramVec
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		childCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lokkagw_child_call_duration_seconds",
				Help:    "Duration of child JSON-RPC round trips in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "status"},
		),
		childCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lokkagw_child_calls_total",
				Help: "Total number of child JSON-RPC calls by outcome",
			},
			[]string{"method", "status"},
		),
		catalogRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lokkagw_catalog_refreshes_total",
				Help: "Total number of tool catalog refresh attempts",
			},
			[]string{"status"},
		),
		catalogRefreshDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lokkagw_catalog_refresh_duration_seconds",
				Help:    "Duration of tool catalog refreshes in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		catalogTools: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "lokkagw_catalog_tools",
				Help: "Number of tools in the current catalog snapshot",
			},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lokkagw_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "code"},
		),
	}
}

func (p *PrometheusMetrics) ObserveChildCall(method string, status domain.CallStatus, duration time.Duration) {
	if method == "" {
		method = "unknown"
	}
	p.childCalls.WithLabelValues(method, string(status)).Inc()
	if status == domain.CallStatusNotReady {
		return
	}
	p.childCallDuration.WithLabelValues(method, string(status)).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveCatalogRefresh(err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.catalogRefreshes.WithLabelValues(status).Inc()
	p.catalogRefreshDuration.Observe(duration.Seconds())
}

func (p *PrometheusMetrics) SetCatalogTools(count int) {
	p.catalogTools.Set(float64(count))
}

func (p *PrometheusMetrics) ObserveHTTPRequest(route string, status int, duration time.Duration) {
	p.httpDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(duration.Seconds())
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)
