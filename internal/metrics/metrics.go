package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// Metrics holds the Prometheus collectors of the billing engine
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Billing run metrics
	BillingRunsTotal          *prometheus.CounterVec
	BillingRunDuration        prometheus.Histogram
	BillingPlansProcessed     prometheus.Counter
	OccurrencesGeneratedTotal prometheus.Counter
	BillingPlanFailuresTotal  prometheus.Counter

	registry *prometheus.Registry
}

func Module() fx.Option {
	return fx.Provide(func() *Metrics {
		return NewMetrics(prometheus.NewRegistry())
	})
}

// NewMetrics creates and registers every collector on registry
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billing_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		BillingRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_runs_total",
				Help: "Total number of scheduled billing runs by result",
			},
			[]string{"result"},
		),
		BillingRunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "billing_run_duration_seconds",
				Help:    "Duration of a scheduled billing run in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		BillingPlansProcessed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "billing_plans_processed_total",
				Help: "Total number of active plans visited by billing runs",
			},
		),
		OccurrencesGeneratedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "billing_occurrences_generated_total",
				Help: "Total number of occurrences persisted by billing runs",
			},
		),
		BillingPlanFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "billing_plan_failures_total",
				Help: "Total number of plans a billing run could not advance",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BillingRunsTotal,
		m.BillingRunDuration,
		m.BillingPlansProcessed,
		m.OccurrencesGeneratedTotal,
		m.BillingPlanFailuresTotal,
	)

	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
