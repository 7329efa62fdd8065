package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry             *prometheus.Registry
	measurementsIngested prometheus.Counter
	alertsRaised         *prometheus.CounterVec
	recomputeDuration    prometheus.Histogram
	httpRequestsTotal    *prometheus.CounterVec
}

// New registers the collectors on a private registry so tests can build
// as many instances as they like.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		measurementsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aquatracking_measurements_ingested_total",
			Help: "Total measurements accepted by the ingestion pipeline.",
		}),
		alertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aquatracking_alerts_raised_total",
			Help: "Total system alerts created by the threshold evaluator, by type.",
		}, []string{"type"}),
		recomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aquatracking_rollup_recompute_duration_seconds",
			Help:    "Histogram of daily rollup recompute durations.",
			Buckets: prometheus.DefBuckets,
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
	}
	m.registry.MustRegister(
		m.measurementsIngested,
		m.alertsRaised,
		m.recomputeDuration,
		m.httpRequestsTotal,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) MeasurementIngested() {
	if m != nil {
		m.measurementsIngested.Inc()
	}
}

func (m *Metrics) AlertRaised(alertType string) {
	if m != nil {
		m.alertsRaised.WithLabelValues(alertType).Inc()
	}
}

func (m *Metrics) ObserveRecompute(seconds float64) {
	if m != nil {
		m.recomputeDuration.Observe(seconds)
	}
}

func (m *Metrics) HTTPRequest(route, status string) {
	if m != nil {
		m.httpRequestsTotal.WithLabelValues(route, status).Inc()
	}
}
