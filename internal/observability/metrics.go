package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for the ingestion and decision
// pipeline.
type Metrics struct {
	CycleDuration    prometheus.Histogram
	CollectorRunning prometheus.Gauge

	ObservationsStored    *prometheus.CounterVec // labels: source
	DuplicateObservations *prometheus.CounterVec // labels: source
	AdapterErrors         *prometheus.CounterVec // labels: source
	DisastersCreated      *prometheus.CounterVec // labels: type, origin

	CacheLookups  *prometheus.CounterVec // labels: result={hit,miss}
	AICalls       *prometheus.CounterVec // labels: kind, outcome={success,error}
	ParseFailures *prometheus.CounterVec // labels: kind

	AlertsRecorded *prometheus.CounterVec // labels: status={sent,failed}
	SMSRetries     prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CycleDuration,
		m.CollectorRunning,
		m.ObservationsStored,
		m.DuplicateObservations,
		m.AdapterErrors,
		m.DisastersCreated,
		m.CacheLookups,
		m.AICalls,
		m.ParseFailures,
		m.AlertsRecorded,
		m.SMSRetries,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kdms",
			Name:      "collect_cycle_duration_seconds",
			Help:      "Duration of a full collection cycle across all adapters.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		CollectorRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kdms",
			Name:      "collector_running",
			Help:      "1 while a collection cycle is in progress.",
		}),
		ObservationsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kdms",
			Name:      "observations_stored_total",
			Help:      "Observations persisted, by source.",
		}, []string{"source"}),
		DuplicateObservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kdms",
			Name:      "observations_duplicate_total",
			Help:      "Observations whose fingerprint matched the prior reading.",
		}, []string{"source"}),
		AdapterErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kdms",
			Name:      "adapter_errors_total",
			Help:      "Source adapter failures, by source.",
		}, []string{"source"}),
		DisastersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kdms",
			Name:      "disasters_created_total",
			Help:      "Disaster records created, by type and origin.",
		}, []string{"type", "origin"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kdms",
			Name:      "analysis_cache_lookups_total",
			Help:      "Analysis cache lookups by result.",
		}, []string{"result"}),
		AICalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kdms",
			Name:      "ai_calls_total",
			Help:      "Upstream AI collaborator calls by analysis kind and outcome.",
		}, []string{"kind", "outcome"}),
		ParseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kdms",
			Name:      "ai_parse_failures_total",
			Help:      "AI responses that did not match the expected schema.",
		}, []string{"kind"}),
		AlertsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kdms",
			Name:      "alerts_recorded_total",
			Help:      "Alerts recorded, by final status.",
		}, []string{"status"}),
		SMSRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kdms",
			Name:      "sms_retries_total",
			Help:      "SMS send attempts beyond the first.",
		}),
	}
}
