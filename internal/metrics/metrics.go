package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for scrape runs.
type Metrics struct {
	Registry       *prometheus.Registry
	Navigations    *prometheus.CounterVec
	RecordsTotal   *prometheus.CounterVec
	RunsTotal      *prometheus.CounterVec
	ErrorsTotal    *prometheus.CounterVec
	SourceDuration *prometheus.HistogramVec
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	navigations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_navigations_total",
			Help: "Browser navigations issued, by operation.",
		},
		[]string{"op"},
	)
	records := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_records_total",
			Help: "Records extracted, by source.",
		},
		[]string{"source"},
	)
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_runs_total",
			Help: "Aggregation runs, by final status.",
		},
		[]string{"status"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_errors_total",
			Help: "Fatal source errors, by kind.",
		},
		[]string{"kind"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "listing_source_duration_seconds",
			Help:    "Wall time spent scraping one source.",
			Buckets: []float64{1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"source"},
	)

	registry.MustRegister(navigations, records, runs, errorsTotal, duration)

	return &Metrics{
		Registry:       registry,
		Navigations:    navigations,
		RecordsTotal:   records,
		RunsTotal:      runs,
		ErrorsTotal:    errorsTotal,
		SourceDuration: duration,
	}
}

func (m *Metrics) IncNavigation(op string) {
	if m == nil {
		return
	}
	m.Navigations.WithLabelValues(op).Inc()
}

func (m *Metrics) AddRecords(source string, n int) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) IncRun(status string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncError(kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveSource(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.SourceDuration.WithLabelValues(source).Observe(d.Seconds())
}
