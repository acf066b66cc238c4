package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hydromon"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion pipeline and its sinks.
type Metrics struct {
	// Sheet fetching.
	FetchRequests *prometheus.CounterVec   // labels: station, outcome={success,error}
	FetchDuration *prometheus.HistogramVec // labels: station
	FetchCache    *prometheus.CounterVec   // labels: result={hit,miss,error}

	// Normalization.
	RowsParsed   *prometheus.CounterVec // labels: station
	RowsDropped  *prometheus.CounterVec // labels: station, reason={timestamp}
	InvalidCells *prometheus.CounterVec // labels: station, column={level,rain}

	// Serving.
	ViewsServed *prometheus.CounterVec // labels: station, outcome={ok,no_data,error}

	// Background sync.
	SyncRuns          *prometheus.CounterVec // labels: outcome={success,error}
	ReadingsPublished *prometheus.CounterVec // labels: sink
	SchedulerRunning  prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FetchRequests,
		m.FetchDuration,
		m.FetchCache,
		m.RowsParsed,
		m.RowsDropped,
		m.InvalidCells,
		m.ViewsServed,
		m.SyncRuns,
		m.ReadingsPublished,
		m.SchedulerRunning,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Sheet export requests by station and outcome.",
		}, []string{"station", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Sheet export request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"station"}),
		FetchCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_cache_total",
			Help:      "Fetch cache lookups by result.",
		}, []string{"result"}),
		RowsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_parsed_total",
			Help:      "Sheet rows normalized into readings.",
		}, []string{"station"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Rows dropped during normalization, by reason.",
		}, []string{"station", "reason"}),
		InvalidCells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_cells_total",
			Help:      "Non-numeric measurement cells read as missing; the row is kept.",
		}, []string{"station", "column"}),
		ViewsServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "views_served_total",
			Help:      "Dashboard views built by station and outcome.",
		}, []string{"station", "outcome"}),
		SyncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Background sync runs by outcome.",
		}, []string{"outcome"}),
		ReadingsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_published_total",
			Help:      "Readings handed to each sink.",
		}, []string{"sink"}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "1 when the refresh scheduler is active, 0 otherwise.",
		}),
	}
}
