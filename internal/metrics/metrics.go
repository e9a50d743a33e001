// Package metrics defines the Prometheus collectors of the notes index and
// exposes an HTTP handler for scraping.
//
// All Record methods are safe to call on a nil *Metrics, so components can
// run without instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the index.
type Metrics struct {
	MutationsTotal       *prometheus.CounterVec
	Generation           prometheus.Gauge
	PersistedGeneration  prometheus.Gauge
	Documents            prometheus.Gauge
	Terms                prometheus.Gauge
	PersistDuration      prometheus.Histogram
	PersistTotal         *prometheus.CounterVec
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        prometheus.Histogram
	SearchResultsCount   prometheus.Histogram
	ContentCacheRequests *prometheus.CounterVec
	WatcherEventsTotal   *prometheus.CounterVec
}

// New creates all collectors and registers them on reg.
// A nil reg leaves them unregistered, which is what tests usually want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notes_index_mutations_total",
				Help: "Index mutations by operation and result (applied, noop, error).",
			},
			[]string{"op", "result"},
		),
		Generation: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "notes_index_generation",
				Help: "Generation of the currently published snapshot.",
			},
		),
		PersistedGeneration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "notes_index_persisted_generation",
				Help: "Generation of the last snapshot written to disk.",
			},
		),
		Documents: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "notes_index_documents",
				Help: "Number of documents in the published snapshot.",
			},
		),
		Terms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "notes_index_terms",
				Help: "Number of distinct terms in the published snapshot.",
			},
		),
		PersistDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "notes_index_persist_duration_seconds",
				Help:    "Time spent writing a snapshot file.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
		),
		PersistTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notes_index_persist_total",
				Help: "Snapshot write requests by status (ok, skipped, error).",
			},
			[]string{"status"},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notes_index_search_queries_total",
				Help: "Search queries by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "notes_index_search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "notes_index_search_results_count",
				Help:    "Number of matching documents per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		ContentCacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notes_index_content_cache_requests_total",
				Help: "Snippet content cache lookups by outcome (hit, miss).",
			},
			[]string{"outcome"},
		),
		WatcherEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notes_index_watcher_events_total",
				Help: "Notes directory events handled by the watcher, by action.",
			},
			[]string{"action"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.collectors()...)
	}
	return m
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MutationsTotal,
		m.Generation,
		m.PersistedGeneration,
		m.Documents,
		m.Terms,
		m.PersistDuration,
		m.PersistTotal,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.ContentCacheRequests,
		m.WatcherEventsTotal,
	}
}

// RecordMutation counts one mutation attempt.
func (m *Metrics) RecordMutation(op, result string) {
	if m == nil {
		return
	}
	m.MutationsTotal.WithLabelValues(op, result).Inc()
}

// RecordSnapshot updates the gauges describing the published snapshot.
func (m *Metrics) RecordSnapshot(generation uint64, documents, terms int) {
	if m == nil {
		return
	}
	m.Generation.Set(float64(generation))
	m.Documents.Set(float64(documents))
	m.Terms.Set(float64(terms))
}

// RecordPersist records the outcome of one snapshot write request.
func (m *Metrics) RecordPersist(generation uint64, took time.Duration, skipped bool, err error) {
	if m == nil {
		return
	}
	switch {
	case skipped:
		m.PersistTotal.WithLabelValues("skipped").Inc()
	case err != nil:
		m.PersistTotal.WithLabelValues("error").Inc()
		m.PersistDuration.Observe(took.Seconds())
	default:
		m.PersistTotal.WithLabelValues("ok").Inc()
		m.PersistDuration.Observe(took.Seconds())
		m.PersistedGeneration.Set(float64(generation))
	}
}

// RecordSearch records one search query.
func (m *Metrics) RecordSearch(took time.Duration, total int, err error) {
	if m == nil {
		return
	}
	switch {
	case err != nil:
		m.SearchQueriesTotal.WithLabelValues("error").Inc()
		return
	case total == 0:
		m.SearchQueriesTotal.WithLabelValues("zero_result").Inc()
	default:
		m.SearchQueriesTotal.WithLabelValues("hit").Inc()
	}
	m.SearchLatency.Observe(took.Seconds())
	m.SearchResultsCount.Observe(float64(total))
}

// RecordContentCache counts one snippet content cache lookup.
func (m *Metrics) RecordContentCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.ContentCacheRequests.WithLabelValues("hit").Inc()
		return
	}
	m.ContentCacheRequests.WithLabelValues("miss").Inc()
}

// RecordWatcherEvent counts one watcher action (indexed, unchanged, removed, failed).
func (m *Metrics) RecordWatcherEvent(action string) {
	if m == nil {
		return
	}
	m.WatcherEventsTotal.WithLabelValues(action).Inc()
}

// Handler returns the scrape handler for the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
