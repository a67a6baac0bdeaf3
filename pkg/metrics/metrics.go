// Package metrics defines the Prometheus metric collectors used by the
// search library and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the search engine.
type Metrics struct {
	TermsIndexedTotal     prometheus.Counter
	PostingsFlushedTotal  prometheus.Counter
	IndexFlushesTotal     *prometheus.CounterVec
	SearchQueriesTotal    *prometheus.CounterVec
	SearchLatency         prometheus.Histogram
	SearchResultsCount    prometheus.Histogram
	CacheHitsTotal        prometheus.Counter
	CacheMissesTotal      prometheus.Counter
	OptimizeRunsTotal     *prometheus.CounterVec
	PostingsMergedTotal   prometheus.Counter
	PostingsRemovedTotal  prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		TermsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_terms_indexed_total",
				Help: "Total distinct (kind, field, term) postings accumulated by indexer batches.",
			},
		),
		PostingsFlushedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_postings_flushed_total",
				Help: "Total posting records written to the index store.",
			},
		),
		IndexFlushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_index_flushes_total",
				Help: "Total indexer save operations by status.",
			},
			[]string{"status"},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by outcome (ok, zero_result, invalid, error).",
			},
			[]string{"outcome"},
		),
		SearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_query_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of matching entity keys per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		OptimizeRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_optimize_runs_total",
				Help: "Total per-term index optimization runs by status.",
			},
			[]string{"status"},
		),
		PostingsMergedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_postings_merged_total",
				Help: "Total posting records consolidated by the optimizer.",
			},
		),
		PostingsRemovedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_postings_removed_total",
				Help: "Net posting records removed by the optimizer.",
			},
		),
	}

	prometheus.MustRegister(
		m.TermsIndexedTotal,
		m.PostingsFlushedTotal,
		m.IndexFlushesTotal,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.OptimizeRunsTotal,
		m.PostingsMergedTotal,
		m.PostingsRemovedTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
