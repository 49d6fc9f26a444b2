// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flixtube_ingest_total",
			Help: "Ingestion attempts by outcome (created, already_exists, not_found, invalid, error)",
		},
		[]string{"outcome"},
	)

	ResolverRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flixtube_resolver_requests_total",
			Help: "Upstream metadata lookups by result (success, not_found, failure, rejected)",
		},
		[]string{"result"},
	)

	// 0 = closed, 1 = half-open, 2 = open
	ResolverBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flixtube_resolver_breaker_state",
			Help: "Circuit breaker state of the metadata resolver",
		},
	)

	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flixtube_recommend_duration_seconds",
			Help:    "Time to answer a recommendation query, index build included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	IndexCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flixtube_index_cache_total",
			Help: "Similarity index cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	IndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flixtube_index_documents",
			Help: "Documents in the most recently built similarity index",
		},
	)

	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flixtube_jobs_processed_total",
			Help: "Background jobs by type and result (done, retried, requeued, dead)",
		},
		[]string{"type", "result"},
	)
)
