package metrics

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "codex"

var (
	// Extraction metrics
	ExtractedCandidates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extracted_candidates_total",
			Help:      "Entity and relationship candidates enqueued for review",
		},
		[]string{"kind"},
	)

	FailedChunks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "failed_chunks_total",
		Help:      "Chunks whose extraction failed and was skipped",
	})

	DocumentsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_processed_total",
			Help:      "Documents that finished processing by final status",
		},
		[]string{"status"},
	)

	ProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "document_processing_seconds",
		Help:      "Time spent extracting a single document",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	// AI provider metrics
	AITokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_tokens_total",
			Help:      "Tokens consumed by extraction calls",
		},
		[]string{"direction"},
	)

	AIErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_errors_total",
			Help:      "Failed provider calls by failure class",
		},
		[]string{"provider", "kind"},
	)

	AICostUSD = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ai_estimated_cost_usd_total",
		Help:      "Estimated extraction cost in USD",
	})

	// Review metrics
	ReviewTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_transitions_total",
			Help:      "Review items moved out of pending",
		},
		[]string{"kind", "status", "source"},
	)

	BatchItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_items_total",
			Help:      "Items processed by batch operations",
		},
		[]string{"operation", "outcome"},
	)

	// Graph metrics
	GraphWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_writes_total",
			Help:      "Graph upserts by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Number of cache misses",
		},
		[]string{"cache"},
	)
)

// Handler exposes the default registry on an echo route.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
