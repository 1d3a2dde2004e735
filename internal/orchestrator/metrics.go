package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	documentsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "contextpack",
			Subsystem: "context",
			Name:      "documents_ingested_total",
			Help:      "Total number of documents registered",
		},
	)

	chunksStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "contextpack",
			Subsystem: "context",
			Name:      "chunks_stored",
			Help:      "Number of live chunks in the store",
		},
	)

	dedupRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "contextpack",
			Subsystem: "context",
			Name:      "dedup_removed_total",
			Help:      "Total number of units discarded by ingestion-time deduplication",
		},
	)

	chunksEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "contextpack",
			Subsystem: "context",
			Name:      "chunks_evicted_total",
			Help:      "Total number of chunks tombstoned under memory pressure",
		},
	)

	queriesServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contextpack",
			Subsystem: "context",
			Name:      "queries_total",
			Help:      "Total number of context assemblies by outcome",
		},
		[]string{"outcome"},
	)

	contextTokens = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "contextpack",
			Subsystem: "context",
			Name:      "assembled_tokens",
			Help:      "Token count of assembled contexts",
			Buckets:   prometheus.ExponentialBuckets(16, 2, 10),
		},
	)
)
