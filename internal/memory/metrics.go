package memory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UsagePercent is the last sampled process memory usage.
	UsagePercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "contextpack",
			Subsystem: "memory",
			Name:      "usage_percent",
			Help:      "Process resident memory as a percentage of the reference memory",
		},
	)

	// AdvisedBudget is the last advised context budget.
	AdvisedBudget = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "contextpack",
			Subsystem: "memory",
			Name:      "advised_budget_tokens",
			Help:      "Most recent context budget advised under memory pressure",
		},
	)

	// Evictions counts entries released by evictors.
	Evictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "contextpack",
			Subsystem: "memory",
			Name:      "evictions_total",
			Help:      "Total number of cached entries released under memory pressure",
		},
	)

	// DegradedAdvice counts advice that pressure lowered to the minimum budget.
	DegradedAdvice = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "contextpack",
			Subsystem: "memory",
			Name:      "degraded_advice_total",
			Help:      "Total number of budget advices clamped at the minimum budget",
		},
	)
)
