package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pagesTotal tracks dispatched URLs by terminal outcome.
	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitedown_pages_total",
		Help: "Total number of dispatched URLs, labeled by outcome.",
	}, []string{"outcome"})

	// fetchRetriesTotal tracks fetch attempts beyond the first.
	fetchRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitedown_fetch_retries_total",
		Help: "Total number of fetch retries across all URLs.",
	})

	// fetchDurationSeconds observes successful fetch latencies.
	fetchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sitedown_fetch_duration_seconds",
		Help:    "Histogram of successful fetch latencies.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	// frontierLevelSize observes the number of URLs dispatched per level.
	frontierLevelSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sitedown_frontier_level_size",
		Help:    "Histogram of frontier level sizes at dispatch time.",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
	})
)
