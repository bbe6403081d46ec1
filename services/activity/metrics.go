package activity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assetdex_activity_refresh_total",
		Help: "Completed activity refresh cycles by outcome.",
	}, []string{"outcome"})

	refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "assetdex_activity_refresh_duration_seconds",
		Help:    "Wall time of activity refresh cycles.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	eventsCompacted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assetdex_activity_events_compacted_total",
		Help: "Raw audit records compacted into the rolling window.",
	})

	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assetdex_activity_events_dropped_total",
		Help: "Raw audit records dropped or skipped during compaction.",
	})
)
