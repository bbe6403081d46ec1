package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assetdex_cache_hits_total",
		Help: "Cache reads served by a tier.",
	}, []string{"tier"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assetdex_cache_misses_total",
		Help: "Cache reads that fell through a tier.",
	}, []string{"tier"})

	rebuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "assetdex_master_rebuild_duration_seconds",
		Help:    "Wall time of full master index rebuilds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)
