// Package api exposes the portal's cache and activity operations over
// HTTP.
package api

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	gos3 "assetdex/pkg/s3"
	"assetdex/services/activity"
	"assetdex/services/catalog"
)

const (
	defaultExportURLTTL = 15 * time.Minute
	defaultListerRate   = rate.Limit(5)
)

// Config controls runtime behaviour for the API handlers.
type Config struct {
	ExportBucket string
	ExportURLTTL time.Duration
	ListerRate   rate.Limit
}

// API wires the cache service, the activity aggregator, and handler
// configuration.
type API struct {
	cache      *catalog.Service
	activity   *activity.Aggregator
	s3         *gos3.Client
	config     Config
	logger     *log.Logger
	listerGate *rate.Limiter
}

// New initialises the API layer with sane defaults applied to the
// provided configuration. s3 may be nil when export downloads are not
// served.
func New(cache *catalog.Service, aggregator *activity.Aggregator, s3 *gos3.Client, cfg Config, logger *log.Logger) (*API, error) {
	if cache == nil {
		return nil, errors.New("cache service is required")
	}
	if aggregator == nil {
		return nil, errors.New("activity aggregator is required")
	}
	if logger == nil {
		logger = log.Default()
	}

	if cfg.ExportURLTTL <= 0 {
		cfg.ExportURLTTL = defaultExportURLTTL
	}
	if cfg.ExportBucket == "" {
		cfg.ExportBucket = strings.TrimSpace(os.Getenv("S3_BUCKET"))
	}
	if cfg.ListerRate <= 0 {
		cfg.ListerRate = defaultListerRate
	}

	return &API{
		cache:      cache,
		activity:   aggregator,
		s3:         s3,
		config:     cfg,
		logger:     logger,
		listerGate: rate.NewLimiter(cfg.ListerRate, int(cfg.ListerRate)+1),
	}, nil
}
