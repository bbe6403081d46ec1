package activity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"assetdex/pkg/bus"
	"assetdex/pkg/fault"
	"assetdex/services/catalog"
)

// Phase is the aggregator's position in one refresh cycle. A failure
// at any phase returns directly to PhaseIdle with no side effect on
// previously persisted state.
type Phase string

const (
	PhaseIdle              Phase = "IDLE"
	PhaseFetching          Phase = "FETCHING"
	PhaseCompacting        Phase = "COMPACTING"
	PhaseCacheBuilt        Phase = "CACHE_BUILT"
	PhasePersistenceMerged Phase = "PERSISTENCE_MERGED"
	PhasePersisted         Phase = "PERSISTED"
)

// AuditLogReader is the audit-log collaborator: raw records for one
// event name inside a time range.
type AuditLogReader interface {
	GetEventsByName(ctx context.Context, eventName string, start, end time.Time) ([]RawRecord, error)
}

// Aggregator drives the refresh pipeline and serves the aggregation
// read paths. Read paths touch only the cache tiers, never the audit
// log.
type Aggregator struct {
	cache     *catalog.Service
	reader    AuditLogReader
	compactor *Compactor
	gate      *rate.Limiter
	events    *bus.Bus
	logger    *log.Logger

	phaseMu sync.Mutex
	phase   Phase
}

// NewAggregator wires the refresh pipeline. gate throttles audit-log
// calls and may be nil; events may be nil when no broker is configured.
func NewAggregator(cache *catalog.Service, reader AuditLogReader, compactor *Compactor, gate *rate.Limiter, events *bus.Bus, logger *log.Logger) (*Aggregator, error) {
	if cache == nil {
		return nil, errors.New("cache service is required")
	}
	if reader == nil {
		return nil, errors.New("audit log reader is required")
	}
	if compactor == nil {
		return nil, errors.New("compactor is required")
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Aggregator{
		cache:     cache,
		reader:    reader,
		compactor: compactor,
		gate:      gate,
		events:    events,
		logger:    logger,
		phase:     PhaseIdle,
	}, nil
}

// Phase reports the current refresh phase.
func (a *Aggregator) Phase() Phase {
	a.phaseMu.Lock()
	defer a.phaseMu.Unlock()
	return a.phase
}

func (a *Aggregator) setPhase(p Phase) {
	a.phaseMu.Lock()
	a.phase = p
	a.phaseMu.Unlock()
}

// ClampDays bounds a requested lookback to [1, MaxLookbackDays],
// defaulting when unset.
func ClampDays(days int) int {
	switch {
	case days <= 0:
		return DefaultLookbackDays
	case days > MaxLookbackDays:
		return MaxLookbackDays
	default:
		return days
	}
}

// Refresh rebuilds the rolling activity window for the requested asset
// types and commits both the new ActivityCache and the merged
// ActivityPersistence. Failures anywhere in the pipeline are converted
// to a failed RefreshResult; the previously committed structures stay
// untouched. Concurrent refreshes do not coordinate: each builds a
// private window and the last successful commit wins wholesale.
func (a *Aggregator) Refresh(ctx context.Context, assetTypes []string, days int) RefreshResult {
	start := time.Now()
	defer a.setPhase(PhaseIdle)

	a.publish(ctx, subjectRefreshStarted, map[string]any{"assetTypes": assetTypes, "days": days})

	result := a.refresh(ctx, assetTypes, days)

	outcome := "success"
	if !result.Success {
		outcome = "failure"
		a.logger.Printf("ERROR activity refresh failed: %s", result.Message)
	}
	refreshTotal.WithLabelValues(outcome).Inc()
	refreshDuration.Observe(time.Since(start).Seconds())

	a.publish(ctx, subjectRefreshFinished, map[string]any{
		"success":   result.Success,
		"message":   result.Message,
		"refreshed": result.Refreshed,
	})

	return result
}

func (a *Aggregator) refresh(ctx context.Context, assetTypes []string, days int) RefreshResult {
	if len(assetTypes) == 0 {
		return failed(fault.Validation("assetTypes", "at least one asset type is required"))
	}
	for _, raw := range assetTypes {
		if raw == "all" || raw == "user" {
			continue
		}
		if _, err := catalog.ParseAssetType(raw); err != nil {
			return failed(fault.Validation("assetTypes", err.Error()))
		}
	}

	names := eventNamesFor(assetTypes)
	if len(names) == 0 {
		return failed(fault.Validation("assetTypes", "no tracked events for the requested types"))
	}

	days = ClampDays(days)
	end := time.Now().UTC()
	windowStart := end.AddDate(0, 0, -days)

	a.setPhase(PhaseFetching)
	batches := make(map[string][]RawRecord, len(names))
	for _, name := range names {
		if a.gate != nil {
			if err := a.gate.Wait(ctx); err != nil {
				return failed(fmt.Errorf("audit rate gate: %w", err))
			}
		}
		records, err := a.reader.GetEventsByName(ctx, name, windowStart, end)
		if err != nil {
			return failed(fmt.Errorf("fetch %s: %w", name, err))
		}
		batches[name] = records
	}

	a.setPhase(PhaseCompacting)
	buckets := make(map[string][]MinimalEvent)
	refreshed := make(map[string]int)
	for _, name := range names {
		for _, rec := range batches[name] {
			ev, err := a.compactor.Compact(rec, name)
			if err != nil {
				// One bad record never fails the batch.
				a.logger.Printf("WARN skipping audit record: %v", err)
				eventsDropped.Inc()
				continue
			}
			if ev == nil {
				eventsDropped.Inc()
				continue
			}
			key := dateKey(ev.T)
			buckets[key] = append(buckets[key], *ev)
			eventsCompacted.Inc()
			if at, ok := assetTypeForEvent(ev.E); ok {
				refreshed[string(at)]++
			}
		}
	}

	a.setPhase(PhaseCacheBuilt)
	window := ActivityCache{
		Version:     1,
		LastUpdated: time.Now().UTC(),
		DateRange:   DateRange{Start: windowStart, End: end},
		Events:      buckets,
	}

	existing, err := a.loadPersistence(ctx)
	if err != nil {
		return failed(fmt.Errorf("load persistence: %w", err))
	}

	a.setPhase(PhasePersistenceMerged)
	merged := Merge(window, existing)

	// Persistence lands first since it only advances dates and can
	// safely land alone. Memory sees neither structure until both
	// durable writes succeed, so a partial commit is never readable.
	err = a.cache.PutBatch(ctx,
		catalog.BatchEntry{Key: catalog.ActivityPersistenceKey(), Value: merged},
		catalog.BatchEntry{Key: catalog.ActivityCacheKey(), Value: window},
	)
	if err != nil {
		return failed(fmt.Errorf("commit refresh: %w", err))
	}
	a.setPhase(PhasePersisted)

	total := 0
	for _, n := range refreshed {
		total += n
	}
	return RefreshResult{
		Success:   true,
		Message:   fmt.Sprintf("refreshed %d events over %d days", total, days),
		Refreshed: refreshed,
	}
}

func failed(err error) RefreshResult {
	return RefreshResult{Success: false, Message: err.Error()}
}

// loadCache fetches the current window. A missing key is the expected
// steady state for a fresh system and yields an empty window.
func (a *Aggregator) loadCache(ctx context.Context) (ActivityCache, error) {
	var window ActivityCache
	if err := a.cache.Get(ctx, catalog.ActivityCacheKey(), &window); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return ActivityCache{Events: map[string][]MinimalEvent{}}, nil
		}
		return ActivityCache{}, err
	}
	if window.Events == nil {
		window.Events = map[string][]MinimalEvent{}
	}
	return window, nil
}

func (a *Aggregator) loadPersistence(ctx context.Context) (ActivityPersistence, error) {
	var persisted ActivityPersistence
	if err := a.cache.Get(ctx, catalog.ActivityPersistenceKey(), &persisted); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return emptyPersistence(), nil
		}
		return ActivityPersistence{}, err
	}
	if persisted.Dashboards == nil {
		persisted.Dashboards = map[string]string{}
	}
	if persisted.Analyses == nil {
		persisted.Analyses = map[string]string{}
	}
	if persisted.Users == nil {
		persisted.Users = map[string]string{}
	}
	return persisted, nil
}
