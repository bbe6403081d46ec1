package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// AssetLister is the asset-listing collaborator consulted by Rebuild.
// One call returns every known asset of the given type.
type AssetLister interface {
	ListAssets(ctx context.Context, assetType AssetType) ([]CacheEntry, error)
}

// RebuildResult summarises one completed master-index rebuild.
type RebuildResult struct {
	Counts   map[AssetType]int `json:"counts"`
	Duration time.Duration     `json:"duration"`
}

// Rebuild re-derives the master index from the asset-listing
// collaborator, atomically replaces the in-memory representation, and
// persists the per-type collection objects. It is idempotent and safe
// under concurrent invocation: each call builds into a private
// MasterCache and the last successful swap wins; earlier in-flight
// rebuilds' partial work is discarded, never merged. gate throttles
// collaborator calls and may be nil.
func (s *Service) Rebuild(ctx context.Context, gate *rate.Limiter) (*RebuildResult, error) {
	if s.lister == nil {
		return nil, errors.New("rebuild: no asset lister configured")
	}

	start := nowUTC()
	master := make(MasterCache, len(AllAssetTypes()))
	counts := make(map[AssetType]int, len(AllAssetTypes()))

	for _, at := range AllAssetTypes() {
		if gate != nil {
			if err := gate.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rebuild: rate gate: %w", err)
			}
		}
		entries, err := s.lister.ListAssets(ctx, at)
		if err != nil {
			return nil, fmt.Errorf("rebuild: list %s: %w", at, err)
		}
		if entries == nil {
			entries = []CacheEntry{}
		}
		master[at] = entries
		counts[at] = len(entries)
	}

	s.swapMaster(master)

	if err := s.persistMaster(ctx, master); err != nil {
		return nil, err
	}

	duration := time.Since(start)
	rebuildDuration.Observe(duration.Seconds())
	s.logger.Printf("INFO master cache rebuilt: %d types in %s", len(master), duration)

	return &RebuildResult{Counts: counts, Duration: duration}, nil
}

// persistMaster writes one collection object per asset type, plus an
// individual object for entries flagged StorageIndividual.
func (s *Service) persistMaster(ctx context.Context, master MasterCache) error {
	for _, at := range AllAssetTypes() {
		entries := master[at]
		if entries == nil {
			entries = []CacheEntry{}
		}
		if err := s.Put(ctx, collectionKey(at), entries); err != nil {
			return fmt.Errorf("rebuild: persist %s collection: %w", at, err)
		}
		for _, e := range entries {
			if e.StorageType != StorageIndividual {
				continue
			}
			if err := s.Put(ctx, individualKey(at, e.AssetID), e); err != nil {
				return fmt.Errorf("rebuild: persist %s/%s: %w", at, e.AssetID, err)
			}
		}
	}
	return nil
}
