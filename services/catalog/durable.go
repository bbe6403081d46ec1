package catalog

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by DurableStore implementations when a key
// does not exist.
var ErrNotFound = errors.New("catalog: key not found")

// DurableStore is the durable tier behind MemoryCache: a key to JSON
// blob store. Implementations classify their failures via pkg/fault
// and apply the portal retry policy internally.
type DurableStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// Durable key scheme. Collection keys hold one JSON array per asset
// type; individual keys hold one entry each for assets too large to
// ride along in their collection object.
const (
	jobIndexKey            = "jobs/index.json"
	activityCacheKey       = "activity/cache.json"
	activityPersistenceKey = "activity/persistence.json"
)

func collectionKey(at AssetType) string {
	return fmt.Sprintf("cache/%s.json", at)
}

func individualKey(at AssetType, assetID string) string {
	return fmt.Sprintf("cache/%s/%s.json", at, assetID)
}

// JobIndexKey exposes the durable job-index key for operational tooling.
func JobIndexKey() string { return jobIndexKey }

// ActivityCacheKey is the durable key holding the rolling activity window.
func ActivityCacheKey() string { return activityCacheKey }

// ActivityPersistenceKey is the durable key holding long-term last-seen dates.
func ActivityPersistenceKey() string { return activityPersistenceKey }
