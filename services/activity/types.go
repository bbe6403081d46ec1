// Package activity compacts raw audit-log records into per-day event
// buckets and aggregates them into per-asset and per-user view
// statistics. Long-term last-seen dates are merged into a persistence
// structure that outlives the rolling event window.
package activity

import (
	"time"

	"assetdex/services/catalog"
)

// MaxLookbackDays caps the rolling window length.
const MaxLookbackDays = 90

// DefaultLookbackDays is used when a refresh request omits days.
const DefaultLookbackDays = 30

// MinimalEvent is the compacted encoding of one audit event: timestamp,
// event name, actor, and optionally the target resource. Kept minimal
// on purpose to bound storage growth.
type MinimalEvent struct {
	T string `json:"t"`
	E string `json:"e"`
	U string `json:"u"`
	R string `json:"r,omitempty"`
}

// DateRange is the inclusive UTC window covered by an ActivityCache.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ActivityCache is the rolling window of compacted events, bucketed by
// UTC calendar date. It is replaced wholesale on every refresh.
type ActivityCache struct {
	Version     int                       `json:"version"`
	LastUpdated time.Time                 `json:"lastUpdated"`
	DateRange   DateRange                 `json:"dateRange"`
	Events      map[string][]MinimalEvent `json:"events"`
}

// ActivityPersistence holds long-term last-seen dates per entity. It is
// the only structure with unbounded retention; entries are created on
// first sighting and updated monotonically, never deleted.
type ActivityPersistence struct {
	Version     int               `json:"version"`
	LastUpdated time.Time         `json:"lastUpdated"`
	Dashboards  map[string]string `json:"dashboards"`
	Analyses    map[string]string `json:"analyses"`
	Users       map[string]string `json:"users"`
}

func emptyPersistence() ActivityPersistence {
	return ActivityPersistence{
		Version:    1,
		Dashboards: map[string]string{},
		Analyses:   map[string]string{},
		Users:      map[string]string{},
	}
}

// RefreshResult reports the outcome of one refresh cycle.
type RefreshResult struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Refreshed map[string]int `json:"refreshed,omitempty"`
}

// TypeSummary is the portal-wide tally for one asset type.
type TypeSummary struct {
	Views         int `json:"views"`
	UniqueViewers int `json:"uniqueViewers"`
}

// Summary is the portal-wide activity overview. A missing cache yields
// the all-zero value, never an error.
type Summary struct {
	TotalEvents  int                    `json:"totalEvents"`
	ByType       map[string]TypeSummary `json:"byType"`
	UserActivity map[string]int         `json:"userActivity"`
	DateRange    *DateRange             `json:"dateRange,omitempty"`
	LastUpdated  *time.Time             `json:"lastUpdated,omitempty"`
}

// ViewerStats describes one viewer of one asset.
type ViewerStats struct {
	Count      int    `json:"count"`
	LastViewed string `json:"lastViewed"`
}

// AssetActivityData is the detailed view history for one asset inside
// the rolling window, with the long-term date as fallback when the
// window holds no events.
type AssetActivityData struct {
	AssetType   catalog.AssetType      `json:"assetType"`
	AssetID     string                 `json:"assetId"`
	TotalViews  int                    `json:"totalViews"`
	Viewers     map[string]ViewerStats `json:"viewers,omitempty"`
	ViewsByDate map[string]int         `json:"viewsByDate,omitempty"`
	LastViewed  string                 `json:"lastViewed"`
}

// TypeActivity is one asset type's slice of a user's history.
type TypeActivity struct {
	Views      int    `json:"views"`
	LastViewed string `json:"lastViewed,omitempty"`
}

// UserActivityData is the detailed activity history for one actor.
type UserActivityData struct {
	UserName    string                  `json:"userName"`
	TotalEvents int                     `json:"totalEvents"`
	ByType      map[string]TypeActivity `json:"byType,omitempty"`
	LastActive  string                  `json:"lastActive"`
}

// ActivityCounts is the bulk-lookup result for one entity.
type ActivityCounts struct {
	Views         int    `json:"views"`
	UniqueViewers int    `json:"uniqueViewers,omitempty"`
	LastViewed    string `json:"lastViewed,omitempty"`
}

// dateKey buckets an RFC 3339 timestamp by its calendar date.
func dateKey(ts string) string {
	if len(ts) < 10 {
		return ts
	}
	return ts[:10]
}
