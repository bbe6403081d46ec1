package activity

import (
	"context"

	"assetdex/services/catalog"
)

// Summary tallies the whole window in one linear pass: per-type view
// counts, distinct viewers per type, and per-user activity counts. A
// missing cache yields the all-zero summary, not an error.
func (a *Aggregator) Summary(ctx context.Context) (Summary, error) {
	window, err := a.loadCache(ctx)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		ByType:       map[string]TypeSummary{},
		UserActivity: map[string]int{},
	}
	viewers := map[catalog.AssetType]map[string]struct{}{}

	for _, events := range window.Events {
		for _, ev := range events {
			summary.TotalEvents++
			summary.UserActivity[ev.U]++

			at, ok := assetTypeForEvent(ev.E)
			if !ok {
				continue
			}
			ts := summary.ByType[string(at)]
			ts.Views++
			summary.ByType[string(at)] = ts

			if viewers[at] == nil {
				viewers[at] = map[string]struct{}{}
			}
			viewers[at][ev.U] = struct{}{}
		}
	}

	for at, set := range viewers {
		ts := summary.ByType[string(at)]
		ts.UniqueViewers = len(set)
		summary.ByType[string(at)] = ts
	}

	if summary.TotalEvents > 0 {
		dr := window.DateRange
		lu := window.LastUpdated
		summary.DateRange = &dr
		summary.LastUpdated = &lu
	}

	return summary, nil
}

// AssetActivity returns the window's view history for one asset. When
// the window holds no matching events the long-term persisted date is
// the fallback; nil means neither source has ever seen the asset.
func (a *Aggregator) AssetActivity(ctx context.Context, assetType catalog.AssetType, assetID string) (*AssetActivityData, error) {
	window, err := a.loadCache(ctx)
	if err != nil {
		return nil, err
	}

	data := &AssetActivityData{
		AssetType:   assetType,
		AssetID:     assetID,
		Viewers:     map[string]ViewerStats{},
		ViewsByDate: map[string]int{},
	}

	for date, events := range window.Events {
		for _, ev := range events {
			at, ok := assetTypeForEvent(ev.E)
			if !ok || at != assetType || ev.R != assetID {
				continue
			}
			data.TotalViews++
			data.ViewsByDate[date]++

			stats := data.Viewers[ev.U]
			stats.Count++
			if ev.T > stats.LastViewed {
				stats.LastViewed = ev.T
			}
			data.Viewers[ev.U] = stats

			if ev.T > data.LastViewed {
				data.LastViewed = ev.T
			}
		}
	}

	if data.TotalViews > 0 {
		return data, nil
	}

	persisted, err := a.loadPersistence(ctx)
	if err != nil {
		return nil, err
	}
	if date := persistedAssetDate(persisted, assetType, assetID); date != "" {
		data.Viewers = nil
		data.ViewsByDate = nil
		data.LastViewed = date
		return data, nil
	}

	return nil, nil
}

// UserActivity returns the window's history for one actor, split by
// asset type, matched by exact actor-id equality. The persisted
// last-active date is the fallback when the window holds nothing.
func (a *Aggregator) UserActivity(ctx context.Context, name string) (*UserActivityData, error) {
	window, err := a.loadCache(ctx)
	if err != nil {
		return nil, err
	}

	data := &UserActivityData{
		UserName: name,
		ByType:   map[string]TypeActivity{},
	}

	for _, events := range window.Events {
		for _, ev := range events {
			if ev.U != name {
				continue
			}
			data.TotalEvents++
			if ev.T > data.LastActive {
				data.LastActive = ev.T
			}

			at, ok := assetTypeForEvent(ev.E)
			if !ok {
				continue
			}
			ta := data.ByType[string(at)]
			ta.Views++
			if ev.T > ta.LastViewed {
				ta.LastViewed = ev.T
			}
			data.ByType[string(at)] = ta
		}
	}

	if data.TotalEvents > 0 {
		return data, nil
	}

	persisted, err := a.loadPersistence(ctx)
	if err != nil {
		return nil, err
	}
	if date, ok := persisted.Users[name]; ok && date != "" {
		data.ByType = nil
		data.LastActive = date
		return data, nil
	}

	return nil, nil
}

// AssetActivityCounts resolves counts for every requested asset id in
// a single pass over the window: O(events), independent of how many
// ids are asked for. Every requested id appears in the result.
func (a *Aggregator) AssetActivityCounts(ctx context.Context, assetType catalog.AssetType, ids []string) (map[string]ActivityCounts, error) {
	window, err := a.loadCache(ctx)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(ids))
	result := make(map[string]ActivityCounts, len(ids))
	viewers := make(map[string]map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
		result[id] = ActivityCounts{}
	}

	for _, events := range window.Events {
		for _, ev := range events {
			at, ok := assetTypeForEvent(ev.E)
			if !ok || at != assetType {
				continue
			}
			if _, want := wanted[ev.R]; !want {
				continue
			}

			counts := result[ev.R]
			counts.Views++
			if ev.T > counts.LastViewed {
				counts.LastViewed = ev.T
			}
			result[ev.R] = counts

			if viewers[ev.R] == nil {
				viewers[ev.R] = map[string]struct{}{}
			}
			viewers[ev.R][ev.U] = struct{}{}
		}
	}

	for id, set := range viewers {
		counts := result[id]
		counts.UniqueViewers = len(set)
		result[id] = counts
	}

	return result, nil
}

// UserActivityCounts is the actor-side bulk lookup, same single-pass
// contract as AssetActivityCounts.
func (a *Aggregator) UserActivityCounts(ctx context.Context, names []string) (map[string]ActivityCounts, error) {
	window, err := a.loadCache(ctx)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(names))
	result := make(map[string]ActivityCounts, len(names))
	for _, name := range names {
		wanted[name] = struct{}{}
		result[name] = ActivityCounts{}
	}

	for _, events := range window.Events {
		for _, ev := range events {
			if _, want := wanted[ev.U]; !want {
				continue
			}
			counts := result[ev.U]
			counts.Views++
			if ev.T > counts.LastViewed {
				counts.LastViewed = ev.T
			}
			result[ev.U] = counts
		}
	}

	return result, nil
}

func persistedAssetDate(p ActivityPersistence, assetType catalog.AssetType, assetID string) string {
	switch assetType {
	case catalog.AssetDashboard:
		return p.Dashboards[assetID]
	case catalog.AssetAnalysis:
		return p.Analyses[assetID]
	default:
		return ""
	}
}
