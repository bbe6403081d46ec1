package activity

import (
	"time"

	"assetdex/services/catalog"
)

// Merge folds the compacted events of cache into existing, producing
// updated long-term last-seen dates. A stored date only moves forward:
// an event's timestamp replaces it when strictly greater. ISO-8601
// timestamps are fixed width, so plain string comparison orders them.
// This is how "last viewed" survives after an entity's events age out
// of the rolling window.
func Merge(cache ActivityCache, existing ActivityPersistence) ActivityPersistence {
	merged := ActivityPersistence{
		Version:     1,
		LastUpdated: time.Now().UTC(),
		Dashboards:  copyDates(existing.Dashboards),
		Analyses:    copyDates(existing.Analyses),
		Users:       copyDates(existing.Users),
	}

	for _, events := range cache.Events {
		for _, ev := range events {
			if ev.U != "" && ev.U != unknownActor {
				advance(merged.Users, ev.U, ev.T)
			}
			if ev.R == "" {
				continue
			}
			switch at, _ := assetTypeForEvent(ev.E); at {
			case catalog.AssetDashboard:
				advance(merged.Dashboards, ev.R, ev.T)
			case catalog.AssetAnalysis:
				advance(merged.Analyses, ev.R, ev.T)
			}
		}
	}

	return merged
}

func advance(dates map[string]string, key, ts string) {
	if stored, ok := dates[key]; !ok || ts > stored {
		dates[key] = ts
	}
}

func copyDates(src map[string]string) map[string]string {
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
