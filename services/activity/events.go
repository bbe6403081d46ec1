package activity

import "assetdex/services/catalog"

// eventCatalog maps each tracked asset type to the audit event names
// that count as views of it. Adding a tracked event is a data change
// here plus an extraction rule in rules.yaml.
var eventCatalog = map[catalog.AssetType][]string{
	catalog.AssetDashboard:  {"GetDashboard", "GetDashboardEmbedUrl"},
	catalog.AssetAnalysis:   {"GetAnalysis"},
	catalog.AssetDataset:    {"DescribeDataSet"},
	catalog.AssetDatasource: {"DescribeDataSource"},
	catalog.AssetFolder:     {"DescribeFolder"},
}

// eventTypeIndex is the reverse mapping, event name to asset type.
var eventTypeIndex = func() map[string]catalog.AssetType {
	idx := make(map[string]catalog.AssetType)
	for at, names := range eventCatalog {
		for _, name := range names {
			idx[name] = at
		}
	}
	return idx
}()

// allEventNames returns every tracked audit event name in stable order.
func allEventNames() []string {
	var names []string
	for _, at := range catalog.AllAssetTypes() {
		names = append(names, eventCatalog[at]...)
	}
	return names
}

// eventNamesFor resolves the audit event names relevant to a refresh
// request. User activity spans every tracked event type, so a "user"
// or "all" selector expands to the full catalog.
func eventNamesFor(assetTypes []string) []string {
	seen := make(map[string]struct{})
	var names []string

	add := func(batch []string) {
		for _, name := range batch {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}

	for _, raw := range assetTypes {
		if raw == "all" || raw == string(catalog.AssetUser) || raw == string(catalog.AssetGroup) {
			add(allEventNames())
			continue
		}
		if at, err := catalog.ParseAssetType(raw); err == nil {
			add(eventCatalog[at])
		}
	}
	return names
}

// assetTypeForEvent maps an event name back to the asset type it views.
func assetTypeForEvent(eventName string) (catalog.AssetType, bool) {
	at, ok := eventTypeIndex[eventName]
	return at, ok
}
