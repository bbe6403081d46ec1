package inventory

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"assetdex/services/catalog"
)

// Lister lists assets from the inventory tables. It satisfies
// catalog.AssetLister.
type Lister struct {
	orm *gorm.DB
}

// NewLister creates a Lister bound to the provided gorm handle.
func NewLister(orm *gorm.DB) (*Lister, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	return &Lister{orm: orm}, nil
}

// ListAssets returns every asset of the given type, archived entries
// included, ordered by name for stable collection objects.
func (l *Lister) ListAssets(ctx context.Context, assetType catalog.AssetType) ([]catalog.CacheEntry, error) {
	var rows []assetModel
	err := l.orm.WithContext(ctx).
		Where("asset_type = ?", string(assetType)).
		Order("asset_name ASC, asset_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	entries := make([]catalog.CacheEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toEntry())
	}
	return entries, nil
}
