// Package inventory implements the asset-listing collaborator behind
// master-index rebuilds: the relational source of truth for every
// tracked BI asset.
package inventory

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"assetdex/services/catalog"
)

type assetModel struct {
	AssetID          string            `gorm:"type:text;primaryKey"`
	AssetType        string            `gorm:"type:text;primaryKey"`
	AssetName        string            `gorm:"type:text;not null"`
	ARN              string            `gorm:"type:text"`
	Status           string            `gorm:"type:text;not null;default:'active';index"`
	EnrichmentStatus string            `gorm:"type:text"`
	StorageType      string            `gorm:"type:text"`
	ExportFilePath   string            `gorm:"type:text"`
	Tags             datatypes.JSON    `gorm:"type:jsonb"`
	Permissions      datatypes.JSON    `gorm:"type:jsonb"`
	Metadata         datatypes.JSONMap `gorm:"type:jsonb"`
	ExportedAt       *time.Time        `gorm:"type:timestamptz"`
	CreatedAt        time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (assetModel) TableName() string { return "assets" }

func (m assetModel) toEntry() catalog.CacheEntry {
	entry := catalog.CacheEntry{
		AssetID:          m.AssetID,
		AssetType:        catalog.AssetType(m.AssetType),
		AssetName:        m.AssetName,
		ARN:              m.ARN,
		Status:           catalog.Status(m.Status),
		CreatedTime:      m.CreatedAt,
		LastUpdatedTime:  m.UpdatedAt,
		ExportedAt:       m.ExportedAt,
		EnrichmentStatus: m.EnrichmentStatus,
		StorageType:      catalog.StorageType(m.StorageType),
		ExportFilePath:   m.ExportFilePath,
		Metadata:         mapFromJSONMap(m.Metadata),
	}

	if len(m.Tags) > 0 {
		// Tag order in the stored JSON array is preserved.
		_ = json.Unmarshal(m.Tags, &entry.Tags)
	}
	if len(m.Permissions) > 0 {
		_ = json.Unmarshal(m.Permissions, &entry.Permissions)
	}

	return entry
}

func mapFromJSONMap(src datatypes.JSONMap) map[string]any {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
