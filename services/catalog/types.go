package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AssetType identifies one of the tracked business-intelligence asset kinds.
type AssetType string

const (
	AssetDashboard  AssetType = "dashboard"
	AssetAnalysis   AssetType = "analysis"
	AssetDataset    AssetType = "dataset"
	AssetDatasource AssetType = "datasource"
	AssetFolder     AssetType = "folder"
	AssetUser       AssetType = "user"
	AssetGroup      AssetType = "group"
)

// AllAssetTypes lists every tracked asset type in stable order.
func AllAssetTypes() []AssetType {
	return []AssetType{
		AssetDashboard,
		AssetAnalysis,
		AssetDataset,
		AssetDatasource,
		AssetFolder,
		AssetUser,
		AssetGroup,
	}
}

// ParseAssetType validates a caller-supplied asset type string.
func ParseAssetType(s string) (AssetType, error) {
	at := AssetType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllAssetTypes() {
		if at == known {
			return at, nil
		}
	}
	return "", fmt.Errorf("unknown asset type %q", s)
}

// Status partitions entries into live and archived populations. Assets
// are archived rather than deleted.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// StorageType records whether an entry lives inside its type's
// collection object or under its own durable key.
type StorageType string

const (
	StorageCollection StorageType = "collection"
	StorageIndividual StorageType = "individual"
)

// Tag is one key/value pair attached to an asset. Order is preserved.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CacheEntry is the master-index record for one asset. Entries are
// unique per (AssetType, AssetID).
type CacheEntry struct {
	AssetID          string         `json:"assetId"`
	AssetType        AssetType      `json:"assetType"`
	AssetName        string         `json:"assetName"`
	ARN              string         `json:"arn,omitempty"`
	Status           Status         `json:"status"`
	CreatedTime      time.Time      `json:"createdTime"`
	LastUpdatedTime  time.Time      `json:"lastUpdatedTime"`
	ExportedAt       *time.Time     `json:"exportedAt,omitempty"`
	EnrichmentStatus string         `json:"enrichmentStatus,omitempty"`
	Tags             []Tag          `json:"tags,omitempty"`
	Permissions      []Permission   `json:"permissions,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	StorageType      StorageType    `json:"storageType,omitempty"`
	ExportFilePath   string         `json:"exportFilePath,omitempty"`
}

// Permission grants a principal a set of actions on an asset.
type Permission struct {
	Principal string   `json:"principal"`
	Actions   []string `json:"actions,omitempty"`
}

// MasterCache is the complete point-in-time index of all known assets,
// keyed by type. It is built wholesale by rebuild and never mutated by
// read paths.
type MasterCache map[AssetType][]CacheEntry

// JobRecord tracks one long-running portal job (bulk export, bulk
// delete) in the job index.
type JobRecord struct {
	JobID     uuid.UUID      `json:"jobId"`
	JobType   string         `json:"jobType"`
	Status    string         `json:"status"`
	Progress  int            `json:"progress"`
	Message   string         `json:"message,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	StartedAt time.Time      `json:"startedAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}
