package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

// Asset mirrors services/inventory.Asset at the time of this migration.
type Asset struct {
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

// AuditEvent is the raw audit-log row read back by the activity pipeline.
type AuditEvent struct {
	ID        int64          `gorm:"type:bigserial;primaryKey"`
	EventName string         `gorm:"type:text;not null;index:idx_audit_events_name_time"`
	EventTime time.Time      `gorm:"type:timestamptz;not null;index:idx_audit_events_name_time"`
	Source    string         `gorm:"type:text;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (AuditEvent) TableName() string { return "audit_events" }

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).AutoMigrate(
		&Asset{},
		&AuditEvent{},
	)
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(
		&AuditEvent{},
		&Asset{},
	)
}
