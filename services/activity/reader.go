package activity

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"assetdex/pkg/db"
)

// PGAuditReader reads raw audit records from the audit_events table.
// Payloads come back as their stored JSON string; the compactor parses
// them.
type PGAuditReader struct {
	pool *pgxpool.Pool
}

// NewPGAuditReader creates a reader over the given pool.
func NewPGAuditReader(pool *pgxpool.Pool) (*PGAuditReader, error) {
	if pool == nil {
		return nil, errors.New("database pool is required")
	}
	return &PGAuditReader{pool: pool}, nil
}

type auditRow struct {
	EventName string    `db:"event_name"`
	EventTime time.Time `db:"event_time"`
	Source    string    `db:"source"`
	Payload   []byte    `db:"payload"`
}

// GetEventsByName returns every record for eventName inside [start, end].
func (r *PGAuditReader) GetEventsByName(ctx context.Context, eventName string, start, end time.Time) ([]RawRecord, error) {
	var rows []auditRow
	err := db.Select(ctx, r.pool, &rows,
		`SELECT event_name, event_time, source, payload
		 FROM audit_events
		 WHERE event_name = $1 AND event_time >= $2 AND event_time <= $3
		 ORDER BY event_time ASC`,
		eventName, start, end)
	if err != nil {
		return nil, err
	}

	records := make([]RawRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, RawRecord{
			EventName: row.EventName,
			EventTime: row.EventTime,
			Source:    row.Source,
			Payload:   string(row.Payload),
		})
	}
	return records, nil
}
