package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/loghive/loghive/internal/core/storage"
)

// AuditAdapter implements storage.AuditStore on the append-only audit_log
// table. One row per attempt, duplicates included.
type AuditAdapter struct {
	db *sql.DB
}

// NewAuditAdapter creates an audit adapter sharing the event adapter's pool.
func NewAuditAdapter(db *sql.DB) *AuditAdapter {
	return &AuditAdapter{db: db}
}

// Append records one ingestion attempt. The caller treats failures as
// best-effort; this method just reports them.
func (a *AuditAdapter) Append(ctx context.Context, rec storage.AuditRecord) error {
	_, err := a.db.ExecContext(ctx, queryAppendAudit,
		rec.Topic,
		rec.EventID,
		rec.ReceivedAt,
		rec.IsDuplicate,
		rec.WorkerID,
	)
	if err != nil {
		return fmt.Errorf("%w: append audit record %s/%s: %v", storage.ErrUnavailable, rec.Topic, rec.EventID, err)
	}
	return nil
}
