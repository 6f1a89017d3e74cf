package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/loghive/loghive/internal/core/storage"
)

// StatsAdapter implements storage.StatsStore on the singleton stats row.
//
// Counter correctness under contention comes from executing the increments
// inside the UPDATE statement itself (received = received + 1, ...); the
// value is never read into process memory and written back, so concurrent
// workers cannot lose updates.
type StatsAdapter struct {
	db *sql.DB
}

// NewStatsAdapter creates a stats adapter sharing the event adapter's pool.
func NewStatsAdapter(db *sql.DB) *StatsAdapter {
	return &StatsAdapter{db: db}
}

// EnsureRow seeds the singleton stats row if it does not exist yet.
// Idempotent across restarts: ON CONFLICT DO NOTHING preserves counters
// accumulated in previous runs.
func (s *StatsAdapter) EnsureRow(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, queryEnsureStatsRow); err != nil {
		return fmt.Errorf("%w: ensure stats row: %v", storage.ErrUnavailable, err)
	}
	return nil
}

// ApplyOutcome folds one ingestion attempt into the counters: received moves
// by one, and exactly one of accepted / rejected_duplicate moves by one,
// all in a single atomic UPDATE.
func (s *StatsAdapter) ApplyOutcome(ctx context.Context, duplicate bool) error {
	acceptedDelta, duplicateDelta := 1, 0
	if duplicate {
		acceptedDelta, duplicateDelta = 0, 1
	}

	res, err := s.db.ExecContext(ctx, queryApplyOutcome, acceptedDelta, duplicateDelta)
	if err != nil {
		return fmt.Errorf("%w: apply stats outcome: %v", storage.ErrUnavailable, err)
	}

	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("%w: stats row missing", storage.ErrUnavailable)
	}
	return nil
}

// Snapshot reads the counters. The read may lag concurrent ApplyOutcome
// calls but always reflects a consistent committed row.
func (s *StatsAdapter) Snapshot(ctx context.Context) (storage.StatsSnapshot, error) {
	var snap storage.StatsSnapshot
	err := s.db.QueryRowContext(ctx, queryStatsSnapshot).Scan(
		&snap.Received,
		&snap.Accepted,
		&snap.RejectedDuplicate,
		&snap.StartedAt,
		&snap.LastUpdatedAt,
	)
	if err == sql.ErrNoRows {
		return storage.StatsSnapshot{}, fmt.Errorf("%w: stats row missing", storage.ErrUnavailable)
	}
	if err != nil {
		return storage.StatsSnapshot{}, fmt.Errorf("%w: read stats snapshot: %v", storage.ErrUnavailable, err)
	}

	slog.Debug("[Postgres] Stats snapshot",
		"received", snap.Received,
		"accepted", snap.Accepted,
		"rejected_duplicate", snap.RejectedDuplicate)
	return snap, nil
}
