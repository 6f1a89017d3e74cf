package storage

import (
	"context"
	"errors"
	"time"

	v1 "github.com/loghive/loghive/internal/api/v1"
)

// ErrUnavailable marks failures where the backing store could not be
// reached or could not complete the operation. Attempts that fail with it
// are safe to retry verbatim: the insert is idempotent and no counter is
// touched until the insert verdict is known.
var ErrUnavailable = errors.New("store unavailable")

// StatsSnapshot is a point-in-time read of the singleton stats row.
// Values may lag in-flight writes but are never negative or decreasing.
type StatsSnapshot struct {
	Received          int64
	Accepted          int64
	RejectedDuplicate int64
	StartedAt         time.Time
	LastUpdatedAt     time.Time
}

// AuditRecord is one row of the append-only ingestion trail. One record per
// attempt, duplicates included; there is deliberately no uniqueness here.
type AuditRecord struct {
	Topic       string
	EventID     string
	ReceivedAt  time.Time
	IsDuplicate bool
	WorkerID    string
}

// EventStore is the dedup store. InsertEvent is the single atomic
// conditional write the whole system's correctness rests on: the storage
// engine's unique constraint on (topic, event_id) decides the verdict, never
// an application-level existence check.
type EventStore interface {
	// InsertEvent attempts the idempotent write. inserted=false means an
	// event with the same (topic, event_id) already exists and the stored
	// row was left untouched (first writer wins).
	InsertEvent(ctx context.Context, event *v1.Event, workerID string) (inserted bool, err error)

	// ListEvents returns stored events newest first, optionally filtered
	// by topic. Read path only; never consulted for dedup decisions.
	ListEvents(ctx context.Context, topic string, limit, offset int) ([]v1.StoredEvent, error)

	// CountEvents returns the stored-event count, optionally per topic.
	CountEvents(ctx context.Context, topic string) (int64, error)

	// TopicBreakdown returns per-topic stored-event counts, largest first.
	TopicBreakdown(ctx context.Context) ([]v1.TopicStats, error)
}

// StatsStore is the statistics aggregator. ApplyOutcome folds one attempt
// into the counters as a single atomic read-modify-write executed by the
// storage engine; concurrent workers never lose updates.
type StatsStore interface {
	// ApplyOutcome increments received by one and exactly one of
	// accepted / rejected_duplicate, matching the dedup verdict.
	ApplyOutcome(ctx context.Context, duplicate bool) error

	// Snapshot reads the counters. May be slightly stale.
	Snapshot(ctx context.Context) (StatsSnapshot, error)
}

// AuditStore records every ingestion attempt. Best effort: callers log
// Append failures and carry on, because observability must never compromise
// the dedup guarantee.
type AuditStore interface {
	Append(ctx context.Context, rec AuditRecord) error
}
