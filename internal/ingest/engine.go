package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/loghive/loghive/internal/api/v1"
	"github.com/loghive/loghive/internal/core/storage"
)

// ErrMalformedEvent marks events rejected before reaching the dedup store
// (missing topic, event_id, source or timestamp). Such attempts are counted
// in neither accepted nor rejected_duplicate.
var ErrMalformedEvent = errors.New("malformed event")

// Outcome is the dedup verdict for one ingestion attempt.
type Outcome int

const (
	// OutcomeAccepted means this attempt won the write: the event is now
	// stored, exactly once.
	OutcomeAccepted Outcome = iota

	// OutcomeDuplicate means an earlier attempt already stored this
	// (topic, event_id). Not an error; the expected result of at-least-once
	// delivery.
	OutcomeDuplicate
)

func (o Outcome) String() string {
	if o == OutcomeDuplicate {
		return "duplicate"
	}
	return "accepted"
}

// Engine executes the idempotent-write protocol for single events. Every
// worker and the synchronous API path funnel through Process; there is no
// other writer of events, stats or audit rows.
//
// The engine keeps no dedup state of its own. Each attempt consults the
// dedup store directly, so correctness is independent of worker count,
// worker identity and process restarts.
type Engine struct {
	events storage.EventStore
	stats  storage.StatsStore
	audit  storage.AuditStore
	nowFn  func() time.Time
}

// NewEngine wires the engine to its three stores.
func NewEngine(events storage.EventStore, stats storage.StatsStore, audit storage.AuditStore) *Engine {
	if events == nil {
		panic("ingest: event store must not be nil")
	}
	if stats == nil {
		panic("ingest: stats store must not be nil")
	}
	if audit == nil {
		panic("ingest: audit store must not be nil")
	}
	return &Engine{
		events: events,
		stats:  stats,
		audit:  audit,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// Process runs the protocol for one event:
//
//  1. attempt the atomic conditional insert,
//  2. fold the verdict into the counters (received plus exactly one of
//     accepted / rejected_duplicate, in one atomic update),
//  3. append the attempt to the audit trail (best effort).
//
// The insert verdict alone decides the outcome. If the insert succeeds but
// the counter update fails, the event is still durably deduplicated — a
// retry of the same event will be rejected as duplicate — and the counters
// undercount by one. That window is logged loudly here rather than hidden;
// callers must not retry a completed attempt to "fix" it, since step 1 would
// then classify the retry as a duplicate.
func (e *Engine) Process(ctx context.Context, event *v1.Event, workerID string) (Outcome, error) {
	if err := event.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	receivedAt := e.nowFn()

	inserted, err := e.events.InsertEvent(ctx, event, workerID)
	if err != nil {
		// Verdict unknown: nothing was counted, the caller may retry.
		return 0, fmt.Errorf("dedup write for %s: %w", event.Key(), err)
	}

	outcome := OutcomeAccepted
	if !inserted {
		outcome = OutcomeDuplicate
	}

	if err := e.stats.ApplyOutcome(ctx, !inserted); err != nil {
		slog.Error("[Ingest] Counter update failed after dedup write",
			"topic", event.Topic,
			"event_id", event.EventID,
			"outcome", outcome.String(),
			"worker_id", workerID,
			"error", err)
	}

	if err := e.audit.Append(ctx, storage.AuditRecord{
		Topic:       event.Topic,
		EventID:     event.EventID,
		ReceivedAt:  receivedAt,
		IsDuplicate: !inserted,
		WorkerID:    workerID,
	}); err != nil {
		slog.Warn("[Ingest] Audit append failed",
			"topic", event.Topic,
			"event_id", event.EventID,
			"worker_id", workerID,
			"error", err)
	}

	slog.Debug("[Ingest] Attempt resolved",
		"topic", event.Topic,
		"event_id", event.EventID,
		"outcome", outcome.String(),
		"worker_id", workerID)
	return outcome, nil
}
