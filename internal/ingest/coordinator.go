package ingest

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	v1 "github.com/loghive/loghive/internal/api/v1"
	"github.com/loghive/loghive/internal/queue"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSubmitParallelism = 8

	// syncWorkerID tags rows written by the synchronous API path, as opposed
	// to the queue-draining pool workers. Traceability only.
	syncWorkerID = "api-sync"
)

// Summary aggregates the per-event outcomes of one batch submission.
// Counters cover only the attempts that actually ran: when a shutdown
// interrupts a batch, the skipped remainder is reported via Incomplete and
// the caller retries it (safely, thanks to idempotency).
type Summary struct {
	BatchID           string
	Received          int
	Accepted          int
	RejectedDuplicate int
	Failed            int
	Incomplete        bool
	EventIDs          []string
}

// Coordinator splits an inbound batch into independent ingestion attempts.
// It never writes to storage itself; every attempt goes through the engine.
//
// A batch containing the same dedup key twice is deliberately not
// short-circuited in memory: both occurrences are submitted and the store's
// atomicity guarantees at most one is accepted, exactly as if they had
// arrived in separate requests.
type Coordinator struct {
	engine      *Engine
	queue       queue.Queue
	parallelism int
}

// NewCoordinator creates a coordinator dispatching through engine, with the
// given queue for asynchronous submissions and bounded parallelism for
// synchronous ones.
func NewCoordinator(engine *Engine, q queue.Queue, parallelism int) *Coordinator {
	if engine == nil {
		panic("ingest: engine must not be nil")
	}
	if parallelism <= 0 {
		parallelism = defaultSubmitParallelism
	}
	return &Coordinator{
		engine:      engine,
		queue:       q,
		parallelism: parallelism,
	}
}

// Submit processes a batch synchronously and returns the aggregated summary.
// Per-event failures are isolated: one event failing never aborts its
// siblings, and the summary always reports partial results.
func (c *Coordinator) Submit(ctx context.Context, events []v1.Event) Summary {
	summary := Summary{
		BatchID:  uuid.NewString(),
		EventIDs: eventIDs(events),
	}
	if len(events) == 0 {
		return summary
	}

	type attempt struct {
		outcome Outcome
		err     error
		skipped bool
	}
	results := make([]attempt, len(events))

	g := new(errgroup.Group)
	g.SetLimit(c.parallelism)
	for i := range events {
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i].skipped = true
				return nil
			}
			// Once dispatched, an attempt runs to completion even if the
			// batch is cancelled underneath it.
			outcome, err := c.engine.Process(context.WithoutCancel(ctx), &events[i], syncWorkerID)
			results[i] = attempt{outcome: outcome, err: err}
			return nil
		})
	}
	// Workers never return errors; Wait only synchronizes.
	_ = g.Wait()

	for i, res := range results {
		if res.skipped {
			summary.Incomplete = true
			continue
		}
		summary.Received++
		switch {
		case res.err == nil && res.outcome == OutcomeAccepted:
			summary.Accepted++
		case res.err == nil:
			summary.RejectedDuplicate++
		default:
			summary.Failed++
			if errors.Is(res.err, ErrMalformedEvent) {
				// Malformed attempts never reached the store; they count
				// in neither accepted nor duplicate.
				slog.Warn("[Coordinator] Malformed event in batch",
					"batch_id", summary.BatchID,
					"event_id", events[i].EventID,
					"error", res.err)
				continue
			}
			slog.Error("[Coordinator] Attempt failed",
				"batch_id", summary.BatchID,
				"topic", events[i].Topic,
				"event_id", events[i].EventID,
				"error", res.err)
		}
	}

	slog.Info("[Coordinator] Batch processed",
		"batch_id", summary.BatchID,
		"received", summary.Received,
		"accepted", summary.Accepted,
		"rejected_duplicate", summary.RejectedDuplicate,
		"failed", summary.Failed,
		"incomplete", summary.Incomplete)
	return summary
}

// SubmitAsync enqueues the batch for pickup by the worker pool and returns
// the enqueued count. Dedup verdicts are resolved later by the workers.
func (c *Coordinator) SubmitAsync(ctx context.Context, events []v1.Event) (Summary, error) {
	summary := Summary{
		BatchID:  uuid.NewString(),
		EventIDs: eventIDs(events),
	}
	if c.queue == nil {
		return summary, errors.New("no queue configured for async submission")
	}

	published, err := c.queue.PublishBatch(ctx, events)
	summary.Received = published
	if err != nil {
		return summary, err
	}

	slog.Info("[Coordinator] Batch enqueued",
		"batch_id", summary.BatchID,
		"count", published)
	return summary, nil
}

func eventIDs(events []v1.Event) []string {
	ids := make([]string, 0, len(events))
	for i := range events {
		ids = append(ids, events[i].EventID)
	}
	return ids
}
