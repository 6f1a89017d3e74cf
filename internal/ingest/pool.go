package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loghive/loghive/internal/queue"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWorkerCount = 4
	defaultPopTimeout  = time.Second
	popErrorBackoff    = 100 * time.Millisecond
)

// Pool drains the inbound queue with a fixed set of concurrent workers.
// Workers share nothing but the queue and the stores behind the engine;
// a hot dedup key is resolved by the storage layer, never by in-process
// locking, so the worker count can scale freely.
type Pool struct {
	queue       queue.Queue
	engine      *Engine
	workerCount int
	popTimeout  time.Duration
}

// NewPool creates a pool of workerCount workers popping with popTimeout.
func NewPool(q queue.Queue, engine *Engine, workerCount int, popTimeout time.Duration) *Pool {
	if q == nil {
		panic("ingest: queue must not be nil")
	}
	if engine == nil {
		panic("ingest: engine must not be nil")
	}
	if workerCount <= 0 {
		workerCount = defaultWorkerCount
	}
	if popTimeout <= 0 {
		popTimeout = defaultPopTimeout
	}
	return &Pool{
		queue:       q,
		engine:      engine,
		workerCount: workerCount,
		popTimeout:  popTimeout,
	}
}

// Run starts the workers and blocks until ctx is cancelled and every worker
// has finished its in-flight event. No event is abandoned mid-protocol:
// a worker observes cancellation only between events.
func (p *Pool) Run(ctx context.Context) error {
	slog.Info("[Pool] Starting ingestion workers",
		"worker_count", p.workerCount,
		"pop_timeout", p.popTimeout)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workerCount; i++ {
		workerID := fmt.Sprintf("worker-%d", i)
		g.Go(func() error {
			return p.runWorker(ctx, workerID)
		})
	}

	err := g.Wait()
	slog.Info("[Pool] All workers stopped")
	return err
}

func (p *Pool) runWorker(ctx context.Context, workerID string) error {
	slog.Info("[Pool] Worker started", "worker_id", workerID)
	defer slog.Info("[Pool] Worker stopped", "worker_id", workerID)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		event, err := p.queue.Pop(ctx, p.popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, queue.ErrMalformedMessage) {
				slog.Warn("[Pool] Dropping malformed queue message",
					"worker_id", workerID, "error", err)
				continue
			}
			slog.Error("[Pool] Queue pop failed",
				"worker_id", workerID, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(popErrorBackoff):
			}
			continue
		}
		if event == nil {
			// Queue stayed empty for the pop timeout.
			continue
		}

		// A shutdown signal arriving now must not interrupt the
		// write protocol for this event.
		procCtx := context.WithoutCancel(ctx)
		outcome, err := p.engine.Process(procCtx, event, workerID)
		if err != nil {
			// Malformed events are dropped; store failures leave the
			// event to its producer's retry, which idempotency makes safe.
			slog.Error("[Pool] Attempt failed",
				"worker_id", workerID,
				"topic", event.Topic,
				"event_id", event.EventID,
				"error", err)
			continue
		}

		slog.Debug("[Pool] Attempt resolved",
			"worker_id", workerID,
			"topic", event.Topic,
			"event_id", event.EventID,
			"outcome", outcome.String())
	}
}
