// Package query is the read side of the aggregator: stored events and the
// statistics snapshot. It never mutates anything.
package query

import (
	"context"
	"fmt"
	"time"

	v1 "github.com/loghive/loghive/internal/api/v1"
	"github.com/loghive/loghive/internal/core/storage"
	"github.com/shopspring/decimal"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Service serves the query API over the event and stats stores.
type Service struct {
	events storage.EventStore
	stats  storage.StatsStore
	nowFn  func() time.Time
}

// NewService creates the query service.
func NewService(events storage.EventStore, stats storage.StatsStore) *Service {
	if events == nil {
		panic("query: event store must not be nil")
	}
	if stats == nil {
		panic("query: stats store must not be nil")
	}
	return &Service{
		events: events,
		stats:  stats,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// ListEvents returns stored events newest first with the total count for the
// same filter.
func (s *Service) ListEvents(ctx context.Context, topic string, limit, offset int) (*v1.EventListResponse, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	events, err := s.events.ListEvents(ctx, topic, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	total, err := s.events.CountEvents(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	if events == nil {
		events = []v1.StoredEvent{}
	}
	return &v1.EventListResponse{
		Events: events,
		Total:  total,
		Topic:  topic,
	}, nil
}

// Stats assembles the statistics response: counter snapshot, computed
// duplicate rate, per-topic breakdown and uptime.
func (s *Service) Stats(ctx context.Context) (*v1.StatsResponse, error) {
	snap, err := s.stats.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats snapshot: %w", err)
	}

	topics, err := s.events.TopicBreakdown(ctx)
	if err != nil {
		return nil, fmt.Errorf("topic breakdown: %w", err)
	}
	if topics == nil {
		topics = []v1.TopicStats{}
	}

	return &v1.StatsResponse{
		Received:          snap.Received,
		Accepted:          snap.Accepted,
		RejectedDuplicate: snap.RejectedDuplicate,
		DuplicateRate:     duplicateRate(snap.RejectedDuplicate, snap.Received),
		Topics:            topics,
		TopicCount:        len(topics),
		UptimeSeconds:     s.nowFn().Sub(snap.StartedAt).Seconds(),
		StartedAt:         snap.StartedAt,
		LastUpdatedAt:     snap.LastUpdatedAt,
	}, nil
}

// duplicateRate computes rejected/received as a percentage with two decimal
// places. Decimal arithmetic keeps the rendering exact regardless of counter
// magnitude.
func duplicateRate(rejected, received int64) string {
	if received == 0 {
		return "0"
	}
	return decimal.NewFromInt(rejected).
		Div(decimal.NewFromInt(received)).
		Mul(decimal.NewFromInt(100)).
		Round(2).
		String()
}
