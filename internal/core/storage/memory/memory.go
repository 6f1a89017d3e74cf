// Package memory provides in-memory implementations of the storage
// interfaces. Useful for testing and development; the mutex plays the role
// the unique constraint and atomic UPDATE play in PostgreSQL.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	v1 "github.com/loghive/loghive/internal/api/v1"
	"github.com/loghive/loghive/internal/core/storage"
)

type dedupKey struct {
	Topic   string
	EventID string
}

// Store implements storage.EventStore, storage.StatsStore and
// storage.AuditStore over process memory.
type Store struct {
	mu     sync.RWMutex
	events map[dedupKey]v1.StoredEvent
	order  []dedupKey
	stats  storage.StatsSnapshot
	audit  []storage.AuditRecord

	// FailInsert, FailStats and FailAudit make the corresponding operation
	// return the given error, for exercising failure paths in tests.
	FailInsert error
	FailStats  error
	FailAudit  error
}

// NewStore creates an empty in-memory store with the stats clock started.
func NewStore() *Store {
	now := time.Now().UTC()
	return &Store{
		events: make(map[dedupKey]v1.StoredEvent),
		stats: storage.StatsSnapshot{
			StartedAt:     now,
			LastUpdatedAt: now,
		},
	}
}

func (s *Store) InsertEvent(ctx context.Context, event *v1.Event, workerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailInsert != nil {
		return false, s.FailInsert
	}

	key := dedupKey{Topic: event.Topic, EventID: event.EventID}
	if _, exists := s.events[key]; exists {
		return false, nil
	}

	s.events[key] = v1.StoredEvent{
		Event:       *event,
		ProcessedAt: time.Now().UTC(),
		WorkerID:    workerID,
	}
	s.order = append(s.order, key)
	return true, nil
}

func (s *Store) ListEvents(ctx context.Context, topic string, limit, offset int) ([]v1.StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []v1.StoredEvent
	for _, key := range s.order {
		evt := s.events[key]
		if topic != "" && evt.Topic != topic {
			continue
		}
		all = append(all, evt)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.After(all[j].Timestamp)
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *Store) CountEvents(ctx context.Context, topic string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if topic == "" {
		return int64(len(s.events)), nil
	}
	var n int64
	for key := range s.events {
		if key.Topic == topic {
			n++
		}
	}
	return n, nil
}

func (s *Store) TopicBreakdown(ctx context.Context) ([]v1.TopicStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for key := range s.events {
		counts[key.Topic]++
	}

	topics := make([]v1.TopicStats, 0, len(counts))
	for topic, count := range counts {
		topics = append(topics, v1.TopicStats{Topic: topic, EventCount: count})
	}
	sort.Slice(topics, func(i, j int) bool {
		if topics[i].EventCount != topics[j].EventCount {
			return topics[i].EventCount > topics[j].EventCount
		}
		return topics[i].Topic < topics[j].Topic
	})
	return topics, nil
}

func (s *Store) ApplyOutcome(ctx context.Context, duplicate bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailStats != nil {
		return s.FailStats
	}

	s.stats.Received++
	if duplicate {
		s.stats.RejectedDuplicate++
	} else {
		s.stats.Accepted++
	}
	s.stats.LastUpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) Snapshot(ctx context.Context) (storage.StatsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats, nil
}

func (s *Store) Append(ctx context.Context, rec storage.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailAudit != nil {
		return s.FailAudit
	}

	s.audit = append(s.audit, rec)
	return nil
}

// AuditRecords returns a copy of the audit trail for assertions.
func (s *Store) AuditRecords() []storage.AuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.AuditRecord, len(s.audit))
	copy(out, s.audit)
	return out
}
