package v1

import (
	"fmt"
	"strings"
	"time"
)

const maxKeyLength = 255

// Event is the atomic unit of the system: one log record published by an
// upstream producer. Producers deliver at-least-once, so the same Event may
// arrive any number of times; the (Topic, EventID) pair is the identity used
// to collapse those deliveries down to exactly one stored record.
type Event struct {
	// Topic is the producer-defined namespace for the event.
	Topic string `json:"topic"`

	// EventID is the producer-generated identifier. It MUST be unique per
	// Topic; the same EventID under two different topics names two distinct
	// events.
	EventID string `json:"event_id"`

	// Timestamp is the producer-side clock reading. It is stored as-is and
	// never validated against ingestion time.
	Timestamp time.Time `json:"timestamp"`

	// Source identifies the origin service.
	Source string `json:"source"`

	// Payload is the domain-specific body. The core enforces no schema.
	Payload map[string]interface{} `json:"payload"`
}

// Validate checks the envelope fields required for deduplication.
// Topic and EventID are normalized by trimming surrounding whitespace.
func (e *Event) Validate() error {
	e.Topic = strings.TrimSpace(e.Topic)
	e.EventID = strings.TrimSpace(e.EventID)

	if e.Topic == "" {
		return fmt.Errorf("topic is required")
	}
	if len(e.Topic) > maxKeyLength {
		return fmt.Errorf("topic exceeds %d characters", maxKeyLength)
	}
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if len(e.EventID) > maxKeyLength {
		return fmt.Errorf("event_id exceeds %d characters", maxKeyLength)
	}
	if e.Source == "" {
		return fmt.Errorf("source is required")
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}

// Key renders the dedup key for logging.
func (e *Event) Key() string {
	return e.Topic + "/" + e.EventID
}

// StoredEvent is an Event after the ingestion engine has written it:
// the envelope plus the server-side bookkeeping columns. Created exactly
// once per (topic, event_id); never updated, never deleted.
type StoredEvent struct {
	Event
	ProcessedAt time.Time `json:"processed_at"`
	WorkerID    string    `json:"worker_id"`
}

// BatchPublishRequest is the body of POST /v1/publish when submitting
// more than one event.
type BatchPublishRequest struct {
	Events []Event `json:"events"`
}

// PublishResponse summarizes one publish call. For sync submissions the
// counters reflect the dedup verdicts; for async submissions only Received
// is known (workers resolve the rest later).
type PublishResponse struct {
	Success           bool     `json:"success"`
	Message           string   `json:"message"`
	BatchID           string   `json:"batch_id"`
	Received          int      `json:"received"`
	Accepted          int      `json:"accepted"`
	RejectedDuplicate int      `json:"rejected_duplicate"`
	Failed            int      `json:"failed,omitempty"`
	Incomplete        bool     `json:"incomplete,omitempty"`
	EventIDs          []string `json:"event_ids"`
}

// EventListResponse is the body of GET /v1/events.
type EventListResponse struct {
	Events []StoredEvent `json:"events"`
	Total  int64         `json:"total"`
	Topic  string        `json:"topic,omitempty"`
}

// TopicStats is the per-topic slice of the stats breakdown.
type TopicStats struct {
	Topic      string `json:"topic"`
	EventCount int64  `json:"event_count"`
}

// StatsResponse is the body of GET /v1/stats.
type StatsResponse struct {
	Received          int64        `json:"received"`
	Accepted          int64        `json:"accepted"`
	RejectedDuplicate int64        `json:"rejected_duplicate"`
	DuplicateRate     string       `json:"duplicate_rate"`
	Topics            []TopicStats `json:"topics"`
	TopicCount        int          `json:"topic_count"`
	UptimeSeconds     float64      `json:"uptime_seconds"`
	StartedAt         time.Time    `json:"started_at"`
	LastUpdatedAt     time.Time    `json:"last_updated_at"`
}
