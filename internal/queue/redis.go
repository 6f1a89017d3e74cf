// Package queue is the inbound transport between producers and the
// ingestion workers. It is a FIFO-ish, at-least-once channel: a producer
// retry or a crashed worker can surface the same event twice, and the
// ingestion engine's idempotency is what makes that harmless. No ack/nack
// bookkeeping is kept here for that reason.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/loghive/loghive/internal/api/v1"
	"github.com/redis/go-redis/v9"
)

// ErrMalformedMessage marks queue payloads that could not be decoded into
// an Event. Workers log these and move on.
var ErrMalformedMessage = errors.New("malformed queue message")

// Queue is what the ingestion worker pool consumes and the publish path
// feeds. Pop returns (nil, nil) when the queue stays empty for the
// configured timeout.
type Queue interface {
	Publish(ctx context.Context, event v1.Event) error
	PublishBatch(ctx context.Context, events []v1.Event) (int, error)
	Pop(ctx context.Context, timeout time.Duration) (*v1.Event, error)
	Ping(ctx context.Context) error
	Close() error
}

// RedisQueue implements Queue over a Redis list: RPUSH to publish,
// BLPOP to consume. The blocking pop gives workers their pop-with-timeout
// semantics without busy-waiting.
type RedisQueue struct {
	client *redis.Client
	stream string
}

// NewRedisQueue connects to Redis and verifies the connection.
func NewRedisQueue(addr, stream string) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	slog.Info("[Queue] Redis connection established", "addr", addr, "stream", stream)
	return &RedisQueue{client: client, stream: stream}, nil
}

// Publish enqueues one event.
func (q *RedisQueue) Publish(ctx context.Context, event v1.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.Key(), err)
	}
	if err := q.client.RPush(ctx, q.stream, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.Key(), err)
	}
	return nil
}

// PublishBatch enqueues a batch through one pipeline round trip and returns
// the number of events enqueued.
func (q *RedisQueue) PublishBatch(ctx context.Context, events []v1.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	pipe := q.client.Pipeline()
	for i := range events {
		data, err := json.Marshal(events[i])
		if err != nil {
			return 0, fmt.Errorf("failed to marshal event %s: %w", events[i].Key(), err)
		}
		pipe.RPush(ctx, q.stream, data)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to publish batch: %w", err)
	}

	slog.Debug("[Queue] Batch published", "count", len(events), "stream", q.stream)
	return len(events), nil
}

// Pop blocks for up to timeout waiting for the next event. Returns
// (nil, nil) when the queue stayed empty, and an error wrapping
// ErrMalformedMessage when a payload cannot be decoded.
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (*v1.Event, error) {
	res, err := q.client.BLPop(ctx, timeout, q.stream).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop from queue: %w", err)
	}

	// BLPOP returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("%w: unexpected BLPOP reply of length %d", ErrMalformedMessage, len(res))
	}

	var event v1.Event
	if err := json.Unmarshal([]byte(res[1]), &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return &event, nil
}

// Ping checks queue connectivity for the health endpoint.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close shuts down the Redis client.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
