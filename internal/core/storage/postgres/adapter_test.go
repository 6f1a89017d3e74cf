package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	v1 "github.com/loghive/loghive/internal/api/v1"
	"github.com/loghive/loghive/internal/core/storage"
	"github.com/stretchr/testify/require"
)

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectPrepare(regexp.QuoteMeta(queryInsertEvent))
	mock.ExpectPrepare(regexp.QuoteMeta(queryListEvents))
	mock.ExpectPrepare(regexp.QuoteMeta(queryListEventsByTopic))
	mock.ExpectPrepare(regexp.QuoteMeta(queryTopicBreakdown))

	adapter := &Adapter{db: db}
	require.NoError(t, adapter.prepareStatements())
	return adapter, mock, db
}

func TestAdapter_InsertEvent(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		event      *v1.Event
		mockResult func(mock sqlmock.Sqlmock, event *v1.Event)
		assertions func(t *testing.T, inserted bool, err error)
	}{
		{
			name: "fresh key is inserted",
			event: &v1.Event{
				Topic:     "demo.test",
				EventID:   "e1",
				Timestamp: now,
				Source:    "svc-a",
				Payload:   map[string]interface{}{"level": "info"},
			},
			mockResult: func(mock sqlmock.Sqlmock, event *v1.Event) {
				mock.ExpectQuery(regexp.QuoteMeta(queryInsertEvent)).
					WithArgs(
						event.Topic,
						event.EventID,
						event.Timestamp,
						event.Source,
						sqlmock.AnyArg(),
						"worker-0",
					).
					WillReturnRows(sqlmock.NewRows([]string{"processed_at"}).AddRow(now))
			},
			assertions: func(t *testing.T, inserted bool, err error) {
				require.NoError(t, err)
				require.True(t, inserted)
			},
		},
		{
			name: "conflicting key maps to duplicate without error",
			event: &v1.Event{
				Topic:     "demo.test",
				EventID:   "e-dup",
				Timestamp: now,
				Source:    "svc-a",
			},
			mockResult: func(mock sqlmock.Sqlmock, event *v1.Event) {
				mock.ExpectQuery(regexp.QuoteMeta(queryInsertEvent)).
					WithArgs(
						event.Topic,
						event.EventID,
						event.Timestamp,
						event.Source,
						sqlmock.AnyArg(),
						"worker-0",
					).
					WillReturnRows(sqlmock.NewRows([]string{"processed_at"}))
			},
			assertions: func(t *testing.T, inserted bool, err error) {
				require.NoError(t, err)
				require.False(t, inserted)
			},
		},
		{
			name: "driver failure wraps ErrUnavailable",
			event: &v1.Event{
				Topic:     "demo.test",
				EventID:   "e-down",
				Timestamp: now,
				Source:    "svc-a",
			},
			mockResult: func(mock sqlmock.Sqlmock, event *v1.Event) {
				mock.ExpectQuery(regexp.QuoteMeta(queryInsertEvent)).
					WithArgs(
						event.Topic,
						event.EventID,
						event.Timestamp,
						event.Source,
						sqlmock.AnyArg(),
						"worker-0",
					).
					WillReturnError(errors.New("connection refused"))
			},
			assertions: func(t *testing.T, inserted bool, err error) {
				require.ErrorIs(t, err, storage.ErrUnavailable)
				require.False(t, inserted)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			adapter, mock, db := newMockAdapter(t)
			defer db.Close()

			tc.mockResult(mock, tc.event)

			inserted, err := adapter.InsertEvent(context.Background(), tc.event, "worker-0")
			tc.assertions(t, inserted, err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAdapter_ListEvents(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"topic", "event_id", "timestamp", "source", "payload", "processed_at", "worker_id"}).
		AddRow("demo.test", "e2", now, "svc-a", []byte(`{"level":"warn"}`), now, "worker-1").
		AddRow("demo.test", "e1", now.Add(-time.Minute), "svc-a", []byte(`{}`), now, "worker-0")

	mock.ExpectQuery(regexp.QuoteMeta(queryListEventsByTopic)).
		WithArgs("demo.test", 10, 0).
		WillReturnRows(rows)

	events, err := adapter.ListEvents(context.Background(), "demo.test", 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "e2", events[0].EventID)
	require.Equal(t, "warn", events[0].Payload["level"])
	require.Equal(t, "worker-0", events[1].WorkerID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_CountEvents(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryCountEvents)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))

	count, err := adapter.CountEvents(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, int64(7), count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_TopicBreakdown(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryTopicBreakdown)).
		WillReturnRows(sqlmock.NewRows([]string{"topic", "event_count"}).
			AddRow("demo.test", int64(5)).
			AddRow("other", int64(2)))

	topics, err := adapter.TopicBreakdown(context.Background())
	require.NoError(t, err)
	require.Equal(t, []v1.TopicStats{
		{Topic: "demo.test", EventCount: 5},
		{Topic: "other", EventCount: 2},
	}, topics)
	require.NoError(t, mock.ExpectationsWereMet())
}
