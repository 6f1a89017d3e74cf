package query

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	v1 "github.com/loghive/loghive/internal/api/v1"
	"github.com/loghive/loghive/internal/core/storage"
	"github.com/loghive/loghive/internal/core/storage/memory"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, *memory.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	svc := NewService(store, store)

	router := gin.New()
	svc.RegisterRoutes(router)
	return router, store
}

func TestHandleStats(t *testing.T) {
	router, store := newTestRouter(t)
	ctx := context.Background()

	evt := v1.Event{Topic: "alpha", EventID: "e1", Timestamp: time.Now(), Source: "svc-a"}
	inserted, err := store.InsertEvent(ctx, &evt, "worker-0")
	require.NoError(t, err)
	require.True(t, inserted)
	require.NoError(t, store.ApplyOutcome(ctx, false))
	require.NoError(t, store.ApplyOutcome(ctx, true))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp v1.StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, int64(2), resp.Received)
	require.Equal(t, int64(1), resp.Accepted)
	require.Equal(t, int64(1), resp.RejectedDuplicate)
	require.Equal(t, "50", resp.DuplicateRate)
	require.Equal(t, 1, resp.TopicCount)
}

func TestHandleStats_StoreFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := NewService(memory.NewStore(), &failingStatsStore{})
	router := gin.New()
	svc.RegisterRoutes(router)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleListEvents(t *testing.T) {
	router, store := newTestRouter(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"e1", "e2", "e3"} {
		evt := v1.Event{
			Topic:     "alpha",
			EventID:   id,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Source:    "svc-a",
		}
		_, err := store.InsertEvent(ctx, &evt, "worker-0")
		require.NoError(t, err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/events?topic=alpha&limit=2", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp v1.EventListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, int64(3), resp.Total)
	require.Len(t, resp.Events, 2)
	require.Equal(t, "e3", resp.Events[0].EventID)
	require.Equal(t, "alpha", resp.Topic)
}

func TestHandleListEvents_BadQuery(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/events?limit=notanumber", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

type failingStatsStore struct{}

func (f *failingStatsStore) ApplyOutcome(ctx context.Context, duplicate bool) error {
	return storage.ErrUnavailable
}

func (f *failingStatsStore) Snapshot(ctx context.Context) (storage.StatsSnapshot, error) {
	return storage.StatsSnapshot{}, storage.ErrUnavailable
}
