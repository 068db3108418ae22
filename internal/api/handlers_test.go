package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"step-tracker/internal/daykey"
	"step-tracker/internal/services"
	"step-tracker/internal/storage"
	"step-tracker/internal/tracker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSensor struct{ cumulative int }

func (f *fakeSensor) IsAvailable(context.Context) bool { return true }

func (f *fakeSensor) QueryCumulative(context.Context, time.Time, time.Time) (int, error) {
	return f.cumulative, nil
}

func (f *fakeSensor) Subscribe(func(int)) (tracker.Subscription, error) { return noopSub{}, nil }

type noopSub struct{}

func (noopSub) Cancel() {}

func newServer(t *testing.T) (http.Handler, *storage.MemorySlot) {
	t.Helper()
	return newServerWithLogger(t, zap.NewNop())
}

func newServerWithLogger(t *testing.T, logger *zap.Logger) (http.Handler, *storage.MemorySlot) {
	t.Helper()
	ctx := context.Background()
	slot := storage.NewMemorySlot()
	opts := storage.DefaultOptions()
	resolver := daykey.New(time.UTC)
	history := storage.NewHistoryStore(slot, opts, zap.NewNop())
	goals := storage.NewGoalStore(slot, opts, zap.NewNop())

	_, err := history.Upsert(ctx, storage.NewHistory(), "2024-01-01", 9500)
	require.NoError(t, err)

	now := func() time.Time { return time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC) }
	agg := tracker.New(resolver, history, goals, &fakeSensor{cumulative: 4200}, tracker.Options{Now: now})
	require.NoError(t, agg.Start(ctx))
	t.Cleanup(agg.Stop)

	sm := services.NewServiceManager(agg, resolver, 0.7, zap.NewNop())
	return NewRouter(NewHandler(sm.Analytics, agg, logger)), slot
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestToday(t *testing.T) {
	h, _ := newServer(t)

	rec := do(t, h, http.MethodGet, "/api/v1/today", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"date": "2024-01-02",
		"steps": 4200,
		"goal": 10000,
		"progress": 0.42,
		"distanceKm": 2.94,
		"goalMet": false,
		"state": "tracking"
	}`, rec.Body.String())
}

func TestHistory(t *testing.T) {
	h, _ := newServer(t)

	rec := do(t, h, http.MethodGet, "/api/v1/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"date":"2024-01-02","steps":4200},{"date":"2024-01-01","steps":9500}]`, rec.Body.String())
}

func TestWeek(t *testing.T) {
	h, _ := newServer(t)

	rec := do(t, h, http.MethodGet, "/api/v1/week", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats services.WeeklyStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 13700, stats.Total)
	assert.Equal(t, daykey.Key("2023-12-27"), stats.StartDate)
}

func TestGoal(t *testing.T) {
	h, slot := newServer(t)

	rec := do(t, h, http.MethodGet, "/api/v1/goal", "")
	assert.JSONEq(t, `{"goal":10000}`, rec.Body.String())

	rec = do(t, h, http.MethodPut, "/api/v1/goal", `{"goal":8000}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"goal":8000}`, rec.Body.String())

	stored, ok, err := slot.Get(context.Background(), storage.DefaultGoalKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "8000", stored)

	rec = do(t, h, http.MethodPut, "/api/v1/goal", `{"goal":-5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "InvalidGoal")

	rec = do(t, h, http.MethodPut, "/api/v1/goal", `{"goal":"ten"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/goal", "")
	assert.JSONEq(t, `{"goal":8000}`, rec.Body.String())

	rec = do(t, h, http.MethodDelete, "/api/v1/goal", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"goal":10000}`, rec.Body.String())
	_, ok, err = slot.Get(context.Background(), storage.DefaultGoalKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHealth(t *testing.T) {
	h, _ := newServer(t)

	rec := do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"state":"tracking"}`, rec.Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newServer(t)
	rec := do(t, h, http.MethodPost, "/api/v1/goal", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAccessLogUsesLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h, _ := newServerWithLogger(t, zap.New(core))

	do(t, h, http.MethodGet, "/health", "")

	entries := logs.FilterLoggerName("http").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, "GET /health")
}
