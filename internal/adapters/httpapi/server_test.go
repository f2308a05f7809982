package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/energymatch/internal/adapters/httpapi"
	"github.com/alejandrodnm/energymatch/internal/adapters/metrics"
	"github.com/alejandrodnm/energymatch/internal/domain"
)

type fakeJournal struct {
	cycles    []domain.CycleResult
	err       error
	lastLimit int
}

func (f *fakeJournal) RecordCycle(context.Context, domain.CycleResult) error { return nil }

func (f *fakeJournal) RecentCycles(_ context.Context, limit int) ([]domain.CycleResult, error) {
	f.lastLimit = limit
	return f.cycles, f.err
}

func (f *fakeJournal) Close() error { return nil }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := httpapi.NewServer(nil, prometheus.NewRegistry())
	rec := get(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetrics_ExposesObserverSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := metrics.NewObserver(reg)
	obs.OnEvent(context.Background(), domain.CycleEvent{Kind: domain.EventTriggerDropped, MarketID: "m1"})

	s := httpapi.NewServer(nil, reg)
	rec := get(t, s.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `energymatch_triggers_dropped_total{market="m1"} 1`)
}

func TestCycles_ListsJournal(t *testing.T) {
	j := &fakeJournal{cycles: []domain.CycleResult{{
		ID:         "c1",
		Market:     domain.MarketRef{MarketID: "community-1", TimeSlot: time.Date(2022, 3, 14, 15, 0, 0, 0, time.UTC)},
		Trigger:    domain.TriggerEvent{Kind: domain.TriggerSlotCompletion},
		State:      domain.StateFailed,
		FailedIn:   domain.StateSettling,
		Attempts:   1,
		MatchCount: 2,
		Energy:     7.5,
		StartedAt:  time.Date(2022, 3, 14, 15, 5, 0, 0, time.UTC),
		Duration:   1500 * time.Millisecond,
		Err:        errors.New("settlement sink error"),
	}}}
	s := httpapi.NewServer(j, prometheus.NewRegistry())

	rec := get(t, s.Handler(), "/cycles?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, j.lastLimit)

	var body struct {
		Cycles []map[string]any `json:"cycles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Cycles, 1)
	c := body.Cycles[0]
	assert.Equal(t, "c1", c["id"])
	assert.Equal(t, "community-1", c["market_id"])
	assert.Equal(t, "2022-03-14T15:00", c["time_slot"])
	assert.Equal(t, "slot_completion", c["trigger"])
	assert.Equal(t, "FAILED", c["state"])
	assert.Equal(t, "SETTLING", c["failed_in"])
	assert.InDelta(t, 2, c["matches"], 0)
	assert.InDelta(t, 1500, c["duration_ms"], 0)
	assert.Equal(t, "settlement sink error", c["error"])
}

func TestCycles_DefaultLimitAndErrors(t *testing.T) {
	j := &fakeJournal{}
	s := httpapi.NewServer(j, prometheus.NewRegistry())

	rec := get(t, s.Handler(), "/cycles")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, j.lastLimit)
	assert.JSONEq(t, `{"cycles":[]}`, rec.Body.String())

	for _, bad := range []string{"0", "-1", "abc", "100000"} {
		rec := get(t, s.Handler(), "/cycles?limit="+bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}

	j.err = errors.New("disk full")
	rec = get(t, s.Handler(), "/cycles")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCycles_NoJournal(t *testing.T) {
	s := httpapi.NewServer(nil, prometheus.NewRegistry())
	rec := get(t, s.Handler(), "/cycles")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := httpapi.NewServer(nil, prometheus.NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
