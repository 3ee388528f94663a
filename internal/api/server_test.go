package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pre-resolution-lab/internal/observability"
	"pre-resolution-lab/internal/storage"
	"pre-resolution-lab/internal/strategy"
)

var now = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

type stubBackend struct {
	result   strategy.Result
	err      error
	events   []storage.UpcomingEvent
	params   []strategy.Params
	limits   []int
	eventErr error
}

func (b *stubBackend) Analyze(_ context.Context, p strategy.Params) (strategy.Result, error) {
	b.params = append(b.params, p)
	return b.result, b.err
}

func (b *stubBackend) UpcomingEvents(_ context.Context, _ time.Time, limit int) ([]storage.UpcomingEvent, error) {
	b.limits = append(b.limits, limit)
	return b.events, b.eventErr
}

func newTestServer(backend Backend, opts Options) *Server {
	if opts.Defaults == (strategy.Params{}) {
		opts.Defaults = strategy.DefaultParams()
	}
	s := New(backend, opts, zerolog.Nop())
	s.now = func() time.Time { return now }
	s.newRunID = func() string { return "run-1" }
	return s
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func winningResult() strategy.Result {
	resolved := now.Add(-time.Hour)
	trades := []storage.QualifyingTrade{
		{AssetID: "1", Question: "Q1?", PreResolutionPrice: 0.99, PreResolutionTime: resolved.Add(-3 * time.Minute), OutcomePrice: 1, ResolutionTime: resolved},
		{AssetID: "2", Question: "Q2?", PreResolutionPrice: 0.985, PreResolutionTime: resolved.Add(-5 * time.Minute), OutcomePrice: 0, ResolutionTime: resolved},
	}
	return strategy.Summarize(10, trades, 0.98)
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestServer(&stubBackend{}, Options{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestStrategyJSON(t *testing.T) {
	backend := &stubBackend{result: winningResult()}
	rec := get(t, newTestServer(backend, Options{}), "/api/strategy?days=3&price_min=0.95&minutes=5&min_inclusive=true")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Code int              `json:"code"`
		Data analysisResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body.Data.RunID)
	assert.Equal(t, 2, body.Data.Result.QualifyingTrades)
	assert.Contains(t, body.Data.Report, "Out of 10 resolved markets")

	require.Len(t, backend.params, 1)
	p := backend.params[0]
	assert.Equal(t, 3, p.LookbackDays)
	assert.Equal(t, 0.95, p.PriceMin)
	assert.Equal(t, 1.0, p.PriceMax)
	assert.Equal(t, 5, p.OffsetMinutes)
	assert.True(t, p.MinInclusive)
	assert.Equal(t, now, p.Reference)
}

func TestStrategyReferenceParam(t *testing.T) {
	backend := &stubBackend{}
	rec := get(t, newTestServer(backend, Options{}), "/api/strategy?reference=2025-01-02T03:04:05Z")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), backend.params[0].Reference)
}

func TestStrategyBadParams(t *testing.T) {
	backend := &stubBackend{}
	s := newTestServer(backend, Options{})
	for _, q := range []string{"days=abc", "days=0", "price_min=1.2", "price_min=0.99&price_max=0.5", "minutes=0", "min_inclusive=maybe", "reference=yesterday", "price_min=NaN", "price_max=NaN", "price_max=Inf", "minutes=200000000", "days=100000"} {
		rec := get(t, s, "/api/strategy?"+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
	assert.Empty(t, backend.params, "invalid requests never reach the store")
}

func TestStrategyStoreError(t *testing.T) {
	metrics := observability.NewMetrics("test")
	s := newTestServer(&stubBackend{err: errors.New("connection refused")}, Options{Metrics: metrics})
	rec := get(t, s, "/api/strategy")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")

	metricsRec := get(t, s, "/metrics")
	assert.Contains(t, metricsRec.Body.String(), `test_strategy_analyses_total{outcome="error"} 1`)
}

func TestStrategyCSV(t *testing.T) {
	rec := get(t, newTestServer(&stubBackend{result: winningResult()}, Options{}), "/api/strategy.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	lines := bytes.Split(bytes.TrimSpace(rec.Body.Bytes()), []byte("\n"))
	assert.Len(t, lines, 3)
}

func TestStrategyChart(t *testing.T) {
	s := newTestServer(&stubBackend{result: winningResult()}, Options{})

	rec := get(t, s, "/api/strategy/chart.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = get(t, s, "/api/strategy/chart.png?kind=histogram")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, s, "/api/strategy/chart.png?kind=bubble")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	empty := newTestServer(&stubBackend{result: strategy.Result{TotalMarkets: 4}}, Options{})
	rec = get(t, empty, "/api/strategy/chart.png")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUpcoming(t *testing.T) {
	vol := 1_500.0
	backend := &stubBackend{events: []storage.UpcomingEvent{
		{ID: "m6", Question: "Will F happen?", EndDate: now.Add(90 * time.Minute), Volume24h: &vol, SecondsToExpire: 5400},
		{ID: "m7", Question: "Will G happen?", EndDate: now.Add(25 * time.Hour), SecondsToExpire: 90000},
	}}
	s := newTestServer(backend, Options{UpcomingLimit: 20})

	rec := get(t, s, "/api/events/upcoming")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []upcomingEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "1h 30m", body.Data[0].TimeToExpire)
	assert.Equal(t, "$1.5K", body.Data[0].Volume)
	assert.Equal(t, "1d 1h", body.Data[1].TimeToExpire)
	assert.Equal(t, "$0", body.Data[1].Volume)
	assert.Equal(t, []int{20}, backend.limits)

	assert.Equal(t, http.StatusOK, get(t, s, "/api/events/upcoming?limit=5").Code)
	assert.Equal(t, []int{20, 5}, backend.limits)
	assert.Equal(t, http.StatusBadRequest, get(t, s, fmt.Sprintf("/api/events/upcoming?limit=%d", maxUpcomingLimit+1)).Code)

	backend.eventErr = errors.New("timeout")
	assert.Equal(t, http.StatusBadGateway, get(t, s, "/api/events/upcoming").Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(&stubBackend{}, Options{RateLimit: 0.001, Burst: 1})

	assert.Equal(t, http.StatusOK, get(t, s, "/api/strategy").Code)
	rec := get(t, s, "/api/strategy")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, get(t, s, "/healthz").Code)
}
