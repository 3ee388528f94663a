package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pre-resolution-lab/internal/alerting"
	"pre-resolution-lab/internal/config"
	"pre-resolution-lab/internal/observability"
	"pre-resolution-lab/internal/strategy"
)

type stubAnalyzer struct {
	res    strategy.Result
	err    error
	params []strategy.Params
}

func (s *stubAnalyzer) Analyze(_ context.Context, p strategy.Params) (strategy.Result, error) {
	s.params = append(s.params, p)
	return s.res, s.err
}

type captureNotifier struct {
	notes []alerting.Notification
	err   error
}

func (c *captureNotifier) Notify(_ context.Context, n alerting.Notification) error {
	c.notes = append(c.notes, n)
	return c.err
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	defaults := strategy.DefaultParams()
	cfg.Strategy = config.StrategyConfig{
		LookbackDays:  defaults.LookbackDays,
		PriceMin:      defaults.PriceMin,
		PriceMax:      defaults.PriceMax,
		OffsetMinutes: defaults.OffsetMinutes,
	}
	cfg.Watch.MinExpectedValue = 0.001
	cfg.Alerting.Enabled = true
	return cfg
}

func newTestService(analyzer Analyzer, notifier alerting.Notifier, metrics *observability.Metrics) *Service {
	svc := New(testConfig(), nil, analyzer, notifier, metrics, zerolog.Nop())
	svc.newRunID = func() string { return "run-fixed" }
	return svc
}

var tick = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func TestProcessTickNotifiesAboveThreshold(t *testing.T) {
	analyzer := &stubAnalyzer{res: strategy.Result{TotalMarkets: 50, QualifyingTrades: 3, Wins: 3, WinRate: 1, AverageEntryPrice: 0.99, ExpectedValue: 0.01}}
	notifier := &captureNotifier{}
	metrics := observability.NewMetrics("test")

	require.NoError(t, newTestService(analyzer, notifier, metrics).ProcessTick(context.Background(), tick))

	require.Len(t, analyzer.params, 1)
	assert.Equal(t, tick, analyzer.params[0].Reference)
	require.Len(t, notifier.notes, 1)
	assert.Equal(t, "run-fixed", notifier.notes[0].RunID)
	assert.Contains(t, notifier.notes[0].Report, "Out of 50 resolved markets")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NotificationsSent.WithLabelValues("success")))
	assert.Equal(t, 0.01, testutil.ToFloat64(metrics.LastExpectedValue))
}

func TestProcessTickSkipsBelowThreshold(t *testing.T) {
	notifier := &captureNotifier{}
	analyzer := &stubAnalyzer{res: strategy.Result{QualifyingTrades: 3, ExpectedValue: -0.2}}
	require.NoError(t, newTestService(analyzer, notifier, nil).ProcessTick(context.Background(), tick))
	assert.Empty(t, notifier.notes)

	analyzer.res = strategy.Result{TotalMarkets: 9}
	require.NoError(t, newTestService(analyzer, notifier, nil).ProcessTick(context.Background(), tick))
	assert.Empty(t, notifier.notes, "empty results never alert")
}

func TestProcessTickPropagatesAnalysisError(t *testing.T) {
	boom := errors.New("store down")
	metrics := observability.NewMetrics("test")
	err := newTestService(&stubAnalyzer{err: boom}, &captureNotifier{}, metrics).ProcessTick(context.Background(), tick)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AnalysesTotal.WithLabelValues("error")))
}

func TestProcessTickNotifierFailureIsLogged(t *testing.T) {
	analyzer := &stubAnalyzer{res: strategy.Result{QualifyingTrades: 1, ExpectedValue: 0.5}}
	notifier := &captureNotifier{err: errors.New("telegram down")}
	assert.NoError(t, newTestService(analyzer, notifier, nil).ProcessTick(context.Background(), tick))
	assert.Len(t, notifier.notes, 1)
}

func TestShouldNotify(t *testing.T) {
	assert.True(t, ShouldNotify(strategy.Result{QualifyingTrades: 1, ExpectedValue: 0}, 0))
	assert.False(t, ShouldNotify(strategy.Result{QualifyingTrades: 0, ExpectedValue: 0}, 0))
	assert.False(t, ShouldNotify(strategy.Result{QualifyingTrades: 2, ExpectedValue: -0.01}, 0))
}

func TestRunRequiresScheduler(t *testing.T) {
	assert.Error(t, newTestService(&stubAnalyzer{}, nil, nil).Run(context.Background()))
}
