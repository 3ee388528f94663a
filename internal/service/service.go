package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pre-resolution-lab/internal/alerting"
	"pre-resolution-lab/internal/config"
	"pre-resolution-lab/internal/observability"
	"pre-resolution-lab/internal/report"
	"pre-resolution-lab/internal/scheduler"
	"pre-resolution-lab/internal/strategy"
)

// Analyzer runs one analysis. Implementations own their store session.
type Analyzer interface {
	Analyze(ctx context.Context, p strategy.Params) (strategy.Result, error)
}

// Service re-runs the strategy analysis on a schedule and alerts when the
// result clears the expected-value threshold.
type Service struct {
	scheduler *scheduler.Scheduler
	analyzer  Analyzer
	notifier  alerting.Notifier
	metrics   *observability.Metrics
	logger    zerolog.Logger

	params   strategy.Params
	minEV    float64
	alertsOn bool
	newRunID func() string
}

// New constructs the watch service.
func New(cfg *config.Config, sched *scheduler.Scheduler, analyzer Analyzer, notifier alerting.Notifier, metrics *observability.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		scheduler: sched,
		analyzer:  analyzer,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger.With().Str("component", "service").Logger(),
		params:    cfg.StrategyParams(),
		minEV:     cfg.Watch.MinExpectedValue,
		alertsOn:  cfg.Alerting.Enabled,
		newRunID:  func() string { return uuid.NewString() },
	}
}

// Run begins the periodic analysis loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// ProcessTick runs one analysis with at as the reference time.
func (s *Service) ProcessTick(ctx context.Context, at time.Time) error {
	runID := s.newRunID()
	params := s.params
	params.Reference = at.UTC()

	started := time.Now()
	res, err := s.analyzer.Analyze(ctx, params)
	s.metrics.RecordAnalysis(res, err)
	if err != nil {
		return fmt.Errorf("analysis %s: %w", runID, err)
	}

	s.logger.Info().Str("run_id", runID).
		Time("reference", params.Reference).
		Int64("total_markets", res.TotalMarkets).
		Int("qualifying_trades", res.QualifyingTrades).
		Float64("win_rate", res.WinRate).
		Float64("expected_value", res.ExpectedValue).
		Dur("elapsed", time.Since(started)).
		Msg("analysis recorded")

	if !s.alertsOn || s.notifier == nil || !ShouldNotify(res, s.minEV) {
		return nil
	}

	note := alerting.Notification{
		RunID:     runID,
		Reference: params.Reference,
		Params:    params,
		Result:    res,
		Threshold: s.minEV,
		Report:    report.Text(res, params.PriceMin, params.PriceMax),
	}
	err = s.notifier.Notify(ctx, note)
	s.metrics.RecordNotification(err)
	if err != nil {
		s.logger.Error().Err(err).Str("run_id", runID).Msg("failed to dispatch alert")
	}
	return nil
}

// ShouldNotify reports whether a result is worth an alert: at least one
// qualifying trade and an expected value at or above minEV.
func ShouldNotify(res strategy.Result, minEV float64) bool {
	return res.QualifyingTrades > 0 && res.ExpectedValue >= minEV
}
