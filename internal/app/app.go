package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"pre-resolution-lab/internal/alerting"
	"pre-resolution-lab/internal/config"
	"pre-resolution-lab/internal/observability"
	"pre-resolution-lab/internal/storage"
	"pre-resolution-lab/internal/strategy"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config:  cfg,
		Logger:  logger.With().Str("component", "app").Logger(),
		Metrics: observability.NewMetrics(""),
	}
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
	}
	return nil
}

// openGateway builds the gateway for a named source. No connection is made
// until a session is opened.
func (a *App) openGateway(source string) (*storage.Gateway, error) {
	if source == "" {
		source = config.SourcePolymarket
	}
	src, err := a.Config.Source(source)
	if err != nil {
		return nil, err
	}
	creds, err := src.Credentials(source)
	if err != nil {
		return nil, err
	}
	gw, err := storage.NewGateway(creds, storage.WithObserver(a.Metrics))
	if err != nil {
		return nil, &config.Error{Key: "sources." + source, Err: err}
	}
	return gw, nil
}

// newBackend selects the analysis backend: a fixture file when given,
// otherwise the named store source.
func (a *App) newBackend(source, fixture string) (Backend, error) {
	if fixture != "" {
		file, err := os.Open(fixture)
		if err != nil {
			return nil, fmt.Errorf("open fixture: %w", err)
		}
		defer file.Close()

		mem, err := strategy.LoadFixture(file)
		if err != nil {
			return nil, err
		}
		a.Logger.Info().Str("fixture", fixture).Int("market_meta", len(mem.Meta)).Int("fills", len(mem.Fills)).Msg("using fixture data")
		return &memoryBackend{source: mem}, nil
	}

	gw, err := a.openGateway(source)
	if err != nil {
		return nil, err
	}
	return &gatewayBackend{gateway: gw}, nil
}

// Backend runs analyses and event listings, each inside its own session.
type Backend interface {
	Analyze(ctx context.Context, p strategy.Params) (strategy.Result, error)
	UpcomingEvents(ctx context.Context, ref time.Time, limit int) ([]storage.UpcomingEvent, error)
}

var _ strategy.Source = (*storage.Repository)(nil)

type gatewayBackend struct {
	gateway *storage.Gateway
}

func (b *gatewayBackend) Analyze(ctx context.Context, p strategy.Params) (strategy.Result, error) {
	var res strategy.Result
	err := b.gateway.WithSession(ctx, func(q storage.Querier) error {
		var err error
		res, err = strategy.NewAnalyzer(storage.NewRepository(q)).Analyze(ctx, p)
		return err
	})
	return res, err
}

func (b *gatewayBackend) UpcomingEvents(ctx context.Context, ref time.Time, limit int) ([]storage.UpcomingEvent, error) {
	var events []storage.UpcomingEvent
	err := b.gateway.WithSession(ctx, func(q storage.Querier) error {
		var err error
		events, err = storage.NewRepository(q).UpcomingEvents(ctx, ref, limit)
		return err
	})
	return events, err
}

type memoryBackend struct {
	source *strategy.MemorySource
}

func (b *memoryBackend) Analyze(ctx context.Context, p strategy.Params) (strategy.Result, error) {
	return strategy.NewAnalyzer(b.source).Analyze(ctx, p)
}

func (b *memoryBackend) UpcomingEvents(context.Context, time.Time, int) ([]storage.UpcomingEvent, error) {
	return []storage.UpcomingEvent{}, nil
}

// AnalyzeOptions configure the analyze command.
type AnalyzeOptions struct {
	Params        strategy.Params
	Source        string
	Fixture       string
	Details       bool
	JSON          bool
	CSVPath       string
	PNGPath       string
	HistogramPath string
	Notify        bool
}

// MarketsOptions configure the markets command.
type MarketsOptions struct {
	Params strategy.Params
	Source string
	Limit  int
}

// PriceOptions configure the price command.
type PriceOptions struct {
	Source        string
	Asset         string
	Resolution    time.Time
	OffsetMinutes int
}

// UpcomingOptions configure the upcoming command.
type UpcomingOptions struct {
	Source    string
	Limit     int
	Reference time.Time
}

// QueryOptions configure the ad-hoc query command.
type QueryOptions struct {
	Source string
	SQL    string
	CSV    bool
}

// SweepOptions configure a rolling analysis over past reference times.
type SweepOptions struct {
	Params  strategy.Params
	Source  string
	Fixture string
	From    time.Time
	To      time.Time
	Step    time.Duration
	CSVPath string
	PNGPath string
}

// WatchOptions configure the watch loop and simulate-alert.
type WatchOptions struct {
	Source    string
	Fixture   string
	Reference time.Time
}
