package app

import (
	"context"
	"errors"
	"time"

	"pre-resolution-lab/internal/scheduler"
	"pre-resolution-lab/internal/service"
)

// SimulateAlert runs a single watch tick so the alert path can be checked
// end to end without waiting for the schedule.
func (a *App) SimulateAlert(ctx context.Context, opts WatchOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is disabled")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	backend, err := a.newBackend(opts.Source, opts.Fixture)
	if err != nil {
		return err
	}

	svc := service.New(a.Config, nil, backend, notifier, a.Metrics, a.Logger)

	ref := opts.Reference
	if ref.IsZero() {
		ref = time.Now().UTC()
	}
	return svc.ProcessTick(ctx, ref)
}

// Watch runs the periodic analysis until the context is cancelled.
func (a *App) Watch(ctx context.Context, opts WatchOptions) error {
	ctx, cancel := signalContext(ctx)
	defer cancel()

	backend, err := a.newBackend(opts.Source, opts.Fixture)
	if err != nil {
		return err
	}

	notifier := a.newNotifier()
	if a.Config.Alerting.Enabled && notifier == nil {
		a.Logger.Warn().Msg("alerting enabled but no channel configured; results are only logged")
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Watch.Interval,
		AlignToStart: a.Config.Watch.AlignToInterval,
		StartupDelay: a.Config.Watch.StartupDelay,
		Immediate:    true,
	}, a.Logger)

	svc := service.New(a.Config, sched, backend, notifier, a.Metrics, a.Logger)

	a.Logger.Info().Dur("interval", a.Config.Watch.Interval).Msg("starting watch service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watch service terminated with error")
		return err
	}

	a.Logger.Info().Msg("watch service stopped")
	return nil
}
