package app

import (
	"context"
	"os/signal"
	"syscall"

	"pre-resolution-lab/internal/api"
)

func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}

// Serve runs the dashboard API until interrupted.
func (a *App) Serve(ctx context.Context, source, fixture string) error {
	ctx, cancel := signalContext(ctx)
	defer cancel()

	backend, err := a.newBackend(source, fixture)
	if err != nil {
		return err
	}

	cfg := a.Config.Server
	srv := api.New(backend, api.Options{
		Defaults:      a.Config.StrategyParams(),
		UpcomingLimit: cfg.UpcomingLimit,
		RateLimit:     cfg.RateLimit,
		Burst:         cfg.Burst,
		Mode:          cfg.Mode,
		Metrics:       a.Metrics,
	}, a.Logger)

	return srv.Serve(ctx, api.ServeOptions{
		Addr:            cfg.Addr,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	})
}
