// Package api serves the strategy dashboard backend over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"pre-resolution-lab/internal/observability"
	"pre-resolution-lab/internal/storage"
	"pre-resolution-lab/internal/strategy"
)

// Backend answers dashboard queries. Each call owns its store session.
type Backend interface {
	Analyze(ctx context.Context, p strategy.Params) (strategy.Result, error)
	UpcomingEvents(ctx context.Context, ref time.Time, limit int) ([]storage.UpcomingEvent, error)
}

// Options configure a Server.
type Options struct {
	Defaults      strategy.Params
	UpcomingLimit int
	RateLimit     float64
	Burst         int
	Mode          string
	Metrics       *observability.Metrics
}

// Server wires the gin engine to a Backend.
type Server struct {
	engine   *gin.Engine
	backend  Backend
	opts     Options
	metrics  *observability.Metrics
	logger   zerolog.Logger
	now      func() time.Time
	newRunID func() string
}

// New builds the router.
func New(backend Backend, opts Options, logger zerolog.Logger) *Server {
	if opts.UpcomingLimit <= 0 {
		opts.UpcomingLimit = 50
	}
	if opts.Mode == gin.DebugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		backend:  backend,
		opts:     opts,
		metrics:  opts.Metrics,
		logger:   logger.With().Str("component", "api").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
		newRunID: func() string { return uuid.NewString() },
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(s.logger), rateLimit(limiter))

	engine.GET("/healthz", s.health)
	engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	group := engine.Group("/api")
	group.GET("/strategy", s.strategyJSON)
	group.GET("/strategy.csv", s.strategyCSV)
	group.GET("/strategy/chart.png", s.strategyChart)
	group.GET("/events/upcoming", s.upcoming)

	s.engine = engine
	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ServeOptions tune the listening HTTP server.
type ServeOptions struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, opts ServeOptions) error {
	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           s.engine,
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", opts.Addr).Msg("dashboard api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("dashboard api stopped")
	return nil
}
