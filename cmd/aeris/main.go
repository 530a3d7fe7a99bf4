package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WatchBeam/clock"
	"github.com/rs/zerolog"

	"github.com/aeris-project/aeris/internal/backfill"
	"github.com/aeris-project/aeris/internal/config"
	"github.com/aeris-project/aeris/internal/httpapi"
	"github.com/aeris-project/aeris/internal/owm"
	"github.com/aeris-project/aeris/internal/pipeline"
	"github.com/aeris-project/aeris/internal/scheduler"
	"github.com/aeris-project/aeris/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "aeris failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.New(ctx, cfg.DatabaseURL, logger.With().Str("component", "store").Logger())
	if err != nil {
		return err
	}
	defer st.Close()

	initCtx, initCancel := context.WithTimeout(ctx, 30*time.Second)
	defer initCancel()
	if err := st.Init(initCtx); err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}

	limiter := owm.NewRateLimiter(cfg.RequestsPerMin, clock.C)
	client := owm.NewClient(owm.ClientConfig{
		BaseURL:        cfg.OWMBaseURL,
		APIKey:         cfg.OWMAPIKey,
		Units:          cfg.OWMUnits,
		RequestTimeout: cfg.RequestTimeout,
		ConnectTimeout: cfg.ConnectTimeout,
		RetryAttempts:  cfg.RetryAttempts,
		RetryBackoff:   cfg.RetryBackoff,
	}, limiter, logger.With().Str("component", "owm").Logger())

	collector := owm.NewBatchCollector(client, cfg.MaxConcurrent, logger.With().Str("component", "batch").Logger())
	tracker := backfill.NewTracker(st, logger.With().Str("component", "backfill").Logger())
	pipe := pipeline.New(collector, st, cfg.CitiesToMonitor, logger.With().Str("component", "pipeline").Logger())

	history := scheduler.NewHistory(1000, clock.C)
	sched := scheduler.New(
		pipe, tracker, history,
		cfg.UpdateInterval, cfg.ExpectedDays(),
		logger.With().Str("component", "scheduler").Logger(),
	)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() {
		if err := sched.Stop(); err != nil {
			logger.Error().Err(err).Msg("scheduler shutdown failed")
		}
	}()

	srv := httpapi.New(httpapi.Config{
		ListenAddr:   cfg.ListenAddr(),
		BearerToken:  cfg.BearerToken,
		DefaultDays:  cfg.DefaultDays,
		ExpectedDays: cfg.ExpectedDays(),
	}, st, client, pipe, sched, tracker, logger.With().Str("component", "httpapi").Logger())

	logger.Info().Str("addr", cfg.ListenAddr()).Msg("REST API listening")
	return srv.Run(ctx)
}

func newLogger(cfg config.Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	var out = os.Stderr
	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	if cfg.PrettyLogs {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out})
	}
	return logger, nil
}
