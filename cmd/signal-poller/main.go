// Package main is the entry point for the CropSight signal poller.
//
// The poller is a long-running worker. On a fixed interval it pulls fresh
// vegetation and weather observations from the upstream provider for every
// registered field and feeds them through the ingestion service. A -once flag
// runs a single cycle and exits, which is how backfills are operated:
//
//	signal-poller -once -backfill-hours 72
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cropsight/internal/config"
	"cropsight/internal/db"
	"cropsight/internal/external"
	"cropsight/internal/ingest"
	"cropsight/internal/scheduler"
	"cropsight/internal/types"
)

func main() {
	once := flag.Bool("once", false, "run a single poll cycle and exit")
	forceRetry := flag.Bool("force-retry", false, "re-fetch recent history even for up-to-date fields")
	backfillHours := flag.Int("backfill-hours", 0, "shift the fetch window start this many hours into the past")
	limit := flag.Int("limit", 0, "maximum fields to poll per cycle (0 = all)")
	flag.Parse()

	input := scheduler.PollInput{
		ForceRetry:    *forceRetry,
		BackfillHours: *backfillHours,
		Limit:         *limit,
	}

	if err := run(input, *once); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(input scheduler.PollInput, once bool) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if cfg.Provider.BaseURL == "" {
		return fmt.Errorf("PROVIDER_BASE_URL is required for the signal poller")
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("cropsight signal poller starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"interval", cfg.Poller.Interval.String(),
		"concurrency", cfg.Poller.Concurrency,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	fieldRepo := db.NewFieldRepository(pool)
	seasonRepo := db.NewSeasonRepository(pool)
	signalRepo := db.NewSignalRepository(pool)

	provider := external.NewProviderClient(
		&http.Client{Timeout: cfg.Provider.Timeout},
		external.ProviderClientConfig{
			APIKey:  cfg.Provider.APIKey.Unmask(),
			BaseURL: cfg.Provider.BaseURL,
			Logger:  logger,
		},
	)

	clock := types.RealClock{}
	ingestSvc := ingest.NewService(
		signalRepo,
		ingest.NewArchive(cfg.Archive.Dir),
		logger,
		clock,
		cfg.Poller.Concurrency,
	)

	poller := scheduler.NewSignalPoller(scheduler.SignalPollerConfig{
		Fields:      fieldRepo,
		Seasons:     seasonRepo,
		Cursor:      signalRepo,
		Provider:    provider,
		Ingestor:    ingestSvc,
		Clock:       clock,
		Concurrency: cfg.Poller.Concurrency,
		Logger:      logger,
	})

	if once {
		ingested, err := poller.Poll(ctx, input)
		if err != nil {
			return fmt.Errorf("poll cycle: %w", err)
		}
		logger.Info("poll cycle finished", "signals_ingested", ingested)
		return nil
	}

	runLoop(ctx, poller.Poll, cfg.Poller.Interval, input, logger)
	logger.Info("signal poller stopped")
	return nil
}

// pollFunc is the shape of a single poll cycle.
type pollFunc func(ctx context.Context, input scheduler.PollInput) (int, error)

// runLoop runs one cycle immediately, then one per tick until the context is
// cancelled. Cycle errors are logged and the loop keeps going; the next tick
// retries from the same cursors.
func runLoop(ctx context.Context, poll pollFunc, interval time.Duration, input scheduler.PollInput, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ingested, err := poll(ctx, input)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			logger.ErrorContext(ctx, "poll cycle failed", "error", err)
		default:
			logger.InfoContext(ctx, "poll cycle finished", "signals_ingested", ingested)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
