// Package main is the entry point for the CropSight API server.
//
// It loads configuration, connects the PostgreSQL pool, wires the signal
// repositories, ingestion service and derivation engine into the HTTP chassis,
// and serves until SIGINT/SIGTERM triggers a graceful shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"cropsight/internal/api/handlers"
	"cropsight/internal/config"
	"cropsight/internal/core"
	"cropsight/internal/db"
	"cropsight/internal/ingest"
	"cropsight/internal/insight"
	"cropsight/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("cropsight API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
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
	insightRepo := db.NewInsightRepository(pool)

	clock := types.RealClock{}
	insightSvc := insight.NewService(fieldRepo, signalRepo, seasonRepo, insightRepo, logger, clock)
	ingestSvc := ingest.NewService(
		signalRepo,
		ingest.NewArchive(cfg.Archive.Dir),
		logger,
		clock,
		cfg.Poller.Concurrency,
	)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	srv.HealthProbes = []core.HealthProbe{db.NewProbe(pool)}

	fieldHandler := handlers.NewFieldHandler(fieldRepo, srv.Validator, logger)
	seasonHandler := handlers.NewSeasonHandler(seasonRepo, srv.Validator, logger)
	signalHandler := handlers.NewSignalHandler(ingestSvc, signalRepo, srv.Validator, logger)
	insightHandler := handlers.NewInsightHandler(insightSvc, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		fieldHandler.RegisterRoutes,
		seasonHandler.RegisterRoutes,
		signalHandler.RegisterRoutes,
		func(r chi.Router) { insightHandler.RegisterRoutes(r) },
	)

	srv.MountRoutes()

	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
