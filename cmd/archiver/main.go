// Package main is the entry point for the CropSight archive maintenance job.
//
// The archiver prunes raw ingestion payloads that have aged past their
// retention period from the local archive directory. It runs once and exits,
// which makes it suitable for cron:
//
//	archiver -retention 2160h
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cropsight/internal/config"
	"cropsight/internal/ingest"
)

// defaultRetention keeps 90 days of raw payloads, enough to replay a full
// growing season's recent ingestion history.
const defaultRetention = 90 * 24 * time.Hour

func main() {
	retention := flag.Duration("retention", defaultRetention, "delete archived payloads older than this")
	flag.Parse()

	if err := run(*retention); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(retention time.Duration) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if retention <= 0 {
		return fmt.Errorf("retention must be positive, got %s", retention)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	archive := ingest.NewArchive(cfg.Archive.Dir)
	if !archive.Enabled() {
		logger.Info("archival disabled, nothing to prune")
		return nil
	}

	cutoff := time.Now().UTC().Add(-retention)
	removed, err := archive.Prune(cutoff)
	if err != nil {
		return fmt.Errorf("pruning archive: %w", err)
	}

	logger.Info("archive pruned",
		"dir", cfg.Archive.Dir,
		"cutoff", cutoff.Format(time.RFC3339),
		"removed", removed,
	)
	return nil
}
