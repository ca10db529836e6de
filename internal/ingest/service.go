// Package ingest validates and persists incoming observation batches. It sits
// between the transport layers (HTTP API, signal poller) and the append-only
// signal store: every signal enters the system through this package, which
// enforces batch limits, per-signal validation, ID assignment and raw-payload
// archival.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cropsight/internal/types"
)

// DefaultConcurrency bounds parallel inserts within a single batch.
const DefaultConcurrency = 4

const (
	kindVegetation = "vegetation"
	kindWeather    = "weather"
)

// SignalWriter is the persistence surface the ingestion service requires.
// *db.SignalRepository satisfies it.
type SignalWriter interface {
	InsertVegetation(ctx context.Context, v *types.VegetationSignal) error
	InsertWeather(ctx context.Context, w *types.WeatherSignal) error
}

// BatchResult reports the outcome of a successful batch ingestion.
type BatchResult struct {
	Inserted    int    `json:"inserted"`
	ArchivePath string `json:"archive_path,omitempty"`
}

// Service validates and writes observation batches.
type Service struct {
	signals     SignalWriter
	archive     *Archive
	logger      *slog.Logger
	clock       types.Clock
	concurrency int
}

// NewService wires an ingestion service. A nil archive disables raw-payload
// archival; concurrency <= 0 falls back to DefaultConcurrency.
func NewService(signals SignalWriter, archive *Archive, logger *slog.Logger, clock types.Clock, concurrency int) *Service {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		signals:     signals,
		archive:     archive,
		logger:      logger,
		clock:       clock,
		concurrency: concurrency,
	}
}

// IngestVegetation validates and persists a batch of vegetation signals.
// The whole batch is rejected if any signal fails validation; persistence
// itself runs concurrently and stops on the first store error. Signals
// without an ID are assigned one.
func (s *Service) IngestVegetation(ctx context.Context, batch []types.VegetationSignal) (*BatchResult, error) {
	if err := checkBatchSize(len(batch)); err != nil {
		return nil, err
	}

	details := map[string]any{}
	for i := range batch {
		if batch[i].ID == "" {
			batch[i].ID = "veg_" + uuid.NewString()
		}
		if err := batch[i].Validate(); err != nil {
			details[fmt.Sprintf("signals[%d]", i)] = err.Error()
		}
	}
	if len(details) > 0 {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeValidationMissingField,
			fmt.Sprintf("batch rejected: %d invalid vegetation signals", len(details)),
			nil,
			details,
		)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range batch {
		sig := &batch[i]
		g.Go(func() error {
			return s.signals.InsertVegetation(gCtx, sig)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &BatchResult{Inserted: len(batch)}
	result.ArchivePath = s.archiveBatch(ctx, kindVegetation, batch)

	s.logger.InfoContext(ctx, "vegetation batch ingested",
		"count", len(batch),
		"archive_path", result.ArchivePath,
	)
	return result, nil
}

// IngestWeather validates and persists a batch of weather signals with the
// same all-or-nothing validation semantics as IngestVegetation.
func (s *Service) IngestWeather(ctx context.Context, batch []types.WeatherSignal) (*BatchResult, error) {
	if err := checkBatchSize(len(batch)); err != nil {
		return nil, err
	}

	details := map[string]any{}
	for i := range batch {
		if batch[i].ID == "" {
			batch[i].ID = "wx_" + uuid.NewString()
		}
		if err := batch[i].Validate(); err != nil {
			details[fmt.Sprintf("signals[%d]", i)] = err.Error()
		}
	}
	if len(details) > 0 {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeValidationMissingField,
			fmt.Sprintf("batch rejected: %d invalid weather signals", len(details)),
			nil,
			details,
		)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range batch {
		sig := &batch[i]
		g.Go(func() error {
			return s.signals.InsertWeather(gCtx, sig)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &BatchResult{Inserted: len(batch)}
	result.ArchivePath = s.archiveBatch(ctx, kindWeather, batch)

	s.logger.InfoContext(ctx, "weather batch ingested",
		"count", len(batch),
		"archive_path", result.ArchivePath,
	)
	return result, nil
}

// archiveBatch writes the raw batch to the archive. Archival failures are
// logged and swallowed: the signals are already committed.
func (s *Service) archiveBatch(ctx context.Context, kind string, payload any) string {
	if !s.archive.Enabled() {
		return ""
	}
	path, err := s.archive.Write(kind, s.clock.Now(), payload)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to archive ingested batch",
			"kind", kind,
			"error", err,
		)
		return ""
	}
	return path
}

func checkBatchSize(n int) error {
	if n == 0 {
		return types.NewAppError(
			types.ErrCodeValidationMissingField,
			"batch must contain at least one signal",
			nil,
		)
	}
	if n > types.MaxSignalBatch {
		return types.NewAppError(
			types.ErrCodeValidationBatchSize,
			fmt.Sprintf("batch of %d exceeds the maximum of %d signals", n, types.MaxSignalBatch),
			nil,
		)
	}
	return nil
}
