// Package insight implements the deterministic insight and inference
// derivation engine for the CropSight platform.
//
// The engine is a pure function of the persisted signal set: it assembles a
// bounded signal window, classifies crop-health status from NDVI thresholds,
// resolves a comparison baseline, derives a severity-rated performance
// deviation insight, and can replay the same inputs into an auditable
// provenance trail. It performs no background work and mutates no shared
// state; persistence is delegated to the injected repositories.
package insight

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"cropsight/internal/types"
)

// SignalRepository provides read access to the append-only signal store.
// Implementations must return signals ordered ascending by timestamp; the
// assembler re-sorts defensively, so ordering violations degrade performance
// rather than correctness.
type SignalRepository interface {
	// GetBySeason returns all vegetation and weather signals recorded for the
	// field within the season.
	GetBySeason(ctx context.Context, fieldID, seasonID string) ([]types.VegetationSignal, []types.WeatherSignal, error)

	// GetByWindow returns all signals for the field with timestamps inside
	// [window.Start, window.End).
	GetByWindow(ctx context.Context, fieldID string, window types.TimeWindow) ([]types.VegetationSignal, []types.WeatherSignal, error)

	// GetSeasonNDVIMean returns the mean NDVI over the field's vegetation
	// signals in the season, or nil when the season has no vegetation signals.
	GetSeasonNDVIMean(ctx context.Context, fieldID, seasonID string) (*float64, error)

	// GetHistoricalNDVIMean returns the mean NDVI over the field's vegetation
	// signals outside the excluded season, or nil when none exist. The season
	// under evaluation must never contribute to its own baseline.
	GetHistoricalNDVIMean(ctx context.Context, fieldID, excludeSeasonID string) (*float64, error)
}

// FieldRepository confirms field existence before derivation. Derivations for
// unknown fields must surface as not-found, never as an empty-window result.
type FieldRepository interface {
	// GetByID returns the field or an AppError with ErrCodeNotFoundField.
	GetByID(ctx context.Context, fieldID string) (*types.Field, error)
}

// SeasonRepository resolves season bounds and ordering.
type SeasonRepository interface {
	// GetByID returns the season or an AppError with ErrCodeNotFoundSeason.
	GetByID(ctx context.Context, seasonID string) (*types.Season, error)

	// GetPrevious returns the most recent season whose start date is strictly
	// earlier than the given season's, or nil when none exists.
	GetPrevious(ctx context.Context, seasonID string) (*types.Season, error)
}

// InsertOutcome tags the result of an insight insert attempt.
type InsertOutcome string

const (
	// InsertOutcomeInserted means this caller's row was committed.
	InsertOutcomeInserted InsertOutcome = "inserted"

	// InsertOutcomeAlreadyExists means a concurrent insert won the uniqueness
	// race; the returned insight is the committed winner.
	InsertOutcomeAlreadyExists InsertOutcome = "already_exists"
)

// InsertResult is the tagged outcome of InsightRepository.Insert. The store's
// uniqueness constraint on (field_id, season_id) is surfaced as a value, not
// as a string-matched error.
type InsertResult struct {
	Outcome InsertOutcome
	Insight *types.Insight
}

// InsightRepository provides access to the write-once insight store.
type InsightRepository interface {
	// Get returns the insight for (fieldID, seasonID), or (nil, nil) when no
	// row exists.
	Get(ctx context.Context, fieldID, seasonID string) (*types.Insight, error)

	// Insert attempts to persist the insight. On a uniqueness-constraint
	// collision it re-reads and returns the committed row with
	// InsertOutcomeAlreadyExists instead of an error.
	Insert(ctx context.Context, in *types.Insight) (InsertResult, error)
}

// InferenceResult is the legacy status/category/confidence view over a signal
// window. Ephemeral; recomputed per request.
type InferenceResult struct {
	FieldID         string               `json:"field_id"`
	WindowStart     time.Time            `json:"window_start"`
	WindowEnd       time.Time            `json:"window_end"`
	Status          *types.StatusResult  `json:"status"`
	Category        types.CategoryResult `json:"category"`
	ConfidenceScore int                  `json:"confidence_score"`
	Completeness    int                  `json:"signal_completeness"`
	VegetationCount int                  `json:"vegetation_signal_count"`
	WeatherCount    int                  `json:"weather_signal_count"`
}

// Service is the engine's public surface, consumed by the HTTP handlers.
type Service interface {
	// GetOrGenerateInsight returns the persisted insight for the field and
	// season, generating and persisting one if none exists. Concurrent
	// first-time callers converge on the single committed row.
	GetOrGenerateInsight(ctx context.Context, fieldID, seasonID string) (*types.Insight, error)

	// GetInference derives the legacy inference view for a season.
	GetInference(ctx context.Context, fieldID, seasonID string) (*InferenceResult, error)

	// GetInferenceWindow derives the legacy inference view for an explicit
	// time window (legacy compatibility mode).
	GetInferenceWindow(ctx context.Context, fieldID string, window types.TimeWindow) (*InferenceResult, error)

	// GetProvenance replays the season's inputs into an auditable rule trace.
	GetProvenance(ctx context.Context, fieldID, seasonID string) (*Provenance, error)
}

// service is the concrete implementation of Service.
type service struct {
	fields    FieldRepository
	assembler *Assembler
	generator *Generator
	insights  InsightRepository
	logger    *slog.Logger
	clock     types.Clock
}

// NewService creates the engine service with the provided repositories.
func NewService(
	fields FieldRepository,
	signals SignalRepository,
	seasons SeasonRepository,
	insights InsightRepository,
	logger *slog.Logger,
	clock types.Clock,
) Service {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	assembler := NewAssembler(signals, seasons)
	baselines := NewBaselineResolver(signals, seasons)
	return &service{
		fields:    fields,
		assembler: assembler,
		generator: NewGenerator(assembler, baselines, clock),
		insights:  insights,
		logger:    logger,
		clock:     clock,
	}
}

// GetOrGenerateInsight implements the get-or-generate contract: the store is
// consulted before the generator runs, and a lost insert race resolves to the
// committed winner without surfacing a conflict to the caller.
func (s *service) GetOrGenerateInsight(ctx context.Context, fieldID, seasonID string) (*types.Insight, error) {
	if err := requireIDs(fieldID, seasonID); err != nil {
		return nil, err
	}
	if err := s.requireField(ctx, fieldID); err != nil {
		return nil, err
	}

	existing, err := s.insights.Get(ctx, fieldID, seasonID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	generated, err := s.generator.Generate(ctx, fieldID, seasonID)
	if err != nil {
		return nil, err
	}

	res, err := s.insights.Insert(ctx, generated)
	if err != nil {
		return nil, err
	}
	if res.Outcome == InsertOutcomeAlreadyExists {
		// A concurrent caller committed first; discard our computation and
		// return the authoritative row.
		s.logger.InfoContext(ctx, "insight insert lost uniqueness race, returning committed row",
			"field_id", fieldID,
			"season_id", seasonID,
		)
	}
	return res.Insight, nil
}

// GetInference derives status, category, and confidence for a season.
func (s *service) GetInference(ctx context.Context, fieldID, seasonID string) (*InferenceResult, error) {
	if err := requireIDs(fieldID, seasonID); err != nil {
		return nil, err
	}
	if err := s.requireField(ctx, fieldID); err != nil {
		return nil, err
	}
	input, err := s.assembler.AssembleSeason(ctx, fieldID, seasonID)
	if err != nil {
		return nil, err
	}
	return inferenceFrom(input), nil
}

// GetInferenceWindow derives the same view over an explicit window.
func (s *service) GetInferenceWindow(ctx context.Context, fieldID string, window types.TimeWindow) (*InferenceResult, error) {
	if strings.TrimSpace(fieldID) == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "field id must not be blank", nil)
	}
	if err := s.requireField(ctx, fieldID); err != nil {
		return nil, err
	}
	input, err := s.assembler.AssembleWindow(ctx, fieldID, window)
	if err != nil {
		return nil, err
	}
	return inferenceFrom(input), nil
}

// GetProvenance replays the season's stored inputs through the rule sequence.
// The result is never persisted; everything except the generation timestamp is
// byte-identical across calls over the same stored data.
func (s *service) GetProvenance(ctx context.Context, fieldID, seasonID string) (*Provenance, error) {
	if err := requireIDs(fieldID, seasonID); err != nil {
		return nil, err
	}
	if err := s.requireField(ctx, fieldID); err != nil {
		return nil, err
	}
	input, err := s.assembler.AssembleSeason(ctx, fieldID, seasonID)
	if err != nil {
		return nil, err
	}
	return Reconstruct(input, s.clock), nil
}

// inferenceFrom runs the classifier, emitter, and scorer over an assembled
// window. Pure.
func inferenceFrom(input *types.InferenceInput) *InferenceResult {
	status := ClassifyStatus(input)
	return &InferenceResult{
		FieldID:         input.FieldID,
		WindowStart:     input.WindowStart,
		WindowEnd:       input.WindowEnd,
		Status:          status,
		Category:        EmitCategory(status, input.Completeness),
		ConfidenceScore: ScoreConfidence(input),
		Completeness:    input.Completeness,
		VegetationCount: len(input.Vegetation),
		WeatherCount:    len(input.Weather),
	}
}

// requireField resolves the field before any derivation work runs for it. An
// unknown field surfaces the store's not-found error; without this gate a
// derivation over an empty window would fabricate an insufficient-data result
// for a field that does not exist.
func (s *service) requireField(ctx context.Context, fieldID string) error {
	_, err := s.fields.GetByID(ctx, fieldID)
	return err
}

// requireIDs rejects blank identifiers before any computation. Season context
// is mandatory and never inferred or defaulted.
func requireIDs(fieldID, seasonID string) error {
	if strings.TrimSpace(fieldID) == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "field id must not be blank", nil)
	}
	if strings.TrimSpace(seasonID) == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "season id must not be blank", nil)
	}
	return nil
}
