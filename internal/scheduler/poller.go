// Package scheduler implements the scheduled jobs for the CropSight platform.
//
// The SignalPoller is the core service behind the signal-poller process. On
// each cycle it walks the registered fields, asks the upstream observation
// provider for anything new since the field's latest stored signal, binds the
// raw observations to the seasons they fall inside, and hands them to the
// ingestion service. It never writes signals directly.
//
// Key behaviors:
//   - Fields are polled concurrently with a bounded worker count.
//   - Observations outside every active season are skipped, not stored.
//   - A per-field failure is logged and does not abort the cycle.
//   - An optional Limit caps the number of fields polled per cycle so
//     backfills cannot run unbounded.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"cropsight/internal/external"
	"cropsight/internal/ingest"
	"cropsight/internal/types"
)

// DefaultLookback is how far back a cycle reaches for a field that has no
// stored signals yet.
const DefaultLookback = 24 * time.Hour

// PollInput tunes a single poll cycle. The zero value is the normal
// scheduled run; operators set the other knobs for recovery scenarios.
type PollInput struct {
	// ForceRetry re-fetches recent history even for fields that are up to
	// date. When set with a zero BackfillHours, the lookback defaults to 24h.
	ForceRetry bool `json:"force_retry"`
	// BackfillHours shifts the fetch window start this many hours into the
	// past, overriding the per-field cursor.
	BackfillHours int `json:"backfill_hours"`
	// Limit caps the number of fields polled this cycle. Zero means all.
	Limit int `json:"limit"`
}

// FieldLister abstracts the field listing the poller needs.
type FieldLister interface {
	List(ctx context.Context) ([]types.Field, error)
}

// SeasonLister abstracts the season listing the poller needs.
type SeasonLister interface {
	List(ctx context.Context) ([]types.Season, error)
}

// SignalCursor reads the per-field ingestion high-water mark.
type SignalCursor interface {
	// GetLatestTimestamp returns the newest stored signal timestamp for the
	// field, or nil when the field has no signals.
	GetLatestTimestamp(ctx context.Context, fieldID string) (*time.Time, error)
}

// Ingestor abstracts the ingestion service. Satisfied by *ingest.Service.
type Ingestor interface {
	IngestVegetation(ctx context.Context, batch []types.VegetationSignal) (*ingest.BatchResult, error)
	IngestWeather(ctx context.Context, batch []types.WeatherSignal) (*ingest.BatchResult, error)
}

// SignalPoller pulls new observations from the upstream provider and feeds
// them to the ingestion service.
type SignalPoller struct {
	fields      FieldLister
	seasons     SeasonLister
	cursor      SignalCursor
	provider    external.ObservationProvider
	ingestor    Ingestor
	clock       types.Clock
	concurrency int
	logger      *slog.Logger
}

// SignalPollerConfig holds the dependencies for creating a SignalPoller.
type SignalPollerConfig struct {
	Fields      FieldLister
	Seasons     SeasonLister
	Cursor      SignalCursor
	Provider    external.ObservationProvider
	Ingestor    Ingestor
	Clock       types.Clock
	Concurrency int
	Logger      *slog.Logger
}

// NewSignalPoller creates a SignalPoller with the given configuration.
func NewSignalPoller(cfg SignalPollerConfig) *SignalPoller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &SignalPoller{
		fields:      cfg.Fields,
		seasons:     cfg.Seasons,
		cursor:      cfg.Cursor,
		provider:    cfg.Provider,
		ingestor:    cfg.Ingestor,
		clock:       clock,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Poll runs one cycle over all registered fields and returns the total number
// of signals ingested. Per-field failures are logged and skipped; Poll only
// returns an error when the cycle cannot start at all (listing fields or
// seasons fails) or the context is cancelled.
func (p *SignalPoller) Poll(ctx context.Context, input PollInput) (int, error) {
	if input.ForceRetry && input.BackfillHours == 0 {
		input.BackfillHours = 24
		p.logger.InfoContext(ctx, "force retry enabled, defaulting backfill to 24h")
	}

	now := p.clock.Now().UTC()

	seasons, err := p.seasons.List(ctx)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "listing seasons for poll cycle", err)
	}
	active := activeSeasons(seasons, now)
	if len(active) == 0 {
		p.logger.InfoContext(ctx, "no active seasons, skipping poll cycle")
		return 0, nil
	}

	fields, err := p.fields.List(ctx)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "listing fields for poll cycle", err)
	}
	if input.Limit > 0 && len(fields) > input.Limit {
		p.logger.InfoContext(ctx, "field limit applied",
			"total_fields", len(fields),
			"limit", input.Limit,
		)
		fields = fields[:input.Limit]
	}

	var ingested atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, field := range fields {
		g.Go(func() error {
			n, err := p.pollField(gctx, field, active, input, now)
			if err != nil {
				// A single field must not sink the cycle; the next run
				// retries from the same cursor.
				p.logger.ErrorContext(gctx, "field poll failed",
					"field_id", field.ID,
					"error", err,
				)
				return nil
			}
			ingested.Add(int64(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(ingested.Load()), err
	}

	p.logger.InfoContext(ctx, "poll cycle complete",
		"fields_polled", len(fields),
		"active_seasons", len(active),
		"signals_ingested", ingested.Load(),
	)
	return int(ingested.Load()), nil
}

// pollField fetches and ingests both observation kinds for one field.
func (p *SignalPoller) pollField(ctx context.Context, field types.Field, seasons []types.Season, input PollInput, now time.Time) (int, error) {
	since, err := p.sinceTime(ctx, field.ID, input, now)
	if err != nil {
		return 0, err
	}
	if !since.Before(now) {
		return 0, nil
	}
	window := types.TimeWindow{Start: since, End: now}

	vegObs, err := p.provider.FetchVegetation(ctx, field.ID, window)
	if err != nil {
		return 0, err
	}
	wxObs, err := p.provider.FetchWeather(ctx, field.ID, window)
	if err != nil {
		return 0, err
	}

	veg, vegSkipped := bindVegetation(field.ID, seasons, vegObs)
	wx, wxSkipped := bindWeather(field.ID, seasons, wxObs)
	if vegSkipped+wxSkipped > 0 {
		p.logger.InfoContext(ctx, "observations outside active seasons skipped",
			"field_id", field.ID,
			"vegetation_skipped", vegSkipped,
			"weather_skipped", wxSkipped,
		)
	}

	total := 0
	for batch := range batches(veg, types.MaxSignalBatch) {
		result, err := p.ingestor.IngestVegetation(ctx, batch)
		if err != nil {
			return total, err
		}
		total += result.Inserted
	}
	for batch := range batches(wx, types.MaxSignalBatch) {
		result, err := p.ingestor.IngestWeather(ctx, batch)
		if err != nil {
			return total, err
		}
		total += result.Inserted
	}
	return total, nil
}

// sinceTime determines the fetch window start for a field. A backfill
// overrides the cursor; otherwise the latest stored signal is the cursor, and
// a field with no signals defaults to DefaultLookback ago.
func (p *SignalPoller) sinceTime(ctx context.Context, fieldID string, input PollInput, now time.Time) (time.Time, error) {
	if input.BackfillHours > 0 {
		return now.Add(-time.Duration(input.BackfillHours) * time.Hour), nil
	}

	latest, err := p.cursor.GetLatestTimestamp(ctx, fieldID)
	if err != nil {
		return time.Time{}, err
	}
	if latest != nil {
		// Start just past the cursor so the [Start, End) fetch window does
		// not re-request the newest stored signal.
		return latest.Add(time.Second), nil
	}
	return now.Add(-DefaultLookback), nil
}

// activeSeasons returns the seasons whose [StartDate, EndDate) contains now.
func activeSeasons(seasons []types.Season, now time.Time) []types.Season {
	var active []types.Season
	for _, s := range seasons {
		if !now.Before(s.StartDate) && now.Before(s.EndDate) {
			active = append(active, s)
		}
	}
	return active
}

// seasonFor finds the season whose [StartDate, EndDate) contains ts.
func seasonFor(seasons []types.Season, ts time.Time) (string, bool) {
	for _, s := range seasons {
		if !ts.Before(s.StartDate) && ts.Before(s.EndDate) {
			return s.ID, true
		}
	}
	return "", false
}

// bindVegetation converts provider observations into unsaved vegetation
// signals, assigning each to the season containing its timestamp. The second
// return value counts observations that matched no season.
func bindVegetation(fieldID string, seasons []types.Season, obs []external.VegetationObservation) ([]types.VegetationSignal, int) {
	var out []types.VegetationSignal
	skipped := 0
	for _, o := range obs {
		seasonID, ok := seasonFor(seasons, o.Timestamp)
		if !ok {
			skipped++
			continue
		}
		out = append(out, types.VegetationSignal{
			FieldID:     fieldID,
			SeasonID:    seasonID,
			Timestamp:   o.Timestamp.UTC(),
			NDVI:        o.NDVI,
			DataQuality: o.DataQuality,
		})
	}
	return out, skipped
}

// bindWeather converts provider observations into unsaved weather signals.
func bindWeather(fieldID string, seasons []types.Season, obs []external.WeatherObservation) ([]types.WeatherSignal, int) {
	var out []types.WeatherSignal
	skipped := 0
	for _, o := range obs {
		seasonID, ok := seasonFor(seasons, o.Timestamp)
		if !ok {
			skipped++
			continue
		}
		out = append(out, types.WeatherSignal{
			FieldID:      fieldID,
			SeasonID:     seasonID,
			Timestamp:    o.Timestamp.UTC(),
			RainfallMM:   o.RainfallMM,
			TemperatureC: o.TemperatureC,
			DataQuality:  o.DataQuality,
		})
	}
	return out, skipped
}

// batches yields non-empty chunks of at most size elements.
func batches[T any](items []T, size int) func(yield func([]T) bool) {
	return func(yield func([]T) bool) {
		for start := 0; start < len(items); start += size {
			end := min(start+size, len(items))
			if !yield(items[start:end]) {
				return
			}
		}
	}
}
