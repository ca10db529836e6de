package insight

import (
	"context"

	"cropsight/internal/types"
)

// Baseline is the resolved comparison value for a deviation insight. Both
// fields are nil when no comparison data exists for the field.
type Baseline struct {
	NDVI *float64
	Type *types.BaselineType
}

// BaselineResolver picks the comparison baseline for a field and season using
// a fixed fallback chain: the immediately preceding season's mean NDVI when
// that season has vegetation signals, otherwise the field's mean across every
// other season, otherwise nothing.
type BaselineResolver struct {
	signals SignalRepository
	seasons SeasonRepository
}

// NewBaselineResolver creates a resolver over the given stores.
func NewBaselineResolver(signals SignalRepository, seasons SeasonRepository) *BaselineResolver {
	return &BaselineResolver{signals: signals, seasons: seasons}
}

// Resolve walks the fallback chain. A previous season exists when any season
// for the field starts strictly earlier than the current one; it only serves
// as baseline if it recorded at least one vegetation signal, an empty
// previous season falls through to the historical mean rather than producing
// a zero baseline.
func (r *BaselineResolver) Resolve(ctx context.Context, fieldID, seasonID string) (Baseline, error) {
	prev, err := r.seasons.GetPrevious(ctx, seasonID)
	if err != nil {
		return Baseline{}, err
	}
	if prev != nil {
		mean, err := r.signals.GetSeasonNDVIMean(ctx, fieldID, prev.ID)
		if err != nil {
			return Baseline{}, err
		}
		if mean != nil {
			bt := types.BaselinePreviousSeason
			return Baseline{NDVI: mean, Type: &bt}, nil
		}
	}

	// The current season is excluded from the historical aggregate: the value
	// being evaluated must not average itself into its own baseline.
	hist, err := r.signals.GetHistoricalNDVIMean(ctx, fieldID, seasonID)
	if err != nil {
		return Baseline{}, err
	}
	if hist != nil {
		bt := types.BaselineHistoricalMean
		return Baseline{NDVI: hist, Type: &bt}, nil
	}

	return Baseline{}, nil
}
