package insight

import (
	"context"
	"math"
	"sort"

	"cropsight/internal/types"
)

// Assembler builds the bounded signal window the engine derives from. Every
// derivation path (insight generation, legacy inference, provenance replay)
// goes through the assembler so all of them observe the same inputs.
type Assembler struct {
	signals SignalRepository
	seasons SeasonRepository
}

// NewAssembler creates a window assembler over the given stores.
func NewAssembler(signals SignalRepository, seasons SeasonRepository) *Assembler {
	return &Assembler{signals: signals, seasons: seasons}
}

// AssembleSeason builds the inference input for a season-scoped window. The
// season's own bounds define the window; an unknown season surfaces as a
// not-found error from the season store.
func (a *Assembler) AssembleSeason(ctx context.Context, fieldID, seasonID string) (*types.InferenceInput, error) {
	season, err := a.seasons.GetByID(ctx, seasonID)
	if err != nil {
		return nil, err
	}

	veg, wx, err := a.signals.GetBySeason(ctx, fieldID, seasonID)
	if err != nil {
		return nil, err
	}

	window := types.TimeWindow{Start: season.StartDate, End: season.EndDate}
	return a.build(fieldID, window, veg, wx), nil
}

// AssembleWindow builds the inference input for an explicit time window.
// The window is validated here so malformed bounds never reach the store.
func (a *Assembler) AssembleWindow(ctx context.Context, fieldID string, window types.TimeWindow) (*types.InferenceInput, error) {
	if err := types.ValidateTimeWindow(window); err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationTimeWindow, err.Error(), err)
	}

	veg, wx, err := a.signals.GetByWindow(ctx, fieldID, window)
	if err != nil {
		return nil, err
	}
	return a.build(fieldID, window, veg, wx), nil
}

// build sorts the signal sets ascending and computes completeness. The sort is
// stable so signals sharing a timestamp keep their store order.
func (a *Assembler) build(fieldID string, window types.TimeWindow, veg []types.VegetationSignal, wx []types.WeatherSignal) *types.InferenceInput {
	sort.SliceStable(veg, func(i, j int) bool {
		return veg[i].Timestamp.Before(veg[j].Timestamp)
	})
	sort.SliceStable(wx, func(i, j int) bool {
		return wx[i].Timestamp.Before(wx[j].Timestamp)
	})

	return &types.InferenceInput{
		FieldID:      fieldID,
		WindowStart:  window.Start,
		WindowEnd:    window.End,
		Vegetation:   veg,
		Weather:      wx,
		Completeness: CompletenessPercent(window, len(veg), len(wx)),
	}
}

// CompletenessPercent computes observed-vs-expected signal density for a
// window as an integer percentage in [0, 100].
//
// Expected counts assume one satellite pass every five days and one weather
// observation per day, with fractional window days rounded up. A window whose
// expected total is zero yields zero, and oversupplied windows clamp at 100.
func CompletenessPercent(window types.TimeWindow, vegetation, weather int) int {
	days := int(math.Ceil(window.End.Sub(window.Start).Hours() / 24))
	if days < 0 {
		days = 0
	}

	expectedVeg := int(math.Ceil(float64(days) / types.VegetationCadence))
	expected := expectedVeg + days
	if expected == 0 {
		return 0
	}

	pct := int(math.Round(100 * float64(vegetation+weather) / float64(expected)))
	if pct > 100 {
		pct = 100
	}
	return pct
}
