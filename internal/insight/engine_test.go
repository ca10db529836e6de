package insight

import (
	"context"
	"time"

	"cropsight/internal/types"
)

// --- Mock Dependencies ---

// mockClock is a test clock that returns a fixed time.
type mockClock struct {
	now time.Time
}

func (c *mockClock) Now() time.Time { return c.now }

// mockSignalRepo implements SignalRepository for testing.
type mockSignalRepo struct {
	veg         map[string][]types.VegetationSignal // keyed fieldID/seasonID
	wx          map[string][]types.WeatherSignal
	windowVeg   []types.VegetationSignal
	windowWx    []types.WeatherSignal
	seasonMeans map[string]*float64 // keyed fieldID/seasonID
	historical  map[string]*float64 // keyed fieldID/excludedSeasonID
	err         error
}

func seasonKey(fieldID, seasonID string) string { return fieldID + "/" + seasonID }

func (m *mockSignalRepo) GetBySeason(_ context.Context, fieldID, seasonID string) ([]types.VegetationSignal, []types.WeatherSignal, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	k := seasonKey(fieldID, seasonID)
	return m.veg[k], m.wx[k], nil
}

func (m *mockSignalRepo) GetByWindow(_ context.Context, _ string, _ types.TimeWindow) ([]types.VegetationSignal, []types.WeatherSignal, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.windowVeg, m.windowWx, nil
}

func (m *mockSignalRepo) GetSeasonNDVIMean(_ context.Context, fieldID, seasonID string) (*float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.seasonMeans[seasonKey(fieldID, seasonID)], nil
}

func (m *mockSignalRepo) GetHistoricalNDVIMean(_ context.Context, fieldID, excludeSeasonID string) (*float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.historical[seasonKey(fieldID, excludeSeasonID)], nil
}

// mockFieldRepo implements FieldRepository for testing. Lookups for IDs not in
// the map fail the way the store does, with a not-found AppError.
type mockFieldRepo struct {
	fields map[string]*types.Field
	err    error
}

func (m *mockFieldRepo) GetByID(_ context.Context, fieldID string) (*types.Field, error) {
	if m.err != nil {
		return nil, m.err
	}
	f, ok := m.fields[fieldID]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundField, "field not found", nil)
	}
	return f, nil
}

// knownFields registers the given IDs as existing fields.
func knownFields(ids ...string) *mockFieldRepo {
	m := &mockFieldRepo{fields: make(map[string]*types.Field, len(ids))}
	for _, id := range ids {
		m.fields[id] = &types.Field{ID: id, Name: "field " + id}
	}
	return m
}

// mockSeasonRepo implements SeasonRepository for testing.
type mockSeasonRepo struct {
	seasons  map[string]*types.Season
	previous map[string]*types.Season
	err      error
}

func (m *mockSeasonRepo) GetByID(_ context.Context, seasonID string) (*types.Season, error) {
	if m.err != nil {
		return nil, m.err
	}
	season, ok := m.seasons[seasonID]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundSeason, "season not found", nil)
	}
	return season, nil
}

func (m *mockSeasonRepo) GetPrevious(_ context.Context, seasonID string) (*types.Season, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.previous[seasonID], nil
}

// mockInsightRepo implements InsightRepository for testing. Setting raceWinner
// simulates a concurrent insert committing between Get and Insert.
type mockInsightRepo struct {
	stored      map[string]*types.Insight
	raceWinner  *types.Insight
	getCalls    int
	insertCalls int
	getErr      error
	insertErr   error
}

func (m *mockInsightRepo) Get(_ context.Context, fieldID, seasonID string) (*types.Insight, error) {
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.stored[seasonKey(fieldID, seasonID)], nil
}

func (m *mockInsightRepo) Insert(_ context.Context, in *types.Insight) (InsertResult, error) {
	m.insertCalls++
	if m.insertErr != nil {
		return InsertResult{}, m.insertErr
	}
	if m.raceWinner != nil {
		return InsertResult{Outcome: InsertOutcomeAlreadyExists, Insight: m.raceWinner}, nil
	}
	if m.stored == nil {
		m.stored = make(map[string]*types.Insight)
	}
	m.stored[seasonKey(in.FieldID, in.SeasonID)] = in
	return InsertResult{Outcome: InsertOutcomeInserted, Insight: in}, nil
}

// --- Helper Functions ---

var (
	seasonStart = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	seasonEnd   = seasonStart.Add(30 * 24 * time.Hour)
)

func makeSeason(id string, start, end time.Time) *types.Season {
	return &types.Season{
		ID:        id,
		Name:      "season " + id,
		StartDate: start,
		EndDate:   end,
	}
}

func makeVegSignal(id string, ts time.Time, mean float64, quality types.DataQuality) types.VegetationSignal {
	return types.VegetationSignal{
		ID:        id,
		FieldID:   "f1",
		SeasonID:  "s1",
		Timestamp: ts,
		NDVI: types.NDVIStats{
			Mean:   mean,
			Min:    mean - 0.1,
			Max:    mean + 0.1,
			StdDev: 0.05,
		},
		DataQuality: quality,
	}
}

func makeWxSignals(n int, start time.Time) []types.WeatherSignal {
	out := make([]types.WeatherSignal, n)
	for i := range out {
		out[i] = types.WeatherSignal{
			ID:          "wx" + string(rune('a'+i%26)),
			FieldID:     "f1",
			SeasonID:    "s1",
			Timestamp:   start.Add(time.Duration(i) * 24 * time.Hour),
			RainfallMM:  1.5,
			DataQuality: types.QualityHigh,
		}
	}
	return out
}

// vegSeries produces n vegetation signals five days apart, all with the same
// NDVI mean and quality.
func vegSeries(n int, mean float64, quality types.DataQuality) []types.VegetationSignal {
	out := make([]types.VegetationSignal, n)
	for i := range out {
		out[i] = makeVegSignal(
			"veg"+string(rune('a'+i%26)),
			seasonStart.Add(time.Duration(i*5)*24*time.Hour),
			mean,
			quality,
		)
	}
	return out
}

func inputWith(veg []types.VegetationSignal, wx []types.WeatherSignal, completeness int) *types.InferenceInput {
	return &types.InferenceInput{
		FieldID:      "f1",
		WindowStart:  seasonStart,
		WindowEnd:    seasonEnd,
		Vegetation:   veg,
		Weather:      wx,
		Completeness: completeness,
	}
}
