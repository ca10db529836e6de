package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropsight/internal/types"
)

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type mockSignalWriter struct {
	mu         sync.Mutex
	vegetation []types.VegetationSignal
	weather    []types.WeatherSignal
	err        error
}

func (m *mockSignalWriter) InsertVegetation(_ context.Context, v *types.VegetationSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.vegetation = append(m.vegetation, *v)
	return nil
}

func (m *mockSignalWriter) InsertWeather(_ context.Context, w *types.WeatherSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.weather = append(m.weather, *w)
	return nil
}

func newTestService(t *testing.T, writer *mockSignalWriter, archiveDir string) *Service {
	t.Helper()
	var archive *Archive
	if archiveDir != "" {
		archive = NewArchive(archiveDir)
	}
	clock := fakeClock{now: time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)}
	return NewService(writer, archive, slog.New(slog.DiscardHandler), clock, 2)
}

func validVegetation(n int) []types.VegetationSignal {
	batch := make([]types.VegetationSignal, n)
	for i := range batch {
		batch[i] = types.VegetationSignal{
			FieldID:     "fld_1",
			SeasonID:    "ssn_1",
			Timestamp:   time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			NDVI:        types.NDVIStats{Mean: 0.6, Min: 0.4, Max: 0.8, StdDev: 0.05},
			DataQuality: types.QualityHigh,
		}
	}
	return batch
}

func TestIngestVegetation(t *testing.T) {
	writer := &mockSignalWriter{}
	svc := newTestService(t, writer, t.TempDir())

	result, err := svc.IngestVegetation(context.Background(), validVegetation(5))
	require.NoError(t, err)

	assert.Equal(t, 5, result.Inserted)
	assert.NotEmpty(t, result.ArchivePath)
	assert.Len(t, writer.vegetation, 5)
	for _, sig := range writer.vegetation {
		assert.NotEmpty(t, sig.ID, "every signal gets an ID assigned")
	}
}

func TestIngestVegetation_InvalidSignalRejectsBatch(t *testing.T) {
	writer := &mockSignalWriter{}
	svc := newTestService(t, writer, "")

	batch := validVegetation(3)
	batch[1].NDVI.Mean = 1.5 // out of range

	_, err := svc.IngestVegetation(context.Background(), batch)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationMissingField, appErr.Code)
	assert.Contains(t, appErr.Details, "signals[1]")
	assert.Empty(t, writer.vegetation, "no signal may be written when the batch fails validation")
}

func TestIngestVegetation_BatchSizeLimits(t *testing.T) {
	writer := &mockSignalWriter{}
	svc := newTestService(t, writer, "")

	_, err := svc.IngestVegetation(context.Background(), nil)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationMissingField, appErr.Code)

	_, err = svc.IngestVegetation(context.Background(), validVegetation(types.MaxSignalBatch+1))
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationBatchSize, appErr.Code)

	// Exactly the limit is accepted.
	result, err := svc.IngestVegetation(context.Background(), validVegetation(types.MaxSignalBatch))
	require.NoError(t, err)
	assert.Equal(t, types.MaxSignalBatch, result.Inserted)
}

func TestIngestVegetation_StoreErrorPropagates(t *testing.T) {
	writer := &mockSignalWriter{err: errors.New("connection reset")}
	svc := newTestService(t, writer, "")

	_, err := svc.IngestVegetation(context.Background(), validVegetation(2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestIngestWeather(t *testing.T) {
	writer := &mockSignalWriter{}
	svc := newTestService(t, writer, "")

	batch := []types.WeatherSignal{
		{
			FieldID:      "fld_1",
			SeasonID:     "ssn_1",
			Timestamp:    time.Date(2025, 4, 2, 6, 0, 0, 0, time.UTC),
			RainfallMM:   4.5,
			TemperatureC: 18.2,
			DataQuality:  types.QualityMedium,
		},
	}

	result, err := svc.IngestWeather(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)
	assert.Empty(t, result.ArchivePath, "archival disabled without a directory")
	require.Len(t, writer.weather, 1)
	assert.NotEmpty(t, writer.weather[0].ID)
}

func TestIngestWeather_NegativeRainfallRejected(t *testing.T) {
	writer := &mockSignalWriter{}
	svc := newTestService(t, writer, "")

	batch := []types.WeatherSignal{
		{
			FieldID:     "fld_1",
			SeasonID:    "ssn_1",
			Timestamp:   time.Date(2025, 4, 2, 6, 0, 0, 0, time.UTC),
			RainfallMM:  -1,
			DataQuality: types.QualityHigh,
		},
	}

	_, err := svc.IngestWeather(context.Background(), batch)
	require.Error(t, err)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Details, "signals[0]")
	assert.Empty(t, writer.weather)
}
