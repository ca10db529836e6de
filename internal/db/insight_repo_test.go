package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cropsight/internal/insight"
	"cropsight/internal/types"
)

func sampleInsight() *types.Insight {
	cur, base, delta := 0.60, 0.70, -0.10
	bt := types.BaselinePreviousSeason
	return &types.Insight{
		ID:         "ins_1",
		FieldID:    "fld_1",
		SeasonID:   "sea_1",
		Type:       types.InsightTypePerformanceDeviation,
		Severity:   types.SeverityMedium,
		Confidence: types.ConfidenceHigh,
		Summary:    "Season sea_1 NDVI averaged 0.60 against a previous_season baseline of 0.70.",
		Evidence: types.InsightEvidence{
			CurrentNDVI:        &cur,
			BaselineNDVI:       &base,
			BaselineType:       &bt,
			Delta:              &delta,
			SignalCompleteness: 100,
			VegetationSignals:  6,
			WeatherSignals:     30,
			Thresholds:         types.StatusThresholds{Healthy: 0.6, Watch: 0.3},
		},
		GeneratedAt: time.Date(2025, 9, 2, 9, 0, 0, 0, time.UTC),
	}
}

func TestInsightRepository_Insert_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewInsightRepository(db)
	ctx := context.Background()

	created := time.Date(2025, 9, 2, 9, 0, 1, 0, time.UTC)
	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*time.Time) = created
			return nil
		},
	}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	in := sampleInsight()
	res, err := repo.Insert(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, insight.InsertOutcomeInserted, res.Outcome)
	assert.Same(t, in, res.Insight)
	assert.Equal(t, created, in.CreatedAt)
	db.AssertExpectations(t)
}

func TestInsightRepository_Insert_UniqueViolationReturnsWinner(t *testing.T) {
	db := new(mockDBTX)
	repo := NewInsightRepository(db)
	ctx := context.Background()

	// First QueryRow is the INSERT hitting the unique constraint.
	insertRow := &mockRow{scanErr: &pgconn.PgError{Code: "23505"}}

	// Second QueryRow is the re-read of the committed winner.
	winnerGenerated := time.Date(2025, 9, 2, 8, 59, 0, 0, time.UTC)
	selectRow := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*string) = "ins_winner" // id
			*dest[1].(*string) = "fld_1"
			*dest[2].(*string) = "sea_1"
			*dest[3].(*string) = types.InsightTypePerformanceDeviation
			*dest[4].(*types.Severity) = types.SeverityMedium
			*dest[5].(*types.ConfidenceLevel) = types.ConfidenceHigh
			*dest[6].(*string) = "winner summary"
			*dest[7].(*types.InsightEvidence) = types.InsightEvidence{SignalCompleteness: 100}
			*dest[8].(**string) = nil // suggested_action
			*dest[9].(*time.Time) = winnerGenerated
			*dest[10].(*time.Time) = winnerGenerated
			return nil
		},
	}

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(insertRow).Once()
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"fld_1", "sea_1"}).Return(selectRow).Once()

	res, err := repo.Insert(ctx, sampleInsight())
	require.NoError(t, err, "a lost race must not surface as an error")
	assert.Equal(t, insight.InsertOutcomeAlreadyExists, res.Outcome)
	require.NotNil(t, res.Insight)
	assert.Equal(t, "ins_winner", res.Insight.ID)
	db.AssertExpectations(t)
}

func TestInsightRepository_Insert_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewInsightRepository(db)

	row := &mockRow{scanErr: errors.New("connection refused")}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	_, err := repo.Insert(context.Background(), sampleInsight())
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
	db.AssertExpectations(t)
}

func TestInsightRepository_Get_NoRowIsNotAnError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewInsightRepository(db)

	row := &mockRow{scanErr: pgx.ErrNoRows}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), []any{"fld_1", "sea_1"}).Return(row)

	in, err := repo.Get(context.Background(), "fld_1", "sea_1")
	require.NoError(t, err)
	assert.Nil(t, in)
	db.AssertExpectations(t)
}
