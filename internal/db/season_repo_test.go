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

	"cropsight/internal/types"
)

func TestSeasonRepository_Create_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSeasonRepository(db)
	ctx := context.Background()

	created := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*time.Time) = created
			return nil
		},
	}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	season := &types.Season{
		ID:        "sea_1",
		Name:      "2025 spring wheat",
		StartDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
	}
	err := repo.Create(ctx, season)
	require.NoError(t, err)
	assert.Equal(t, created, season.CreatedAt)
	db.AssertExpectations(t)
}

func TestSeasonRepository_Create_DuplicateName(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSeasonRepository(db)

	// Simulate unique constraint violation (PG error code 23505)
	row := &mockRow{scanErr: &pgconn.PgError{Code: "23505"}}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	err := repo.Create(context.Background(), &types.Season{ID: "sea_dup", Name: "2025 spring wheat"})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeConflictSeason, appErr.Code)
	db.AssertExpectations(t)
}

func TestSeasonRepository_GetByID_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSeasonRepository(db)

	row := &mockRow{scanErr: pgx.ErrNoRows}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), []any{"sea_missing"}).Return(row)

	_, err := repo.GetByID(context.Background(), "sea_missing")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundSeason, appErr.Code)
	db.AssertExpectations(t)
}

func TestSeasonRepository_GetPrevious_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSeasonRepository(db)

	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*string) = "sea_prev"
			*dest[1].(*string) = "2024 spring wheat"
			*dest[2].(*time.Time) = start
			*dest[3].(*time.Time) = end
			*dest[4].(*time.Time) = start
			return nil
		},
	}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), []any{"sea_1"}).Return(row)

	prev, err := repo.GetPrevious(context.Background(), "sea_1")
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "sea_prev", prev.ID)
	assert.Equal(t, start, prev.StartDate)
	db.AssertExpectations(t)
}

func TestSeasonRepository_GetPrevious_NoneExists(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSeasonRepository(db)

	row := &mockRow{scanErr: pgx.ErrNoRows}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), []any{"sea_first"}).Return(row)

	prev, err := repo.GetPrevious(context.Background(), "sea_first")
	require.NoError(t, err)
	assert.Nil(t, prev, "earliest season has no predecessor, and that is not an error")
	db.AssertExpectations(t)
}
