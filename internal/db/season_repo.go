package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"cropsight/internal/types"
)

// SeasonRepository provides data access for the seasons table. Season bounds
// are immutable: there is no update path.
type SeasonRepository struct {
	db DBTX
}

// NewSeasonRepository creates a SeasonRepository backed by the given
// connection (pool or transaction).
func NewSeasonRepository(db DBTX) *SeasonRepository {
	return &SeasonRepository{db: db}
}

const seasonColumns = `s.id, s.name, s.start_date, s.end_date, s.created_at`

func scanSeason(row pgx.Row) (*types.Season, error) {
	var s types.Season
	err := row.Scan(&s.ID, &s.Name, &s.StartDate, &s.EndDate, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a new season. The only uniqueness constraint on the table is
// the id primary key, so a duplicate id surfaces as a conflict error.
func (r *SeasonRepository) Create(ctx context.Context, s *types.Season) error {
	row := r.db.QueryRow(ctx,
		`INSERT INTO seasons (id, name, start_date, end_date)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		s.ID, s.Name, s.StartDate, s.EndDate,
	)
	if err := row.Scan(&s.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictSeason, "a season with this id already exists", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create season", err)
	}
	return nil
}

// GetByID retrieves a season by its ID.
func (r *SeasonRepository) GetByID(ctx context.Context, id string) (*types.Season, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+seasonColumns+` FROM seasons s WHERE s.id = $1`, id)

	s, err := scanSeason(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSeason, "season not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve season", err)
	}
	return s, nil
}

// GetPrevious returns the most recent season starting strictly before the
// given season, or nil when the given season is the earliest. Ordering is by
// start date, not creation time; a backfilled season takes its chronological
// place.
func (r *SeasonRepository) GetPrevious(ctx context.Context, seasonID string) (*types.Season, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+seasonColumns+`
		 FROM seasons s
		 WHERE s.start_date < (SELECT start_date FROM seasons WHERE id = $1)
		 ORDER BY s.start_date DESC
		 LIMIT 1`,
		seasonID,
	)

	s, err := scanSeason(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve previous season", err)
	}
	return s, nil
}

// List returns all seasons ordered by start date ascending.
func (r *SeasonRepository) List(ctx context.Context) ([]types.Season, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+seasonColumns+` FROM seasons s ORDER BY s.start_date ASC`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list seasons", err)
	}
	defer rows.Close()

	var seasons []types.Season
	for rows.Next() {
		s, err := scanSeason(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan season row", err)
		}
		seasons = append(seasons, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate season rows", err)
	}
	return seasons, nil
}
