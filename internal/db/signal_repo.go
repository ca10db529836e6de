package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"cropsight/internal/types"
)

// SignalRepository provides data access for the append-only signal tables.
// There are no update or delete statements here on purpose: signals are
// immutable once stored.
type SignalRepository struct {
	db DBTX
}

// NewSignalRepository creates a SignalRepository backed by the given
// connection (pool or transaction).
func NewSignalRepository(db DBTX) *SignalRepository {
	return &SignalRepository{db: db}
}

// The ndvi column is JSONB; types.NDVIStats implements sql.Scanner and
// driver.Valuer so it passes through pgx directly.
const vegColumns = `v.id, v.field_id, v.season_id, v.timestamp, v.ndvi, v.data_quality, v.created_at`

const wxColumns = `w.id, w.field_id, w.season_id, w.timestamp, w.rainfall_mm, w.temperature_c, w.data_quality, w.created_at`

func scanVegetation(row pgx.Row) (*types.VegetationSignal, error) {
	var v types.VegetationSignal
	err := row.Scan(&v.ID, &v.FieldID, &v.SeasonID, &v.Timestamp, &v.NDVI, &v.DataQuality, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func scanWeather(row pgx.Row) (*types.WeatherSignal, error) {
	var w types.WeatherSignal
	err := row.Scan(&w.ID, &w.FieldID, &w.SeasonID, &w.Timestamp, &w.RainfallMM, &w.TemperatureC, &w.DataQuality, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// InsertVegetation appends a vegetation signal.
func (r *SignalRepository) InsertVegetation(ctx context.Context, v *types.VegetationSignal) error {
	row := r.db.QueryRow(ctx,
		`INSERT INTO vegetation_signals (id, field_id, season_id, timestamp, ndvi, data_quality)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		v.ID, v.FieldID, v.SeasonID, v.Timestamp, v.NDVI, v.DataQuality,
	)
	if err := row.Scan(&v.CreatedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert vegetation signal", err)
	}
	return nil
}

// InsertWeather appends a weather signal.
func (r *SignalRepository) InsertWeather(ctx context.Context, w *types.WeatherSignal) error {
	row := r.db.QueryRow(ctx,
		`INSERT INTO weather_signals (id, field_id, season_id, timestamp, rainfall_mm, temperature_c, data_quality)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		w.ID, w.FieldID, w.SeasonID, w.Timestamp, w.RainfallMM, w.TemperatureC, w.DataQuality,
	)
	if err := row.Scan(&w.CreatedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert weather signal", err)
	}
	return nil
}

// GetBySeason returns the field's signals for a season, each set ordered
// ascending by timestamp.
func (r *SignalRepository) GetBySeason(ctx context.Context, fieldID, seasonID string) ([]types.VegetationSignal, []types.WeatherSignal, error) {
	veg, err := r.queryVegetation(ctx,
		`SELECT `+vegColumns+`
		 FROM vegetation_signals v
		 WHERE v.field_id = $1 AND v.season_id = $2
		 ORDER BY v.timestamp ASC`,
		fieldID, seasonID)
	if err != nil {
		return nil, nil, err
	}

	wx, err := r.queryWeather(ctx,
		`SELECT `+wxColumns+`
		 FROM weather_signals w
		 WHERE w.field_id = $1 AND w.season_id = $2
		 ORDER BY w.timestamp ASC`,
		fieldID, seasonID)
	if err != nil {
		return nil, nil, err
	}
	return veg, wx, nil
}

// GetByWindow returns the field's signals with timestamps in [start, end),
// each set ordered ascending by timestamp.
func (r *SignalRepository) GetByWindow(ctx context.Context, fieldID string, window types.TimeWindow) ([]types.VegetationSignal, []types.WeatherSignal, error) {
	veg, err := r.queryVegetation(ctx,
		`SELECT `+vegColumns+`
		 FROM vegetation_signals v
		 WHERE v.field_id = $1 AND v.timestamp >= $2 AND v.timestamp < $3
		 ORDER BY v.timestamp ASC`,
		fieldID, window.Start, window.End)
	if err != nil {
		return nil, nil, err
	}

	wx, err := r.queryWeather(ctx,
		`SELECT `+wxColumns+`
		 FROM weather_signals w
		 WHERE w.field_id = $1 AND w.timestamp >= $2 AND w.timestamp < $3
		 ORDER BY w.timestamp ASC`,
		fieldID, window.Start, window.End)
	if err != nil {
		return nil, nil, err
	}
	return veg, wx, nil
}

// GetLatestTimestamp returns the most recent signal timestamp recorded for
// the field across both signal tables. Returns nil when the field has no
// signals yet; the poller uses that to fall back to its default lookback.
func (r *SignalRepository) GetLatestTimestamp(ctx context.Context, fieldID string) (*time.Time, error) {
	var latest *time.Time
	err := r.db.QueryRow(ctx,
		`SELECT GREATEST(
		   (SELECT MAX(v.timestamp) FROM vegetation_signals v WHERE v.field_id = $1),
		   (SELECT MAX(w.timestamp) FROM weather_signals w WHERE w.field_id = $1)
		 )`,
		fieldID,
	).Scan(&latest)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query latest signal timestamp", err)
	}
	return latest, nil
}

// GetSeasonNDVIMean averages the NDVI means of the field's vegetation signals
// in a season. Returns nil when the season has no vegetation signals; SQL AVG
// over zero rows is NULL, which maps cleanly onto the nullable result.
func (r *SignalRepository) GetSeasonNDVIMean(ctx context.Context, fieldID, seasonID string) (*float64, error) {
	var mean *float64
	err := r.db.QueryRow(ctx,
		`SELECT AVG((v.ndvi->>'mean')::float8)
		 FROM vegetation_signals v
		 WHERE v.field_id = $1 AND v.season_id = $2`,
		fieldID, seasonID,
	).Scan(&mean)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to compute season ndvi mean", err)
	}
	return mean, nil
}

// GetHistoricalNDVIMean averages NDVI means across the field's vegetation
// signals outside the excluded season. The season under evaluation is excluded
// so its own signals never dilute the baseline it is compared against.
// Returns nil when the field has no signals in any other season.
func (r *SignalRepository) GetHistoricalNDVIMean(ctx context.Context, fieldID, excludeSeasonID string) (*float64, error) {
	var mean *float64
	err := r.db.QueryRow(ctx,
		`SELECT AVG((v.ndvi->>'mean')::float8)
		 FROM vegetation_signals v
		 WHERE v.field_id = $1 AND v.season_id <> $2`,
		fieldID, excludeSeasonID,
	).Scan(&mean)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to compute historical ndvi mean", err)
	}
	return mean, nil
}

func (r *SignalRepository) queryVegetation(ctx context.Context, sql string, args ...any) ([]types.VegetationSignal, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query vegetation signals", err)
	}
	defer rows.Close()

	var out []types.VegetationSignal
	for rows.Next() {
		v, err := scanVegetation(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan vegetation signal row", err)
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate vegetation signal rows", err)
	}
	return out, nil
}

func (r *SignalRepository) queryWeather(ctx context.Context, sql string, args ...any) ([]types.WeatherSignal, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query weather signals", err)
	}
	defer rows.Close()

	var out []types.WeatherSignal
	for rows.Next() {
		w, err := scanWeather(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan weather signal row", err)
		}
		out = append(out, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate weather signal rows", err)
	}
	return out, nil
}
