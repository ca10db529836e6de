package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"cropsight/internal/types"
)

// FieldRepository provides data access for the fields table.
type FieldRepository struct {
	db DBTX
}

// NewFieldRepository creates a FieldRepository backed by the given connection
// (pool or transaction).
func NewFieldRepository(db DBTX) *FieldRepository {
	return &FieldRepository{db: db}
}

const fieldColumns = `f.id, f.name, f.crop, f.area_ha, f.created_at`

func scanField(row pgx.Row) (*types.Field, error) {
	var f types.Field
	var crop *string
	err := row.Scan(&f.ID, &f.Name, &crop, &f.AreaHa, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	if crop != nil {
		f.Crop = *crop
	}
	return &f, nil
}

// Create inserts a new field. The caller assigns the ID.
func (r *FieldRepository) Create(ctx context.Context, f *types.Field) error {
	row := r.db.QueryRow(ctx,
		`INSERT INTO fields (id, name, crop, area_ha)
		 VALUES ($1, $2, NULLIF($3, ''), $4)
		 RETURNING created_at`,
		f.ID, f.Name, f.Crop, f.AreaHa,
	)
	if err := row.Scan(&f.CreatedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create field", err)
	}
	return nil
}

// GetByID retrieves a field by its ID.
func (r *FieldRepository) GetByID(ctx context.Context, id string) (*types.Field, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+fieldColumns+` FROM fields f WHERE f.id = $1`, id)

	f, err := scanField(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundField, "field not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve field", err)
	}
	return f, nil
}

// List returns all registered fields ordered by creation time.
func (r *FieldRepository) List(ctx context.Context) ([]types.Field, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+fieldColumns+` FROM fields f ORDER BY f.created_at ASC`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list fields", err)
	}
	defer rows.Close()

	var fields []types.Field
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan field row", err)
		}
		fields = append(fields, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate field rows", err)
	}
	return fields, nil
}
