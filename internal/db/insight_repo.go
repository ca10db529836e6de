package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"cropsight/internal/insight"
	"cropsight/internal/types"
)

// InsightRepository provides data access for the insights table. Insights are
// write-once: the table carries a unique constraint on (field_id, season_id)
// and there are no update or delete statements.
type InsightRepository struct {
	db DBTX
}

// NewInsightRepository creates an InsightRepository backed by the given
// connection (pool or transaction).
func NewInsightRepository(db DBTX) *InsightRepository {
	return &InsightRepository{db: db}
}

const insightColumns = `i.id, i.field_id, i.season_id, i.type, i.severity, i.confidence,
	i.summary, i.evidence, i.suggested_action, i.generated_at, i.created_at`

func scanInsight(row pgx.Row) (*types.Insight, error) {
	var in types.Insight
	err := row.Scan(
		&in.ID,
		&in.FieldID,
		&in.SeasonID,
		&in.Type,
		&in.Severity,
		&in.Confidence,
		&in.Summary,
		&in.Evidence,
		&in.SuggestedAction,
		&in.GeneratedAt,
		&in.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// Get returns the insight for (fieldID, seasonID), or (nil, nil) when none
// has been generated yet. Absence is a normal state here, not an error.
func (r *InsightRepository) Get(ctx context.Context, fieldID, seasonID string) (*types.Insight, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+insightColumns+`
		 FROM insights i
		 WHERE i.field_id = $1 AND i.season_id = $2`,
		fieldID, seasonID,
	)

	in, err := scanInsight(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve insight", err)
	}
	return in, nil
}

// Insert persists a generated insight. When a concurrent generation already
// committed a row for the same field and season, the unique violation is
// absorbed: the committed row is re-read and returned tagged AlreadyExists so
// the caller can converge on the winner.
func (r *InsightRepository) Insert(ctx context.Context, in *types.Insight) (insight.InsertResult, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO insights (id, field_id, season_id, type, severity, confidence,
			summary, evidence, suggested_action, generated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at`,
		in.ID, in.FieldID, in.SeasonID, in.Type, in.Severity, in.Confidence,
		in.Summary, in.Evidence, in.SuggestedAction, in.GeneratedAt,
	)

	err := row.Scan(&in.CreatedAt)
	if err == nil {
		return insight.InsertResult{Outcome: insight.InsertOutcomeInserted, Insight: in}, nil
	}

	if !isUniqueViolation(err) {
		return insight.InsertResult{}, types.NewAppError(types.ErrCodeInternalDB, "failed to insert insight", err)
	}

	winner, getErr := r.Get(ctx, in.FieldID, in.SeasonID)
	if getErr != nil {
		return insight.InsertResult{}, getErr
	}
	if winner == nil {
		// The winning row vanished between the violation and the re-read.
		// Insights are never deleted, so this indicates store corruption.
		return insight.InsertResult{}, types.NewAppError(types.ErrCodeInternalDB,
			"insight uniqueness violation but no committed row found", err)
	}
	return insight.InsertResult{Outcome: insight.InsertOutcomeAlreadyExists, Insight: winner}, nil
}
