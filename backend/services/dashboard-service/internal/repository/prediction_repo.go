package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"greenlens/backend/services/dashboard-service/internal/dashboard"
	"greenlens/backend/services/dashboard-service/internal/models"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 200
)

// Dialect selects the SQL flavour of the backing database.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS prediction_history (
		id BIGSERIAL PRIMARY KEY,
		tick BIGINT NOT NULL,
		basis TEXT NOT NULL,
		reading DOUBLE PRECISION NOT NULL,
		predicted_co2_kg DOUBLE PRECISION NOT NULL,
		esg_score DOUBLE PRECISION,
		source TEXT NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS prediction_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		basis TEXT NOT NULL,
		reading REAL NOT NULL,
		predicted_co2_kg REAL NOT NULL,
		esg_score REAL,
		source TEXT NOT NULL,
		recorded_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)
`

var placeholderRe = regexp.MustCompile(`\$[0-9]+`)

// PredictionRepository persists applied predictions.
type PredictionRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewPredictionRepository returns repository. Unknown dialects fall back to Postgres.
func NewPredictionRepository(db *sql.DB, dialect Dialect) *PredictionRepository {
	if dialect != DialectSQLite {
		dialect = DialectPostgres
	}
	return &PredictionRepository{db: db, dialect: dialect}
}

// rebind rewrites $N placeholders for drivers that only take "?".
func (r *PredictionRepository) rebind(query string) string {
	if r.dialect == DialectSQLite {
		return placeholderRe.ReplaceAllString(query, "?")
	}
	return query
}

// EnsureSchema creates the history table when missing.
func (r *PredictionRepository) EnsureSchema(ctx context.Context) error {
	query := postgresSchema
	if r.dialect == DialectSQLite {
		query = sqliteSchema
	}
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create prediction_history: %w", err)
	}
	return nil
}

// RecordPrediction stores an applied prediction.
func (r *PredictionRepository) RecordPrediction(ctx context.Context, rec dashboard.PredictionRecord) error {
	const query = `
		INSERT INTO prediction_history (tick, basis, reading, predicted_co2_kg, esg_score, source, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	var esg sql.NullFloat64
	if rec.Prediction.ESGScore != nil {
		esg = sql.NullFloat64{Float64: *rec.Prediction.ESGScore, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		int64(rec.Tick),
		string(rec.Basis),
		rec.Reading,
		rec.Prediction.CO2Kg,
		esg,
		string(rec.Prediction.Source),
		rec.RecordedAt.UTC(),
	)
	return err
}

// Recent returns the newest entries first.
func (r *PredictionRepository) Recent(ctx context.Context, limit int) ([]models.PredictionHistory, error) {
	const query = `
		SELECT id, tick, basis, reading, predicted_co2_kg, esg_score, source, recorded_at
		FROM prediction_history
		ORDER BY recorded_at DESC, id DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, r.rebind(query), NormalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.PredictionHistory{}
	for rows.Next() {
		var (
			entry models.PredictionHistory
			esg   sql.NullFloat64
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.Tick,
			&entry.Basis,
			&entry.Reading,
			&entry.PredictedCO2Kg,
			&esg,
			&entry.Source,
			&entry.RecordedAt,
		); err != nil {
			return nil, err
		}
		if esg.Valid {
			v := esg.Float64
			entry.ESGScore = &v
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// NormalizeLimit maps non-positive limits to the default and caps large ones.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}
