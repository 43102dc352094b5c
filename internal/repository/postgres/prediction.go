package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"seasoncast/internal/domain/garment"
	"seasoncast/internal/domain/prediction"
	"seasoncast/pkg/errors"
)

// Compile-time check
var _ prediction.Repository = (*PredictionRepository)(nil)

// PredictionRepository implements prediction.Repository using sqlx
type PredictionRepository struct {
	db DBTX
}

// NewPredictionRepository creates a new prediction repository
func NewPredictionRepository(db DBTX) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// predictionRow mirrors the predictions table; JSONB columns scan as bytes
type predictionRow struct {
	ID            uuid.UUID `db:"id"`
	Category      string    `db:"category"`
	Attributes    []byte    `db:"attributes"`
	Season        string    `db:"season"`
	Label         int       `db:"label"`
	Confidence    float64   `db:"confidence"`
	Probabilities []byte    `db:"probabilities"`
	Unencoded     []byte    `db:"unencoded"`
	SchemaVersion string    `db:"schema_version"`
	Source        string    `db:"source"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r predictionRow) toDomain() (*prediction.Prediction, error) {
	p := &prediction.Prediction{
		ID:            r.ID,
		Category:      garment.Category(r.Category),
		Season:        garment.Season(r.Season),
		Label:         r.Label,
		Confidence:    r.Confidence,
		SchemaVersion: r.SchemaVersion,
		Source:        prediction.Source(r.Source),
		CreatedAt:     r.CreatedAt,
	}
	if err := json.Unmarshal(r.Attributes, &p.Attributes); err != nil {
		return nil, errors.Wrapf(err, "decode attributes of %s", r.ID)
	}
	if len(r.Probabilities) > 0 {
		if err := json.Unmarshal(r.Probabilities, &p.Probabilities); err != nil {
			return nil, errors.Wrapf(err, "decode probabilities of %s", r.ID)
		}
	}
	if len(r.Unencoded) > 0 {
		if err := json.Unmarshal(r.Unencoded, &p.Unencoded); err != nil {
			return nil, errors.Wrapf(err, "decode unencoded of %s", r.ID)
		}
	}
	return p, nil
}

// Store inserts a prediction
func (r *PredictionRepository) Store(ctx context.Context, p *prediction.Prediction) error {
	attributes, err := json.Marshal(p.Attributes)
	if err != nil {
		return errors.Wrap(err, "encode attributes")
	}
	probabilities, err := json.Marshal(p.Probabilities)
	if err != nil {
		return errors.Wrap(err, "encode probabilities")
	}
	unencoded := []byte("[]")
	if len(p.Unencoded) > 0 {
		if unencoded, err = json.Marshal(p.Unencoded); err != nil {
			return errors.Wrap(err, "encode unencoded values")
		}
	}

	query := `
		INSERT INTO predictions (
			id, category, attributes, season, label, confidence,
			probabilities, unencoded, schema_version, source, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = r.db.ExecContext(ctx, query,
		p.ID, p.Category.String(), attributes, p.Season.String(), p.Label, p.Confidence,
		probabilities, unencoded, p.SchemaVersion, string(p.Source), p.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert prediction %s", p.ID)
	}
	return nil
}

// GetByID retrieves a prediction by ID
func (r *PredictionRepository) GetByID(ctx context.Context, id uuid.UUID) (*prediction.Prediction, error) {
	var row predictionRow

	query := `SELECT * FROM predictions WHERE id = $1`

	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(errors.ErrNotFound, "prediction %s", id)
		}
		return nil, err
	}
	return row.toDomain()
}

// ListRecent returns the latest predictions, optionally for one category
func (r *PredictionRepository) ListRecent(ctx context.Context, category garment.Category, offset, limit int) ([]prediction.Prediction, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var rows []predictionRow

	query := `
		SELECT * FROM predictions
		WHERE ($1 = '' OR category = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	if err := r.db.SelectContext(ctx, &rows, query, category.String(), limit, offset); err != nil {
		return nil, err
	}

	out := make([]prediction.Prediction, 0, len(rows))
	for _, row := range rows {
		p, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

// Count returns the number of stored predictions, optionally for one category
func (r *PredictionRepository) Count(ctx context.Context, category garment.Category) (int, error) {
	var n int

	query := `SELECT COUNT(*) FROM predictions WHERE ($1 = '' OR category = $1)`

	if err := r.db.GetContext(ctx, &n, query, category.String()); err != nil {
		return 0, err
	}
	return n, nil
}

// CountBySeason aggregates predictions per category and season since a point in time
func (r *PredictionRepository) CountBySeason(ctx context.Context, since time.Time) ([]prediction.SeasonCount, error) {
	var counts []prediction.SeasonCount

	query := `
		SELECT category, season, COUNT(*) AS count
		FROM predictions
		WHERE created_at >= $1
		GROUP BY category, season
		ORDER BY category, count DESC`

	if err := r.db.SelectContext(ctx, &counts, query, since); err != nil {
		return nil, err
	}
	return counts, nil
}
