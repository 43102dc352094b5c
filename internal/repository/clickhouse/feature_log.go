package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"seasoncast/internal/domain/garment"
	"seasoncast/internal/domain/prediction"
	chbatch "seasoncast/pkg/clickhouse"
	"seasoncast/pkg/errors"
)

// Compile-time check
var _ prediction.FeatureLog = (*FeatureLogRepository)(nil)

const createFeatureVectors = `
	CREATE TABLE IF NOT EXISTS feature_vectors (
		prediction_id   UUID,
		category        LowCardinality(String),
		feature_columns Array(String),
		feature_values  Array(Float64),
		season          LowCardinality(String),
		confidence      Float64,
		created_at      DateTime64(3, 'UTC')
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(created_at)
	ORDER BY (category, created_at)
	TTL toDateTime(created_at) + INTERVAL 180 DAY
`

const insertFeatureVectors = `
	INSERT INTO feature_vectors (
		prediction_id, category, feature_columns, feature_values,
		season, confidence, created_at
	)
`

// FeatureLogRepository appends encoded vectors to ClickHouse through a batch writer
type FeatureLogRepository struct {
	conn   driver.Conn
	writer *chbatch.BatchWriter[prediction.FeatureRow]
}

// FeatureLogConfig tunes batching
type FeatureLogConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

// NewFeatureLogRepository creates a new feature log repository
func NewFeatureLogRepository(conn driver.Conn, cfg FeatureLogConfig) *FeatureLogRepository {
	r := &FeatureLogRepository{conn: conn}
	r.writer = chbatch.NewBatchWriter(chbatch.BatchWriterConfig[prediction.FeatureRow]{
		FlushFunc:    r.insert,
		TableName:    "feature_vectors",
		MaxBatchSize: cfg.BatchSize,
		MaxAge:       cfg.FlushInterval,
	})
	return r
}

// EnsureTable creates the feature_vectors table when missing
func (r *FeatureLogRepository) EnsureTable(ctx context.Context) error {
	if err := r.conn.Exec(ctx, createFeatureVectors); err != nil {
		return errors.Wrap(err, "failed to create feature_vectors")
	}
	return nil
}

// Start begins periodic flushing
func (r *FeatureLogRepository) Start(ctx context.Context) {
	r.writer.Start(ctx)
}

// Stop flushes buffered rows
func (r *FeatureLogRepository) Stop(ctx context.Context) error {
	return r.writer.Stop(ctx)
}

// Stats exposes the batch writer counters
func (r *FeatureLogRepository) Stats() chbatch.BatchWriterStats {
	return r.writer.GetStats()
}

// Append buffers one encoded vector
func (r *FeatureLogRepository) Append(ctx context.Context, row prediction.FeatureRow) error {
	return r.writer.Add(ctx, row)
}

func (r *FeatureLogRepository) insert(ctx context.Context, rows []prediction.FeatureRow) error {
	batch, err := r.conn.PrepareBatch(ctx, insertFeatureVectors)
	if err != nil {
		return errors.Wrap(err, "failed to prepare feature batch")
	}

	for _, row := range rows {
		err := batch.Append(
			row.PredictionID,
			row.Category.String(),
			row.Columns,
			row.Values,
			row.Season.String(),
			row.Confidence,
			row.CreatedAt,
		)
		if err != nil {
			_ = batch.Abort()
			return errors.Wrap(err, "failed to append feature row")
		}
	}

	if err := batch.Send(); err != nil {
		return errors.Wrap(err, "failed to send feature batch")
	}
	return nil
}

// ColumnActivity returns the per-column mean over logged vectors.
// Indicator columns with a zero mean never fired in the window.
func (r *FeatureLogRepository) ColumnActivity(ctx context.Context, category garment.Category, since time.Time) ([]prediction.ColumnActivity, error) {
	query := `
		SELECT col, avg(val)
		FROM feature_vectors
		ARRAY JOIN feature_columns AS col, feature_values AS val
		WHERE category = ? AND created_at >= ?
		GROUP BY col
		ORDER BY col
	`

	rows, err := r.conn.Query(ctx, query, category.String(), since)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query column activity")
	}
	defer rows.Close()

	var out []prediction.ColumnActivity
	for rows.Next() {
		var a prediction.ColumnActivity
		if err := rows.Scan(&a.Column, &a.Mean); err != nil {
			return nil, errors.Wrap(err, "failed to scan column activity")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountSince returns the number of logged vectors per category
func (r *FeatureLogRepository) CountSince(ctx context.Context, since time.Time) (map[garment.Category]uint64, error) {
	query := `
		SELECT category, count()
		FROM feature_vectors
		WHERE created_at >= ?
		GROUP BY category
	`

	rows, err := r.conn.Query(ctx, query, since)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count feature vectors")
	}
	defer rows.Close()

	out := make(map[garment.Category]uint64)
	for rows.Next() {
		var (
			category string
			count    uint64
		)
		if err := rows.Scan(&category, &count); err != nil {
			return nil, errors.Wrap(err, "failed to scan feature count")
		}
		out[garment.Category(category)] = count
	}
	return out, rows.Err()
}
