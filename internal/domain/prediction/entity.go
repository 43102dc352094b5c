package prediction

import (
	"time"

	"github.com/google/uuid"

	"seasoncast/internal/domain/garment"
)

// Source identifies the front-end a prediction request came through
type Source string

const (
	SourceHTTP     Source = "http"
	SourceKafka    Source = "kafka"
	SourceTelegram Source = "telegram"
)

// Prediction is one classified garment
type Prediction struct {
	ID            uuid.UUID                  `db:"id" json:"id"`
	Category      garment.Category           `db:"category" json:"category"`
	Attributes    garment.AttributeRecord    `db:"-" json:"attributes"`
	Season        garment.Season             `db:"season" json:"season"`
	Label         int                        `db:"label" json:"label"`
	Confidence    float64                    `db:"confidence" json:"confidence"`
	Probabilities map[garment.Season]float64 `db:"-" json:"probabilities"`
	Unencoded     []string                   `db:"-" json:"unencoded,omitempty"`
	SchemaVersion string                     `db:"schema_version" json:"schema_version"`
	Source        Source                     `db:"source" json:"source"`
	RequestID     string                     `db:"-" json:"request_id,omitempty"`
	Cached        bool                       `db:"-" json:"cached"`
	CreatedAt     time.Time                  `db:"created_at" json:"created_at"`
}

// SeasonCount is one row of the per-season breakdown
type SeasonCount struct {
	Category garment.Category `db:"category" json:"category"`
	Season   garment.Season   `db:"season" json:"season"`
	Count    int64            `db:"count" json:"count"`
}

// FeatureRow is one encoded vector kept for offline drift analysis
type FeatureRow struct {
	PredictionID uuid.UUID
	Category     garment.Category
	Columns      []string
	Values       []float64
	Season       garment.Season
	Confidence   float64
	CreatedAt    time.Time
}

// ColumnActivity is the mean value of one trained column over logged vectors.
// A zero mean means the column never fired in the window.
type ColumnActivity struct {
	Column string
	Mean   float64
}
