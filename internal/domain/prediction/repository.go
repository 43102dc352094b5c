package prediction

import (
	"context"
	"time"

	"github.com/google/uuid"

	"seasoncast/internal/domain/garment"
)

// Repository defines the interface for prediction history
type Repository interface {
	Store(ctx context.Context, p *Prediction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prediction, error)
	// ListRecent returns predictions newest first, skipping offset rows. An empty category lists all.
	ListRecent(ctx context.Context, category garment.Category, offset, limit int) ([]Prediction, error)
	Count(ctx context.Context, category garment.Category) (int, error)
	CountBySeason(ctx context.Context, since time.Time) ([]SeasonCount, error)
}

// Cache stores predictions keyed by category, canonical record and a version
// string naming the schema and model that produced them
type Cache interface {
	Get(ctx context.Context, category garment.Category, version string, record garment.AttributeRecord) (*Prediction, error)
	Set(ctx context.Context, version string, p *Prediction) error
}

// FeatureLog appends encoded vectors to the analytics store
type FeatureLog interface {
	Append(ctx context.Context, row FeatureRow) error
}

// Publisher announces finished predictions
type Publisher interface {
	PublishCompleted(ctx context.Context, p *Prediction) error
}
