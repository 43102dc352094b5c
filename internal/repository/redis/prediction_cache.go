package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	redisclient "seasoncast/internal/adapters/redis"
	"seasoncast/internal/domain/garment"
	"seasoncast/internal/domain/prediction"
	"seasoncast/pkg/errors"
)

// Compile-time check
var _ prediction.Cache = (*PredictionCache)(nil)

const keyPrefix = "prediction:"

// PredictionCache implements prediction.Cache using Redis.
// Callers pass canonical records so aliases and padding share one entry.
type PredictionCache struct {
	client *redisclient.Client
	ttl    time.Duration
}

// NewPredictionCache creates a new prediction cache
func NewPredictionCache(client *redisclient.Client, ttl time.Duration) *PredictionCache {
	return &PredictionCache{
		client: client,
		ttl:    ttl,
	}
}

// Get returns the prediction cached for a record under version
func (c *PredictionCache) Get(ctx context.Context, category garment.Category, version string, record garment.AttributeRecord) (*prediction.Prediction, error) {
	key := Key(category, version, record)

	var p prediction.Prediction
	err := c.client.Get(ctx, key, &p)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, errors.Wrapf(errors.ErrNotFound, "no cached prediction for %s", key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read cached prediction %s", key)
	}
	return &p, nil
}

// Set stores a prediction under its record key
func (c *PredictionCache) Set(ctx context.Context, version string, p *prediction.Prediction) error {
	key := Key(p.Category, version, p.Attributes)
	if err := c.client.Set(ctx, key, p, c.ttl); err != nil {
		return errors.Wrapf(err, "failed to cache prediction %s", p.ID)
	}
	return nil
}

// Key derives the cache key from the category, the producing schema and
// model version, and the set attributes. A new version never hits old entries.
func Key(category garment.Category, version string, record garment.AttributeRecord) string {
	h := sha256.New()
	h.Write([]byte(version))
	h.Write([]byte{0})
	for _, name := range record.Keys() {
		value, _ := record.Get(name)
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write([]byte(value))
		h.Write([]byte{0})
	}
	return keyPrefix + category.String() + ":" + hex.EncodeToString(h.Sum(nil)[:16])
}
