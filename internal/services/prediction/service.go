package prediction

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"seasoncast/internal/domain/garment"
	"seasoncast/internal/domain/prediction"
	"seasoncast/internal/encoder"
	"seasoncast/internal/metrics"
	"seasoncast/internal/ml/season"
	"seasoncast/pkg/errors"
	"seasoncast/pkg/logger"
	"seasoncast/pkg/relay"
)

// Classifier maps an encoded vector to a season. *season.Set and
// *season.Classifier both satisfy it.
type Classifier interface {
	Classify(ctx context.Context, v *encoder.FeatureVector) (*season.ClassificationResult, error)
}

// ModelFingerprinter is implemented by classifiers that can identify the
// model weights behind a category. The fingerprint namespaces cached results.
type ModelFingerprinter interface {
	ModelFingerprint(category garment.Category) string
}

var (
	_ Classifier         = (*season.Set)(nil)
	_ Classifier         = (*season.Classifier)(nil)
	_ ModelFingerprinter = (*season.Set)(nil)
)

// Deps are the collaborators of the service. Registry, Encoder and
// Classifier are required; the storage sinks are optional.
type Deps struct {
	Registry   *garment.Registry
	Encoder    *encoder.Encoder
	Classifier Classifier
	Repository prediction.Repository
	Cache      prediction.Cache
	FeatureLog prediction.FeatureLog
	Publisher  prediction.Publisher
	Logger     *logger.Logger
}

// Service runs the encode-then-classify pipeline and records the outcome
type Service struct {
	registry   *garment.Registry
	encoder    *encoder.Encoder
	classifier Classifier
	repo       prediction.Repository
	cache      prediction.Cache
	featureLog prediction.FeatureLog
	publisher  prediction.Publisher
	log        *logger.Logger
	now        func() time.Time
}

// NewService creates a new prediction service
func NewService(deps Deps) (*Service, error) {
	if deps.Registry == nil || deps.Classifier == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "prediction service needs a registry and a classifier")
	}
	if deps.Encoder == nil {
		deps.Encoder = encoder.New(encoder.DriftWarn)
	}
	if deps.Logger == nil {
		deps.Logger = logger.Get()
	}

	return &Service{
		registry:   deps.Registry,
		encoder:    deps.Encoder,
		classifier: deps.Classifier,
		repo:       deps.Repository,
		cache:      deps.Cache,
		featureLog: deps.FeatureLog,
		publisher:  deps.Publisher,
		log:        deps.Logger.Component("prediction_service"),
		now:        time.Now,
	}, nil
}

// Schema returns the schema of one category
func (s *Service) Schema(category garment.Category) (*garment.Schema, error) {
	return s.registry.Get(category)
}

// Schemas returns every loaded schema in category order
func (s *Service) Schemas() []*garment.Schema {
	categories := s.registry.Categories()
	out := make([]*garment.Schema, 0, len(categories))
	for _, c := range categories {
		schema, err := s.registry.Get(c)
		if err != nil {
			continue
		}
		out = append(out, schema)
	}
	return out
}

// Encode validates and encodes a record without classifying it
func (s *Service) Encode(ctx context.Context, category garment.Category, record garment.AttributeRecord) (*encoder.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	schema, record, err := s.prepare(category, record)
	if err != nil {
		return nil, err
	}
	return s.encode(schema, record)
}

// Predict classifies one record. Only validation, encoding and inference
// errors fail the call; history, feature log, event and cache writes are
// best effort.
func (s *Service) Predict(ctx context.Context, category garment.Category, record garment.AttributeRecord, source prediction.Source) (*prediction.Prediction, error) {
	start := s.now()

	p, err := s.predict(ctx, category, record, source)
	if err != nil {
		metrics.RecordPredictionError(category.String(), err)
		return nil, err
	}

	metrics.RecordPrediction(category.String(), p.Season.String(), string(source), p.Cached, p.Confidence, s.now().Sub(start))
	return p, nil
}

func (s *Service) predict(ctx context.Context, category garment.Category, record garment.AttributeRecord, source prediction.Source) (*prediction.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	schema, record, err := s.prepare(category, record)
	if err != nil {
		return nil, err
	}

	requestID := prediction.RequestIDFromContext(ctx)

	if cached := s.lookupCache(ctx, schema, record); cached != nil {
		cached.Cached = true
		cached.Source = source
		cached.RequestID = requestID
		// Kafka callers wait for a completion event whether or not the result was computed
		if source == prediction.SourceKafka {
			s.publish(ctx, cached)
		}
		return cached, nil
	}

	encoded, err := s.encode(schema, record)
	if err != nil {
		return nil, err
	}

	classifyStart := s.now()
	result, err := s.classifier.Classify(ctx, encoded.Vector)
	if err != nil {
		return nil, err
	}
	metrics.RecordStage(category.String(), "classify", s.now().Sub(classifyStart))

	p := &prediction.Prediction{
		ID:            uuid.New(),
		Category:      category,
		Attributes:    record,
		Season:        result.Season,
		Label:         result.Label,
		Confidence:    result.Confidence,
		Probabilities: result.Probabilities,
		Unencoded:     encoded.Unencoded,
		SchemaVersion: schema.Version,
		Source:        source,
		RequestID:     requestID,
		CreatedAt:     s.now().UTC(),
	}

	s.record(ctx, schema, p, encoded.Vector)

	return p, nil
}

// BatchItem is the outcome of one record in a batch
type BatchItem struct {
	Index      int                    `json:"index"`
	Prediction *prediction.Prediction `json:"prediction,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Err        error                  `json:"-"`
}

// PredictBatch classifies records independently; one bad record does not fail
// the rest. Only a cancelled context stops the batch early.
func (s *Service) PredictBatch(ctx context.Context, category garment.Category, records []garment.AttributeRecord, source prediction.Source) ([]BatchItem, error) {
	items := make([]BatchItem, 0, len(records))
	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return items, err
		}
		item := BatchItem{Index: i}
		p, err := s.Predict(ctx, category, record, source)
		if err != nil {
			item.Err = err
			item.Error = err.Error()
		} else {
			item.Prediction = p
		}
		items = append(items, item)
	}
	return items, nil
}

// Get returns one stored prediction
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*prediction.Prediction, error) {
	if s.repo == nil {
		return nil, errors.Wrap(errors.ErrUnavailable, "prediction history is disabled")
	}
	return s.repo.GetByID(ctx, id)
}

// Recent pages through stored predictions newest first, optionally for one category
func (s *Service) Recent(ctx context.Context, category garment.Category, page relay.PaginationParams) (*relay.Connection[prediction.Prediction], error) {
	if s.repo == nil {
		return nil, errors.Wrap(errors.ErrUnavailable, "prediction history is disabled")
	}
	if category != "" {
		if _, err := s.registry.Get(category); err != nil {
			return nil, err
		}
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}

	total, err := s.repo.Count(ctx, category)
	if err != nil {
		return nil, errors.Wrap(err, "count predictions")
	}
	offset, limit, err := relay.CalculateOffsetLimit(page, total)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListRecent(ctx, category, offset, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list predictions")
	}
	return relay.NewConnection(items, total, offset), nil
}

// SeasonBreakdown counts stored predictions per category and season since t
func (s *Service) SeasonBreakdown(ctx context.Context, since time.Time) ([]prediction.SeasonCount, error) {
	if s.repo == nil {
		return nil, errors.Wrap(errors.ErrUnavailable, "prediction history is disabled")
	}
	return s.repo.CountBySeason(ctx, since)
}

// AuditSchemas checks every loaded schema under the encoder's drift policy
func (s *Service) AuditSchemas() (map[garment.Category]*errors.DriftError, error) {
	var merr errors.MultiError
	out := make(map[garment.Category]*errors.DriftError)

	for _, schema := range s.Schemas() {
		drift, err := s.encoder.CheckSchema(schema)
		if err != nil {
			merr.Add(err)
		}
		out[schema.Category] = drift
	}
	return out, merr.ToError()
}

func (s *Service) prepare(category garment.Category, record garment.AttributeRecord) (*garment.Schema, garment.AttributeRecord, error) {
	schema, err := s.registry.Get(category)
	if err != nil {
		return nil, nil, err
	}
	record = schema.Canonicalize(record)
	if err := schema.Validate(record); err != nil {
		return nil, nil, errors.Wrapf(err, "invalid %s record", category)
	}
	return schema, record, nil
}

func (s *Service) encode(schema *garment.Schema, record garment.AttributeRecord) (*encoder.Result, error) {
	start := s.now()
	res, err := s.encoder.Encode(schema, record)
	if err != nil {
		return nil, err
	}
	metrics.RecordStage(schema.Category.String(), "encode", s.now().Sub(start))

	if len(res.Unencoded) > 0 {
		for _, pair := range res.Unencoded {
			field, _, _ := strings.Cut(pair, "=")
			metrics.UnencodedValues.WithLabelValues(schema.Category.String(), field).Inc()
		}
		if s.encoder.Policy() == encoder.DriftWarn {
			s.log.Warnw("Record values have no trained column",
				"category", schema.Category,
				"schema_version", schema.Version,
				"values", res.Unencoded,
			)
		}
	}
	return res, nil
}

// cacheVersion namespaces cache entries by schema version and, when the
// classifier exposes one, the model fingerprint
func (s *Service) cacheVersion(schema *garment.Schema) string {
	if fp, ok := s.classifier.(ModelFingerprinter); ok {
		if id := fp.ModelFingerprint(schema.Category); id != "" {
			return schema.Version + "@" + id
		}
	}
	return schema.Version
}

func (s *Service) lookupCache(ctx context.Context, schema *garment.Schema, record garment.AttributeRecord) *prediction.Prediction {
	if s.cache == nil {
		return nil
	}
	p, err := s.cache.Get(ctx, schema.Category, s.cacheVersion(schema), record)
	switch {
	case err == nil && s.stale(schema, p):
		metrics.CacheLookups.WithLabelValues("stale").Inc()
	case err == nil:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return p
	case errors.Is(err, errors.ErrNotFound):
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		s.log.Warnw("Prediction cache lookup failed", "category", schema.Category, "error", err)
	}
	return nil
}

// stale reports a cached prediction the current pipeline would not produce
func (s *Service) stale(schema *garment.Schema, p *prediction.Prediction) bool {
	if p.SchemaVersion != schema.Version {
		return true
	}
	return s.encoder.Policy() == encoder.DriftFail && len(p.Unencoded) > 0
}

// record fans the prediction out to the optional sinks
func (s *Service) record(ctx context.Context, schema *garment.Schema, p *prediction.Prediction, v *encoder.FeatureVector) {
	if s.repo != nil {
		if err := s.repo.Store(ctx, p); err != nil {
			s.sinkFailed("history", p, err)
		}
	}

	if s.featureLog != nil {
		row := prediction.FeatureRow{
			PredictionID: p.ID,
			Category:     p.Category,
			Columns:      v.Columns,
			Values:       v.Values,
			Season:       p.Season,
			Confidence:   p.Confidence,
			CreatedAt:    p.CreatedAt,
		}
		if err := s.featureLog.Append(ctx, row); err != nil {
			s.sinkFailed("feature_log", p, err)
		}
	}

	s.publish(ctx, p)

	if s.cache != nil {
		if err := s.cache.Set(ctx, s.cacheVersion(schema), p); err != nil {
			s.sinkFailed("cache", p, err)
		}
	}
}

func (s *Service) publish(ctx context.Context, p *prediction.Prediction) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishCompleted(ctx, p); err != nil {
		s.sinkFailed("events", p, err)
	}
}

func (s *Service) sinkFailed(sink string, p *prediction.Prediction, err error) {
	metrics.SinkFailures.WithLabelValues(sink).Inc()
	s.log.Errorw("Failed to record prediction",
		"sink", sink,
		"prediction_id", p.ID,
		"category", p.Category,
		"error", err,
	)
}
