package season

import (
	"context"
	"sort"

	"seasoncast/internal/domain/garment"
	"seasoncast/internal/encoder"
	"seasoncast/internal/ml"
	"seasoncast/pkg/errors"
)

// Predictor is the opaque trained model: one feature row in, class index and
// per-class probabilities out. *ml.ONNXModel satisfies it.
type Predictor interface {
	Predict(features []float64) (int, []float64, error)
	Destroy()
}

var _ Predictor = (*ml.ONNXModel)(nil)

type fingerprinter interface {
	Fingerprint() string
}

// Classifier performs season classification for one garment category
type Classifier struct {
	schema *garment.Schema
	model  Predictor
}

// NewClassifier creates a classifier backed by an ONNX model file
func NewClassifier(schema *garment.Schema, cfg ml.ModelConfig) (*Classifier, error) {
	cfg.NumClasses = len(schema.Labels)
	model, err := ml.LoadONNXModel(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s season model", schema.Category)
	}
	return NewClassifierWithPredictor(schema, model), nil
}

// NewClassifierWithPredictor wraps an already loaded model
func NewClassifierWithPredictor(schema *garment.Schema, model Predictor) *Classifier {
	return &Classifier{schema: schema, model: model}
}

// Category returns the garment category this classifier was trained for
func (c *Classifier) Category() garment.Category {
	return c.schema.Category
}

// Fingerprint identifies the loaded model weights, or "" when the model
// cannot tell
func (c *Classifier) Fingerprint() string {
	if fp, ok := c.model.(fingerprinter); ok {
		return fp.Fingerprint()
	}
	return ""
}

// ClassificationResult contains the result of season classification
type ClassificationResult struct {
	Season        garment.Season             // Predicted season
	Label         int                        // Raw class index
	Confidence    float64                    // Probability of the predicted class
	Probabilities map[garment.Season]float64 // Probability distribution over all seasons
}

// Classify runs inference on an encoded vector
func (c *Classifier) Classify(ctx context.Context, v *encoder.FeatureVector) (*ClassificationResult, error) {
	if c.model == nil {
		return nil, errors.ErrModelNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if v.Category != c.schema.Category {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "vector for %s passed to %s classifier", v.Category, c.schema.Category)
	}
	if v.Len() != c.schema.Width() {
		return nil, errors.Wrapf(errors.ErrSchemaDrift, "vector width %d, model expects %d", v.Len(), c.schema.Width())
	}

	label, probs, err := c.model.Predict(v.Values)
	if err != nil {
		return nil, errors.Wrap(err, "classification failed")
	}

	s, err := c.schema.SeasonFor(label)
	if err != nil {
		return nil, err
	}

	result := &ClassificationResult{
		Season:        s,
		Label:         label,
		Probabilities: make(map[garment.Season]float64, len(probs)),
	}
	for i, p := range probs {
		if i >= len(c.schema.Labels) {
			break
		}
		result.Probabilities[c.schema.Labels[i]] = p
	}
	if label < len(probs) {
		result.Confidence = probs[label]
	}
	return result, nil
}

// Close cleans up the classifier resources
func (c *Classifier) Close() {
	if c.model != nil {
		c.model.Destroy()
		c.model = nil
	}
}

// Set holds one classifier per category
type Set struct {
	classifiers map[garment.Category]*Classifier
}

// NewSet builds a set from classifiers
func NewSet(classifiers ...*Classifier) *Set {
	s := &Set{classifiers: make(map[garment.Category]*Classifier, len(classifiers))}
	for _, c := range classifiers {
		s.classifiers[c.Category()] = c
	}
	return s
}

// LoadSet loads a model for every category in paths
func LoadSet(registry *garment.Registry, paths map[garment.Category]string, base ml.ModelConfig) (*Set, error) {
	set := NewSet()
	for _, category := range registry.Categories() {
		path, ok := paths[category]
		if !ok || path == "" {
			continue
		}
		schema, err := registry.Get(category)
		if err != nil {
			set.Close()
			return nil, err
		}
		cfg := base
		cfg.Path = path
		c, err := NewClassifier(schema, cfg)
		if err != nil {
			set.Close()
			return nil, err
		}
		set.classifiers[category] = c
	}
	return set, nil
}

// Get returns the classifier for a category
func (s *Set) Get(category garment.Category) (*Classifier, error) {
	c, ok := s.classifiers[category]
	if !ok {
		return nil, errors.Wrapf(errors.ErrModelNotLoaded, "no model for %s", category)
	}
	return c, nil
}

// Classify routes the vector to the classifier of its category
func (s *Set) Classify(ctx context.Context, v *encoder.FeatureVector) (*ClassificationResult, error) {
	c, err := s.Get(v.Category)
	if err != nil {
		return nil, err
	}
	return c.Classify(ctx, v)
}

// ModelFingerprint returns the fingerprint of the category's model
func (s *Set) ModelFingerprint(category garment.Category) string {
	c, ok := s.classifiers[category]
	if !ok {
		return ""
	}
	return c.Fingerprint()
}

// Categories lists categories with a loaded model
func (s *Set) Categories() []garment.Category {
	out := make([]garment.Category, 0, len(s.classifiers))
	for c := range s.classifiers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Close destroys every model
func (s *Set) Close() {
	for _, c := range s.classifiers {
		c.Close()
	}
}
