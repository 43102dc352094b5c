// Package encoder turns garment attribute records into the fixed-order
// numeric feature vectors the season classifiers were trained on.
//
// Encoding is schema driven: indicator columns are looked up in the trained
// column list rather than derived from the record, so the output width and
// order always match the model input regardless of which values are set.
package encoder

import (
	"strings"

	"seasoncast/internal/domain/garment"
	"seasoncast/pkg/errors"
)

// DriftPolicy decides what happens when a record value has no trained column
type DriftPolicy string

const (
	DriftIgnore DriftPolicy = "ignore"
	DriftWarn   DriftPolicy = "warn"
	DriftFail   DriftPolicy = "fail"
)

// ParseDriftPolicy parses a configured policy name
func ParseDriftPolicy(s string) (DriftPolicy, error) {
	p := DriftPolicy(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case DriftIgnore, DriftWarn, DriftFail:
		return p, nil
	}
	return "", errors.NewValidationError("drift_policy", "expected ignore, warn or fail", s)
}

// FeatureVector is one encoded row. Columns is shared with the schema and must not be modified.
type FeatureVector struct {
	Category garment.Category
	Columns  []string
	Values   []float64
}

// Len returns the vector width
func (v *FeatureVector) Len() int {
	return len(v.Values)
}

// Get returns the value of a named column
func (v *FeatureVector) Get(column string) (float64, bool) {
	for i, c := range v.Columns {
		if c == column {
			return v.Values[i], true
		}
	}
	return 0, false
}

// NonZero returns the columns that carry a value, for inspection endpoints
func (v *FeatureVector) NonZero() map[string]float64 {
	out := make(map[string]float64)
	for i, val := range v.Values {
		if val != 0 {
			out[v.Columns[i]] = val
		}
	}
	return out
}

// Result is the output of one encoding
type Result struct {
	Vector *FeatureVector

	// Unencoded lists "Field=value" pairs that matched no trained column and are
	// not the field's baseline. Such values collapse to the baseline.
	Unencoded []string
}

// Encoder is stateless and safe for concurrent use
type Encoder struct {
	policy DriftPolicy
}

// New creates an encoder with the given drift policy
func New(policy DriftPolicy) *Encoder {
	if policy == "" {
		policy = DriftWarn
	}
	return &Encoder{policy: policy}
}

// Policy returns the configured drift policy
func (e *Encoder) Policy() DriftPolicy {
	return e.policy
}

// Encode maps a record onto the schema's trained column list.
// It is all-or-nothing: any field error aborts the whole record.
func (e *Encoder) Encode(schema *garment.Schema, record garment.AttributeRecord) (*Result, error) {
	record = schema.Canonicalize(record)
	computed := make(map[string]float64, len(schema.Fields))

	var (
		merr      errors.MultiError
		unencoded []string
	)

	for i := range schema.Fields {
		f := &schema.Fields[i]
		value, set := record.Get(f.Name)

		if !set && (f.Required || f.Kind == garment.KindOrdinal) {
			merr.Add(errors.NewFieldError(errors.ErrMissingRequiredField, f.Name, ""))
			continue
		}

		switch f.Kind {
		case garment.KindCategorical:
			if !set {
				// Unset acts as its own pseudo-category: no indicator fires
				continue
			}
			col := garment.IndicatorColumn(f.Name, value)
			if _, ok := schema.ColumnIndex(col); ok {
				computed[col] = 1
			} else if value != f.Baseline {
				unencoded = append(unencoded, f.Name+"="+value)
			}

		case garment.KindOrdinal:
			rank, ok := f.Ranks[value]
			if !ok {
				merr.Add(errors.NewFieldError(errors.ErrUnmappedOrdinalValue, f.Name, value))
				continue
			}
			computed[f.Name] = float64(rank)

		case garment.KindBoolean:
			if value == garment.AnswerYes {
				computed[f.Name] = 1
			} else {
				computed[f.Name] = 0
			}
		}
	}

	if err := merr.ToError(); err != nil {
		return nil, errors.Wrapf(err, "encode %s", schema.Category)
	}

	if len(unencoded) > 0 && e.policy == DriftFail {
		return nil, &errors.DriftError{
			Category:        schema.Category.String(),
			UnencodedValues: unencoded,
		}
	}

	values := make([]float64, schema.Width())
	for i, col := range schema.Columns {
		values[i] = computed[col]
	}

	return &Result{
		Vector: &FeatureVector{
			Category: schema.Category,
			Columns:  schema.Columns,
			Values:   values,
		},
		Unencoded: unencoded,
	}, nil
}

// CheckSchema audits a schema against the drift policy. The drift report is
// returned for every policy except ignore; the error is set only under fail.
func (e *Encoder) CheckSchema(schema *garment.Schema) (*errors.DriftError, error) {
	if e.policy == DriftIgnore {
		return nil, nil
	}
	drift := garment.Audit(schema)
	if drift == nil {
		return nil, nil
	}
	if e.policy == DriftFail {
		return drift, drift
	}
	return drift, nil
}
