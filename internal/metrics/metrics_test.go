package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	chbatch "seasoncast/pkg/clickhouse"
	"seasoncast/pkg/errors"
	"seasoncast/pkg/logger"
)

func TestErrorReason(t *testing.T) {
	tests := map[string]error{
		"none":             nil,
		"missing_field":    errors.NewFieldError(errors.ErrMissingRequiredField, "Fit", ""),
		"unmapped_ordinal": errors.Wrap(errors.NewFieldError(errors.ErrUnmappedOrdinalValue, "Fit", "x"), "encode dress"),
		"schema_drift":     &errors.DriftError{Category: "dress"},
		"invalid_value":    errors.NewFieldError(errors.ErrInvalidValue, "Collar", "x"),
		"unknown_category": errors.ErrUnknownCategory,
		"model":            errors.ErrModelNotLoaded,
		"invalid_input":    errors.NewValidationError("f", "bad", 1),
		"internal":         errors.New("boom"),
	}
	for want, err := range tests {
		assert.Equal(t, want, ErrorReason(err))
	}
}

func TestRecordHelpers(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(Predictions.WithLabelValues("dress", "summer", "http", "false"))
	RecordPrediction("dress", "summer", "http", false, 0.8, time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(Predictions.WithLabelValues("dress", "summer", "http", "false")))

	RecordSchemaDrift("jacket", 2, 5)
	assert.Equal(t, 2.0, testutil.ToFloat64(SchemaDrift.WithLabelValues("jacket", "unproducible_columns")))
	assert.Equal(t, 5.0, testutil.ToFloat64(SchemaDrift.WithLabelValues("jacket", "unencoded_values")))

	before = testutil.ToFloat64(PredictionErrors.WithLabelValues("dress", "missing_field"))
	RecordPredictionError("dress", errors.ErrMissingRequiredField)
	assert.Equal(t, before+1, testutil.ToFloat64(PredictionErrors.WithLabelValues("dress", "missing_field")))
}

type stubStats struct{ stats chbatch.BatchWriterStats }

func (s stubStats) Stats() chbatch.BatchWriterStats { return s.stats }

func TestCustomCollector_FeatureLog(t *testing.T) {
	c := NewCustomCollector(logger.NewNop(), nil, stubStats{chbatch.BatchWriterStats{BufferSize: 3, Dropped: 7}})

	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(c)

	assert.Equal(t, 3, testutil.CollectAndCount(c))
	assert.Equal(t, 3.0, gatheredValue(t, reg, "seasoncast_feature_log_buffered_rows"))
	assert.Equal(t, 7.0, gatheredValue(t, reg, "seasoncast_feature_log_dropped_rows"))
}

func gatheredValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	assert.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		m := f.GetMetric()[0]
		if m.GetGauge() != nil {
			return m.GetGauge().GetValue()
		}
		return m.GetCounter().GetValue()
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}
