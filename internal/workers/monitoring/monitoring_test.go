package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seasoncast/internal/domain/garment"
	"seasoncast/internal/domain/prediction"
	"seasoncast/internal/metrics"
	"seasoncast/pkg/errors"
)

type stubAuditor struct {
	report map[garment.Category]*errors.DriftError
	err    error
}

func (s stubAuditor) AuditSchemas() (map[garment.Category]*errors.DriftError, error) {
	return s.report, s.err
}

func TestSchemaAuditorWorker(t *testing.T) {
	drift := &errors.DriftError{
		Category:            "jacket",
		UnproducibleColumns: []string{"Collar_mandarin"},
		UnencodedValues:     []string{"Pattern=paisley", "Pattern=ikat"},
	}
	w := NewSchemaAuditorWorker(stubAuditor{report: map[garment.Category]*errors.DriftError{
		garment.CategoryDress:  nil,
		garment.CategoryJacket: drift,
	}}, nil, 0, time.Minute, true)

	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.SchemaDrift.WithLabelValues("dress", "unproducible_columns")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SchemaDrift.WithLabelValues("jacket", "unproducible_columns")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.SchemaDrift.WithLabelValues("jacket", "unencoded_values")))
}

func TestSchemaAuditorWorker_FailPolicy(t *testing.T) {
	drift := &errors.DriftError{Category: "dress", UnproducibleColumns: []string{"Fit_x"}}
	w := NewSchemaAuditorWorker(stubAuditor{
		report: map[garment.Category]*errors.DriftError{garment.CategoryDress: drift},
		err:    drift,
	}, nil, 0, time.Minute, true)

	err := w.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSchemaDrift))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SchemaDrift.WithLabelValues("dress", "unproducible_columns")))
}

type stubActivity struct {
	byCategory map[garment.Category][]prediction.ColumnActivity
	err        error
	since      time.Time
}

func (s *stubActivity) ColumnActivity(_ context.Context, category garment.Category, since time.Time) ([]prediction.ColumnActivity, error) {
	s.since = since
	return s.byCategory[category], s.err
}

func TestSchemaAuditorWorker_SilentColumns(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	activity := &stubActivity{byCategory: map[garment.Category][]prediction.ColumnActivity{
		garment.CategoryDress: {
			{Column: "Fit", Mean: 1.4},
			{Column: "Pattern_paisley", Mean: 0},
			{Column: "Collar_peter_pan", Mean: 0},
			{Column: "Breathable", Mean: 0.3},
		},
	}}
	w := NewSchemaAuditorWorker(stubAuditor{report: map[garment.Category]*errors.DriftError{
		garment.CategoryDress:  nil,
		garment.CategoryJacket: nil,
	}}, activity, 6*time.Hour, time.Minute, true)
	w.now = func() time.Time { return now }

	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, now.Add(-6*time.Hour), activity.since)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.SchemaDrift.WithLabelValues("dress", "silent_columns")))
	assert.Equal(t, []string{"Collar_peter_pan", "Pattern_paisley"}, SilentColumns(activity.byCategory[garment.CategoryDress]))
}

func TestSchemaAuditorWorker_ActivityErrorIsNotFatal(t *testing.T) {
	metrics.RecordSilentColumns("jacket", 5)
	activity := &stubActivity{err: errors.ErrUnavailable}
	w := NewSchemaAuditorWorker(stubAuditor{report: map[garment.Category]*errors.DriftError{
		garment.CategoryJacket: nil,
	}}, activity, time.Hour, time.Minute, true)

	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.SchemaDrift.WithLabelValues("jacket", "silent_columns")), "gauge keeps its last value")
}

type stubCounter struct {
	counts []prediction.SeasonCount
	err    error
	since  time.Time
}

func (s *stubCounter) SeasonBreakdown(_ context.Context, since time.Time) ([]prediction.SeasonCount, error) {
	s.since = since
	return s.counts, s.err
}

type stubFeatures map[garment.Category]uint64

func (s stubFeatures) CountSince(context.Context, time.Time) (map[garment.Category]uint64, error) {
	return s, nil
}

func TestPredictionStatsWorker_Collect(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seasons := &stubCounter{counts: []prediction.SeasonCount{
		{Category: garment.CategoryDress, Season: garment.SeasonSummer, Count: 10},
		{Category: garment.CategoryDress, Season: garment.SeasonSpring, Count: 5},
		{Category: garment.CategoryJacket, Season: garment.SeasonWinter, Count: 7},
	}}
	w := NewPredictionStatsWorker(seasons, stubFeatures{garment.CategoryDress: 12}, 6*time.Hour, time.Minute, true)
	w.now = func() time.Time { return now }

	summary, err := w.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, now.Add(-6*time.Hour), seasons.since)
	assert.Equal(t, int64(15), summary.Stored[garment.CategoryDress])
	assert.Equal(t, int64(7), summary.Stored[garment.CategoryJacket])
	assert.Equal(t, int64(5), summary.Seasons[garment.CategoryDress][garment.SeasonSpring])
	assert.Equal(t, uint64(12), summary.Features[garment.CategoryDress])

	require.NoError(t, w.Run(context.Background()))
}

func TestPredictionStatsWorker_NoFeatureLog(t *testing.T) {
	w := NewPredictionStatsWorker(&stubCounter{}, nil, 0, time.Minute, true)

	summary, err := w.Collect(context.Background())
	require.NoError(t, err)
	assert.Nil(t, summary.Features)
	assert.Empty(t, summary.Stored)
}

func TestPredictionStatsWorker_Error(t *testing.T) {
	w := NewPredictionStatsWorker(&stubCounter{err: errors.ErrUnavailable}, nil, time.Hour, time.Minute, true)

	err := w.Run(context.Background())
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
}
