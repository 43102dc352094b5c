package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"seasoncast/internal/domain/garment"
	"seasoncast/internal/domain/prediction"
	"seasoncast/internal/workers"
	"seasoncast/pkg/errors"
)

// SeasonCounter reads the stored season breakdown
type SeasonCounter interface {
	SeasonBreakdown(ctx context.Context, since time.Time) ([]prediction.SeasonCount, error)
}

// FeatureCounter reads how many vectors reached the analytics store
type FeatureCounter interface {
	CountSince(ctx context.Context, since time.Time) (map[garment.Category]uint64, error)
}

// PredictionStatsWorker logs a periodic summary of prediction volume.
// A gap between stored predictions and logged vectors means the feature log is dropping rows.
type PredictionStatsWorker struct {
	*workers.BaseWorker
	seasons  SeasonCounter
	features FeatureCounter
	window   time.Duration
	now      func() time.Time
}

// NewPredictionStatsWorker creates the summary worker; features may be nil
func NewPredictionStatsWorker(seasons SeasonCounter, features FeatureCounter, window, interval time.Duration, enabled bool) *PredictionStatsWorker {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &PredictionStatsWorker{
		BaseWorker: workers.NewBaseWorker("prediction_stats", interval, enabled),
		seasons:    seasons,
		features:   features,
		window:     window,
		now:        time.Now,
	}
}

// Summary is one run's result
type Summary struct {
	Since    time.Time
	Stored   map[garment.Category]int64
	Seasons  map[garment.Category]map[garment.Season]int64
	Features map[garment.Category]uint64
}

// Run collects and logs the summary once
func (w *PredictionStatsWorker) Run(ctx context.Context) error {
	summary, err := w.Collect(ctx)
	if err != nil {
		return err
	}

	categories := make([]garment.Category, 0, len(summary.Stored))
	for c := range summary.Stored {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	for _, c := range categories {
		fields := []interface{}{
			"category", c,
			"since", humanize.Time(summary.Since),
			"stored", humanize.Comma(summary.Stored[c]),
		}
		for season, n := range summary.Seasons[c] {
			fields = append(fields, season.String(), humanize.Comma(n))
		}
		if summary.Features != nil {
			logged := summary.Features[c]
			fields = append(fields, "feature_rows", humanize.Comma(int64(logged)))
			if int64(logged) < summary.Stored[c] {
				fields = append(fields, "feature_gap", humanize.Comma(summary.Stored[c]-int64(logged)))
			}
		}
		w.Log().Infow("Prediction summary", fields...)
	}
	return nil
}

// Collect reads both stores for the configured window
func (w *PredictionStatsWorker) Collect(ctx context.Context) (*Summary, error) {
	since := w.now().Add(-w.window)

	counts, err := w.seasons.SeasonBreakdown(ctx, since)
	if err != nil {
		return nil, errors.Wrap(err, "season breakdown")
	}

	summary := &Summary{
		Since:   since,
		Stored:  make(map[garment.Category]int64),
		Seasons: make(map[garment.Category]map[garment.Season]int64),
	}
	for _, c := range counts {
		summary.Stored[c.Category] += c.Count
		if summary.Seasons[c.Category] == nil {
			summary.Seasons[c.Category] = make(map[garment.Season]int64)
		}
		summary.Seasons[c.Category][c.Season] += c.Count
	}

	if w.features != nil {
		features, err := w.features.CountSince(ctx, since)
		if err != nil {
			return nil, errors.Wrap(err, "feature log count")
		}
		summary.Features = features
	}
	return summary, nil
}
