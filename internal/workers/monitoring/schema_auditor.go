package monitoring

import (
	"context"
	"sort"
	"time"

	"seasoncast/internal/domain/garment"
	"seasoncast/internal/domain/prediction"
	"seasoncast/internal/metrics"
	"seasoncast/internal/workers"
	"seasoncast/pkg/errors"
)

// SchemaAuditor checks every schema against its model's column list
type SchemaAuditor interface {
	AuditSchemas() (map[garment.Category]*errors.DriftError, error)
}

// ColumnActivitySource reports per-column means over logged feature vectors
type ColumnActivitySource interface {
	ColumnActivity(ctx context.Context, category garment.Category, since time.Time) ([]prediction.ColumnActivity, error)
}

// SchemaAuditorWorker publishes per-category drift gauges. With a feature
// log it also reports trained columns that never fired in the window.
type SchemaAuditorWorker struct {
	*workers.BaseWorker
	auditor  SchemaAuditor
	activity ColumnActivitySource
	window   time.Duration
	now      func() time.Time
}

// NewSchemaAuditorWorker creates the drift auditing worker. activity may be nil.
func NewSchemaAuditorWorker(auditor SchemaAuditor, activity ColumnActivitySource, window, interval time.Duration, enabled bool) *SchemaAuditorWorker {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &SchemaAuditorWorker{
		BaseWorker: workers.NewBaseWorker("schema_auditor", interval, enabled),
		auditor:    auditor,
		activity:   activity,
		window:     window,
		now:        time.Now,
	}
}

// Run audits all schemas once
func (w *SchemaAuditorWorker) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	report, err := w.auditor.AuditSchemas()
	for category, drift := range report {
		if drift == nil {
			metrics.RecordSchemaDrift(category.String(), 0, 0)
		} else {
			metrics.RecordSchemaDrift(category.String(), len(drift.UnproducibleColumns), len(drift.UnencodedValues))
			w.Log().Warnw("Schema drift detected",
				"category", category,
				"unproducible_columns", drift.UnproducibleColumns,
				"unencoded_values", drift.UnencodedValues,
			)
		}
		w.auditActivity(ctx, category)
	}
	if err != nil {
		return errors.Wrap(err, "schema audit")
	}
	return nil
}

// SilentColumns returns the columns whose mean stayed at zero, sorted
func SilentColumns(activity []prediction.ColumnActivity) []string {
	var silent []string
	for _, a := range activity {
		if a.Mean == 0 {
			silent = append(silent, a.Column)
		}
	}
	sort.Strings(silent)
	return silent
}

func (w *SchemaAuditorWorker) auditActivity(ctx context.Context, category garment.Category) {
	if w.activity == nil {
		return
	}
	activity, err := w.activity.ColumnActivity(ctx, category, w.now().Add(-w.window))
	if err != nil {
		w.Log().Warnw("Column activity unavailable", "category", category, "error", err)
		return
	}
	// No logged vectors says nothing about the columns
	if len(activity) == 0 {
		return
	}

	silent := SilentColumns(activity)
	metrics.RecordSilentColumns(category.String(), len(silent))
	if len(silent) > 0 {
		w.Log().Infow("Trained columns never fired",
			"category", category,
			"window", w.window,
			"columns", silent,
		)
	}
}
