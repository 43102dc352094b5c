package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"seasoncast/pkg/errors"
)

var (
	// Prediction metrics
	Predictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seasoncast_predictions_total",
			Help: "Total number of completed predictions",
		},
		[]string{"category", "season", "source", "cached"},
	)

	PredictionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seasoncast_prediction_errors_total",
			Help: "Total number of rejected or failed predictions",
		},
		[]string{"category", "reason"},
	)

	PredictionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seasoncast_prediction_latency_seconds",
			Help:    "Prediction latency by stage",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		},
		[]string{"category", "stage"}, // stage: encode|classify|total
	)

	PredictionConfidence = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seasoncast_prediction_confidence",
			Help:    "Probability of the predicted season",
			Buckets: []float64{0.25, 0.35, 0.45, 0.55, 0.65, 0.75, 0.85, 0.95, 1},
		},
		[]string{"category"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seasoncast_cache_lookups_total",
			Help: "Prediction cache lookups",
		},
		[]string{"result"}, // result: hit|miss|stale|error
	)

	SinkFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seasoncast_sink_failures_total",
			Help: "Failed best-effort writes after a successful prediction",
		},
		[]string{"sink"}, // sink: history|feature_log|events|cache
	)

	// Drift metrics
	UnencodedValues = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seasoncast_unencoded_values_total",
			Help: "Record values that matched no trained column and collapsed to the baseline",
		},
		[]string{"category", "field"},
	)

	SchemaDrift = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "seasoncast_schema_drift",
			Help: "Schema audit findings by kind",
		},
		[]string{"category", "kind"}, // kind: unproducible_columns|unencoded_values|silent_columns
	)

	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seasoncast_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seasoncast_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "seasoncast_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)

	// Front-end metrics
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seasoncast_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)

	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seasoncast_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seasoncast_kafka_messages_total",
			Help: "Kafka messages processed",
		},
		[]string{"topic", "status"}, // status: success|rejected|failed
	)

	TelegramMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seasoncast_telegram_messages_total",
			Help: "Telegram commands handled",
		},
		[]string{"command", "status"},
	)
)

var initOnce sync.Once

// Init registers all metrics with Prometheus. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			Predictions,
			PredictionErrors,
			PredictionLatency,
			PredictionConfidence,
			CacheLookups,
			SinkFailures,
			UnencodedValues,
			SchemaDrift,
			WorkerExecutions,
			WorkerDuration,
			WorkerLastRun,
			HTTPRequests,
			HTTPLatency,
			KafkaMessages,
			TelegramMessages,
		)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// ErrorReason maps an error to a low-cardinality label
func ErrorReason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, errors.ErrMissingRequiredField):
		return "missing_field"
	case errors.Is(err, errors.ErrUnmappedOrdinalValue):
		return "unmapped_ordinal"
	case errors.Is(err, errors.ErrSchemaDrift):
		return "schema_drift"
	case errors.Is(err, errors.ErrInvalidValue):
		return "invalid_value"
	case errors.Is(err, errors.ErrUnknownCategory):
		return "unknown_category"
	case errors.Is(err, errors.ErrModelNotLoaded), errors.Is(err, errors.ErrUnknownLabel):
		return "model"
	case errors.Is(err, errors.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, errors.ErrUnauthorized), errors.Is(err, errors.ErrForbidden):
		return "auth"
	default:
		return "internal"
	}
}

// RecordPrediction records a successful prediction
func RecordPrediction(category, season, source string, cached bool, confidence float64, total time.Duration) {
	c := "false"
	if cached {
		c = "true"
	}
	Predictions.WithLabelValues(category, season, source, c).Inc()
	PredictionLatency.WithLabelValues(category, "total").Observe(total.Seconds())
	if !cached {
		PredictionConfidence.WithLabelValues(category).Observe(confidence)
	}
}

// RecordPredictionError records a failed prediction
func RecordPredictionError(category string, err error) {
	PredictionErrors.WithLabelValues(category, ErrorReason(err)).Inc()
}

// RecordStage records the latency of one pipeline stage
func RecordStage(category, stage string, d time.Duration) {
	PredictionLatency.WithLabelValues(category, stage).Observe(d.Seconds())
}

// RecordSilentColumns publishes how many trained columns never fired in the audit window
func RecordSilentColumns(category string, silent int) {
	SchemaDrift.WithLabelValues(category, "silent_columns").Set(float64(silent))
}

// RecordSchemaDrift publishes the latest audit result for a category
func RecordSchemaDrift(category string, unproducible, unencoded int) {
	SchemaDrift.WithLabelValues(category, "unproducible_columns").Set(float64(unproducible))
	SchemaDrift.WithLabelValues(category, "unencoded_values").Set(float64(unencoded))
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}
