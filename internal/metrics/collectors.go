package metrics

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	chbatch "seasoncast/pkg/clickhouse"
	"seasoncast/pkg/logger"
)

// FeatureLogStats exposes batch writer counters
type FeatureLogStats interface {
	Stats() chbatch.BatchWriterStats
}

// CustomCollector collects gauges that live in storage rather than in process counters
type CustomCollector struct {
	log        *logger.Logger
	postgres   *sqlx.DB
	featureLog FeatureLogStats

	predictions24h   *prometheus.Desc
	featureBuffered  *prometheus.Desc
	featureDropped   *prometheus.Desc
	featureFlushedAt *prometheus.Desc
}

// NewCustomCollector creates a new custom metrics collector. Either source may be nil.
func NewCustomCollector(log *logger.Logger, postgres *sqlx.DB, featureLog FeatureLogStats) *CustomCollector {
	return &CustomCollector{
		log:        log,
		postgres:   postgres,
		featureLog: featureLog,

		predictions24h: prometheus.NewDesc(
			"seasoncast_predictions_stored_24h",
			"Predictions stored in the last 24h by category and season",
			[]string{"category", "season"}, nil,
		),
		featureBuffered: prometheus.NewDesc(
			"seasoncast_feature_log_buffered_rows",
			"Feature vectors waiting to be flushed to ClickHouse",
			nil, nil,
		),
		featureDropped: prometheus.NewDesc(
			"seasoncast_feature_log_dropped_rows",
			"Feature vectors lost to failed flushes since start",
			nil, nil,
		),
		featureFlushedAt: prometheus.NewDesc(
			"seasoncast_feature_log_last_flush_age_seconds",
			"Seconds since the last feature log flush",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *CustomCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.predictions24h
	ch <- c.featureBuffered
	ch <- c.featureDropped
	ch <- c.featureFlushedAt
}

// Collect implements prometheus.Collector
func (c *CustomCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.collectStoredPredictions(ctx, ch)
	c.collectFeatureLog(ch)
}

func (c *CustomCollector) collectStoredPredictions(ctx context.Context, ch chan<- prometheus.Metric) {
	if c.postgres == nil {
		return
	}

	type seasonStat struct {
		Category string `db:"category"`
		Season   string `db:"season"`
		Count    int64  `db:"count"`
	}

	var stats []seasonStat
	err := c.postgres.SelectContext(ctx, &stats, `
		SELECT category, season, COUNT(*) AS count
		FROM predictions
		WHERE created_at >= NOW() - INTERVAL '24 hours'
		GROUP BY category, season
	`)
	if err != nil {
		c.log.Warnw("Failed to collect stored prediction metric", "error", err)
		return
	}

	for _, s := range stats {
		ch <- prometheus.MustNewConstMetric(c.predictions24h, prometheus.GaugeValue, float64(s.Count), s.Category, s.Season)
	}
}

func (c *CustomCollector) collectFeatureLog(ch chan<- prometheus.Metric) {
	if c.featureLog == nil {
		return
	}
	stats := c.featureLog.Stats()
	ch <- prometheus.MustNewConstMetric(c.featureBuffered, prometheus.GaugeValue, float64(stats.BufferSize))
	ch <- prometheus.MustNewConstMetric(c.featureDropped, prometheus.CounterValue, float64(stats.Dropped))
	ch <- prometheus.MustNewConstMetric(c.featureFlushedAt, prometheus.GaugeValue, stats.LastFlushAge.Seconds())
}

// RegisterCustomCollector registers the custom collector
func RegisterCustomCollector(collector *CustomCollector) {
	prometheus.MustRegister(collector)
}
