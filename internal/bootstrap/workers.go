package bootstrap

import (
	"seasoncast/internal/adapters/config"
	chrepo "seasoncast/internal/repository/clickhouse"
	predictionsvc "seasoncast/internal/services/prediction"
	"seasoncast/internal/workers"
	"seasoncast/internal/workers/monitoring"
	"seasoncast/pkg/logger"
)

// provideWorkers initializes all background workers
func provideWorkers(
	cfg *config.Config,
	svc *predictionsvc.Service,
	featureLog *chrepo.FeatureLogRepository,
	log *logger.Logger,
) *workers.Scheduler {
	log.Info("Initializing workers...")

	scheduler := workers.NewScheduler(log)

	// Keep nil sources as untyped nil so the workers can skip them
	var (
		features monitoring.FeatureCounter
		activity monitoring.ColumnActivitySource
	)
	if featureLog != nil {
		features = featureLog
		activity = featureLog
	}

	scheduler.RegisterWorker(monitoring.NewSchemaAuditorWorker(
		svc,
		activity,
		cfg.Workers.PredictionStatsWindow,
		cfg.Workers.SchemaAuditorInterval,
		true,
	))
	scheduler.RegisterWorker(monitoring.NewPredictionStatsWorker(
		svc,
		features,
		cfg.Workers.PredictionStatsWindow,
		cfg.Workers.PredictionStatsInterval,
		cfg.Postgres.Enabled, // the summary reads stored history
	))

	log.Infow("✓ Workers initialized", "count", len(scheduler.GetWorkers()))
	return scheduler
}
