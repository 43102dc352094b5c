package bootstrap

import (
	"context"
	"sync"
	"time"

	chclient "seasoncast/internal/adapters/clickhouse"
	"seasoncast/internal/adapters/kafka"
	pgclient "seasoncast/internal/adapters/postgres"
	redisclient "seasoncast/internal/adapters/redis"
	"seasoncast/internal/api"
	"seasoncast/internal/ml"
	"seasoncast/internal/ml/season"
	chrepo "seasoncast/internal/repository/clickhouse"
	"seasoncast/internal/workers"
	"seasoncast/pkg/errors"
	"seasoncast/pkg/logger"
	"seasoncast/pkg/telegram/adapters/tgbotapi"
)

// Lifecycle manages graceful startup and shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		shutdownTimeout: 60 * time.Second,
	}
}

// ShutdownTargets lists everything Shutdown closes; nil members are skipped
type ShutdownTargets struct {
	HTTPServer       *api.Server
	WorkerScheduler  *workers.Scheduler
	TelegramBot      *tgbotapi.Bot
	RequestConsumers []*kafka.Consumer
	KafkaProducer    *kafka.Producer
	FeatureLog       *chrepo.FeatureLogRepository
	Classifiers      *season.Set
	PG               *pgclient.Client
	CH               *chclient.Client
	Redis            *redisclient.Client
	ErrorTracker     errors.Tracker
}

// Shutdown performs coordinated cleanup of all components in order:
// stop intake, drain in-flight work, flush sinks, then close stores.
func (l *Lifecycle) Shutdown(wg *sync.WaitGroup, t ShutdownTargets, log *logger.Logger) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	// ========================================
	// Step 1: Stop HTTP Server (5s timeout)
	// ========================================
	log.Info("[1/9] Stopping HTTP server...")
	if t.HTTPServer != nil {
		httpCtx, httpCancel := context.WithTimeout(shutdownCtx, 5*time.Second)
		if err := t.HTTPServer.Shutdown(httpCtx); err != nil {
			log.Errorw("HTTP server shutdown failed", "error", err)
		} else {
			log.Info("✓ HTTP server stopped")
		}
		httpCancel()
	}

	// ========================================
	// Step 2: Stop Telegram bot
	// ========================================
	log.Info("[2/9] Stopping Telegram bot...")
	if t.TelegramBot != nil {
		t.TelegramBot.Stop()
	}

	// ========================================
	// Step 3: Stop Background Workers
	// ========================================
	log.Info("[3/9] Stopping background workers...")
	if t.WorkerScheduler != nil && t.WorkerScheduler.IsRunning() {
		if err := t.WorkerScheduler.Stop(); err != nil {
			log.Errorw("Workers shutdown failed", "error", err)
		} else {
			log.Info("✓ Workers stopped")
		}
	}

	// ========================================
	// Step 4: Close Kafka Consumers
	// Closing unblocks FetchMessage before waiting for goroutines
	// ========================================
	log.Info("[4/9] Closing Kafka consumers...")
	for i, consumer := range t.RequestConsumers {
		if err := consumer.Close(); err != nil {
			log.Errorw("Kafka consumer close failed", "consumer", i, "error", err)
		}
	}

	// ========================================
	// Step 5: Wait for Consumer Goroutines
	// ========================================
	log.Info("[5/9] Waiting for goroutines...")
	l.waitForGoroutines(wg, 10*time.Second, log)

	// ========================================
	// Step 6: Flush feature log and close Kafka producer
	// ========================================
	log.Info("[6/9] Flushing sinks...")
	if t.FeatureLog != nil {
		if err := t.FeatureLog.Stop(shutdownCtx); err != nil {
			log.Errorw("Feature log flush failed", "error", err)
		} else {
			log.Info("✓ Feature log flushed")
		}
	}
	if t.KafkaProducer != nil {
		if err := t.KafkaProducer.Close(); err != nil {
			log.Errorw("Kafka producer close failed", "error", err)
		} else {
			log.Info("✓ Kafka producer closed")
		}
	}

	// ========================================
	// Step 7: Release model sessions
	// ========================================
	log.Info("[7/9] Releasing models...")
	if t.Classifiers != nil {
		t.Classifiers.Close()
		if err := ml.ShutdownRuntime(); err != nil {
			log.Warnw("ONNX runtime shutdown failed", "error", err)
		}
	}

	// ========================================
	// Step 8: Flush Error Tracker
	// ========================================
	log.Info("[8/9] Flushing error tracker...")
	l.flushErrorTracker(shutdownCtx, t.ErrorTracker, log)

	// ========================================
	// Step 9: Close Database Connections
	// LAST - other components may need them during shutdown
	// ========================================
	log.Info("[9/9] Closing database connections...")
	l.closeDatabases(t.PG, t.CH, t.Redis, log)

	if err := logger.Sync(); err != nil {
		log.Debugw("Log sync completed with warnings", "error", err)
	}
	log.Info("✅ Graceful shutdown complete")
}

// waitForGoroutines waits for all goroutines with a timeout
func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("✓ All goroutines finished")
	case <-time.After(timeout):
		log.Warnw("⚠ Some goroutines did not finish within timeout", "timeout", timeout)
	}
}

// flushErrorTracker flushes the error tracker (Sentry, etc.)
func (l *Lifecycle) flushErrorTracker(ctx context.Context, tracker errors.Tracker, log *logger.Logger) {
	if tracker == nil {
		return
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Errorw("Error tracker flush failed", "error", err)
	} else {
		log.Info("✓ Error tracker flushed")
	}
}

// closeDatabases closes all database connections
func (l *Lifecycle) closeDatabases(
	pgClient *pgclient.Client,
	chClient *chclient.Client,
	redisClient *redisclient.Client,
	log *logger.Logger,
) {
	var merr errors.MultiError

	if pgClient != nil {
		if err := pgClient.Close(); err != nil {
			merr.Add(errors.Wrap(err, "postgres"))
		}
	}

	if chClient != nil {
		if err := chClient.Close(); err != nil {
			merr.Add(errors.Wrap(err, "clickhouse"))
		}
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			merr.Add(errors.Wrap(err, "redis"))
		}
	}

	if err := merr.ToError(); err != nil {
		log.Errorw("Database close errors", "error", err)
	} else {
		log.Info("✓ Database connections closed")
	}
}
