package bootstrap

import (
	"context"
	"sync"

	chclient "seasoncast/internal/adapters/clickhouse"
	"seasoncast/internal/adapters/config"
	"seasoncast/internal/adapters/kafka"
	pgclient "seasoncast/internal/adapters/postgres"
	redisclient "seasoncast/internal/adapters/redis"
	telegram "seasoncast/internal/adapters/telegram"
	"seasoncast/internal/api"
	"seasoncast/internal/api/health"
	"seasoncast/internal/api/predict"
	"seasoncast/internal/consumers"
	"seasoncast/internal/domain/garment"
	"seasoncast/internal/encoder"
	"seasoncast/internal/events"
	"seasoncast/internal/ml/season"
	chrepo "seasoncast/internal/repository/clickhouse"
	pgrepo "seasoncast/internal/repository/postgres"
	redisrepo "seasoncast/internal/repository/redis"
	predictionsvc "seasoncast/internal/services/prediction"
	"seasoncast/internal/workers"
	"seasoncast/pkg/errors"
	"seasoncast/pkg/logger"
	"seasoncast/pkg/telegram/adapters/tgbotapi"
)

// Container holds all application dependencies and their lifecycle.
// Components are organized in initialization order.
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure Layer (Data stores), nil when disabled
	PG    *pgclient.Client
	CH    *chclient.Client
	Redis *redisclient.Client

	// Schemas, encoder and trained models
	Models *Models

	// Domain Layer - Repositories
	Repos *Repositories

	// External Adapters
	Adapters *Adapters

	// Domain Layer - Services
	Services *Services

	// Application Layer
	Application *Application

	// Background Processing
	Background *Background

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Models groups the static schema registry and the loaded classifiers
type Models struct {
	Registry    *garment.Registry
	Encoder     *encoder.Encoder
	Classifiers *season.Set
}

// Repositories groups the prediction sinks
type Repositories struct {
	Predictions *pgrepo.PredictionRepository
	Cache       *redisrepo.PredictionCache
	FeatureLog  *chrepo.FeatureLogRepository
}

// Adapters groups all external adapters
type Adapters struct {
	KafkaProducer    *kafka.Producer
	RequestConsumers []*kafka.Consumer
	Publisher        *events.PredictionPublisher
}

// Services groups all domain services
type Services struct {
	Prediction *predictionsvc.Service
}

// Application groups application layer components
type Application struct {
	HTTPServer      *api.Server
	HealthHandler   *health.Handler
	PredictHandler  *predict.Handler
	TelegramBot     *tgbotapi.Bot
	TelegramHandler *telegram.Handler
}

// Background groups all background processing components
type Background struct {
	WorkerScheduler  *workers.Scheduler
	RequestConsumers []*consumers.PredictionRequestConsumer
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Models:      &Models{},
		Repos:       &Repositories{},
		Adapters:    &Adapters{},
		Services:    &Services{},
		Application: &Application{},
		Background:  &Background{},
		Lifecycle:   NewLifecycle(),
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes all components in the correct order.
// Panics on any initialization error (fail-fast at startup).
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitModels()
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitServices()
	c.MustInitApplication()
	c.MustInitBackground()
}

// Start starts all background components
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	if c.Repos.FeatureLog != nil {
		// Stopped explicitly after consumers drain so late rows still flush
		c.Repos.FeatureLog.Start(context.WithoutCancel(c.Context))
		c.Log.Info("✓ Feature log writer started")
	}

	c.startConsumers()

	if bot := c.Application.TelegramBot; bot != nil {
		c.WG.Add(1)
		go func() {
			defer c.WG.Done()
			if err := bot.Start(c.Context); err != nil {
				c.Log.Errorw("Telegram bot stopped with error", "error", err)
			}
		}()
	}

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel() // Trigger shutdown on fatal HTTP error
		}
	}()

	if err := c.Background.WorkerScheduler.Start(c.Context); err != nil {
		return errors.Wrap(err, "failed to start workers")
	}

	c.Log.Info("✓ All systems operational")
	return nil
}

// startConsumers starts all Kafka consumers in background goroutines
func (c *Container) startConsumers() {
	if len(c.Background.RequestConsumers) == 0 {
		return
	}

	c.WG.Add(len(c.Background.RequestConsumers))
	for i, consumer := range c.Background.RequestConsumers {
		go func() {
			defer c.WG.Done()
			if err := consumer.Start(c.Context); err != nil && c.Context.Err() == nil {
				c.Log.Errorw("Prediction request consumer failed", "worker", i, "error", err)
			}
		}()
	}

	c.Log.Infow("✓ Event consumers started", "consumers", len(c.Background.RequestConsumers))
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	// Cancel application context to signal all other components to stop
	c.Cancel()

	c.Lifecycle.Shutdown(c.WG, ShutdownTargets{
		HTTPServer:       c.Application.HTTPServer,
		WorkerScheduler:  c.Background.WorkerScheduler,
		TelegramBot:      c.Application.TelegramBot,
		RequestConsumers: c.Adapters.RequestConsumers,
		KafkaProducer:    c.Adapters.KafkaProducer,
		FeatureLog:       c.Repos.FeatureLog,
		Classifiers:      c.Models.Classifiers,
		PG:               c.PG,
		CH:               c.CH,
		Redis:            c.Redis,
		ErrorTracker:     c.ErrorTracker,
	}, c.Log)
}
