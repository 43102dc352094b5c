package bootstrap

import (
	"context"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jmoiron/sqlx"

	chclient "seasoncast/internal/adapters/clickhouse"
	"seasoncast/internal/adapters/config"
	errnoop "seasoncast/internal/adapters/errors/noop"
	"seasoncast/internal/adapters/errors/sentry"
	"seasoncast/internal/adapters/kafka"
	pgclient "seasoncast/internal/adapters/postgres"
	redisclient "seasoncast/internal/adapters/redis"
	telegram "seasoncast/internal/adapters/telegram"
	"seasoncast/internal/api"
	"seasoncast/internal/api/health"
	"seasoncast/internal/api/predict"
	tgapi "seasoncast/internal/api/telegram"
	"seasoncast/internal/consumers"
	"seasoncast/internal/domain/garment"
	"seasoncast/internal/encoder"
	"seasoncast/internal/events"
	"seasoncast/internal/metrics"
	"seasoncast/internal/ml"
	"seasoncast/internal/ml/season"
	chrepo "seasoncast/internal/repository/clickhouse"
	pgrepo "seasoncast/internal/repository/postgres"
	redisrepo "seasoncast/internal/repository/redis"
	predictionsvc "seasoncast/internal/services/prediction"
	"seasoncast/pkg/auth"
	"seasoncast/pkg/errors"
	"seasoncast/pkg/logger"
	"seasoncast/pkg/reconnect"
	"seasoncast/pkg/telegram/adapters/tgbotapi"
	"seasoncast/pkg/templates"
)

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s %s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Env)

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)
}

// ========================================
// Phase 2: Schemas & Models
// ========================================

// MustInitModels loads the schema registry, the encoder and every available model
func (c *Container) MustInitModels() {
	registry, enc, err := provideSchemas(c.Config.Encoder, c.Log)
	if err != nil {
		c.Log.Fatalf("failed to load schemas: %v", err)
	}
	c.Models.Registry = registry
	c.Models.Encoder = enc

	c.Models.Classifiers, err = provideClassifiers(c.Config.Models, registry, c.Log)
	if err != nil {
		c.Log.Fatalf("failed to load models: %v", err)
	}
}

// ========================================
// Phase 3: Infrastructure Layer
// ========================================

// MustInitInfrastructure connects the enabled data stores
func (c *Container) MustInitInfrastructure() {
	var err error

	if c.Config.Postgres.Enabled {
		c.Log.Info("Connecting to PostgreSQL...")
		c.PG, err = pgclient.NewClient(c.Config.Postgres)
		if err != nil {
			c.Log.Fatalf("failed to connect postgres: %v", err)
		}
		ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
		defer cancel()
		if err := pgrepo.Migrate(ctx, c.PG.DB()); err != nil {
			c.Log.Fatalf("failed to migrate postgres: %v", err)
		}
		c.Log.Info("✓ PostgreSQL connected")
	}

	if c.Config.ClickHouse.Enabled {
		c.Log.Info("Connecting to ClickHouse...")
		c.CH, err = chclient.NewClient(c.Config.ClickHouse)
		if err != nil {
			c.Log.Fatalf("failed to connect clickhouse: %v", err)
		}
		c.Log.Info("✓ ClickHouse connected")
	}

	if c.Config.Redis.Enabled {
		c.Log.Info("Connecting to Redis...")
		c.Redis, err = redisclient.NewClient(c.Config.Redis)
		if err != nil {
			c.Log.Fatalf("failed to connect redis: %v", err)
		}
		c.Log.Info("✓ Redis connected")
	}
}

// ========================================
// Phase 4: Domain Layer - Repositories
// ========================================

// MustInitRepositories builds the sinks for the connected stores
func (c *Container) MustInitRepositories() {
	if c.PG != nil {
		c.Repos.Predictions = pgrepo.NewPredictionRepository(c.PG.DB())
	}
	if c.Redis != nil {
		c.Repos.Cache = redisrepo.NewPredictionCache(c.Redis, c.Config.Cache.PredictionTTL)
	}
	if c.CH != nil {
		c.Repos.FeatureLog = chrepo.NewFeatureLogRepository(c.CH.Conn(), chrepo.FeatureLogConfig{
			BatchSize:     c.Config.ClickHouse.BatchSize,
			FlushInterval: c.Config.ClickHouse.FlushInterval,
		})
		ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
		defer cancel()
		if err := c.Repos.FeatureLog.EnsureTable(ctx); err != nil {
			c.Log.Fatalf("failed to create feature log table: %v", err)
		}
	}

	c.Log.Infow("✓ Repositories initialized",
		"history", c.Repos.Predictions != nil,
		"cache", c.Repos.Cache != nil,
		"feature_log", c.Repos.FeatureLog != nil,
	)
}

// ========================================
// Phase 5: External Adapters
// ========================================

// MustInitAdapters initializes Kafka producer, publisher and request consumers
func (c *Container) MustInitAdapters() {
	if !c.Config.Kafka.Enabled {
		c.Log.Info("Kafka disabled")
		return
	}

	c.Adapters.KafkaProducer = provideKafkaProducer(c.Config, c.Log)
	c.Adapters.Publisher = events.NewPredictionPublisher(c.Adapters.KafkaProducer, c.Config.Kafka.CompletedTopic)

	for i := 0; i < c.Config.Kafka.ConsumerWorkers; i++ {
		c.Adapters.RequestConsumers = append(c.Adapters.RequestConsumers,
			provideKafkaConsumer(c.Config, c.Config.Kafka.RequestedTopic, c.Log))
	}
}

// ========================================
// Phase 6: Domain Layer - Services
// ========================================

// MustInitServices builds the prediction service over whichever sinks exist
func (c *Container) MustInitServices() {
	deps := predictionsvc.Deps{
		Registry:   c.Models.Registry,
		Encoder:    c.Models.Encoder,
		Classifier: c.Models.Classifiers,
		Logger:     c.Log,
	}
	// Assigned one by one so a missing store stays a nil interface
	if c.Repos.Predictions != nil {
		deps.Repository = c.Repos.Predictions
	}
	if c.Repos.Cache != nil {
		deps.Cache = c.Repos.Cache
	}
	if c.Repos.FeatureLog != nil {
		deps.FeatureLog = c.Repos.FeatureLog
	}
	if c.Adapters.Publisher != nil {
		deps.Publisher = c.Adapters.Publisher
	}

	svc, err := predictionsvc.NewService(deps)
	if err != nil {
		c.Log.Fatalf("failed to create prediction service: %v", err)
	}
	c.Services.Prediction = svc

	// Fail policy refuses to serve with drifted schemas
	if _, err := svc.AuditSchemas(); err != nil {
		if c.Models.Encoder.Policy() == encoder.DriftFail {
			c.Log.Fatalf("schema audit failed: %v", err)
		}
		c.Log.Warnw("Schema audit reported drift", "error", err)
	}

	c.Log.Info("✓ Services initialized")
}

// ========================================
// Phase 7: Application Layer
// ========================================

// MustInitApplication wires metrics, health checks, HTTP and Telegram front-ends
func (c *Container) MustInitApplication() {
	metrics.Init()
	c.registerCustomCollector()

	c.Application.HealthHandler = health.New(c.Log, c.Config.App.Name, c.Config.App.Version)
	c.registerHealthChecks()

	c.Application.PredictHandler = predict.NewHandler(c.Services.Prediction, c.Config.HTTP.MaxBatchRecords, c.Log)
	if c.Config.HTTP.JWTSecret != "" {
		c.Application.PredictHandler.WithAuth(provideTokenService(c.Config))
		c.Log.Info("✓ Prediction history requires a bearer token")
	}

	var webhook *tgapi.WebhookHandler
	if c.Config.Telegram.Enabled {
		bot, handler, err := provideTelegramBot(c.Config, c.Services.Prediction, c.Log)
		if err != nil {
			c.Log.Fatalf("failed to init telegram bot: %v", err)
		}
		c.Application.TelegramBot = bot
		c.Application.TelegramHandler = handler

		if c.Config.Telegram.WebhookURL != "" {
			webhook = tgapi.NewWebhookHandler(bot, c.Log)
			c.Log.Infow("✓ Telegram webhook mode enabled", "url", c.Config.Telegram.WebhookURL)
		} else {
			c.Log.Info("✓ Telegram polling mode enabled")
		}
	}

	c.Application.HTTPServer = api.NewServer(api.ServerConfig{
		Port:            c.Config.HTTP.Port,
		ServiceName:     c.Config.App.Name,
		Version:         c.Config.App.Version,
		ReadTimeout:     c.Config.HTTP.ReadTimeout,
		WriteTimeout:    c.Config.HTTP.WriteTimeout,
		RateLimit:       c.Config.HTTP.RateLimit,
		RateBurst:       c.Config.HTTP.RateBurst,
		TelegramWebhook: webhook,
	}, c.Application.HealthHandler, c.Application.PredictHandler, c.Log)
}

// ========================================
// Phase 8: Background Processing
// ========================================

// MustInitBackground creates the worker scheduler and Kafka request consumers
func (c *Container) MustInitBackground() {
	c.Background.WorkerScheduler = provideWorkers(c.Config, c.Services.Prediction, c.Repos.FeatureLog, c.Log)
	c.Application.HealthHandler.Register("workers", c.Background.WorkerScheduler)

	for _, source := range c.Adapters.RequestConsumers {
		c.Background.RequestConsumers = append(c.Background.RequestConsumers,
			consumers.NewPredictionRequestConsumer(source, c.Services.Prediction, c.Log))
	}
	if len(c.Adapters.RequestConsumers) > 0 {
		sources := c.Adapters.RequestConsumers
		c.Application.HealthHandler.Register("kafka", health.CheckFunc(func(context.Context) error {
			for _, source := range sources {
				if err := source.Healthy(); err != nil {
					return err
				}
			}
			return nil
		}))
	}
}

func (c *Container) registerCustomCollector() {
	var (
		db           *sqlx.DB
		featureStats metrics.FeatureLogStats
	)
	if c.PG != nil {
		db = c.PG.DB()
	}
	if c.Repos.FeatureLog != nil {
		featureStats = c.Repos.FeatureLog
	}
	if db == nil && featureStats == nil {
		return
	}
	metrics.RegisterCustomCollector(metrics.NewCustomCollector(c.Log, db, featureStats))
}

func (c *Container) registerHealthChecks() {
	h := c.Application.HealthHandler

	h.Register("models", health.CheckFunc(func(context.Context) error {
		if len(c.Models.Classifiers.Categories()) == 0 {
			return errors.Wrap(errors.ErrModelNotLoaded, "no season model loaded")
		}
		return nil
	}))
	if c.PG != nil {
		h.Register("postgres", c.PG)
	}
	if c.Redis != nil {
		h.Register("redis", c.Redis)
	}
	if c.CH != nil {
		h.Register("clickhouse", c.CH)
	}
}

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, cfg.App.Version)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("✓ Error tracking initialized (Sentry)")
	return tracker
}

func provideSchemas(cfg config.EncoderConfig, log *logger.Logger) (*garment.Registry, *encoder.Encoder, error) {
	policy, err := encoder.ParseDriftPolicy(cfg.DriftPolicy)
	if err != nil {
		return nil, nil, err
	}

	fsys := garment.DefaultSchemaFS()
	if cfg.SchemaDir != "" {
		fsys = garment.SchemaFS(cfg.SchemaDir)
	}
	registry, err := garment.LoadRegistry(fsys)
	if err != nil {
		return nil, nil, err
	}

	for _, category := range registry.Categories() {
		schema, _ := registry.Get(category)
		log.Infow("✓ Schema loaded",
			"category", category,
			"version", schema.Version,
			"fields", len(schema.Fields),
			"columns", schema.Width(),
		)
	}
	return registry, encoder.New(policy), nil
}

// provideClassifiers loads every model file that exists; a missing file leaves
// its category encodable but answering ErrModelNotLoaded
func provideClassifiers(cfg config.ModelsConfig, registry *garment.Registry, log *logger.Logger) (*season.Set, error) {
	paths := make(map[garment.Category]string)
	for category, path := range map[garment.Category]string{
		garment.CategoryDress:  cfg.DressModelPath,
		garment.CategoryJacket: cfg.JacketModelPath,
	} {
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			log.Warnw("Season model unavailable", "category", category, "path", path, "error", err)
			continue
		}
		log.Infow("Found season model", "category", category, "path", path, "size", humanize.Bytes(uint64(info.Size())))
		paths[category] = path
	}

	if len(paths) == 0 {
		log.Warn("No season models loaded, predictions will be rejected")
		return season.NewSet(), nil
	}

	if err := ml.InitRuntime(cfg.ONNXLibraryPath); err != nil {
		return nil, err
	}

	set, err := season.LoadSet(registry, paths, ml.ModelConfig{
		InputName:         cfg.InputName,
		LabelOutput:       cfg.LabelOutput,
		ProbabilityOutput: cfg.ProbabilityOutput,
	})
	if err != nil {
		return nil, err
	}
	log.Infow("✓ Season models loaded", "categories", set.Categories())
	return set, nil
}

func provideKafkaProducer(cfg *config.Config, log *logger.Logger) *kafka.Producer {
	log.Info("Initializing Kafka producer...")
	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Async:   false,
	})
	log.Info("✓ Kafka producer initialized")
	return producer
}

func provideKafkaConsumer(cfg *config.Config, topic string, log *logger.Logger) *kafka.Consumer {
	log.Infow("Initializing Kafka consumer", "topic", topic)
	return kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topic:   topic,
		Backoff: reconnect.Config{
			MaxBackoff: cfg.Kafka.RetryMaxBackoff,
			MaxRetries: cfg.Kafka.RetryMaxFailures,
			Jitter:     0.2,
		},
	})
}

func provideTokenService(cfg *config.Config) *auth.JWTService {
	return auth.NewJWTService(cfg.HTTP.JWTSecret, cfg.HTTP.JWTIssuer, cfg.HTTP.TokenTTL)
}

func provideTelegramBot(cfg *config.Config, svc telegram.PredictionService, log *logger.Logger) (*tgbotapi.Bot, *telegram.Handler, error) {
	log.Info("Initializing Telegram bot...")

	bot, err := tgbotapi.NewBot(tgbotapi.Config{
		Token:       cfg.Telegram.BotToken,
		Debug:       cfg.Telegram.Debug,
		Timeout:     cfg.Telegram.PollTimeout,
		WebhookMode: cfg.Telegram.WebhookURL != "",
		RateLimit:   cfg.Telegram.RateLimit,
	}, log)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Telegram.WebhookURL != "" {
		if err := bot.SetWebhook(cfg.Telegram.WebhookURL); err != nil {
			return nil, nil, err
		}
	}

	tmpl := templates.Get()
	if cfg.Telegram.TemplateDir != "" {
		tmpl, err = templates.NewRegistry(cfg.Telegram.TemplateDir)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to load telegram templates")
		}
		log.Infow("Using telegram templates from disk", "dir", cfg.Telegram.TemplateDir, "templates", len(tmpl.List()))
	}

	commands := telegram.NewCommands(svc, telegram.CommandsConfig{
		AdminIDs:          cfg.Telegram.AdminIDs,
		StatsWindow:       cfg.Workers.PredictionStatsWindow,
		UserRatePerMinute: cfg.Telegram.UserRatePerMinute,
		Templates:         tmpl,
	}, log)
	handler := telegram.NewHandler(bot, commands, log)
	bot.SetHandler(handler.HandleUpdate)

	log.Info("✓ Telegram bot initialized")
	return bot, handler, nil
}
