package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"seasoncast/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Models        ModelsConfig
	Encoder       EncoderConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Telegram      TelegramConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
	Cache         CacheConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"seasoncast"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type HTTPConfig struct {
	Port            int           `envconfig:"HTTP_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"15s"`
	RateLimit       float64       `envconfig:"HTTP_RATE_LIMIT" default:"50"` // requests per second, 0 disables
	RateBurst       int           `envconfig:"HTTP_RATE_BURST" default:"100"`
	MaxBatchRecords int           `envconfig:"HTTP_MAX_BATCH_RECORDS" default:"500"`

	// Prediction history routes require a bearer token when a secret is set
	JWTSecret string        `envconfig:"API_JWT_SECRET"`
	JWTIssuer string        `envconfig:"API_JWT_ISSUER" default:"seasoncast"`
	TokenTTL  time.Duration `envconfig:"API_TOKEN_TTL" default:"720h"`
}

// ModelsConfig locates the trained classifiers.
// Empty model paths leave the category encodable but not predictable.
type ModelsConfig struct {
	DressModelPath    string `envconfig:"DRESS_MODEL_PATH" default:"models/dress_season.onnx"`
	JacketModelPath   string `envconfig:"JACKET_MODEL_PATH" default:"models/jacket_season.onnx"`
	ONNXLibraryPath   string `envconfig:"ONNX_LIBRARY_PATH"`
	InputName         string `envconfig:"ONNX_INPUT_NAME" default:"float_input"`
	LabelOutput       string `envconfig:"ONNX_LABEL_OUTPUT" default:"output_label"`
	ProbabilityOutput string `envconfig:"ONNX_PROBABILITY_OUTPUT" default:"output_probability"`
}

type EncoderConfig struct {
	SchemaDir   string `envconfig:"SCHEMA_DIR"` // empty uses the schemas built into the binary
	DriftPolicy string `envconfig:"DRIFT_POLICY" default:"warn"`
}

type PostgresConfig struct {
	Enabled  bool   `envconfig:"POSTGRES_ENABLED" default:"true"`
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"postgres"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB" default:"seasoncast"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Enabled       bool          `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
	Host          string        `envconfig:"CLICKHOUSE_HOST" default:"localhost"`
	Port          int           `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User          string        `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password      string        `envconfig:"CLICKHOUSE_PASSWORD"`
	Database      string        `envconfig:"CLICKHOUSE_DB" default:"seasoncast"`
	BatchSize     int           `envconfig:"CLICKHOUSE_BATCH_SIZE" default:"500"`
	FlushInterval time.Duration `envconfig:"CLICKHOUSE_FLUSH_INTERVAL" default:"5s"`
}

func (c ClickHouseConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"true"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Enabled         bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers         []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	GroupID         string   `envconfig:"KAFKA_GROUP_ID" default:"seasoncast"`
	RequestedTopic  string   `envconfig:"KAFKA_REQUESTED_TOPIC" default:"predictions.requested"`
	CompletedTopic  string   `envconfig:"KAFKA_COMPLETED_TOPIC" default:"predictions.completed"`
	ConsumerWorkers int      `envconfig:"KAFKA_CONSUMER_WORKERS" default:"4"`

	RetryMaxBackoff  time.Duration `envconfig:"KAFKA_RETRY_MAX_BACKOFF" default:"30s"`
	RetryMaxFailures int           `envconfig:"KAFKA_RETRY_MAX_FAILURES" default:"10"` // consecutive fetch failures before the consumer reports unhealthy
}

type TelegramConfig struct {
	Enabled           bool    `envconfig:"TELEGRAM_ENABLED" default:"false"`
	BotToken          string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	WebhookURL        string  `envconfig:"TELEGRAM_WEBHOOK_URL"`
	AdminIDs          []int64 `envconfig:"TELEGRAM_ADMIN_IDS"`
	RateLimit         float64 `envconfig:"TELEGRAM_RATE_LIMIT" default:"25"` // messages per second
	UserRatePerMinute int     `envconfig:"TELEGRAM_USER_RATE_PER_MINUTE" default:"20"`
	PollTimeout       int     `envconfig:"TELEGRAM_POLL_TIMEOUT" default:"60"`
	TemplateDir       string  `envconfig:"TELEGRAM_TEMPLATE_DIR"` // empty uses the templates built into the binary
	Debug             bool    `envconfig:"TELEGRAM_DEBUG" default:"false"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig contains intervals for background workers
type WorkerConfig struct {
	SchemaAuditorInterval   time.Duration `envconfig:"WORKER_SCHEMA_AUDITOR_INTERVAL" default:"10m"`
	PredictionStatsInterval time.Duration `envconfig:"WORKER_PREDICTION_STATS_INTERVAL" default:"5m"`
	PredictionStatsWindow   time.Duration `envconfig:"WORKER_PREDICTION_STATS_WINDOW" default:"24h"`
}

type CacheConfig struct {
	PredictionTTL time.Duration `envconfig:"CACHE_PREDICTION_TTL" default:"1h"`
}

// Validate checks cross-field constraints envconfig cannot express
func (c *Config) Validate() error {
	var merr errors.MultiError

	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		merr.Add(errors.NewValidationError("TELEGRAM_BOT_TOKEN", "required when telegram is enabled", ""))
	}
	if c.ErrorTracking.Enabled && c.ErrorTracking.Provider == "sentry" && c.ErrorTracking.SentryDSN == "" {
		merr.Add(errors.NewValidationError("SENTRY_DSN", "required when sentry tracking is enabled", ""))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		merr.Add(errors.NewValidationError("KAFKA_BROKERS", "required when kafka is enabled", ""))
	}
	if c.HTTP.JWTSecret != "" && len(c.HTTP.JWTSecret) < 32 {
		merr.Add(errors.NewValidationError("API_JWT_SECRET", "must be at least 32 characters", len(c.HTTP.JWTSecret)))
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		merr.Add(errors.NewValidationError("HTTP_PORT", "out of range", c.HTTP.Port))
	}

	return merr.ToError()
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// ENV=test switches to .env.test so integration tests never touch local settings
	if os.Getenv("ENV") == "test" {
		_ = godotenv.Load(".env.test")
	} else {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &cfg, nil
}
