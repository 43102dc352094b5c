package telegram

import (
	"context"
	"time"

	"seasoncast/internal/domain/garment"
	"seasoncast/internal/domain/prediction"
	"seasoncast/internal/metrics"
	"seasoncast/pkg/errors"
	"seasoncast/pkg/logger"
	"seasoncast/pkg/telegram"
	"seasoncast/pkg/templates"
)

// PredictionService is the part of the prediction service the bot needs
type PredictionService interface {
	Predict(ctx context.Context, category garment.Category, record garment.AttributeRecord, source prediction.Source) (*prediction.Prediction, error)
	Schema(category garment.Category) (*garment.Schema, error)
	Schemas() []*garment.Schema
	SeasonBreakdown(ctx context.Context, since time.Time) ([]prediction.SeasonCount, error)
}

// CommandsConfig tunes the bot commands
type CommandsConfig struct {
	AdminIDs          []int64
	StatsWindow       time.Duration
	UserRatePerMinute int
	Templates         *templates.Registry // nil uses the embedded templates
}

// Commands implements the bot's command set
type Commands struct {
	service PredictionService
	cfg     CommandsConfig
	log     *logger.Logger
}

// NewCommands creates the command set
func NewCommands(service PredictionService, cfg CommandsConfig, log *logger.Logger) *Commands {
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = 24 * time.Hour
	}
	if cfg.UserRatePerMinute <= 0 {
		cfg.UserRatePerMinute = 20
	}
	if cfg.Templates == nil {
		cfg.Templates = templates.Get()
	}
	return &Commands{
		service: service,
		cfg:     cfg,
		log:     log.With("component", "telegram_commands"),
	}
}

// Register installs global middleware and every command on the registry
func (c *Commands) Register(registry *telegram.CommandRegistry) {
	registry.Use(telegram.RecoveryMiddleware(c.log))
	registry.Use(telegram.LoggingMiddleware(c.log))
	registry.Use(telegram.MetricsMiddleware(recordCommand))
	registry.Use(telegram.RateLimitMiddleware(c.cfg.UserRatePerMinute, c.log))

	registry.Register(telegram.CommandConfig{
		Name:        "start",
		Description: "Introduction",
		Handler:     c.handleStart,
		Hidden:      true,
	})
	registry.Register(telegram.CommandConfig{
		Name:        "help",
		Description: "List commands",
		Handler:     c.helpHandler(registry),
	})
	registry.Register(telegram.CommandConfig{
		Name:        "categories",
		Description: "Supported garment categories",
		Handler:     c.handleCategories,
	})
	registry.Register(telegram.CommandConfig{
		Name:        "fields",
		Aliases:     []string{"attributes"},
		Description: "Attributes and permitted values of a category",
		Usage:       "/fields dress",
		Handler:     c.handleFields,
	})
	registry.Register(telegram.CommandConfig{
		Name:        "predict",
		Aliases:     []string{"season"},
		Description: "Predict the season of a garment",
		Usage:       "/predict dress\nFit: slim_fit\nLength: mini",
		Handler:     c.handlePredict,
	})

	if len(c.cfg.AdminIDs) > 0 {
		registry.Register(telegram.CommandConfig{
			Name:        "stats",
			Description: "Season breakdown of stored predictions",
			Handler:     c.handleStats,
			Middleware:  []telegram.CommandMiddleware{telegram.AdminOnlyMiddleware(c.cfg.AdminIDs)},
			Hidden:      true,
		})
	}
}

func recordCommand(command string, success bool, _ time.Duration) {
	status := "success"
	if !success {
		status = "failed"
	}
	metrics.TelegramMessages.WithLabelValues(command, status).Inc()
}

// reply renders a template and sends it to the chat
func (c *Commands) reply(ctx *telegram.CommandContext, id string, data any) error {
	text, err := c.cfg.Templates.Render(id, data)
	if err != nil {
		return err
	}
	return ctx.Reply(text)
}

func (c *Commands) handleStart(ctx *telegram.CommandContext) error {
	return c.reply(ctx, tmplStart, nil)
}

func (c *Commands) helpHandler(registry *telegram.CommandRegistry) telegram.CommandHandler {
	return func(ctx *telegram.CommandContext) error {
		return c.reply(ctx, tmplHelp, registry.GetCommands(false))
	}
}

func (c *Commands) handleCategories(ctx *telegram.CommandContext) error {
	return c.reply(ctx, tmplCategories, newCategoriesView(c.service.Schemas()))
}

func (c *Commands) handleFields(ctx *telegram.CommandContext) error {
	category, err := garment.ParseCategory(ctx.Args)
	if err != nil {
		return telegram.ValidationError{Field: "category", Message: "Usage: /fields <category>. Try /categories"}
	}
	schema, err := c.service.Schema(category)
	if err != nil {
		return telegram.ValidationError{Field: "category", Message: "No schema for " + templates.Code(category.String())}
	}
	return c.reply(ctx, tmplFields, newFieldsView(schema))
}

func (c *Commands) handlePredict(ctx *telegram.CommandContext) error {
	category, record, err := ParsePredictArgs(ctx.Args)
	if err != nil {
		return err
	}

	p, err := c.service.Predict(ctx.Ctx, category, record, prediction.SourceTelegram)
	if err != nil {
		if errors.IsClientError(err) || errors.Is(err, errors.ErrModelNotLoaded) {
			text, rerr := c.cfg.Templates.Render(tmplRejection, newRejectionView(err))
			if rerr != nil {
				return rerr
			}
			return telegram.ValidationError{Field: "record", Message: text}
		}
		return errors.Wrap(err, "predict")
	}
	return c.reply(ctx, tmplPrediction, newPredictionView(p))
}

func (c *Commands) handleStats(ctx *telegram.CommandContext) error {
	since := time.Now().Add(-c.cfg.StatsWindow)
	counts, err := c.service.SeasonBreakdown(ctx.Ctx, since)
	if err != nil {
		if errors.Is(err, errors.ErrUnavailable) {
			return telegram.ValidationError{Field: "history", Message: "Prediction history is disabled"}
		}
		return errors.Wrap(err, "season breakdown")
	}
	return c.reply(ctx, tmplStats, newStatsView(counts, since))
}
