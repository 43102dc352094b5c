package tgbotapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"seasoncast/pkg/errors"
	"seasoncast/pkg/logger"
	"seasoncast/pkg/telegram"
)

// Bot represents a Telegram bot that implements telegram.Bot interface
type Bot struct {
	api         *tgbotapi.BotAPI
	log         *logger.Logger
	mu          sync.RWMutex
	running     bool
	webhookMode bool
	timeout     int
	msgHandler  func(telegram.Update) // Handler works with abstracted Update
	rateLimiter *rate.Limiter
}

// Config contains Telegram bot configuration
type Config struct {
	Token       string
	Debug       bool
	Timeout     int  // Long polling timeout in seconds
	WebhookMode bool // If true, don't start polling (use webhook instead)
	HTTPTimeout time.Duration
	RateLimit   float64 // Outgoing messages per second (Telegram allows ~30)
	RateBurst   int
}

// NewBot creates a new Telegram bot instance that implements telegram.Bot interface
func NewBot(cfg Config, log *logger.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "telegram bot token is required")
	}

	// Set defaults
	if cfg.Timeout == 0 {
		cfg.Timeout = 60
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = time.Duration(cfg.Timeout+10) * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 20
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = 30
	}

	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create telegram bot")
	}
	api.Debug = cfg.Debug

	log.Infof("Authorized on account %s", api.Self.UserName)

	return &Bot{
		api:         api,
		webhookMode: cfg.WebhookMode,
		timeout:     cfg.Timeout,
		log:         log.With("component", "telegram_bot"),
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}, nil
}

// Start begins polling for updates (or just blocks if webhook mode)
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return errors.New("bot is already running")
	}
	b.running = true
	b.mu.Unlock()

	if b.webhookMode {
		b.log.Infow("Bot running in webhook mode, not starting polling")
		<-ctx.Done()
		b.Stop()
		return nil
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.timeout
	updates := b.api.GetUpdatesChan(u)

	b.log.Infow("✓ Telegram bot started, waiting for updates")

	for {
		select {
		case <-ctx.Done():
			b.log.Infow("Stopping bot due to context cancellation")
			b.Stop()
			return nil

		case tgUpdate, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(tgUpdate)
		}
	}
}

// Stop stops the bot
func (b *Bot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return
	}
	if !b.webhookMode {
		b.api.StopReceivingUpdates()
	}
	b.running = false
	b.log.Infow("✓ Telegram bot stopped")
}

// SetHandler sets the message handler (uses abstracted Update type)
func (b *Bot) SetHandler(handler func(telegram.Update)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgHandler = handler
}

// SendMessage sends a Markdown text message
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := b.rateLimiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter wait failed")
	}

	start := time.Now()
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := b.api.Send(msg); err != nil {
		b.log.Errorw("Failed to send message",
			"chat_id", chatID,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return errors.Wrap(err, "failed to send telegram message")
	}
	return nil
}

// HandleWebhookRequest parses a webhook POST and dispatches the update
func (b *Bot) HandleWebhookRequest(r *http.Request) (int, error) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrInvalidInput, "webhook update: %v", err)
	}
	b.dispatch(*update)
	return update.UpdateID, nil
}

// SetWebhook configures the bot to use webhook mode
func (b *Bot) SetWebhook(webhookURL string) error {
	webhookConfig, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return errors.Wrap(err, "failed to create webhook config")
	}
	webhookConfig.MaxConnections = 40
	webhookConfig.AllowedUpdates = []string{"message"}

	if _, err := b.api.Request(webhookConfig); err != nil {
		return errors.Wrap(err, "failed to set webhook")
	}

	b.log.Infow("Webhook configured successfully", "url", webhookURL)
	return nil
}

func (b *Bot) dispatch(tgUpdate tgbotapi.Update) {
	b.mu.RLock()
	handler := b.msgHandler
	b.mu.RUnlock()

	if handler == nil {
		b.log.Debugw("Dropping update, no handler registered", "update_id", tgUpdate.UpdateID)
		return
	}
	go handler(ConvertUpdate(tgUpdate))
}

// ConvertUpdate maps a library update onto the framework type
func ConvertUpdate(u tgbotapi.Update) telegram.Update {
	update := telegram.Update{UpdateID: u.UpdateID}
	if u.Message == nil {
		return update
	}

	msg := &telegram.Message{
		MessageID: u.Message.MessageID,
		Text:      u.Message.Text,
	}
	if u.Message.From != nil {
		msg.From = &telegram.User{
			ID:        u.Message.From.ID,
			FirstName: u.Message.From.FirstName,
			LastName:  u.Message.From.LastName,
			Username:  u.Message.From.UserName,
			IsBot:     u.Message.From.IsBot,
		}
	}
	if u.Message.Chat != nil {
		msg.Chat = &telegram.Chat{ID: u.Message.Chat.ID, Type: u.Message.Chat.Type}
	}
	msg.ParseCommand()

	update.Message = msg
	return update
}

// Verify Bot implements telegram.Bot interface at compile time
var _ telegram.Bot = (*Bot)(nil)
