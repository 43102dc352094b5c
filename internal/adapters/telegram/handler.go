package telegram

import (
	"context"
	"time"

	"seasoncast/pkg/logger"
	"seasoncast/pkg/telegram"
)

// Handler processes Telegram updates using pkg/telegram framework
type Handler struct {
	bot             telegram.Bot
	commandRegistry *telegram.CommandRegistry
	timeout         time.Duration
	log             *logger.Logger
}

// NewHandler wires the command set into a registry bound to bot
func NewHandler(bot telegram.Bot, commands *Commands, log *logger.Logger) *Handler {
	registry := telegram.NewCommandRegistry(bot, log)
	commands.Register(registry)

	return &Handler{
		bot:             bot,
		commandRegistry: registry,
		timeout:         30 * time.Second,
		log:             log.With("component", "telegram_handler"),
	}
}

// HandleUpdate processes incoming Telegram update.
// This is the main entry point for all updates.
func (h *Handler) HandleUpdate(update telegram.Update) {
	if !update.HasMessage() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.handleMessage(ctx, update.Message); err != nil {
		h.log.Errorw("Failed to handle message",
			"update_id", update.UpdateID,
			"message_id", update.Message.MessageID,
			"error", err,
		)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *telegram.Message) error {
	if msg.From == nil || msg.Chat == nil || msg.From.IsBot {
		return nil
	}

	if msg.IsCommand {
		h.log.Debugw("Routing command",
			"telegram_id", msg.From.ID,
			"command", msg.Command,
			"has_args", msg.Arguments != "",
		)
		return h.commandRegistry.Handle(ctx, msg.From.ID, msg.Chat.ID, msg.Command, msg.Arguments, msg.Text)
	}

	h.log.Debugw("Received non-command message",
		"telegram_id", msg.From.ID,
		"text_length", len(msg.Text),
	)
	return h.bot.SendMessage(ctx, msg.Chat.ID, "I don't understand that message. Use /help to see available commands.")
}
