package telegram

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"seasoncast/pkg/logger"
)

// CommandContext contains all data for command execution
type CommandContext struct {
	Ctx        context.Context
	TelegramID int64
	ChatID     int64
	Command    string
	Args       string
	RawMessage string
	Bot        Bot // Bot interface for sending messages
}

// Reply sends a message to the chat the command came from
func (c *CommandContext) Reply(text string) error {
	return c.Bot.SendMessage(c.Ctx, c.ChatID, text)
}

// CommandHandler is a function that handles a command
type CommandHandler func(ctx *CommandContext) error

// CommandMiddleware wraps command handlers with additional logic
type CommandMiddleware func(next CommandHandler) CommandHandler

// CommandConfig defines a command registration
type CommandConfig struct {
	Name        string              // Primary command name (e.g., "predict")
	Aliases     []string            // Alternative names
	Description string              // Help text
	Usage       string              // Usage example
	Handler     CommandHandler      // Command handler function
	Middleware  []CommandMiddleware // Command-specific middleware
	Hidden      bool                // Don't show in /help
}

// CommandRegistry manages command registration and routing
type CommandRegistry struct {
	commands   map[string]*CommandConfig // command name -> config
	middleware []CommandMiddleware       // Global middleware
	bot        Bot
	log        *logger.Logger
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry(bot Bot, log *logger.Logger) *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[string]*CommandConfig),
		bot:      bot,
		log:      log.With("component", "command_registry"),
	}
}

// Register registers a command with the registry
func (cr *CommandRegistry) Register(config CommandConfig) {
	if config.Name == "" || config.Handler == nil {
		panic(fmt.Sprintf("invalid command config: name=%q handler set=%v", config.Name, config.Handler != nil))
	}

	cr.commands[config.Name] = &config
	for _, alias := range config.Aliases {
		cr.commands[alias] = &config
	}

	cr.log.Debugw("Registered command",
		"name", config.Name,
		"aliases", config.Aliases,
	)
}

// Use adds global middleware (applied to all commands)
func (cr *CommandRegistry) Use(middleware CommandMiddleware) {
	cr.middleware = append(cr.middleware, middleware)
}

// Handle routes command to registered handler
func (cr *CommandRegistry) Handle(ctx context.Context, telegramID, chatID int64, command, args, rawMessage string) error {
	command = strings.ToLower(strings.TrimSpace(command))

	config, exists := cr.commands[command]
	if !exists {
		cr.log.Debugw("Unknown command",
			"command", command,
			"telegram_id", telegramID,
		)
		return cr.bot.SendMessage(ctx, chatID, fmt.Sprintf("❌ Unknown command: /%s\n\nUse /help to see available commands.", command))
	}

	cmdCtx := &CommandContext{
		Ctx:        ctx,
		TelegramID: telegramID,
		ChatID:     chatID,
		Command:    config.Name,
		Args:       args,
		RawMessage: rawMessage,
		Bot:        cr.bot,
	}

	handler := config.Handler

	// Apply command-specific middleware (reverse order)
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		handler = config.Middleware[i](handler)
	}

	// Apply global middleware (reverse order)
	for i := len(cr.middleware) - 1; i >= 0; i-- {
		handler = cr.middleware[i](handler)
	}

	if err := handler(cmdCtx); err != nil {
		return cr.handleCommandError(cmdCtx, err)
	}
	return nil
}

// GetCommands returns visible commands sorted by name (for /help)
func (cr *CommandRegistry) GetCommands(includeHidden bool) []*CommandConfig {
	commands := make([]*CommandConfig, 0, len(cr.commands))
	for name, config := range cr.commands {
		// aliases point to the same config
		if name != config.Name {
			continue
		}
		if config.Hidden && !includeHidden {
			continue
		}
		commands = append(commands, config)
	}
	sort.Slice(commands, func(i, j int) bool { return commands[i].Name < commands[j].Name })
	return commands
}

// HasCommand checks if command is registered
func (cr *CommandRegistry) HasCommand(command string) bool {
	_, exists := cr.commands[strings.ToLower(strings.TrimSpace(command))]
	return exists
}

// handleCommandError sends validation errors verbatim and a generic message otherwise
func (cr *CommandRegistry) handleCommandError(cmdCtx *CommandContext, err error) error {
	if valErr, ok := err.(ValidationError); ok {
		return cmdCtx.Reply("❌ " + valErr.Message)
	}

	cr.log.Errorw("Command execution failed",
		"command", cmdCtx.Command,
		"telegram_id", cmdCtx.TelegramID,
		"error", err,
	)
	return cmdCtx.Reply("❌ Something went wrong. Please try again.")
}
