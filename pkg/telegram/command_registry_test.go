package telegram

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seasoncast/pkg/errors"
	"seasoncast/pkg/logger"
)

type recordingBot struct {
	mu   sync.Mutex
	sent []string
}

func (b *recordingBot) Start(ctx context.Context) error { return nil }
func (b *recordingBot) Stop()                           {}
func (b *recordingBot) SetHandler(func(Update))         {}

func (b *recordingBot) SendMessage(ctx context.Context, chatID int64, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, text)
	return nil
}

func (b *recordingBot) last() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.sent) == 0 {
		return ""
	}
	return b.sent[len(b.sent)-1]
}

func TestCommandRegistry_Routing(t *testing.T) {
	bot := &recordingBot{}
	reg := NewCommandRegistry(bot, logger.NewNop())

	var got *CommandContext
	reg.Register(CommandConfig{
		Name:    "fields",
		Aliases: []string{"f"},
		Handler: func(ctx *CommandContext) error {
			got = ctx
			return ctx.Reply("ok")
		},
	})
	reg.Register(CommandConfig{Name: "secret", Hidden: true, Handler: func(*CommandContext) error { return nil }})

	require.NoError(t, reg.Handle(context.Background(), 7, 8, "F", "dress", "/f dress"))
	require.NotNil(t, got)
	assert.Equal(t, "fields", got.Command)
	assert.Equal(t, "dress", got.Args)
	assert.Equal(t, int64(8), got.ChatID)
	assert.Equal(t, "ok", bot.last())

	require.NoError(t, reg.Handle(context.Background(), 7, 8, "nope", "", "/nope"))
	assert.Contains(t, bot.last(), "Unknown command")

	assert.True(t, reg.HasCommand("fields"))
	assert.Len(t, reg.GetCommands(false), 1)
	assert.Len(t, reg.GetCommands(true), 2)

	assert.Panics(t, func() { reg.Register(CommandConfig{Name: "broken"}) })
}

func TestCommandRegistry_Errors(t *testing.T) {
	bot := &recordingBot{}
	reg := NewCommandRegistry(bot, logger.NewNop())
	reg.Register(CommandConfig{Name: "bad", Handler: func(*CommandContext) error {
		return ValidationError{Message: "Unknown category"}
	}})
	reg.Register(CommandConfig{Name: "boom", Handler: func(*CommandContext) error {
		return errors.New("db down")
	}})

	require.NoError(t, reg.Handle(context.Background(), 1, 1, "bad", "", ""))
	assert.Equal(t, "❌ Unknown category", bot.last())

	require.NoError(t, reg.Handle(context.Background(), 1, 1, "boom", "", ""))
	assert.Contains(t, bot.last(), "Something went wrong")
}

func TestMiddleware(t *testing.T) {
	bot := &recordingBot{}
	reg := NewCommandRegistry(bot, logger.NewNop())
	reg.Use(RecoveryMiddleware(logger.NewNop()))
	reg.Use(RateLimitMiddleware(2, logger.NewNop()))

	var recorded []string
	reg.Use(MetricsMiddleware(func(command string, success bool, d time.Duration) {
		recorded = append(recorded, command)
	}))

	calls := 0
	reg.Register(CommandConfig{Name: "panic", Handler: func(*CommandContext) error {
		calls++
		panic("boom")
	}})
	reg.Register(CommandConfig{
		Name:       "admin",
		Middleware: []CommandMiddleware{AdminOnlyMiddleware([]int64{42})},
		Handler:    func(ctx *CommandContext) error { return ctx.Reply("welcome") },
	})

	require.NoError(t, reg.Handle(context.Background(), 1, 1, "panic", "", ""))
	assert.Contains(t, bot.last(), "Something went wrong")
	assert.Equal(t, 1, calls)

	// second command of user 1 still within burst, but not an admin
	require.NoError(t, reg.Handle(context.Background(), 1, 1, "admin", "", ""))
	assert.Contains(t, bot.last(), "administrator")

	// third command of user 1 is rate limited
	require.NoError(t, reg.Handle(context.Background(), 1, 1, "admin", "", ""))
	assert.Contains(t, bot.last(), "Slow down")

	require.NoError(t, reg.Handle(context.Background(), 42, 42, "admin", "", ""))
	assert.Equal(t, "welcome", bot.last())
	// the panicking call unwinds past the metrics middleware and the limited call never reaches it
	assert.Equal(t, []string{"admin", "admin"}, recorded)
}
