package telegram

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"seasoncast/pkg/logger"
)

// LoggingMiddleware logs command execution with timing
func LoggingMiddleware(log *logger.Logger) CommandMiddleware {
	return func(next CommandHandler) CommandHandler {
		return func(ctx *CommandContext) error {
			start := time.Now()

			err := next(ctx)

			log.Infow("Command handled",
				"command", ctx.Command,
				"telegram_id", ctx.TelegramID,
				"duration_ms", time.Since(start).Milliseconds(),
				"failed", err != nil,
			)
			return err
		}
	}
}

// RecoveryMiddleware recovers from panics in command handlers
func RecoveryMiddleware(log *logger.Logger) CommandMiddleware {
	return func(next CommandHandler) CommandHandler {
		return func(ctx *CommandContext) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Errorw("Command handler panicked",
						"command", ctx.Command,
						"telegram_id", ctx.TelegramID,
						"panic", r,
					)
					err = fmt.Errorf("command %s panicked: %v", ctx.Command, r)
				}
			}()

			return next(ctx)
		}
	}
}

// RateLimitMiddleware limits each user to perMinute commands with a token bucket
func RateLimitMiddleware(perMinute int, log *logger.Logger) CommandMiddleware {
	var (
		mu       sync.Mutex
		limiters = make(map[int64]*rate.Limiter)
	)

	limiterFor := func(userID int64) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[userID]
		if !ok {
			l = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
			limiters[userID] = l
		}
		return l
	}

	return func(next CommandHandler) CommandHandler {
		return func(ctx *CommandContext) error {
			if !limiterFor(ctx.TelegramID).Allow() {
				log.Warnw("Rate limit exceeded",
					"telegram_id", ctx.TelegramID,
					"command", ctx.Command,
				)
				return ctx.Reply("⏱️ Slow down! Please wait a moment before trying again.")
			}
			return next(ctx)
		}
	}
}

// AdminOnlyMiddleware restricts a command to the given Telegram user IDs
func AdminOnlyMiddleware(adminIDs []int64) CommandMiddleware {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return func(next CommandHandler) CommandHandler {
		return func(ctx *CommandContext) error {
			if _, ok := admins[ctx.TelegramID]; !ok {
				return ctx.Reply("❌ This command requires administrator privileges.")
			}
			return next(ctx)
		}
	}
}

// MetricsMiddleware tracks command usage metrics
func MetricsMiddleware(recordMetric func(command string, success bool, duration time.Duration)) CommandMiddleware {
	return func(next CommandHandler) CommandHandler {
		return func(ctx *CommandContext) error {
			start := time.Now()
			err := next(ctx)
			recordMetric(ctx.Command, err == nil, time.Since(start))
			return err
		}
	}
}
