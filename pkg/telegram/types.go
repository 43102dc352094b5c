package telegram

import (
	"context"
)

// Bot abstracts the transport so command handlers can be tested without Telegram
type Bot interface {
	// Start polls for updates, or blocks in webhook mode, until ctx is done
	Start(ctx context.Context) error

	// Stop stops receiving updates
	Stop()

	// SetHandler sets the update handler
	SetHandler(handler func(Update))

	// SendMessage sends a Markdown text message, waiting on the send rate limiter
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// ValidationError is a user-facing error; its message is sent back verbatim
type ValidationError struct {
	Field   string
	Message string
}

func (v ValidationError) Error() string {
	return v.Message
}
