package telegram

import (
	"strings"
	"unicode"
)

// Update represents an incoming Telegram update (abstraction from tgbotapi)
type Update struct {
	UpdateID int `json:"update_id"`

	// Message is present if this is a regular message
	Message *Message `json:"message,omitempty"`
}

// Message represents a Telegram message
type Message struct {
	MessageID int    `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      *Chat  `json:"chat"`
	Text      string `json:"text,omitempty"`
	IsCommand bool   `json:"-"` // Computed field, not from JSON
	Command   string `json:"-"` // Parsed command (without /)
	Arguments string `json:"-"` // Everything after the command, line breaks kept
}

// User represents a Telegram user
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	IsBot     bool   `json:"is_bot,omitempty"`
}

// Chat represents a Telegram chat
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"` // "private", "group", "supergroup", "channel"
}

// HasMessage checks if update contains a message
func (u *Update) HasMessage() bool {
	return u.Message != nil
}

// ParseCommand parses command from message text
// Call this after JSON unmarshaling to populate IsCommand, Command, Arguments
func (m *Message) ParseCommand() {
	if m == nil {
		return
	}
	text := strings.TrimLeftFunc(m.Text, unicode.IsSpace)
	if !strings.HasPrefix(text, "/") {
		m.IsCommand = false
		return
	}

	m.IsCommand = true

	// Format: /command args or /command@botname args
	text = text[1:]
	end := strings.IndexFunc(text, unicode.IsSpace)
	if end == -1 {
		end = len(text)
	}

	command := text[:end]
	if at := strings.IndexByte(command, '@'); at != -1 {
		command = command[:at]
	}

	m.Command = strings.ToLower(command)
	m.Arguments = strings.TrimSpace(text[end:])
}
