package telegram

import (
	"encoding/json"
	"net/http"

	"seasoncast/pkg/logger"
)

// UpdateReceiver parses a webhook request and dispatches the update it carries
type UpdateReceiver interface {
	HandleWebhookRequest(r *http.Request) (int, error)
}

// WebhookHandler handles Telegram webhook requests
type WebhookHandler struct {
	receiver UpdateReceiver
	log      *logger.Logger
}

// NewWebhookHandler creates a new Telegram webhook handler
func NewWebhookHandler(receiver UpdateReceiver, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		receiver: receiver,
		log:      log.With("component", "telegram_webhook"),
	}
}

// ServeHTTP handles incoming webhook requests from Telegram.
// Accepted updates are acknowledged with 200 even when handling fails later,
// otherwise Telegram keeps redelivering them.
func (wh *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	updateID, err := wh.receiver.HandleWebhookRequest(r)
	if err != nil {
		wh.log.Warnw("Failed to parse webhook update", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	wh.log.Debugw("Received webhook update", "update_id", updateID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
