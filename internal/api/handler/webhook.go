package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/mcoot/gamenight/internal/transport"
	"github.com/mcoot/gamenight/internal/transport/telegram"
)

// SecretHeader carries the secret token registered with setWebhook
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookHandler accepts Telegram updates pushed to the bot
type WebhookHandler struct {
	handler transport.Handler
	secret  string
	logger  *slog.Logger
}

// NewWebhookHandler creates a new webhook handler. Events are passed to
// handler, which is expected to queue them rather than block.
func NewWebhookHandler(handler transport.Handler, secret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		handler: handler,
		secret:  secret,
		logger:  logger.With(slog.String("component", "webhook")),
	}
}

// Receive handles POST /telegram/webhook
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get(SecretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		WriteError(w, NewUnauthorizedError())
		return
	}

	update, err := telegram.DecodeUpdate(r.Body)
	if err != nil {
		WriteError(w, NewInvalidRequestError("Invalid update"))
		return
	}

	if event, ok := telegram.ToEvent(update); ok {
		h.handler.Handle(r.Context(), event)
	} else {
		h.logger.Debug("update ignored", slog.Int64("update_id", update.ID))
	}

	w.WriteHeader(http.StatusOK)
}
