// Package telegram adapts the Telegram Bot API to the transport interfaces.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/transport"
)

// DefaultAPIURL is the public Bot API endpoint
const DefaultAPIURL = "https://api.telegram.org"

// DefaultPollTimeout is the getUpdates long-poll timeout
const DefaultPollTimeout = 30 * time.Second

// ClientConfig holds configuration for creating a Client
type ClientConfig struct {
	// APIURL is the Bot API base URL. Defaults to DefaultAPIURL.
	APIURL string
	// Token is the bot token issued by BotFather
	Token string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// PollTimeout is the long-poll timeout. Defaults to DefaultPollTimeout.
	PollTimeout time.Duration
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client talks to the Bot API. It implements transport.Transport.
type Client struct {
	bot     *bot.Bot
	token   string
	logger  *slog.Logger
	handler transport.Handler
}

// Ensure Client implements the interface
var _ transport.Transport = (*Client)(nil)

// APIError is a failed Bot API call. Every rejection counts as a failed
// delivery, and the message never carries the bot token.
type APIError struct {
	Method string
	// RetryAfter is the flood-control pause Telegram asked for, if any
	RetryAfter time.Duration

	message string
	err     error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %s failed: %s", e.Method, e.message)
}

func (e *APIError) Unwrap() []error {
	return []error{model.ErrDeliveryFailed, e.err}
}

// NewClient creates a Bot API client. No request is made until the first call.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Token == "" {
		return nil, fmt.Errorf("telegram: Token is required")
	}
	apiURL := config.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	pollTimeout := config.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		token:  config.Token,
		logger: logger,
	}
	b, err := bot.New(config.Token,
		bot.WithServerURL(strings.TrimRight(apiURL, "/")),
		bot.WithHTTPClient(pollTimeout, httpClient),
		bot.WithSkipGetMe(),
		// Per-person ordering is kept by the dispatcher, which needs
		// updates handed over in arrival order.
		bot.WithNotAsyncHandlers(),
		bot.WithDefaultHandler(c.onUpdate),
		bot.WithErrorsHandler(c.onPollError),
	)
	if err != nil {
		return nil, fmt.Errorf("telegram: %s", c.redact(err))
	}
	c.bot = b
	return c, nil
}

// Send delivers a message to a person's private chat
func (c *Client) Send(ctx context.Context, to model.PersonID, msg transport.Outgoing) (transport.MessageRef, error) {
	sent, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      int64(to),
		Text:        msg.Text,
		ReplyMarkup: replyMarkup(msg),
	})
	if err != nil {
		return transport.MessageRef{}, c.wrap("sendMessage", err)
	}
	return transport.MessageRef{ChatID: model.PersonID(sent.Chat.ID), MessageID: sent.ID}, nil
}

// EditActions replaces the inline keyboard of a delivered message. A nil
// keyboard removes it.
func (c *Client) EditActions(ctx context.Context, ref transport.MessageRef, keyboard *transport.InlineKeyboard) error {
	_, err := c.bot.EditMessageReplyMarkup(ctx, &bot.EditMessageReplyMarkupParams{
		ChatID:      int64(ref.ChatID),
		MessageID:   ref.MessageID,
		ReplyMarkup: inlineMarkup(keyboard),
	})
	return c.wrap("editMessageReplyMarkup", err)
}

// EditText replaces the text and inline keyboard of a delivered message
func (c *Client) EditText(ctx context.Context, ref transport.MessageRef, text string, keyboard *transport.InlineKeyboard) error {
	_, err := c.bot.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      int64(ref.ChatID),
		MessageID:   ref.MessageID,
		Text:        text,
		ReplyMarkup: inlineMarkup(keyboard),
	})
	return c.wrap("editMessageText", err)
}

// AnswerAction acknowledges an inline button press, optionally showing text
func (c *Client) AnswerAction(ctx context.Context, actionID string, text string, alert bool) error {
	_, err := c.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: actionID,
		Text:            text,
		ShowAlert:       alert,
	})
	return c.wrap("answerCallbackQuery", err)
}

// SetWebhook registers the webhook URL and secret with Telegram
func (c *Client) SetWebhook(ctx context.Context, webhookURL, secret string) error {
	_, err := c.bot.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:            webhookURL,
		SecretToken:    secret,
		AllowedUpdates: []string{"message", "callback_query"},
	})
	return c.wrap("setWebhook", err)
}

// DeleteWebhook switches the bot back to polling
func (c *Client) DeleteWebhook(ctx context.Context) error {
	_, err := c.bot.DeleteWebhook(ctx, &bot.DeleteWebhookParams{})
	return c.wrap("deleteWebhook", err)
}

// Poll long-polls getUpdates and hands each private-chat event to handler
// until ctx is cancelled. After a 429 the next poll waits the retry_after
// Telegram asked for; other failures back off progressively.
func (c *Client) Poll(ctx context.Context, handler transport.Handler) {
	c.handler = handler
	c.logger.Info("polling for updates")
	c.bot.Start(ctx)
	c.logger.Info("polling stopped")
}

func (c *Client) onUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if c.handler == nil {
		return
	}
	event, ok := ToEvent(update)
	if !ok {
		c.logger.Debug("update ignored", slog.Int64("update_id", update.ID))
		return
	}
	c.handler.Handle(ctx, event)
}

func (c *Client) onPollError(err error) {
	var flood *bot.TooManyRequestsError
	if errors.As(err, &flood) {
		c.logger.Warn("rate limited by telegram", slog.Int("retry_after_seconds", flood.RetryAfter))
		return
	}
	c.logger.Warn("poll failed", slog.String("error", c.redact(err)))
}

// wrap classifies a library error. The request URL embeds the token, so
// the text is scrubbed before it can reach a log line.
func (c *Client) wrap(method string, err error) error {
	if err == nil {
		return nil
	}
	apiErr := &APIError{Method: method, message: c.redact(err), err: err}
	var flood *bot.TooManyRequestsError
	if errors.As(err, &flood) {
		apiErr.RetryAfter = time.Duration(flood.RetryAfter) * time.Second
	}
	return apiErr
}

func (c *Client) redact(err error) string {
	return strings.ReplaceAll(err.Error(), c.token, "<token>")
}

func replyMarkup(msg transport.Outgoing) models.ReplyMarkup {
	switch {
	case msg.Keyboard != nil:
		rows := make([][]models.KeyboardButton, 0, len(msg.Keyboard.Rows))
		for _, row := range msg.Keyboard.Rows {
			buttons := make([]models.KeyboardButton, 0, len(row))
			for _, label := range row {
				buttons = append(buttons, models.KeyboardButton{Text: label})
			}
			rows = append(rows, buttons)
		}
		return &models.ReplyKeyboardMarkup{Keyboard: rows, ResizeKeyboard: true}
	case msg.Inline != nil:
		return inlineMarkup(msg.Inline)
	case msg.RemoveKeyboard:
		return &models.ReplyKeyboardRemove{RemoveKeyboard: true}
	}
	return nil
}

// inlineMarkup returns an untyped nil for a nil keyboard so the field is
// left out of the request.
func inlineMarkup(keyboard *transport.InlineKeyboard) models.ReplyMarkup {
	if keyboard == nil {
		return nil
	}
	rows := make([][]models.InlineKeyboardButton, 0, len(keyboard.Rows))
	for _, row := range keyboard.Rows {
		buttons := make([]models.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, models.InlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
		}
		rows = append(rows, buttons)
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}
