// Package config loads the server configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Update modes
const (
	UpdateModePolling = "polling"
	UpdateModeWebhook = "webhook"
)

// Ledger backends
const (
	LedgerBackendMemory = "memory"
	LedgerBackendSQLite = "sqlite"
)

// Conversation backends
const (
	ConversationBackendMemory = "memory"
	ConversationBackendRedis  = "redis"
)

var validate = validator.New()

// Config is the server configuration
type Config struct {
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN" validate:"required"`
	TelegramAPIURL   string `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org" validate:"url"`
	OrganizerID      int64  `env:"ORGANIZER_ID" validate:"required"`

	UpdateMode    string `env:"UPDATE_MODE" envDefault:"polling" validate:"oneof=polling webhook"`
	WebhookSecret string `env:"WEBHOOK_SECRET" validate:"required_if=UpdateMode webhook"`
	// WebhookURL is the public URL Telegram pushes updates to, ending in
	// /telegram/webhook
	WebhookURL string `env:"WEBHOOK_URL" validate:"required_if=UpdateMode webhook"`

	HTTPHost string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	HTTPPort int    `env:"HTTP_PORT" envDefault:"8080" validate:"min=1,max=65535"`

	LedgerBackend string `env:"LEDGER_BACKEND" envDefault:"sqlite" validate:"oneof=memory sqlite"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"data/gamenight.db" validate:"required_if=LedgerBackend sqlite"`

	ConversationBackend string        `env:"CONVERSATION_BACKEND" envDefault:"memory" validate:"oneof=memory redis"`
	RedisURL            string        `env:"REDIS_URL" validate:"required_if=ConversationBackend redis"`
	ConversationTTL     time.Duration `env:"CONVERSATION_TTL" envDefault:"24h" validate:"min=0"`

	FanoutConcurrency int `env:"FANOUT_CONCURRENCY" envDefault:"8" validate:"min=1,max=64"`

	// AdminTokenHash is the bcrypt hash of the organizer API token. The
	// organizer API is disabled when empty.
	AdminTokenHash string `env:"ADMIN_TOKEN_HASH"`

	// Empty venue and contact keep the bot's built-in texts
	VenueAddress  string `env:"VENUE_ADDRESS"`
	ContactHandle string `env:"CONTACT_HANDLE"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
}

// Load parses and validates the configuration from the environment
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Addr returns the HTTP listen address
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTPHost, c.HTTPPort)
}

// SlogLevel maps LOG_LEVEL to a slog level
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
