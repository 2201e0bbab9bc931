package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("ORGANIZER_ID", "1001")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(1001), cfg.OrganizerID)
	assert.Equal(t, UpdateModePolling, cfg.UpdateMode)
	assert.Equal(t, LedgerBackendSQLite, cfg.LedgerBackend)
	assert.Equal(t, ConversationBackendMemory, cfg.ConversationBackend)
	assert.Equal(t, 24*time.Hour, cfg.ConversationTTL)
	assert.Equal(t, 8, cfg.FanoutConcurrency)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("ORGANIZER_ID", "1001")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	_, err := Load()
	require.Error(t, err)
}

func TestWebhookModeRequiresSecretAndURL(t *testing.T) {
	setRequired(t)
	t.Setenv("UPDATE_MODE", "webhook")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("WEBHOOK_SECRET", "s3cret")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("WEBHOOK_URL", "https://bot.example.com/telegram/webhook")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, UpdateModeWebhook, cfg.UpdateMode)
}

func TestRedisBackendRequiresURL(t *testing.T) {
	setRequired(t)
	t.Setenv("CONVERSATION_BACKEND", "redis")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("REDIS_URL", "redis://localhost:6379")
	_, err = Load()
	require.NoError(t, err)
}

func TestRejectsUnknownBackend(t *testing.T) {
	setRequired(t)
	t.Setenv("LEDGER_BACKEND", "postgres")

	_, err := Load()
	require.Error(t, err)
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, Config{LogLevel: "debug"}.SlogLevel())
	assert.Equal(t, slog.LevelWarn, Config{LogLevel: "WARN"}.SlogLevel())
	assert.Equal(t, slog.LevelError, Config{LogLevel: "error"}.SlogLevel())
}
