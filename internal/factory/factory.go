package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mcoot/gamenight/internal/api"
	"github.com/mcoot/gamenight/internal/api/response"
	"github.com/mcoot/gamenight/internal/config"
	"github.com/mcoot/gamenight/internal/dependencies/clock"
	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/services/auth"
	"github.com/mcoot/gamenight/internal/services/conversation"
	"github.com/mcoot/gamenight/internal/services/fanout"
	"github.com/mcoot/gamenight/internal/services/ledger"
	"github.com/mcoot/gamenight/internal/storage"
	"github.com/mcoot/gamenight/internal/storage/memory"
	redisstorage "github.com/mcoot/gamenight/internal/storage/redis"
	"github.com/mcoot/gamenight/internal/storage/sqlite"
	"github.com/mcoot/gamenight/internal/transport"
	"github.com/mcoot/gamenight/internal/transport/telegram"
)

// Background maintenance intervals
const (
	sweepInterval      = 5 * time.Minute
	grantCleanInterval = time.Minute
)

type pinger interface {
	Ping(ctx context.Context) error
}

// App contains all wired application components
type App struct {
	// Storage
	Ledger        storage.Ledger
	Conversations storage.ConversationStore

	// External dependencies
	Clock     clock.Clock
	Transport transport.Transport
	// Telegram is nil when the transport was supplied by the caller
	Telegram *telegram.Client

	// Services
	LedgerService *ledger.Service
	FanoutService *fanout.Service
	AuthService   *auth.Service
	Controller    *conversation.Controller
	Dispatcher    *conversation.Dispatcher

	cfg     config.Config
	logger  *slog.Logger
	sweeper *memory.Storage
	pingers []pinger
	closers []io.Closer
}

// Config holds configuration for the application factory
type Config struct {
	// Server is the loaded server configuration
	Server config.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// Transport replaces the Telegram client (optional)
	Transport transport.Transport
}

// New creates a new application with all dependencies wired. ctx bounds
// the lifetime of the event dispatcher.
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	server := cfg.Server
	clk := clock.New()

	var (
		ledgerStore   storage.Ledger
		conversations storage.ConversationStore
		sweeper       *memory.Storage
		pingers       []pinger
		closers       []io.Closer
	)
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	switch server.LedgerBackend {
	case config.LedgerBackendMemory:
		sweeper = memory.New(clk, server.ConversationTTL)
		ledgerStore = sweeper
	case config.LedgerBackendSQLite, "":
		store, err := sqlite.Open(ctx, server.SQLitePath, clk)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		ledgerStore = store
		pingers = append(pingers, store)
		closers = append(closers, store)
	default:
		return nil, fmt.Errorf("invalid ledger backend %q", server.LedgerBackend)
	}

	switch server.ConversationBackend {
	case config.ConversationBackendMemory, "":
		if sweeper == nil {
			sweeper = memory.New(clk, server.ConversationTTL)
		}
		conversations = sweeper
	case config.ConversationBackendRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = server.RedisURL
		redisCfg.ConversationTTL = server.ConversationTTL
		store, err := redisstorage.New(redisCfg, clk)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("connect conversation store: %w", err)
		}
		conversations = store
		pingers = append(pingers, store)
		closers = append(closers, store)
	default:
		closeAll()
		return nil, fmt.Errorf("invalid conversation backend %q", server.ConversationBackend)
	}

	tr := cfg.Transport
	var tg *telegram.Client
	if tr == nil {
		client, err := telegram.NewClient(telegram.ClientConfig{
			APIURL:     server.TelegramAPIURL,
			Token:      server.TelegramBotToken,
			HTTPClient: &http.Client{Timeout: 60 * time.Second},
			Logger:     logger.With(slog.String("component", "telegram")),
		})
		if err != nil {
			closeAll()
			return nil, err
		}
		tg = client
		tr = client
	}

	app := newWithDependencies(ctx, ledgerStore, conversations, clk, tr, server, logger)
	app.Telegram = tg
	app.sweeper = sweeper
	app.pingers = pingers
	app.closers = closers
	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	ctx context.Context,
	ledgerStore storage.Ledger,
	conversations storage.ConversationStore,
	clk clock.Clock,
	tr transport.Transport,
	server config.Config,
	logger *slog.Logger,
) *App {
	organizer := model.PersonID(server.OrganizerID)

	fanoutCfg := fanout.DefaultConfig()
	if server.FanoutConcurrency > 0 {
		fanoutCfg.Concurrency = server.FanoutConcurrency
	}

	convCfg := conversation.DefaultConfig()
	convCfg.OrganizerID = organizer
	if server.VenueAddress != "" {
		convCfg.VenueAddress = server.VenueAddress
	}
	if server.ContactHandle != "" {
		convCfg.ContactHandle = server.ContactHandle
	}

	authCfg := auth.DefaultConfig()
	authCfg.TokenHash = server.AdminTokenHash

	ledgerService := ledger.New(ledgerStore, ledger.DefaultConfig(), logger)
	fanoutService := fanout.New(ledgerService, tr, organizer, fanoutCfg, logger)
	controller := conversation.NewController(ledgerService, fanoutService, conversations, tr, clk, convCfg, logger)
	dispatcher := conversation.NewDispatcher(ctx, controller, logger)

	return &App{
		Ledger:        ledgerStore,
		Conversations: conversations,
		Clock:         clk,
		Transport:     tr,
		LedgerService: ledgerService,
		FanoutService: fanoutService,
		AuthService:   auth.New(clk, authCfg),
		Controller:    controller,
		Dispatcher:    dispatcher,
		cfg:           server,
		logger:        logger,
	}
}

// Router builds the HTTP handler. The Telegram webhook is mounted in
// webhook mode only.
func (a *App) Router() http.Handler {
	routerCfg := api.RouterConfig{
		Logger:      a.logger,
		AuthService: a.AuthService,
		Ledger:      a.LedgerService,
		Fanout:      a.FanoutService,
		HealthCheck: a.HealthCheck,
		Health: response.Health{
			Ledger:        a.cfg.LedgerBackend,
			Conversations: a.cfg.ConversationBackend,
			UpdateMode:    a.cfg.UpdateMode,
		},
	}
	if a.cfg.UpdateMode == config.UpdateModeWebhook {
		routerCfg.Updates = a.Dispatcher
		routerCfg.WebhookSecret = a.cfg.WebhookSecret
	}
	return api.NewRouter(routerCfg)
}

// HealthCheck pings every networked backend
func (a *App) HealthCheck(ctx context.Context) error {
	for _, p := range a.pingers {
		if err := p.Ping(ctx); err != nil {
			return model.Unavailable("health check", err)
		}
	}
	return nil
}

// RunMaintenance sweeps expired in-memory conversations and stale API
// grants until ctx is done
func (a *App) RunMaintenance(ctx context.Context) {
	if a.sweeper != nil {
		go a.sweeper.RunSweeper(ctx, sweepInterval)
	}

	ticker := time.NewTicker(grantCleanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.AuthService.CleanExpiredGrants()
		}
	}
}

// Close waits for in-flight events and releases backend connections
func (a *App) Close() error {
	a.Dispatcher.Wait()
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
