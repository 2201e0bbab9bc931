package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/gamenight/internal/api/apierr"
	"github.com/mcoot/gamenight/internal/api/handler"
	"github.com/mcoot/gamenight/internal/api/middleware"
	"github.com/mcoot/gamenight/internal/api/response"
	sharedmw "github.com/mcoot/gamenight/internal/middleware"
	"github.com/mcoot/gamenight/internal/services/auth"
	"github.com/mcoot/gamenight/internal/services/fanout"
	"github.com/mcoot/gamenight/internal/services/ledger"
	"github.com/mcoot/gamenight/internal/transport"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger      *slog.Logger
	AuthService *auth.Service
	Ledger      *ledger.Service
	Fanout      *fanout.Service

	// Updates receives webhook events. The webhook route is only mounted
	// when it is set.
	Updates       transport.Handler
	WebhookSecret string

	// HealthCheck reports backend health; nil means always healthy
	HealthCheck func(ctx context.Context) error
	// Health describes the running backends; Status is filled per request
	Health response.Health
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	sessionHandler := handler.NewSessionHandler(cfg.Ledger, cfg.Fanout)
	noticeHandler := handler.NewNoticeHandler(cfg.Ledger, cfg.Fanout)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.AuthService)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// Telegram webhook
	if cfg.Updates != nil {
		webhookHandler := handler.NewWebhookHandler(cfg.Updates, cfg.WebhookSecret, cfg.Logger)
		webhook := r.PathPrefix("/telegram").Subrouter()
		webhook.Use(sharedmw.Recovery(cfg.Logger, sharedmw.DefaultPanicHandler))
		webhook.Use(loggingMiddleware)
		webhook.HandleFunc("/webhook", webhookHandler.Receive).Methods(http.MethodPost)
	}

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler(cfg.HealthCheck, cfg.Health)).Methods(http.MethodGet)

	// Session routes
	sessions := api.PathPrefix("/sessions").Subrouter()
	sessions.Use(authMiddleware)
	sessions.HandleFunc("", sessionHandler.List).Methods(http.MethodGet)
	sessions.HandleFunc("", sessionHandler.Create).Methods(http.MethodPost)
	sessions.HandleFunc("/{id:[0-9]+}", sessionHandler.Get).Methods(http.MethodGet)
	sessions.HandleFunc("/{id:[0-9]+}/archive", sessionHandler.Archive).Methods(http.MethodPost)
	sessions.HandleFunc("/{id:[0-9]+}/restore", sessionHandler.Restore).Methods(http.MethodPost)
	sessions.HandleFunc("/{id:[0-9]+}/cancel", sessionHandler.Cancel).Methods(http.MethodPost)
	sessions.HandleFunc("/{id:[0-9]+}/participants", sessionHandler.Participants).Methods(http.MethodGet)
	sessions.HandleFunc("/{id:[0-9]+}/reminders", sessionHandler.Remind).Methods(http.MethodPost)

	// Schedule text
	schedule := api.PathPrefix("/schedule").Subrouter()
	schedule.Use(authMiddleware)
	schedule.HandleFunc("", noticeHandler.GetSchedule).Methods(http.MethodGet)
	schedule.HandleFunc("", noticeHandler.SetSchedule).Methods(http.MethodPut)

	// People and broadcasts
	people := api.PathPrefix("/people").Subrouter()
	people.Use(authMiddleware)
	people.HandleFunc("", noticeHandler.ListPeople).Methods(http.MethodGet)

	broadcast := api.PathPrefix("/broadcast").Subrouter()
	broadcast.Use(authMiddleware)
	broadcast.HandleFunc("", noticeHandler.Broadcast).Methods(http.MethodPost)

	return r
}

func healthHandler(check func(ctx context.Context) error, health response.Health) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := health
		result.Status = "ok"
		if check != nil {
			if err := check(r.Context()); err != nil {
				result.Status = "unavailable"
				response.JSON(w, apierr.Status(err), result)
				return
			}
		}
		response.JSON(w, http.StatusOK, result)
	}
}
