// Package fanout delivers one message to many people. Deliveries are
// independent: a failed recipient is logged and counted, never retried, and
// never stops the rest of the batch.
package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/services/ledger"
	"github.com/mcoot/gamenight/internal/transport"
)

// Inline action prefixes carried by reminder buttons
const (
	ActionRegister   = "reg"
	ActionThinking   = "think"
	ActionUnregister = "unreg"
)

// Config holds fan-out settings
type Config struct {
	// Concurrency bounds in-flight sends within one batch
	Concurrency int
	// BatchTimeout bounds a whole batch. Batches are detached from the
	// caller's cancellation so they always cover the full audience.
	BatchTimeout time.Duration
}

// DefaultConfig returns default fan-out settings
func DefaultConfig() Config {
	return Config{
		Concurrency:  8,
		BatchTimeout: 5 * time.Minute,
	}
}

// Report summarises a batch
type Report struct {
	BatchID   uuid.UUID        `json:"batch_id"`
	Delivered int              `json:"delivered"`
	Failed    int              `json:"failed"`
	FailedIDs []model.PersonID `json:"failed_ids,omitempty"`
}

// Service sends reminders, broadcasts and cancellation notices
type Service struct {
	ledger    *ledger.Service
	transport transport.Transport
	organizer model.PersonID
	cfg       Config
	logger    *slog.Logger
}

// New creates a new fan-out Service
func New(
	ledger *ledger.Service,
	transport transport.Transport,
	organizer model.PersonID,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultConfig().BatchTimeout
	}
	return &Service{
		ledger:    ledger,
		transport: transport,
		organizer: organizer,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "fanout")),
	}
}

// BatchTimeout is the longest a single fan-out call can take
func (s *Service) BatchTimeout() time.Duration {
	return s.cfg.BatchTimeout
}

// Deliver sends msg to every identity in audience. Duplicates are sent once.
func (s *Service) Deliver(ctx context.Context, audience []model.PersonID, msg transport.Outgoing) Report {
	report := Report{BatchID: uuid.New()}
	audience = lo.Uniq(audience)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.BatchTimeout)
	defer cancel()

	logger := s.logger.With(slog.String("batch_id", report.BatchID.String()))
	logger.Info("fan-out started", slog.Int("audience", len(audience)))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.cfg.Concurrency)
	for _, id := range audience {
		g.Go(func() error {
			_, err := s.transport.Send(ctx, id, msg)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				report.FailedIDs = append(report.FailedIDs, id)
				logger.Warn("delivery failed",
					slog.Int64("person_id", int64(id)),
					slog.String("error", err.Error()),
				)
				return nil
			}
			report.Delivered++
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("fan-out finished",
		slog.Int("delivered", report.Delivered),
		slog.Int("failed", report.Failed),
	)
	return report
}

// ResolveAudience computes the recipients for a ledger criterion. Manual
// selections are made by the organizer and never resolved here.
func (s *Service) ResolveAudience(ctx context.Context, criterion model.AudienceCriterion, sessionID model.SessionID) ([]model.PersonID, error) {
	return s.ledger.Audience(ctx, criterion, sessionID)
}

// SendReminder resolves the criterion and sends the session reminder
func (s *Service) SendReminder(ctx context.Context, sessionID model.SessionID, criterion model.AudienceCriterion) (Report, error) {
	session, err := s.ledger.GetActiveSession(ctx, sessionID)
	if err != nil {
		return Report{}, err
	}
	audience, err := s.ResolveAudience(ctx, criterion, sessionID)
	if err != nil {
		return Report{}, err
	}
	return s.remind(ctx, session, audience)
}

// SendReminderTo sends the session reminder to a hand-picked audience
func (s *Service) SendReminderTo(ctx context.Context, sessionID model.SessionID, audience []model.PersonID) (Report, error) {
	session, err := s.ledger.GetActiveSession(ctx, sessionID)
	if err != nil {
		return Report{}, err
	}
	return s.remind(ctx, session, audience)
}

func (s *Service) remind(ctx context.Context, session *model.Session, audience []model.PersonID) (Report, error) {
	if len(audience) == 0 {
		return Report{}, model.ErrEmptyAudience
	}
	return s.Deliver(ctx, audience, transport.Outgoing{
		Text:   ReminderText(session),
		Inline: ReminderActions(session.ID),
	}), nil
}

// Broadcast sends plain text to everyone who completed onboarding
func (s *Service) Broadcast(ctx context.Context, text string) (Report, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Report{}, fmt.Errorf("%w: broadcast text is empty", model.ErrValidation)
	}
	audience, err := s.ledger.Audience(ctx, model.AudienceAll, 0)
	if err != nil {
		return Report{}, err
	}
	if len(audience) == 0 {
		return Report{}, model.ErrEmptyAudience
	}
	return s.Deliver(ctx, audience, transport.Outgoing{Text: text}), nil
}

// CancelSession notifies the registrants and then deletes the session with
// all its registrations, whatever the individual deliveries did. It returns
// the removed registrants.
func (s *Service) CancelSession(ctx context.Context, sessionID model.SessionID) ([]model.PersonID, Report, error) {
	session, err := s.ledger.GetSession(ctx, sessionID)
	if err != nil {
		return nil, Report{}, err
	}
	registrants, err := s.ledger.Audience(ctx, model.AudienceRegistered, sessionID)
	if err != nil {
		return nil, Report{}, err
	}

	report := s.Deliver(ctx, registrants, transport.Outgoing{Text: CancellationText(session)})

	removed, err := s.ledger.DeleteSession(context.WithoutCancel(ctx), sessionID)
	if err != nil {
		return nil, report, err
	}
	return removed, report, nil
}

// NotifyOrganizer sends a best-effort notice to the organizer
func (s *Service) NotifyOrganizer(ctx context.Context, text string) {
	if s.organizer == 0 {
		return
	}
	if _, err := s.transport.Send(ctx, s.organizer, transport.Outgoing{Text: text}); err != nil {
		s.logger.Warn("organizer notice failed", slog.String("error", err.Error()))
	}
}

// ReminderText is the body of a session reminder
func ReminderText(session *model.Session) string {
	return "🔔 Напоминание об игре: " + session.Title() + "\n\n" + session.Kind.Rules() + "\nБудем вас ждать! 😊"
}

// CancellationText is sent to registrants of a cancelled session
func CancellationText(session *model.Session) string {
	return "⚠️ Внимание! Отмена игры на " + session.Title() + "! ⚠️"
}

// ReminderActions are the inline buttons attached to a reminder
func ReminderActions(sessionID model.SessionID) *transport.InlineKeyboard {
	id := strconv.FormatInt(int64(sessionID), 10)
	return &transport.InlineKeyboard{Rows: [][]transport.InlineButton{
		{
			{Text: "📝 Записаться", Data: ActionRegister + ":" + id},
			{Text: "🤔 Думаю", Data: ActionThinking + ":" + id},
		},
		{
			{Text: "❌ Отменить запись", Data: ActionUnregister + ":" + id},
		},
	}}
}

// ParseAction splits reminder button data into its verb and session
func ParseAction(data string) (string, model.SessionID, bool) {
	verb, arg, ok := strings.Cut(data, ":")
	if !ok {
		return "", 0, false
	}
	switch verb {
	case ActionRegister, ActionThinking, ActionUnregister:
	default:
		return "", 0, false
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return "", 0, false
	}
	return verb, model.SessionID(id), true
}
