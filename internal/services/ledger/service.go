// Package ledger wraps the ledger storage with validation, read retries and
// the session lifecycle rules shared by the chat flows and the HTTP API.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"

	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/storage"
)

var validate = validator.New()

// Config holds retry settings for ledger reads
type Config struct {
	ReadAttempts int
	RetryDelay   time.Duration
}

// DefaultConfig returns the default retry policy
func DefaultConfig() Config {
	return Config{
		ReadAttempts: 3,
		RetryDelay:   50 * time.Millisecond,
	}
}

// Service is the ledger used by the rest of the application
type Service struct {
	store  storage.Ledger
	cfg    Config
	logger *slog.Logger
}

// New creates a new ledger Service
func New(store storage.Ledger, cfg Config, logger *slog.Logger) *Service {
	if cfg.ReadAttempts < 1 {
		cfg.ReadAttempts = 1
	}
	return &Service{
		store:  store,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "ledger")),
	}
}

// People

// SaveProfile validates and upserts a complete profile
func (s *Service) SaveProfile(ctx context.Context, person *model.Person) error {
	person.FirstName = strings.TrimSpace(person.FirstName)
	person.LastName = strings.TrimSpace(person.LastName)
	person.Nickname = strings.TrimSpace(person.Nickname)
	if err := validate.Struct(person); err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidProfile, err)
	}
	if err := s.store.UpsertPerson(ctx, person); err != nil {
		return err
	}
	s.logger.Info("profile saved",
		slog.Int64("person_id", int64(person.ID)),
		slog.String("nickname", person.Nickname),
	)
	return nil
}

// GetPerson returns a person by id
func (s *Service) GetPerson(ctx context.Context, id model.PersonID) (*model.Person, error) {
	return retryRead(ctx, s, "get person", func() (*model.Person, error) {
		return s.store.GetPerson(ctx, id)
	})
}

// IsOnboarded reports whether the person has completed onboarding
func (s *Service) IsOnboarded(ctx context.Context, id model.PersonID) (bool, error) {
	_, err := s.GetPerson(ctx, id)
	if errors.Is(err, model.ErrPersonNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListPeople returns every onboarded person
func (s *Service) ListPeople(ctx context.Context) ([]*model.Person, error) {
	return retryRead(ctx, s, "list people", func() ([]*model.Person, error) {
		return s.store.ListPeople(ctx)
	})
}

// Sessions

// CreateSession schedules a new active session
func (s *Service) CreateSession(ctx context.Context, kind model.SessionKind, dateLabel string) (*model.Session, error) {
	if !kind.Valid() {
		return nil, model.ErrUnknownKind
	}
	dateLabel = strings.TrimSpace(dateLabel)
	if dateLabel == "" {
		return nil, model.ErrEmptyDateLabel
	}
	session, err := s.store.CreateSession(ctx, kind, dateLabel)
	if err != nil {
		return nil, err
	}
	s.logger.Info("session created",
		slog.Int64("session_id", int64(session.ID)),
		slog.String("kind", string(kind)),
		slog.String("date", dateLabel),
	)
	return session, nil
}

// GetSession returns a session in any lifecycle
func (s *Service) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	return retryRead(ctx, s, "get session", func() (*model.Session, error) {
		return s.store.GetSession(ctx, id)
	})
}

// GetActiveSession returns a session only if it is open for registration
func (s *Service) GetActiveSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.IsActive() {
		return nil, model.ErrSessionNotFound
	}
	return session, nil
}

// ListSessions returns sessions matching the filter, oldest first
func (s *Service) ListSessions(ctx context.Context, filter model.SessionFilter) ([]*model.Session, error) {
	return retryRead(ctx, s, "list sessions", func() ([]*model.Session, error) {
		return s.store.ListSessions(ctx, filter)
	})
}

// ArchiveSession hides a session from registration
func (s *Service) ArchiveSession(ctx context.Context, id model.SessionID) error {
	if err := s.store.ArchiveSession(ctx, id); err != nil {
		return err
	}
	s.logger.Info("session archived", slog.Int64("session_id", int64(id)))
	return nil
}

// RestoreSession makes an archived session active again
func (s *Service) RestoreSession(ctx context.Context, id model.SessionID) error {
	if err := s.store.RestoreSession(ctx, id); err != nil {
		return err
	}
	s.logger.Info("session restored", slog.Int64("session_id", int64(id)))
	return nil
}

// DeleteSession removes a session with everything attached to it and returns
// the people that were registered
func (s *Service) DeleteSession(ctx context.Context, id model.SessionID) ([]model.PersonID, error) {
	removed, err := s.store.DeleteSessionCascade(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("session deleted",
		slog.Int64("session_id", int64(id)),
		slog.Int("registrations", len(removed)),
	)
	return removed, nil
}

// Registrations

// Register records that the person will attend. Archived sessions do not
// accept registrations.
func (s *Service) Register(ctx context.Context, personID model.PersonID, sessionID model.SessionID) (*model.Session, error) {
	session, err := s.GetActiveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Register(ctx, personID, sessionID); err != nil {
		return nil, err
	}
	s.logger.Info("registered",
		slog.Int64("person_id", int64(personID)),
		slog.Int64("session_id", int64(sessionID)),
	)
	return session, nil
}

// CancelRegistration removes a registration. It succeeds whether or not the
// person was registered.
func (s *Service) CancelRegistration(ctx context.Context, personID model.PersonID, sessionID model.SessionID) error {
	if err := s.store.CancelRegistration(ctx, personID, sessionID); err != nil {
		return err
	}
	s.logger.Info("registration cancelled",
		slog.Int64("person_id", int64(personID)),
		slog.Int64("session_id", int64(sessionID)),
	)
	return nil
}

// MarkThinking records undecided interest. It reports false when the person
// is already registered.
func (s *Service) MarkThinking(ctx context.Context, personID model.PersonID, sessionID model.SessionID) (*model.Session, bool, error) {
	session, err := s.GetActiveSession(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	recorded, err := s.store.MarkThinking(ctx, personID, sessionID)
	if err != nil {
		return nil, false, err
	}
	return session, recorded, nil
}

// Participants lists registered then undecided people for a session
func (s *Service) Participants(ctx context.Context, sessionID model.SessionID) ([]model.Participant, error) {
	return retryRead(ctx, s, "list participants", func() ([]model.Participant, error) {
		return s.store.ListParticipants(ctx, sessionID)
	})
}

// SessionsForPerson lists the active sessions the person is registered for
func (s *Service) SessionsForPerson(ctx context.Context, personID model.PersonID) ([]*model.Session, error) {
	return retryRead(ctx, s, "list sessions for person", func() ([]*model.Session, error) {
		return s.store.ListSessionsForPerson(ctx, personID)
	})
}

// Audience resolves a criterion against a session
func (s *Service) Audience(ctx context.Context, criterion model.AudienceCriterion, sessionID model.SessionID) ([]model.PersonID, error) {
	if !criterion.Valid() {
		return nil, model.ErrUnknownAudience
	}
	return retryRead(ctx, s, "select audience", func() ([]model.PersonID, error) {
		return s.store.SelectAudience(ctx, criterion, sessionID)
	})
}

// Schedule text

// ScheduleText returns the current schedule announcement
func (s *Service) ScheduleText(ctx context.Context) (string, error) {
	return retryRead(ctx, s, "get schedule text", func() (string, error) {
		return s.store.GetScheduleText(ctx)
	})
}

// SetScheduleText replaces the schedule announcement
func (s *Service) SetScheduleText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: schedule text is empty", model.ErrValidation)
	}
	if err := s.store.SetScheduleText(ctx, text); err != nil {
		return err
	}
	s.logger.Info("schedule text updated")
	return nil
}

// retryRead runs a read up to the configured number of attempts while it
// fails with ErrStorageUnavailable, doubling the pause between attempts.
// Any other error ends the read at once.
func retryRead[T any](ctx context.Context, s *Service, op string, read func() (T, error)) (T, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.RetryDelay
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	policy.MaxElapsedTime = 0

	var (
		attempt     int
		unavailable error
	)
	result, err := backoff.RetryNotifyWithData(
		func() (T, error) {
			attempt++
			result, err := read()
			if err != nil && !errors.Is(err, model.ErrStorageUnavailable) {
				unavailable = nil
				return result, backoff.Permanent(err)
			}
			unavailable = err
			return result, err
		},
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.cfg.ReadAttempts-1)), ctx),
		func(err error, wait time.Duration) {
			s.logger.Warn("ledger read failed, retrying",
				slog.String("op", op),
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.String("error", err.Error()),
			)
		},
	)
	if err != nil && unavailable != nil && ctx.Err() != nil {
		// Cancelled mid-wait: report the storage failure, not the cancellation
		return result, unavailable
	}
	return result, err
}
