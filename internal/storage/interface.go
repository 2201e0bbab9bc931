package storage

import (
	"context"

	"github.com/mcoot/gamenight/internal/model"
)

// Ledger is the durable store of people, sessions and registrations.
// Every method is atomic with respect to concurrent callers, and the
// registration mutations are idempotent.
type Ledger interface {
	// Person operations
	UpsertPerson(ctx context.Context, person *model.Person) error
	GetPerson(ctx context.Context, id model.PersonID) (*model.Person, error)
	ListPeople(ctx context.Context) ([]*model.Person, error)

	// Session operations
	CreateSession(ctx context.Context, kind model.SessionKind, dateLabel string) (*model.Session, error)
	GetSession(ctx context.Context, id model.SessionID) (*model.Session, error)
	ListSessions(ctx context.Context, filter model.SessionFilter) ([]*model.Session, error)
	ArchiveSession(ctx context.Context, id model.SessionID) error
	RestoreSession(ctx context.Context, id model.SessionID) error
	// DeleteSessionCascade removes the session with its registrations and
	// thinking markers, returning the people that were registered.
	DeleteSessionCascade(ctx context.Context, id model.SessionID) ([]model.PersonID, error)

	// Registration operations
	Register(ctx context.Context, personID model.PersonID, sessionID model.SessionID) error
	CancelRegistration(ctx context.Context, personID model.PersonID, sessionID model.SessionID) error
	// MarkThinking records undecided interest. It reports false without
	// recording anything when the person is already registered.
	MarkThinking(ctx context.Context, personID model.PersonID, sessionID model.SessionID) (bool, error)
	ListParticipants(ctx context.Context, sessionID model.SessionID) ([]model.Participant, error)
	ListSessionsForPerson(ctx context.Context, personID model.PersonID) ([]*model.Session, error)
	SelectAudience(ctx context.Context, criterion model.AudienceCriterion, sessionID model.SessionID) ([]model.PersonID, error)

	// Schedule text operations
	GetScheduleText(ctx context.Context) (string, error)
	SetScheduleText(ctx context.Context, text string) error
}

// ConversationStore persists per-person conversation contexts. Entries
// expire after a configured time to live; an expired entry behaves as if it
// was never saved.
type ConversationStore interface {
	LoadConversation(ctx context.Context, id model.PersonID) (*model.Conversation, error)
	SaveConversation(ctx context.Context, conv *model.Conversation) error
	DeleteConversation(ctx context.Context, id model.PersonID) error
}

// DefaultScheduleText seeds the schedule announcement on first start
const DefaultScheduleText = "Расписание ближайших игр публикуется здесь. Следи за обновлениями!"
