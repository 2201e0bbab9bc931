package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/mcoot/gamenight/internal/dependencies/clock"
	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/storage"
)

// Storage is an in-memory implementation of the ledger and conversation store
type Storage struct {
	mu    sync.RWMutex
	clock clock.Clock

	people        map[model.PersonID]*model.Person
	sessions      map[model.SessionID]*model.Session
	nextSessionID model.SessionID
	registrations map[pairKey]*entry[model.Registration]
	thinking      map[pairKey]*entry[model.ThinkingMarker]
	seq           uint64
	scheduleText  string

	conversationTTL time.Duration
	conversations   map[model.PersonID]*model.Conversation
}

type pairKey struct {
	personID  model.PersonID
	sessionID model.SessionID
}

// entry keeps insertion order for rows that are listed in arrival order
type entry[T any] struct {
	row T
	seq uint64
}

// New creates a new in-memory storage instance. A zero conversationTTL keeps
// conversations forever.
func New(clk clock.Clock, conversationTTL time.Duration) *Storage {
	return &Storage{
		clock:           clk,
		people:          make(map[model.PersonID]*model.Person),
		sessions:        make(map[model.SessionID]*model.Session),
		nextSessionID:   1,
		registrations:   make(map[pairKey]*entry[model.Registration]),
		thinking:        make(map[pairKey]*entry[model.ThinkingMarker]),
		scheduleText:    storage.DefaultScheduleText,
		conversationTTL: conversationTTL,
		conversations:   make(map[model.PersonID]*model.Conversation),
	}
}

// Ensure Storage implements the interfaces
var (
	_ storage.Ledger            = (*Storage)(nil)
	_ storage.ConversationStore = (*Storage)(nil)
)

// Person operations

func (s *Storage) UpsertPerson(ctx context.Context, person *model.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	p := *person
	if existing, ok := s.people[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.people[p.ID] = &p
	return nil
}

func (s *Storage) GetPerson(ctx context.Context, id model.PersonID) (*model.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.people[id]
	if !ok {
		return nil, model.ErrPersonNotFound
	}
	out := *p
	return &out, nil
}

func (s *Storage) ListPeople(ctx context.Context) ([]*model.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	people := make([]*model.Person, 0, len(s.people))
	for _, p := range s.people {
		out := *p
		people = append(people, &out)
	}
	slices.SortFunc(people, func(a, b *model.Person) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return people, nil
}

// Session operations

func (s *Storage) CreateSession(ctx context.Context, kind model.SessionKind, dateLabel string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeDuplicate(kind, dateLabel, 0) {
		return nil, model.ErrSessionConflict
	}
	session := &model.Session{
		ID:        s.nextSessionID,
		Kind:      kind,
		DateLabel: dateLabel,
		Lifecycle: model.LifecycleActive,
		CreatedAt: s.clock.Now(),
	}
	s.nextSessionID++
	s.sessions[session.ID] = session
	out := *session
	return &out, nil
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	out := *session
	return &out, nil
}

func (s *Storage) ListSessions(ctx context.Context, filter model.SessionFilter) ([]*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sessions []*model.Session
	for _, session := range s.sessions {
		if filter.Matches(session) {
			out := *session
			sessions = append(sessions, &out)
		}
	}
	sortSessions(sessions)
	return sessions, nil
}

func (s *Storage) ArchiveSession(ctx context.Context, id model.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return model.ErrSessionNotFound
	}
	session.Lifecycle = model.LifecycleArchived
	return nil
}

func (s *Storage) RestoreSession(ctx context.Context, id model.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return model.ErrSessionNotFound
	}
	if session.Lifecycle == model.LifecycleActive {
		return nil
	}
	if s.activeDuplicate(session.Kind, session.DateLabel, id) {
		return model.ErrSessionConflict
	}
	session.Lifecycle = model.LifecycleActive
	return nil
}

func (s *Storage) DeleteSessionCascade(ctx context.Context, id model.SessionID) ([]model.PersonID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return nil, model.ErrSessionNotFound
	}
	registered := s.registeredLocked(id)
	for key := range s.registrations {
		if key.sessionID == id {
			delete(s.registrations, key)
		}
	}
	for key := range s.thinking {
		if key.sessionID == id {
			delete(s.thinking, key)
		}
	}
	delete(s.sessions, id)
	return registered, nil
}

// Registration operations

func (s *Storage) Register(ctx context.Context, personID model.PersonID, sessionID model.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkPairLocked(personID, sessionID); err != nil {
		return err
	}
	key := pairKey{personID: personID, sessionID: sessionID}
	delete(s.thinking, key)
	if _, ok := s.registrations[key]; ok {
		return nil
	}
	s.seq++
	s.registrations[key] = &entry[model.Registration]{
		row: model.Registration{
			PersonID:     personID,
			SessionID:    sessionID,
			Status:       model.StatusRegistered,
			RegisteredAt: s.clock.Now(),
		},
		seq: s.seq,
	}
	return nil
}

func (s *Storage) CancelRegistration(ctx context.Context, personID model.PersonID, sessionID model.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{personID: personID, sessionID: sessionID}
	delete(s.thinking, key)
	delete(s.registrations, key)
	return nil
}

func (s *Storage) MarkThinking(ctx context.Context, personID model.PersonID, sessionID model.SessionID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkPairLocked(personID, sessionID); err != nil {
		return false, err
	}
	key := pairKey{personID: personID, sessionID: sessionID}
	if _, ok := s.registrations[key]; ok {
		return false, nil
	}
	if _, ok := s.thinking[key]; ok {
		return true, nil
	}
	s.seq++
	s.thinking[key] = &entry[model.ThinkingMarker]{
		row: model.ThinkingMarker{
			PersonID:  personID,
			SessionID: sessionID,
			MarkedAt:  s.clock.Now(),
		},
		seq: s.seq,
	}
	return true, nil
}

func (s *Storage) ListParticipants(ctx context.Context, sessionID model.SessionID) ([]model.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return nil, model.ErrSessionNotFound
	}

	var registered []*entry[model.Registration]
	for key, e := range s.registrations {
		if key.sessionID == sessionID {
			registered = append(registered, e)
		}
	}
	slices.SortFunc(registered, func(a, b *entry[model.Registration]) int {
		return cmp.Compare(a.seq, b.seq)
	})

	var thinking []*entry[model.ThinkingMarker]
	for key, e := range s.thinking {
		if key.sessionID != sessionID {
			continue
		}
		if _, ok := s.registrations[key]; ok {
			continue
		}
		thinking = append(thinking, e)
	}
	slices.SortFunc(thinking, func(a, b *entry[model.ThinkingMarker]) int {
		return cmp.Compare(a.seq, b.seq)
	})

	participants := make([]model.Participant, 0, len(registered)+len(thinking))
	for _, e := range registered {
		if p, ok := s.people[e.row.PersonID]; ok {
			participants = append(participants, model.Participant{Person: *p, Tag: model.TagRegistered})
		}
	}
	for _, e := range thinking {
		if p, ok := s.people[e.row.PersonID]; ok {
			participants = append(participants, model.Participant{Person: *p, Tag: model.TagThinking})
		}
	}
	return participants, nil
}

func (s *Storage) ListSessionsForPerson(ctx context.Context, personID model.PersonID) ([]*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sessions []*model.Session
	for key := range s.registrations {
		if key.personID != personID {
			continue
		}
		if session, ok := s.sessions[key.sessionID]; ok && session.IsActive() {
			out := *session
			sessions = append(sessions, &out)
		}
	}
	sortSessions(sessions)
	return sessions, nil
}

func (s *Storage) SelectAudience(ctx context.Context, criterion model.AudienceCriterion, sessionID model.SessionID) ([]model.PersonID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if criterion != model.AudienceAll {
		if _, ok := s.sessions[sessionID]; !ok {
			return nil, model.ErrSessionNotFound
		}
	}

	switch criterion {
	case model.AudienceAll:
		return s.peopleIDsLocked(func(model.PersonID) bool { return true }), nil
	case model.AudienceRegistered:
		return s.registeredLocked(sessionID), nil
	case model.AudienceNotRegistered:
		return s.peopleIDsLocked(func(id model.PersonID) bool {
			_, ok := s.registrations[pairKey{personID: id, sessionID: sessionID}]
			return !ok
		}), nil
	default:
		return nil, model.ErrUnknownAudience
	}
}

// Schedule text operations

func (s *Storage) GetScheduleText(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scheduleText, nil
}

func (s *Storage) SetScheduleText(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduleText = text
	return nil
}

// Conversation operations

func (s *Storage) LoadConversation(ctx context.Context, id model.PersonID) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok || s.expired(conv) {
		return nil, model.ErrConversationNotFound
	}
	return conv.Clone(), nil
}

func (s *Storage) SaveConversation(ctx context.Context, conv *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := conv.Clone()
	stored.UpdatedAt = s.clock.Now()
	s.conversations[conv.PersonID] = stored
	return nil
}

func (s *Storage) DeleteConversation(ctx context.Context, id model.PersonID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, id)
	return nil
}

// SweepConversations evicts expired conversations and returns how many were
// removed
func (s *Storage) SweepConversations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, conv := range s.conversations {
		if s.expired(conv) {
			delete(s.conversations, id)
			removed++
		}
	}
	return removed
}

// RunSweeper evicts expired conversations every interval until ctx is done
func (s *Storage) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepConversations()
		}
	}
}

func (s *Storage) expired(conv *model.Conversation) bool {
	if s.conversationTTL <= 0 {
		return false
	}
	return s.clock.Now().Sub(conv.UpdatedAt) >= s.conversationTTL
}

// helpers, callers must hold the lock

func (s *Storage) activeDuplicate(kind model.SessionKind, dateLabel string, except model.SessionID) bool {
	for _, session := range s.sessions {
		if session.ID != except && session.IsActive() &&
			session.Kind == kind && session.DateLabel == dateLabel {
			return true
		}
	}
	return false
}

func (s *Storage) checkPairLocked(personID model.PersonID, sessionID model.SessionID) error {
	if _, ok := s.people[personID]; !ok {
		return model.ErrPersonNotFound
	}
	if _, ok := s.sessions[sessionID]; !ok {
		return model.ErrSessionNotFound
	}
	return nil
}

func (s *Storage) registeredLocked(sessionID model.SessionID) []model.PersonID {
	var rows []*entry[model.Registration]
	for key, e := range s.registrations {
		if key.sessionID == sessionID {
			rows = append(rows, e)
		}
	}
	slices.SortFunc(rows, func(a, b *entry[model.Registration]) int {
		return cmp.Compare(a.seq, b.seq)
	})
	ids := make([]model.PersonID, 0, len(rows))
	for _, e := range rows {
		ids = append(ids, e.row.PersonID)
	}
	return ids
}

func (s *Storage) peopleIDsLocked(keep func(model.PersonID) bool) []model.PersonID {
	ids := make([]model.PersonID, 0, len(s.people))
	for id := range s.people {
		if keep(id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func sortSessions(sessions []*model.Session) {
	slices.SortFunc(sessions, func(a, b *model.Session) int {
		return cmp.Compare(a.ID, b.ID)
	})
}
