// Package storagetest holds behaviour tests shared by every Ledger backend.
package storagetest

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/storage"
)

// LedgerSuite runs the ledger contract against a backend. Embedding suites
// set NewLedger before SetupTest runs.
type LedgerSuite struct {
	suite.Suite
	NewLedger func() storage.Ledger

	Ledger storage.Ledger
	Ctx    context.Context
}

func (s *LedgerSuite) SetupTest() {
	s.Require().NotNil(s.NewLedger, "NewLedger must be set")
	s.Ledger = s.NewLedger()
	s.Ctx = context.Background()
}

func (s *LedgerSuite) person(id model.PersonID, nick string) *model.Person {
	p := &model.Person{
		ID:        id,
		FirstName: "Имя",
		LastName:  "Фамилия",
		Nickname:  nick,
		Age:       25,
	}
	s.Require().NoError(s.Ledger.UpsertPerson(s.Ctx, p))
	return p
}

func (s *LedgerSuite) session(kind model.SessionKind, date string) *model.Session {
	session, err := s.Ledger.CreateSession(s.Ctx, kind, date)
	s.Require().NoError(err)
	return session
}

// Person tests

func (s *LedgerSuite) TestUpsertPersonOverwrites() {
	s.person(42, "Ann")

	updated := &model.Person{ID: 42, FirstName: "Anna", LastName: "K", Nickname: "Annie", Age: 30}
	s.Require().NoError(s.Ledger.UpsertPerson(s.Ctx, updated))

	got, err := s.Ledger.GetPerson(s.Ctx, 42)
	s.Require().NoError(err)
	s.Equal("Anna", got.FirstName)
	s.Equal("Annie", got.Nickname)
	s.Equal(30, got.Age)

	people, err := s.Ledger.ListPeople(s.Ctx)
	s.Require().NoError(err)
	s.Len(people, 1)
}

func (s *LedgerSuite) TestGetPersonNotFound() {
	_, err := s.Ledger.GetPerson(s.Ctx, 7)
	s.ErrorIs(err, model.ErrPersonNotFound)
	s.ErrorIs(err, model.ErrNotFound)
}

// Session tests

func (s *LedgerSuite) TestCreateSessionConflict() {
	s.session(model.KindCity, "Сб 21.02")

	_, err := s.Ledger.CreateSession(s.Ctx, model.KindCity, "Сб 21.02")
	s.ErrorIs(err, model.ErrSessionConflict)
	s.ErrorIs(err, model.ErrConflict)

	// Same date, other kind is fine
	s.session(model.KindSport, "Сб 21.02")
}

func (s *LedgerSuite) TestRecreateAfterArchiveYieldsDistinctID() {
	first := s.session(model.KindCity, "Сб 21.02")
	s.Require().NoError(s.Ledger.ArchiveSession(s.Ctx, first.ID))

	second := s.session(model.KindCity, "Сб 21.02")
	s.NotEqual(first.ID, second.ID)

	archived, err := s.Ledger.ListSessions(s.Ctx, model.FilterArchived)
	s.Require().NoError(err)
	s.Require().Len(archived, 1)
	s.Equal(first.ID, archived[0].ID)

	active, err := s.Ledger.ListSessions(s.Ctx, model.FilterActive)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(second.ID, active[0].ID)
}

func (s *LedgerSuite) TestRestoreCollisionFails() {
	first := s.session(model.KindRating, "Пт 20.02")
	s.Require().NoError(s.Ledger.ArchiveSession(s.Ctx, first.ID))
	s.session(model.KindRating, "Пт 20.02")

	err := s.Ledger.RestoreSession(s.Ctx, first.ID)
	s.ErrorIs(err, model.ErrSessionConflict)

	got, err := s.Ledger.GetSession(s.Ctx, first.ID)
	s.Require().NoError(err)
	s.Equal(model.LifecycleArchived, got.Lifecycle)
}

func (s *LedgerSuite) TestArchiveAndRestore() {
	session := s.session(model.KindSport, "Вс 22.02")
	s.Require().NoError(s.Ledger.ArchiveSession(s.Ctx, session.ID))
	s.Require().NoError(s.Ledger.RestoreSession(s.Ctx, session.ID))

	got, err := s.Ledger.GetSession(s.Ctx, session.ID)
	s.Require().NoError(err)
	s.True(got.IsActive())
}

func (s *LedgerSuite) TestArchiveUnknownSession() {
	s.ErrorIs(s.Ledger.ArchiveSession(s.Ctx, 999), model.ErrSessionNotFound)
	s.ErrorIs(s.Ledger.RestoreSession(s.Ctx, 999), model.ErrSessionNotFound)
}

func (s *LedgerSuite) TestListSessionsOrderedByID() {
	a := s.session(model.KindCity, "Сб 21.02")
	b := s.session(model.KindSport, "Сб 21.02")
	c := s.session(model.KindRating, "Пт 27.02")

	all, err := s.Ledger.ListSessions(s.Ctx, model.FilterAll)
	s.Require().NoError(err)
	s.Equal([]model.SessionID{a.ID, b.ID, c.ID}, lo.Map(all, func(x *model.Session, _ int) model.SessionID {
		return x.ID
	}))
}

// Registration tests

func (s *LedgerSuite) TestDoubleRegisterLeavesOneRow() {
	s.person(1, "A")
	session := s.session(model.KindCity, "Сб 21.02")

	recorded, err := s.Ledger.MarkThinking(s.Ctx, 1, session.ID)
	s.Require().NoError(err)
	s.True(recorded)

	s.Require().NoError(s.Ledger.Register(s.Ctx, 1, session.ID))
	s.Require().NoError(s.Ledger.Register(s.Ctx, 1, session.ID))

	participants, err := s.Ledger.ListParticipants(s.Ctx, session.ID)
	s.Require().NoError(err)
	s.Require().Len(participants, 1)
	s.Equal(model.TagRegistered, participants[0].Tag)
}

// assertOneRowPerPerson fails if any person holds more than one row, which
// would mean Registered and Thinking coexist
func (s *LedgerSuite) assertOneRowPerPerson(participants []model.Participant) error {
	seen := make(map[model.PersonID]model.ParticipantTag, len(participants))
	for _, p := range participants {
		if tag, dup := seen[p.Person.ID]; dup {
			return fmt.Errorf("person %d holds %s and %s", p.Person.ID, tag, p.Tag)
		}
		seen[p.Person.ID] = p.Tag
	}
	return nil
}

func (s *LedgerSuite) TestConcurrentTransitionsConverge() {
	const people, rounds = 5, 20
	session := s.session(model.KindCity, "Сб 21.02")
	for i := 1; i <= people; i++ {
		s.person(model.PersonID(i), fmt.Sprintf("P%d", i))
	}

	var g errgroup.Group
	for i := 1; i <= people; i++ {
		id := model.PersonID(i)
		for r := 0; r < rounds; r++ {
			g.Go(func() error { return s.Ledger.Register(s.Ctx, id, session.ID) })
			g.Go(func() error {
				_, err := s.Ledger.MarkThinking(s.Ctx, id, session.ID)
				return err
			})
			g.Go(func() error { return s.Ledger.Register(s.Ctx, id, session.ID) })
			if r%4 == 3 {
				g.Go(func() error { return s.Ledger.CancelRegistration(s.Ctx, id, session.ID) })
			}
		}
	}
	// Readers check the invariant while writers run
	for r := 0; r < rounds; r++ {
		g.Go(func() error {
			participants, err := s.Ledger.ListParticipants(s.Ctx, session.ID)
			if err != nil {
				return err
			}
			return s.assertOneRowPerPerson(participants)
		})
	}
	s.Require().NoError(g.Wait())

	participants, err := s.Ledger.ListParticipants(s.Ctx, session.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.assertOneRowPerPerson(participants))
	s.LessOrEqual(len(participants), people)

	// Whatever the interleaving, a final Register settles every person
	for i := 1; i <= people; i++ {
		s.Require().NoError(s.Ledger.Register(s.Ctx, model.PersonID(i), session.ID))
	}
	participants, err = s.Ledger.ListParticipants(s.Ctx, session.ID)
	s.Require().NoError(err)
	s.Require().Len(participants, people)
	for _, p := range participants {
		s.Equal(model.TagRegistered, p.Tag)
	}
}

func (s *LedgerSuite) TestCancelIsIdempotent() {
	s.person(1, "A")
	session := s.session(model.KindCity, "Сб 21.02")
	s.Require().NoError(s.Ledger.Register(s.Ctx, 1, session.ID))

	s.Require().NoError(s.Ledger.CancelRegistration(s.Ctx, 1, session.ID))
	s.Require().NoError(s.Ledger.CancelRegistration(s.Ctx, 1, session.ID))

	participants, err := s.Ledger.ListParticipants(s.Ctx, session.ID)
	s.Require().NoError(err)
	s.Empty(participants)
}

func (s *LedgerSuite) TestCancelClearsThinking() {
	s.person(1, "A")
	session := s.session(model.KindCity, "Сб 21.02")
	_, err := s.Ledger.MarkThinking(s.Ctx, 1, session.ID)
	s.Require().NoError(err)

	s.Require().NoError(s.Ledger.CancelRegistration(s.Ctx, 1, session.ID))

	participants, err := s.Ledger.ListParticipants(s.Ctx, session.ID)
	s.Require().NoError(err)
	s.Empty(participants)
}

func (s *LedgerSuite) TestMarkThinkingWhenRegisteredIsNoop() {
	s.person(1, "A")
	session := s.session(model.KindCity, "Сб 21.02")
	s.Require().NoError(s.Ledger.Register(s.Ctx, 1, session.ID))

	recorded, err := s.Ledger.MarkThinking(s.Ctx, 1, session.ID)
	s.Require().NoError(err)
	s.False(recorded)

	participants, err := s.Ledger.ListParticipants(s.Ctx, session.ID)
	s.Require().NoError(err)
	s.Require().Len(participants, 1)
	s.Equal(model.TagRegistered, participants[0].Tag)
}

func (s *LedgerSuite) TestRegisterUnknownReferences() {
	s.person(1, "A")
	session := s.session(model.KindCity, "Сб 21.02")

	s.ErrorIs(s.Ledger.Register(s.Ctx, 1, 999), model.ErrSessionNotFound)
	s.ErrorIs(s.Ledger.Register(s.Ctx, 2, session.ID), model.ErrPersonNotFound)
}

func (s *LedgerSuite) TestListParticipantsOrder() {
	s.person(1, "A")
	s.person(2, "B")
	s.person(3, "C")
	s.person(4, "D")
	session := s.session(model.KindCity, "Сб 21.02")

	_, err := s.Ledger.MarkThinking(s.Ctx, 4, session.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.Ledger.Register(s.Ctx, 3, session.ID))
	s.Require().NoError(s.Ledger.Register(s.Ctx, 1, session.ID))
	_, err = s.Ledger.MarkThinking(s.Ctx, 2, session.ID)
	s.Require().NoError(err)

	participants, err := s.Ledger.ListParticipants(s.Ctx, session.ID)
	s.Require().NoError(err)
	s.Require().Len(participants, 4)
	s.Equal(model.PersonID(3), participants[0].Person.ID)
	s.Equal(model.PersonID(1), participants[1].Person.ID)
	s.Equal(model.PersonID(4), participants[2].Person.ID)
	s.Equal(model.PersonID(2), participants[3].Person.ID)
	s.Equal(model.TagRegistered, participants[1].Tag)
	s.Equal(model.TagThinking, participants[2].Tag)
}

func (s *LedgerSuite) TestListParticipantsUnknownSession() {
	_, err := s.Ledger.ListParticipants(s.Ctx, 999)
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *LedgerSuite) TestListSessionsForPersonSkipsArchived() {
	s.person(1, "A")
	a := s.session(model.KindCity, "Сб 21.02")
	b := s.session(model.KindSport, "Вс 22.02")
	s.Require().NoError(s.Ledger.Register(s.Ctx, 1, a.ID))
	s.Require().NoError(s.Ledger.Register(s.Ctx, 1, b.ID))
	s.Require().NoError(s.Ledger.ArchiveSession(s.Ctx, b.ID))

	sessions, err := s.Ledger.ListSessionsForPerson(s.Ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(sessions, 1)
	s.Equal(a.ID, sessions[0].ID)
}

// Cascade tests

func (s *LedgerSuite) TestDeleteSessionCascade() {
	s.person(1, "A")
	s.person(2, "B")
	s.person(3, "C")
	s.person(4, "D")
	session := s.session(model.KindCity, "Сб 21.02")
	other := s.session(model.KindSport, "Сб 21.02")
	for _, id := range []model.PersonID{1, 2, 3} {
		s.Require().NoError(s.Ledger.Register(s.Ctx, id, session.ID))
	}
	_, err := s.Ledger.MarkThinking(s.Ctx, 4, session.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.Ledger.Register(s.Ctx, 1, other.ID))

	removed, err := s.Ledger.DeleteSessionCascade(s.Ctx, session.ID)
	s.Require().NoError(err)
	s.ElementsMatch([]model.PersonID{1, 2, 3}, removed)

	_, err = s.Ledger.GetSession(s.Ctx, session.ID)
	s.ErrorIs(err, model.ErrSessionNotFound)
	_, err = s.Ledger.ListParticipants(s.Ctx, session.ID)
	s.ErrorIs(err, model.ErrSessionNotFound)

	// Other sessions are untouched
	participants, err := s.Ledger.ListParticipants(s.Ctx, other.ID)
	s.Require().NoError(err)
	s.Len(participants, 1)

	_, err = s.Ledger.DeleteSessionCascade(s.Ctx, session.ID)
	s.ErrorIs(err, model.ErrSessionNotFound)
}

// Audience tests

func (s *LedgerSuite) TestAudiencePartition() {
	for i := model.PersonID(1); i <= 5; i++ {
		s.person(i, "P")
	}
	session := s.session(model.KindCity, "Сб 21.02")
	s.Require().NoError(s.Ledger.Register(s.Ctx, 2, session.ID))
	s.Require().NoError(s.Ledger.Register(s.Ctx, 4, session.ID))
	_, err := s.Ledger.MarkThinking(s.Ctx, 5, session.ID)
	s.Require().NoError(err)

	all, err := s.Ledger.SelectAudience(s.Ctx, model.AudienceAll, session.ID)
	s.Require().NoError(err)
	registered, err := s.Ledger.SelectAudience(s.Ctx, model.AudienceRegistered, session.ID)
	s.Require().NoError(err)
	notRegistered, err := s.Ledger.SelectAudience(s.Ctx, model.AudienceNotRegistered, session.ID)
	s.Require().NoError(err)

	s.ElementsMatch([]model.PersonID{2, 4}, registered)
	s.ElementsMatch([]model.PersonID{1, 3, 5}, notRegistered)
	s.Empty(lo.Intersect(registered, notRegistered))
	s.ElementsMatch(all, lo.Union(registered, notRegistered))
}

func (s *LedgerSuite) TestAudienceUnknownCriterion() {
	session := s.session(model.KindCity, "Сб 21.02")
	_, err := s.Ledger.SelectAudience(s.Ctx, model.AudienceManual, session.ID)
	s.ErrorIs(err, model.ErrUnknownAudience)
}

func (s *LedgerSuite) TestAudienceUnknownSession() {
	_, err := s.Ledger.SelectAudience(s.Ctx, model.AudienceRegistered, 999)
	s.ErrorIs(err, model.ErrSessionNotFound)
}

// Schedule text tests

func (s *LedgerSuite) TestScheduleTextSeededAndUpdated() {
	text, err := s.Ledger.GetScheduleText(s.Ctx)
	s.Require().NoError(err)
	s.Equal(storage.DefaultScheduleText, text)

	s.Require().NoError(s.Ledger.SetScheduleText(s.Ctx, "Новое расписание"))
	text, err = s.Ledger.GetScheduleText(s.Ctx)
	s.Require().NoError(err)
	s.Equal("Новое расписание", text)
}
