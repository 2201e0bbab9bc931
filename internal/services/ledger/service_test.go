package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gamenight/internal/dependencies/mocks"
	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/storage"
	"github.com/mcoot/gamenight/internal/storage/memory"
	"github.com/mcoot/gamenight/internal/testutil"
)

// flakyLedger fails the first n reads and every write when writesFail is set
type flakyLedger struct {
	storage.Ledger
	failReads  int
	failWith   error
	reads      int
	writesFail bool
}

func (f *flakyLedger) ListSessions(ctx context.Context, filter model.SessionFilter) ([]*model.Session, error) {
	f.reads++
	if f.failWith != nil {
		return nil, f.failWith
	}
	if f.reads <= f.failReads {
		return nil, model.Unavailable("list sessions", errors.New("disk I/O error"))
	}
	return f.Ledger.ListSessions(ctx, filter)
}

func (f *flakyLedger) SetScheduleText(ctx context.Context, text string) error {
	if f.writesFail {
		f.reads++
		return model.Unavailable("set schedule text", errors.New("disk I/O error"))
	}
	return f.Ledger.SetScheduleText(ctx, text)
}

type ServiceSuite struct {
	suite.Suite
	store   *flakyLedger
	service *Service
	logs    *testutil.LogBuffer
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	clk := mocks.NewMockClock(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	s.store = &flakyLedger{Ledger: memory.New(clk, 0)}
	logger, logs := testutil.CaptureLogger()
	s.logs = logs
	s.service = New(s.store, Config{ReadAttempts: 3, RetryDelay: time.Millisecond}, logger)
	s.ctx = context.Background()
}

func (s *ServiceSuite) validPerson(id model.PersonID) *model.Person {
	return &model.Person{ID: id, FirstName: " Anna ", LastName: "Lee", Nickname: "Annie", Age: 17}
}

func (s *ServiceSuite) TestSaveProfileTrimsAndStores() {
	s.Require().NoError(s.service.SaveProfile(s.ctx, s.validPerson(42)))

	got, err := s.service.GetPerson(s.ctx, 42)
	s.Require().NoError(err)
	s.Equal("Anna", got.FirstName)

	onboarded, err := s.service.IsOnboarded(s.ctx, 42)
	s.Require().NoError(err)
	s.True(onboarded)

	onboarded, err = s.service.IsOnboarded(s.ctx, 43)
	s.Require().NoError(err)
	s.False(onboarded)
}

func (s *ServiceSuite) TestSaveProfileRejectsIncomplete() {
	p := s.validPerson(42)
	p.Nickname = "  "
	err := s.service.SaveProfile(s.ctx, p)
	s.ErrorIs(err, model.ErrInvalidProfile)
	s.ErrorIs(err, model.ErrValidation)

	p = s.validPerson(42)
	p.Age = 0
	s.ErrorIs(s.service.SaveProfile(s.ctx, p), model.ErrInvalidProfile)

	p.Age = 121
	s.ErrorIs(s.service.SaveProfile(s.ctx, p), model.ErrInvalidProfile)

	_, err = s.service.GetPerson(s.ctx, 42)
	s.ErrorIs(err, model.ErrPersonNotFound)
}

func (s *ServiceSuite) TestCreateSessionValidates() {
	_, err := s.service.CreateSession(s.ctx, "poker", "Сб 21.02")
	s.ErrorIs(err, model.ErrUnknownKind)

	_, err = s.service.CreateSession(s.ctx, model.KindCity, "   ")
	s.ErrorIs(err, model.ErrEmptyDateLabel)
}

func (s *ServiceSuite) TestRegisterRejectsArchivedSession() {
	s.Require().NoError(s.service.SaveProfile(s.ctx, s.validPerson(1)))
	session, err := s.service.CreateSession(s.ctx, model.KindCity, "Сб 21.02")
	s.Require().NoError(err)
	s.Require().NoError(s.service.ArchiveSession(s.ctx, session.ID))

	_, err = s.service.Register(s.ctx, 1, session.ID)
	s.ErrorIs(err, model.ErrSessionNotFound)

	_, _, err = s.service.MarkThinking(s.ctx, 1, session.ID)
	s.ErrorIs(err, model.ErrSessionNotFound)

	// Cancelling stays possible
	s.NoError(s.service.CancelRegistration(s.ctx, 1, session.ID))
}

func (s *ServiceSuite) TestCreateRegisterCancelThenParticipantsOfDeleted() {
	s.Require().NoError(s.service.SaveProfile(s.ctx, s.validPerson(1)))
	session, err := s.service.CreateSession(s.ctx, model.KindRating, "Пт 20.02")
	s.Require().NoError(err)

	got, err := s.service.Register(s.ctx, 1, session.ID)
	s.Require().NoError(err)
	s.Equal(session.ID, got.ID)

	s.Require().NoError(s.service.CancelRegistration(s.ctx, 1, session.ID))
	_, err = s.service.DeleteSession(s.ctx, session.ID)
	s.Require().NoError(err)

	_, err = s.service.Participants(s.ctx, session.ID)
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *ServiceSuite) TestReadRetriedOnUnavailable() {
	s.store.failReads = 2

	_, err := s.service.ListSessions(s.ctx, model.FilterActive)
	s.NoError(err)
	s.Equal(3, s.store.reads)
	s.Equal(2, s.logs.Count("ledger read failed, retrying"))
	s.Contains(s.logs.String(), "wait=2ms")
}

func (s *ServiceSuite) TestReadGivesUpAfterAttempts() {
	s.store.failReads = 5

	_, err := s.service.ListSessions(s.ctx, model.FilterActive)
	s.ErrorIs(err, model.ErrStorageUnavailable)
	s.Equal(3, s.store.reads)
}

func (s *ServiceSuite) TestReadNotRetriedOnOtherErrors() {
	s.store.failWith = model.ErrNotFound

	_, err := s.service.ListSessions(s.ctx, model.FilterActive)
	s.ErrorIs(err, model.ErrNotFound)
	s.Equal(1, s.store.reads)
	s.Zero(s.logs.Count("retrying"))
}

func (s *ServiceSuite) TestCancelledReadReportsUnavailable() {
	s.store.failReads = 5
	s.service.cfg.RetryDelay = time.Hour
	ctx, cancel := context.WithCancel(s.ctx)
	time.AfterFunc(10*time.Millisecond, cancel)

	_, err := s.service.ListSessions(ctx, model.FilterActive)
	s.ErrorIs(err, model.ErrStorageUnavailable)
	s.Equal(1, s.store.reads)
}

func (s *ServiceSuite) TestWritesNotRetried() {
	s.store.writesFail = true

	err := s.service.SetScheduleText(s.ctx, "новое")
	s.ErrorIs(err, model.ErrStorageUnavailable)
	s.Equal(1, s.store.reads)
}

func (s *ServiceSuite) TestSetScheduleTextRejectsEmpty() {
	s.ErrorIs(s.service.SetScheduleText(s.ctx, "  "), model.ErrValidation)
}

func (s *ServiceSuite) TestAudienceRejectsManual() {
	_, err := s.service.Audience(s.ctx, model.AudienceManual, 1)
	s.ErrorIs(err, model.ErrUnknownAudience)
}
