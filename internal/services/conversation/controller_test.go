package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gamenight/internal/dependencies/mocks"
	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/services/fanout"
	"github.com/mcoot/gamenight/internal/services/ledger"
	"github.com/mcoot/gamenight/internal/storage/memory"
	"github.com/mcoot/gamenight/internal/testutil"
	"github.com/mcoot/gamenight/internal/transport"
)

const organizer model.PersonID = 1000

type ControllerSuite struct {
	suite.Suite
	ctx        context.Context
	clock      *mocks.MockClock
	store      *memory.Storage
	ledger     *ledger.Service
	transport  *testutil.RecordingTransport
	controller *Controller
	actionSeq  int
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = mocks.NewMockClock(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	s.store = memory.New(s.clock, 30*time.Minute)
	s.ledger = ledger.New(s.store, ledger.DefaultConfig(), testutil.NopLogger())
	s.transport = testutil.NewRecordingTransport()
	fan := fanout.New(s.ledger, s.transport, organizer, fanout.DefaultConfig(), testutil.NopLogger())

	cfg := DefaultConfig()
	cfg.OrganizerID = organizer
	s.controller = NewController(s.ledger, fan, s.store, s.transport, s.clock, cfg, testutil.NopLogger())
}

// Helpers

func (s *ControllerSuite) say(id model.PersonID, text string) {
	s.Require().NoError(s.controller.HandleMessage(s.ctx, &transport.Message{
		PersonID: id,
		Handle:   "handle",
		Text:     text,
	}))
}

func (s *ControllerSuite) press(id model.PersonID, data string, ref transport.MessageRef) {
	s.actionSeq++
	s.Require().NoError(s.controller.HandleAction(s.ctx, &transport.Action{
		ID:       fmt.Sprintf("action-%d", s.actionSeq),
		PersonID: id,
		Message:  ref,
		Data:     data,
	}))
}

func (s *ControllerSuite) lastText(id model.PersonID) string {
	msg, ok := s.transport.Last(id)
	s.Require().True(ok, "nothing sent to %d", id)
	return msg.Text
}

func (s *ControllerSuite) lastAnswer() testutil.ActionAnswer {
	answers := s.transport.Answers()
	s.Require().NotEmpty(answers)
	return answers[len(answers)-1]
}

func (s *ControllerSuite) conversation(id model.PersonID) *model.Conversation {
	conv, err := s.store.LoadConversation(s.ctx, id)
	if errors.Is(err, model.ErrConversationNotFound) {
		return &model.Conversation{PersonID: id}
	}
	s.Require().NoError(err)
	return conv
}

func (s *ControllerSuite) onboard(id model.PersonID, nick string) {
	s.Require().NoError(s.ledger.SaveProfile(s.ctx, &model.Person{
		ID: id, FirstName: "Имя", LastName: "Фамилия", Nickname: nick, Age: 25,
	}))
}

func (s *ControllerSuite) createSession(kind model.SessionKind, date string) *model.Session {
	session, err := s.ledger.CreateSession(s.ctx, kind, date)
	s.Require().NoError(err)
	return session
}

func (s *ControllerSuite) openAdminPanel() {
	s.onboard(organizer, "Орг")
	s.say(organizer, btnAdminPanel)
	s.Require().Equal(model.StateAdminMenu, s.conversation(organizer).State)
}

// Onboarding

func (s *ControllerSuite) TestOnboardingPerson42() {
	s.say(42, "/start")
	s.Equal(model.StateStart, s.conversation(42).State)
	first, _ := s.transport.Last(42)
	s.Contains(first.Text, "Готов познакомиться?")
	s.Require().NotNil(first.Keyboard)

	s.say(42, "ДА")
	s.Equal(model.StateGetName, s.conversation(42).State)
	s.Equal(promptFirstName, s.lastText(42))

	s.say(42, "Анна")
	s.say(42, "Иванова")
	s.say(42, "Ann")
	s.Equal(model.StateGetAge, s.conversation(42).State)
	s.Equal("Ann", s.conversation(42).Draft.Nickname)

	s.say(42, "abc")
	s.Equal(model.StateGetAge, s.conversation(42).State)
	s.Equal(msgAgeNotNumber, s.lastText(42))

	s.say(42, "17")

	conv := s.conversation(42)
	s.Equal(model.StateMenu, conv.State)
	s.Empty(conv.Draft.FirstName)

	person, err := s.ledger.GetPerson(s.ctx, 42)
	s.Require().NoError(err)
	s.Equal("Анна", person.FirstName)
	s.Equal("Иванова", person.LastName)
	s.Equal("Ann", person.Nickname)
	s.Equal(17, person.Age)
	s.Equal("handle", person.Handle)

	msgs := s.transport.SentTo(42)
	s.Require().GreaterOrEqual(len(msgs), 2)
	s.Equal(msgAgeNotice, msgs[len(msgs)-2].Text)
	s.Contains(msgs[len(msgs)-1].Text, "Спасибо за знакомство!")
	s.Require().NotNil(msgs[len(msgs)-1].Keyboard)
	s.NotContains(msgs[len(msgs)-1].Keyboard.Rows[2], btnAdminPanel)
}

func (s *ControllerSuite) TestAdultSkipsAgeNotice() {
	s.say(5, "/start")
	s.say(5, "да")
	s.say(5, "Иван")
	s.say(5, "Петров")
	s.say(5, "Ivan")
	s.say(5, "30")

	for _, m := range s.transport.SentTo(5) {
		s.NotEqual(msgAgeNotice, m.Text)
	}
	s.Equal(model.StateMenu, s.conversation(5).State)
}

func (s *ControllerSuite) TestAgeOutOfRange() {
	s.say(5, "/start")
	s.say(5, "да")
	s.say(5, "Иван")
	s.say(5, "Петров")
	s.say(5, "Ivan")

	for _, age := range []string{"0", "121", "-3"} {
		s.say(5, age)
		s.Equal(msgAgeOutOfRange, s.lastText(5), age)
		s.Equal(model.StateGetAge, s.conversation(5).State)
	}

	_, err := s.ledger.GetPerson(s.ctx, 5)
	s.ErrorIs(err, model.ErrPersonNotFound)

	s.say(5, "120")
	person, err := s.ledger.GetPerson(s.ctx, 5)
	s.Require().NoError(err)
	s.Equal(120, person.Age)
}

func (s *ControllerSuite) TestAgeRepromptsQuoteAcceptedRange() {
	bounds := "от " + strconv.Itoa(minAge) + " до " + strconv.Itoa(maxAge)
	s.Contains(msgAgeOutOfRange, bounds)
	s.Contains(msgAgeNotNumber, bounds)

	_, err := parseAge(strconv.Itoa(minAge))
	s.NoError(err)
	_, err = parseAge(strconv.Itoa(minAge - 1))
	s.ErrorIs(err, model.ErrInvalidAge)
	_, err = parseAge(strconv.Itoa(maxAge + 1))
	s.ErrorIs(err, model.ErrInvalidAge)
}

func (s *ControllerSuite) TestDecliningOnboarding() {
	s.say(5, "/start")
	s.say(5, "нет")
	s.Equal(msgComeBackLater, s.lastText(5))
	s.Equal(model.StateStart, s.conversation(5).State)

	s.say(5, "может быть")
	s.Equal(msgUseButtons, s.lastText(5))
}

func (s *ControllerSuite) TestStartForKnownPersonOffersUpdate() {
	s.onboard(7, "Seven")

	s.say(7, "/start")
	s.Equal(model.StateConfirmProfileUpdate, s.conversation(7).State)
	s.Contains(s.lastText(7), "С возвращением, Seven!")

	s.say(7, btnKeepProfile)
	s.Equal(model.StateMenu, s.conversation(7).State)

	s.say(7, "/start")
	s.say(7, btnUpdateProfile)
	s.Equal(model.StateGetName, s.conversation(7).State)
	s.Equal(promptUpdate, s.lastText(7))
}

func (s *ControllerSuite) TestStartRestartsFromAnyState() {
	s.onboard(7, "Seven")
	s.createSession(model.KindCity, "Сб 21.02")
	s.say(7, btnRegister)
	s.Require().Equal(model.StateGameRegistration, s.conversation(7).State)

	s.say(7, "/start")
	conv := s.conversation(7)
	s.Equal(model.StateConfirmProfileUpdate, conv.State)
	s.Empty(conv.Draft.Choices)
}

// Conversation context

func (s *ControllerSuite) TestUnknownPersonWithoutContextIsAskedToStart() {
	s.say(9, "привет")

	s.Equal(msgSendStart, s.lastText(9))
	_, err := s.store.LoadConversation(s.ctx, 9)
	s.ErrorIs(err, model.ErrConversationNotFound)
}

func (s *ControllerSuite) TestEvictedConversationFallsBackToMenu() {
	s.onboard(7, "Seven")
	session := s.createSession(model.KindCity, "Сб 21.02")
	s.say(7, btnRegister)
	s.Require().Equal(model.StateGameRegistration, s.conversation(7).State)

	s.clock.Advance(31 * time.Minute)
	s.say(7, prefixDate+session.Title())

	s.Equal(msgUseMenu, s.lastText(7))
	s.Equal(model.StateMenu, s.conversation(7).State)
	participants, err := s.ledger.Participants(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Empty(participants)
}

// User flows

func (s *ControllerSuite) TestRegisterAndCancelFromMenu() {
	s.onboard(7, "Seven")
	session := s.createSession(model.KindSport, "Вс 22.02")

	s.say(7, btnRegister)
	s.Equal(model.StateGameRegistration, s.conversation(7).State)
	s.say(7, prefixDate+session.Title())

	s.Equal(model.StateMenu, s.conversation(7).State)
	s.Contains(s.lastText(7), "Ты успешно записался на игру "+session.Title())
	s.Contains(s.lastText(7), "меньше 10 человек")
	s.Equal("Новая запись: Имя Фамилия (Seven) на "+session.Title(), s.lastText(organizer))

	participants, err := s.ledger.Participants(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Require().Len(participants, 1)

	s.say(7, btnCancel)
	s.Equal(model.StateGameCancellation, s.conversation(7).State)
	s.say(7, prefixDate+session.Title())

	s.Equal(msgRegistrationCancelled, s.lastText(7))
	s.Contains(s.lastText(organizer), "❌ Отмена записи")
	participants, err = s.ledger.Participants(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Empty(participants)

	s.say(7, btnCancel)
	s.Equal("Ты пока не записан ни на какую игру.", s.lastText(7))
}

func (s *ControllerSuite) TestNoGamesToRegister() {
	s.onboard(7, "Seven")
	s.say(7, btnRegister)

	s.Equal("К сожалению, на данный момент игр для записи нет.", s.lastText(7))
	s.Equal(model.StateMenu, s.conversation(7).State)
}

func (s *ControllerSuite) TestUnknownChoiceReprompts() {
	s.onboard(7, "Seven")
	s.createSession(model.KindCity, "Сб 21.02")
	s.say(7, btnRegister)

	s.say(7, "какая-то игра")
	s.Equal(msgPickFromList, s.lastText(7))
	s.Equal(model.StateGameRegistration, s.conversation(7).State)
}

func (s *ControllerSuite) TestChoiceForVanishedSession() {
	s.onboard(7, "Seven")
	session := s.createSession(model.KindCity, "Сб 21.02")
	s.say(7, btnRegister)

	_, err := s.ledger.DeleteSession(s.ctx, session.ID)
	s.Require().NoError(err)
	s.say(7, prefixDate+session.Title())

	s.Equal(msgSessionNotFound, s.lastText(7))
	s.Equal(model.StateMenu, s.conversation(7).State)
}

func (s *ControllerSuite) TestScheduleAndParticipantsViews() {
	s.onboard(7, "Seven")
	s.onboard(8, "Eight")
	session := s.createSession(model.KindRating, "Пт 27.02")
	_, err := s.ledger.Register(s.ctx, 8, session.ID)
	s.Require().NoError(err)
	_, _, err = s.ledger.MarkThinking(s.ctx, 7, session.ID)
	s.Require().NoError(err)

	s.say(7, btnSchedule)
	s.Contains(s.lastText(7), prefixDate+session.Title())
	s.Contains(s.lastText(7), "19:00")

	s.say(7, btnParticipants)
	s.say(7, prefixParticipants+session.Title())
	text := s.lastText(7)
	s.Contains(text, "1. Eight")
	s.Contains(text, "- Seven (думает)")
	s.NotContains(text, "Фамилия")
}

func (s *ControllerSuite) TestBackReturnsToMenu() {
	s.onboard(7, "Seven")
	s.createSession(model.KindCity, "Сб 21.02")
	s.say(7, btnRegister)

	s.say(7, btnBackToMenu)
	conv := s.conversation(7)
	s.Equal(model.StateMenu, conv.State)
	s.Empty(conv.Draft.Choices)
	s.Equal(msgBackToMenu, s.lastText(7))
}

// Organizer flows

func (s *ControllerSuite) TestNonOrganizerCannotOpenAdminPanel() {
	s.onboard(7, "Seven")
	s.say(7, btnAdminPanel)

	s.Equal(msgUseMenu, s.lastText(7))
	s.Equal(model.StateMenu, s.conversation(7).State)
}

func (s *ControllerSuite) TestNonOrganizerInAdminStateIsSentToMenu() {
	s.onboard(7, "Seven")
	s.Require().NoError(s.store.SaveConversation(s.ctx, &model.Conversation{
		PersonID: 7,
		State:    model.StateAdminBroadcast,
	}))

	s.say(7, "всем привет")

	s.Equal(model.StateMenu, s.conversation(7).State)
	s.Equal(msgUseMenu, s.lastText(7))
}

func (s *ControllerSuite) TestTypedDateResendsBrowsedMonth() {
	s.openAdminPanel()
	s.say(organizer, btnAddGame)
	calendar, _ := s.transport.Last(organizer)
	s.press(organizer, "cal:next:2026-03", calendar.Ref)

	s.say(organizer, "21 марта")

	s.Equal(model.StateAddGameDate, s.conversation(organizer).State)
	resent, _ := s.transport.Last(organizer)
	s.Equal("Выберите дату в календаре:", resent.Text)
	s.Require().NotNil(resent.Inline)
	s.Equal("Март 2026", resent.Inline.Rows[0][0].Text)
}

func (s *ControllerSuite) TestCreateRegisterCancelEndsInNotFound() {
	s.openAdminPanel()
	s.onboard(7, "Seven")

	s.say(organizer, btnAddGame)
	s.Equal(model.StateAddGameDate, s.conversation(organizer).State)
	calendar, _ := s.transport.Last(organizer)
	s.Require().NotNil(calendar.Inline)

	s.press(organizer, "cal:next:2026-03", calendar.Ref)
	s.Equal("2026-03", s.conversation(organizer).Draft.CalendarMonth)
	s.Len(s.transport.KeyboardEdits(), 1)

	s.press(organizer, "cal:day:2026-02-21", calendar.Ref)
	conv := s.conversation(organizer)
	s.Equal(model.StateAddGameType, conv.State)
	s.Equal("Сб 21.02", conv.Draft.GameDate)

	s.say(organizer, model.KindCity.Label())
	s.Equal(model.StateAdminMenu, s.conversation(organizer).State)
	s.Equal("Игра 'Сб 21.02 🏙️Городская мафия' успешно добавлена!", s.lastText(organizer))

	sessions, err := s.ledger.ListSessions(s.ctx, model.FilterActive)
	s.Require().NoError(err)
	s.Require().Len(sessions, 1)
	session := sessions[0]

	s.press(7, fanout.ActionRegister+":"+itoa(session.ID), transport.MessageRef{ChatID: 7, MessageID: 1})
	s.Equal("Запись подтверждена! 😊", s.lastAnswer().Text)

	s.say(organizer, btnCancelGame)
	s.say(organizer, session.Title())
	s.Contains(s.lastText(organizer), "Игроки (1 чел.) уведомлены.")
	s.Equal(fanout.CancellationText(session), s.lastText(7))

	_, err = s.ledger.GetSession(s.ctx, session.ID)
	s.ErrorIs(err, model.ErrSessionNotFound)

	s.press(7, fanout.ActionRegister+":"+itoa(session.ID), transport.MessageRef{ChatID: 7, MessageID: 1})
	answer := s.lastAnswer()
	s.Equal(msgSessionNotFound, answer.Text)
	s.True(answer.Alert)
}

func (s *ControllerSuite) TestAddGameConflict() {
	s.openAdminPanel()
	s.createSession(model.KindCity, "Сб 21.02")

	s.say(organizer, btnAddGame)
	calendar, _ := s.transport.Last(organizer)
	s.press(organizer, "cal:day:2026-02-21", calendar.Ref)
	s.say(organizer, model.KindCity.Label())

	s.Equal(msgSessionConflict, s.lastText(organizer))
	s.Equal(model.StateAdminMenu, s.conversation(organizer).State)
}

func (s *ControllerSuite) TestBackDiscardsGameDraft() {
	s.openAdminPanel()

	s.say(organizer, btnAddGame)
	calendar, _ := s.transport.Last(organizer)
	s.press(organizer, "cal:day:2026-02-21", calendar.Ref)
	s.Require().Equal("Сб 21.02", s.conversation(organizer).Draft.GameDate)

	s.say(organizer, btnBack)
	conv := s.conversation(organizer)
	s.Equal(model.StateAdminMenu, conv.State)
	s.Empty(conv.Draft.GameDate)

	sessions, err := s.ledger.ListSessions(s.ctx, model.FilterAll)
	s.Require().NoError(err)
	s.Empty(sessions)
}

func (s *ControllerSuite) TestCalendarIgnoredOutsideDatePicker() {
	s.openAdminPanel()

	s.press(organizer, "cal:day:2026-02-21", transport.MessageRef{ChatID: organizer, MessageID: 1})

	s.Equal(msgListInactive, s.lastAnswer().Text)
	s.Equal(model.StateAdminMenu, s.conversation(organizer).State)
}

func (s *ControllerSuite) TestArchiveAndRestore() {
	s.openAdminPanel()
	session := s.createSession(model.KindSport, "Вс 22.02")

	s.say(organizer, btnDeleteGame)
	s.say(organizer, session.Title())
	s.Contains(s.lastText(organizer), "удалена")

	archived, err := s.ledger.ListSessions(s.ctx, model.FilterArchived)
	s.Require().NoError(err)
	s.Require().Len(archived, 1)

	s.say(organizer, btnRestoreGame)
	s.say(organizer, session.Title()+" (архив)")
	s.Contains(s.lastText(organizer), "успешно восстановлена")

	restored, err := s.ledger.GetSession(s.ctx, session.ID)
	s.Require().NoError(err)
	s.True(restored.IsActive())
}

func (s *ControllerSuite) TestAdminParticipantsShowFullNames() {
	s.openAdminPanel()
	s.onboard(7, "Seven")
	session := s.createSession(model.KindCity, "Сб 21.02")
	_, err := s.ledger.Register(s.ctx, 7, session.ID)
	s.Require().NoError(err)

	s.say(organizer, btnAdminParticipants)
	s.say(organizer, session.Title())

	s.Contains(s.lastText(organizer), "1. Имя Фамилия (Seven)")
	s.Equal(model.StateAdminMenu, s.conversation(organizer).State)
}

func (s *ControllerSuite) TestEditSchedule() {
	s.openAdminPanel()

	s.say(organizer, btnEditSchedule)
	s.Equal(model.StateEditSchedule, s.conversation(organizer).State)
	s.say(organizer, "Играем по пятницам и субботам")

	text, err := s.ledger.ScheduleText(s.ctx)
	s.Require().NoError(err)
	s.Equal("Играем по пятницам и субботам", text)
	s.Equal("Расписание успешно обновлено!", s.lastText(organizer))
}

func (s *ControllerSuite) TestReminderToRegistered() {
	s.openAdminPanel()
	s.onboard(1, "One")
	s.onboard(2, "Two")
	session := s.createSession(model.KindCity, "Сб 21.02")
	_, err := s.ledger.Register(s.ctx, 2, session.ID)
	s.Require().NoError(err)

	s.say(organizer, btnRemind)
	s.say(organizer, session.Title())
	s.Equal(model.StateAdminReminderAudience, s.conversation(organizer).State)

	s.say(organizer, "не кнопка")
	s.Equal("Пожалуйста, используйте кнопки.", s.lastText(organizer))

	s.say(organizer, btnAudienceRegistered)
	s.Equal("Напоминания отправлены 1 пользователям.", s.lastText(organizer))
	s.Empty(s.transport.SentTo(1))
	reminder, _ := s.transport.Last(2)
	s.Equal(fanout.ReminderText(session), reminder.Text)
	s.Equal(fanout.ReminderActions(session.ID), reminder.Inline)
}

func (s *ControllerSuite) TestReminderWithEmptyAudience() {
	s.openAdminPanel()
	session := s.createSession(model.KindCity, "Сб 21.02")

	s.say(organizer, btnRemind)
	s.say(organizer, session.Title())
	s.say(organizer, btnAudienceRegistered)

	s.Equal("Нет пользователей, подходящих под критерии.", s.lastText(organizer))
	s.Equal(model.StateAdminMenu, s.conversation(organizer).State)
}

func (s *ControllerSuite) TestManualReminderSelection() {
	s.openAdminPanel()
	s.onboard(1, "One")
	s.onboard(2, "Two")
	s.onboard(3, "Three")
	session := s.createSession(model.KindCity, "Сб 21.02")

	s.say(organizer, btnRemind)
	s.say(organizer, session.Title())
	s.say(organizer, btnAudienceManual)
	s.Equal(model.StateAdminReminderCustomUser, s.conversation(organizer).State)
	list, _ := s.transport.Last(organizer)
	s.Require().NotNil(list.Inline)

	s.press(organizer, pickDone, list.Ref)
	answer := s.lastAnswer()
	s.Equal("Никто не выбран!", answer.Text)
	s.True(answer.Alert)

	s.press(organizer, "pick:2", list.Ref)
	s.Equal("Пользователь добавлен в список", s.lastAnswer().Text)
	s.press(organizer, "pick:3", list.Ref)
	s.press(organizer, "pick:3", list.Ref)
	s.Equal("Пользователь удален из списка", s.lastAnswer().Text)
	s.Equal([]model.PersonID{2}, s.conversation(organizer).Draft.Selected)

	edits := s.transport.KeyboardEdits()
	s.Require().Len(edits, 3)
	rows := edits[0].Keyboard.Rows
	s.Equal(selectMark+"Имя Фамилия (Two)", rows[1][0].Text)
	s.Equal("Имя Фамилия (One)", rows[0][0].Text)

	s.press(organizer, pickDone, list.Ref)

	s.Empty(s.transport.SentTo(1))
	s.Empty(s.transport.SentTo(3))
	reminder, ok := s.transport.Last(2)
	s.Require().True(ok)
	s.Equal(fanout.ReminderText(session), reminder.Text)

	textEdits := s.transport.TextEdits()
	s.Require().Len(textEdits, 1)
	s.Equal("Напоминания отправлены 1 выбранным пользователям.", textEdits[0].Text)
	s.Equal(model.StateAdminMenu, s.conversation(organizer).State)
}

func (s *ControllerSuite) TestBroadcast() {
	s.openAdminPanel()
	s.onboard(1, "One")
	s.transport.FailFor(1)

	s.say(organizer, btnBroadcast)
	s.say(organizer, "Завтра играем!")

	s.Equal("Сообщение отправлено 1 пользователям.\nНе доставлено: 1.", s.lastText(organizer))
}

// Reminder actions

func (s *ControllerSuite) TestThinkingActionWorksFromAnyState() {
	s.onboard(7, "Seven")
	session := s.createSession(model.KindCity, "Сб 21.02")
	s.say(7, btnRegister)

	s.press(7, fanout.ActionThinking+":"+itoa(session.ID), transport.MessageRef{ChatID: 7, MessageID: 1})
	s.Equal("Админ уведомлен, что вы думаете! 😊", s.lastAnswer().Text)
	s.Contains(s.lastText(organizer), "🤔 Игрок думает")
	s.Equal(model.StateGameRegistration, s.conversation(7).State)

	participants, err := s.ledger.Participants(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Require().Len(participants, 1)
	s.Equal(model.TagThinking, participants[0].Tag)

	s.press(7, fanout.ActionUnregister+":"+itoa(session.ID), transport.MessageRef{ChatID: 7, MessageID: 1})
	s.Equal(msgRegistrationCancelled, s.lastText(7))
	participants, err = s.ledger.Participants(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Empty(participants)
}

func (s *ControllerSuite) TestRegisterActionRequiresProfile() {
	session := s.createSession(model.KindCity, "Сб 21.02")

	s.press(9, fanout.ActionRegister+":"+itoa(session.ID), transport.MessageRef{ChatID: 9, MessageID: 1})

	s.Equal(msgSendStart, s.lastAnswer().Text)
}

// Failures

type brokenConversations struct{}

func (brokenConversations) LoadConversation(context.Context, model.PersonID) (*model.Conversation, error) {
	return nil, model.Unavailable("load conversation", errors.New("connection refused"))
}

func (brokenConversations) SaveConversation(context.Context, *model.Conversation) error {
	return model.Unavailable("save conversation", errors.New("connection refused"))
}

func (brokenConversations) DeleteConversation(context.Context, model.PersonID) error {
	return model.Unavailable("delete conversation", errors.New("connection refused"))
}

func (s *ControllerSuite) TestStorageUnavailableReportsFailure() {
	fan := fanout.New(s.ledger, s.transport, organizer, fanout.DefaultConfig(), testutil.NopLogger())
	controller := NewController(s.ledger, fan, brokenConversations{}, s.transport, s.clock, DefaultConfig(), testutil.NopLogger())

	err := controller.HandleMessage(s.ctx, &transport.Message{PersonID: 7, Text: "/start"})

	s.ErrorIs(err, model.ErrStorageUnavailable)
	s.Equal(msgTryLater, s.lastText(7))
}

func itoa(id model.SessionID) string {
	return strconv.FormatInt(int64(id), 10)
}
