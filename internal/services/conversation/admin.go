package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/transport"
)

var audienceByLabel = map[string]model.AudienceCriterion{
	btnAudienceAll:           model.AudienceAll,
	btnAudienceRegistered:    model.AudienceRegistered,
	btnAudienceNotRegistered: model.AudienceNotRegistered,
}

func (c *Controller) stepAdminMenu(ctx context.Context, conv *model.Conversation, msg *transport.Message) error {
	id := conv.PersonID
	switch msg.Text {
	case btnAddGame:
		now := c.clock.Now()
		conv.Reset(model.StateAddGameDate)
		conv.Draft.CalendarMonth = transport.MonthKey(now)
		c.reply(ctx, id, "➕ Добавление новой игры", backKeyboard())
		c.send(ctx, id, transport.Outgoing{Text: "Выберите дату игры:", Inline: transport.Calendar(now)})

	case btnDeleteGame:
		return c.offerAdminSessions(ctx, conv, model.FilterActive, model.StateDeleteGame,
			"Какую игру удалить?", "Список активных игр пуст.")

	case btnRestoreGame:
		return c.offerAdminSessions(ctx, conv, model.FilterArchived, model.StateRestoreGame,
			"Какую игру восстановить?", "Нет удаленных игр для восстановления.")

	case btnCancelGame:
		return c.offerAdminSessions(ctx, conv, model.FilterActive, model.StateAdminCancelGame,
			"Выберите игру для отмены и уведомления игроков:", "Список активных игр пуст.")

	case btnRemind:
		return c.offerAdminSessions(ctx, conv, model.FilterActive, model.StateAdminReminder,
			"Выберите игру, о которой нужно напомнить:", "Список активных игр пуст.")

	case btnAdminParticipants:
		return c.offerAdminSessions(ctx, conv, model.FilterAll, model.StateViewParticipants,
			"Выберите игру для просмотра списка участников:", "Список игр пуст.")

	case btnBroadcast:
		conv.Reset(model.StateAdminBroadcast)
		c.reply(ctx, id, "Введите сообщение для рассылки всем пользователям:", backKeyboard())

	case btnEditSchedule:
		current, err := c.ledger.ScheduleText(ctx)
		if err != nil {
			return err
		}
		conv.Reset(model.StateEditSchedule)
		c.reply(ctx, id, "Текущий текст расписания:\n\n"+current+"\n\nОтправьте новый текст:", backKeyboard())

	case btnMainMenu:
		conv.Reset(model.StateMenu)
		c.reply(ctx, id, "Вы вернулись в главное меню.", c.mainMenu(id))

	default:
		c.reply(ctx, id, msgUseMenu, adminMenu())
	}
	return nil
}

func (c *Controller) offerAdminSessions(
	ctx context.Context,
	conv *model.Conversation,
	filter model.SessionFilter,
	next model.State,
	prompt, empty string,
) error {
	sessions, err := c.ledger.ListSessions(ctx, filter)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		c.reply(ctx, conv.PersonID, empty, adminMenu())
		return nil
	}
	c.offerSessions(ctx, conv, sessions, "", btnBack, next, prompt)
	return nil
}

// Adding a game

func (c *Controller) stepAddGameDate(ctx context.Context, conv *model.Conversation, msg *transport.Message) error {
	if msg.Text == btnBack {
		c.backToMenu(ctx, conv)
		return nil
	}
	// Show the month the organizer was browsing, not the current one
	month, err := transport.ParseMonthKey(conv.Draft.CalendarMonth)
	if err != nil {
		month = c.clock.Now()
	}
	c.send(ctx, conv.PersonID, transport.Outgoing{Text: "Выберите дату в календаре:", Inline: transport.Calendar(month)})
	return nil
}

func (c *Controller) onCalendar(ctx context.Context, conv *model.Conversation, action *transport.Action) error {
	pressed, err := transport.ParseCalendarAction(action.Data)
	if err != nil {
		c.logger.Warn("bad calendar action", slog.String("data", action.Data), slog.String("error", err.Error()))
		c.answer(ctx, action, "", false)
		return nil
	}

	switch pressed.Verb {
	case transport.CalendarPrevMonth, transport.CalendarNextMonth:
		conv.Draft.CalendarMonth = transport.MonthKey(pressed.Month)
		if err := c.transport.EditActions(ctx, action.Message, transport.Calendar(pressed.Month)); err != nil {
			c.logger.Warn("calendar edit failed", slog.String("error", err.Error()))
		}
	case transport.CalendarPick:
		label := transport.DateLabel(pressed.Day)
		conv.Draft.GameDate = label
		conv.Transition(model.StateAddGameType)
		if err := c.transport.EditText(ctx, action.Message, "Дата игры: "+label, nil); err != nil {
			c.logger.Warn("calendar edit failed", slog.String("error", err.Error()))
		}
		c.reply(ctx, conv.PersonID, "Выбрана дата: "+label+"\nТеперь выберите тип игры:", kindKeyboard())
	}
	c.answer(ctx, action, "", false)
	return nil
}

func (c *Controller) stepAddGameType(ctx context.Context, conv *model.Conversation, msg *transport.Message) error {
	if msg.Text == btnBack {
		c.backToMenu(ctx, conv)
		return nil
	}
	kind, err := model.KindFromLabel(msg.Text)
	if err != nil {
		c.reply(ctx, conv.PersonID, "Пожалуйста, выберите один из вариантов кнопками.", kindKeyboard())
		return nil
	}
	session, err := c.ledger.CreateSession(ctx, kind, conv.Draft.GameDate)
	if err != nil {
		return err
	}
	conv.Reset(model.StateAdminMenu)
	c.reply(ctx, conv.PersonID, fmt.Sprintf("Игра '%s' успешно добавлена!", session.Title()), adminMenu())
	return nil
}

// Session lifecycle

func (c *Controller) stepDeleteGame(ctx context.Context, conv *model.Conversation, msg *transport.Message) error {
	sessionID, ok := c.chooseSession(ctx, conv, msg, btnBack)
	if !ok {
		return nil
	}
	session, err := c.ledger.GetActiveSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := c.ledger.ArchiveSession(ctx, sessionID); err != nil {
		return err
	}
	conv.Reset(model.StateAdminMenu)
	c.reply(ctx, conv.PersonID, fmt.Sprintf(
		"Игра '%s' удалена. Ты можешь восстановить её через меню восстановления.", session.Title(),
	), adminMenu())
	return nil
}

func (c *Controller) stepRestoreGame(ctx context.Context, conv *model.Conversation, msg *transport.Message) error {
	sessionID, ok := c.chooseSession(ctx, conv, msg, btnBack)
	if !ok {
		return nil
	}
	session, err := c.ledger.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := c.ledger.RestoreSession(ctx, sessionID); err != nil {
		return err
	}
	conv.Reset(model.StateAdminMenu)
	c.reply(ctx, conv.PersonID, fmt.Sprintf(
		"Игра '%s' успешно восстановлена вместе со всеми участниками!", session.Title(),
	), adminMenu())
	return nil
}

func (c *Controller) stepAdminParticipants(ctx context.Context, conv *model.Conversation, msg *transport.Message) error {
	sessionID, ok := c.chooseSession(ctx, conv, msg, btnBack)
	if !ok {
		return nil
	}
	session, err := c.ledger.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	participants, err := c.ledger.Participants(ctx, sessionID)
	if err != nil {
		return err
	}
	conv.Reset(model.StateAdminMenu)
	c.reply(ctx, conv.PersonID, participantsText(session, participants, true), adminMenu())
	return nil
}

func (c *Controller) stepCancelGame(ctx context.Context, conv *model.Conversation, msg *transport.Message) error {
	sessionID, ok := c.chooseSession(ctx, conv, msg, btnBack)
	if !ok {
		return nil
	}
	session, err := c.ledger.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	removed, report, err := c.fanout.CancelSession(ctx, sessionID)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Игра '%s' отменена. Игроки (%d чел.) уведомлены.", session.Title(), len(removed))
	if report.Failed > 0 {
		text += fmt.Sprintf("\nНе доставлено: %d.", report.Failed)
	}
	conv.Reset(model.StateAdminMenu)
	c.reply(ctx, conv.PersonID, text, adminMenu())
	return nil
}

func (c *Controller) stepEditSchedule(ctx context.Context, conv *model.Conversation, msg *transport.Message) error {
	if msg.Text == btnBack {
		c.backToMenu(ctx, conv)
		return nil
	}
	if err := c.ledger.SetScheduleText(ctx, msg.Text); err != nil {
		return err
	}
	conv.Reset(model.StateAdminMenu)
	c.reply(ctx, conv.PersonID, "Расписание успешно обновлено!", adminMenu())
	return nil
}

// Reminders and broadcasts

func (c *Controller) stepReminderSession(ctx context.Context, conv *model.Conversation, msg *transport.Message) error {
	sessionID, ok := c.chooseSession(ctx, conv, msg, btnBack)
	if !ok {
		return nil
	}
	if _, err := c.ledger.GetActiveSession(ctx, sessionID); err != nil {
		return err
	}
	conv.Draft.Choices = nil
	conv.Draft.ReminderSession = sessionID
	conv.Transition(model.StateAdminReminderAudience)
	c.reply(ctx, conv.PersonID, "Кому отправить напоминание?", audienceKeyboard())
	return nil
}

func (c *Controller) stepReminderAudience(ctx context.Context, conv *model.Conversation, msg *transport.Message) error {
	switch msg.Text {
	case btnBack:
		c.backToMenu(ctx, conv)
		return nil
	case btnAudienceManual:
		return c.offerPeople(ctx, conv)
	}

	criterion, ok := audienceByLabel[msg.Text]
	if !ok {
		c.reply(ctx, conv.PersonID, "Пожалуйста, используйте кнопки.", audienceKeyboard())
		return nil
	}
	report, err := c.fanout.SendReminder(ctx, conv.Draft.ReminderSession, criterion)
	if errors.Is(err, model.ErrEmptyAudience) {
		conv.Reset(model.StateAdminMenu)
		c.reply(ctx, conv.PersonID, "Нет пользователей, подходящих под критерии.", adminMenu())
		return nil
	}
	if err != nil {
		return err
	}
	conv.Reset(model.StateAdminMenu)
	c.reply(ctx, conv.PersonID, reportText("Напоминания отправлены", report), adminMenu())
	return nil
}

// offerPeople shows the toggle list for a manual reminder audience
func (c *Controller) offerPeople(ctx context.Context, conv *model.Conversation) error {
	people, err := c.ledger.ListPeople(ctx)
	if err != nil {
		return err
	}
	if len(people) == 0 {
		conv.Reset(model.StateAdminMenu)
		c.reply(ctx, conv.PersonID, "Пользователей не найдено.", adminMenu())
		return nil
	}

	conv.Draft.Candidates = lo.Map(people, func(p *model.Person, _ int) model.PersonID { return p.ID })
	conv.Draft.Selected = nil
	conv.Transition(model.StateAdminReminderCustomUser)
	c.reply(ctx, conv.PersonID, "Отметьте получателей и нажмите «✅ Готово».", backKeyboard())
	c.send(ctx, conv.PersonID, transport.Outgoing{
		Text:   "Выберите пользователей из списка:",
		Inline: pickKeyboard(people, nil),
	})
	return nil
}

func (c *Controller) stepReminderCustom(ctx context.Context, conv *model.Conversation, msg *transport.Message) error {
	if msg.Text == btnBack {
		c.backToMenu(ctx, conv)
		return nil
	}
	c.send(ctx, conv.PersonID, transport.Outgoing{Text: "Отметьте получателей в списке и нажмите «✅ Готово»."})
	return nil
}

func (c *Controller) onPick(ctx context.Context, conv *model.Conversation, action *transport.Action) error {
	if action.Data == pickDone {
		return c.sendPicked(ctx, conv, action)
	}

	raw, _ := strings.CutPrefix(action.Data, pickPrefix)
	n, err := strconv.ParseInt(raw, 10, 64)
	id := model.PersonID(n)
	if err != nil || !lo.Contains(conv.Draft.Candidates, id) {
		c.answer(ctx, action, msgListInactive, false)
		return nil
	}

	answer := "Пользователь добавлен в список"
	if lo.Contains(conv.Draft.Selected, id) {
		conv.Draft.Selected = lo.Without(conv.Draft.Selected, id)
		answer = "Пользователь удален из списка"
	} else {
		conv.Draft.Selected = append(conv.Draft.Selected, id)
	}

	people, err := c.ledger.ListPeople(ctx)
	if err != nil {
		return err
	}
	people = lo.Filter(people, func(p *model.Person, _ int) bool {
		return lo.Contains(conv.Draft.Candidates, p.ID)
	})
	if err := c.transport.EditActions(ctx, action.Message, pickKeyboard(people, conv.Draft.Selected)); err != nil {
		c.logger.Warn("selection edit failed", slog.String("error", err.Error()))
	}
	c.answer(ctx, action, answer, false)
	return nil
}

func (c *Controller) sendPicked(ctx context.Context, conv *model.Conversation, action *transport.Action) error {
	if len(conv.Draft.Selected) == 0 {
		c.answer(ctx, action, "Никто не выбран!", true)
		return nil
	}
	report, err := c.fanout.SendReminderTo(ctx, conv.Draft.ReminderSession, conv.Draft.Selected)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("Напоминания отправлены %d выбранным пользователям.", report.Delivered)
	if report.Failed > 0 {
		text += fmt.Sprintf("\nНе доставлено: %d.", report.Failed)
	}
	if err := c.transport.EditText(ctx, action.Message, text, nil); err != nil {
		c.logger.Warn("selection edit failed", slog.String("error", err.Error()))
	}
	conv.Reset(model.StateAdminMenu)
	c.reply(ctx, conv.PersonID, "Возвращаюсь в админ-меню.", adminMenu())
	c.answer(ctx, action, "", false)
	return nil
}

func pickKeyboard(people []*model.Person, selected []model.PersonID) *transport.InlineKeyboard {
	rows := make([][]transport.InlineButton, 0, len(people)+1)
	for _, p := range people {
		text := p.FullName()
		if lo.Contains(selected, p.ID) {
			text = selectMark + text
		}
		rows = append(rows, []transport.InlineButton{{
			Text: text,
			Data: pickPrefix + strconv.FormatInt(int64(p.ID), 10),
		}})
	}
	rows = append(rows, []transport.InlineButton{{Text: "✅ Готово", Data: pickDone}})
	return &transport.InlineKeyboard{Rows: rows}
}

func (c *Controller) stepBroadcast(ctx context.Context, conv *model.Conversation, msg *transport.Message) error {
	if msg.Text == btnBack {
		c.backToMenu(ctx, conv)
		return nil
	}
	report, err := c.fanout.Broadcast(ctx, msg.Text)
	if errors.Is(err, model.ErrEmptyAudience) {
		conv.Reset(model.StateAdminMenu)
		c.reply(ctx, conv.PersonID, "Пользователей не найдено.", adminMenu())
		return nil
	}
	if err != nil {
		return err
	}
	conv.Reset(model.StateAdminMenu)
	c.reply(ctx, conv.PersonID, reportText("Сообщение отправлено", report), adminMenu())
	return nil
}
