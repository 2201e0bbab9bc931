package conversation

import (
	"context"
	"fmt"

	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/transport"
)

func (c *Controller) stepMenu(ctx context.Context, conv *model.Conversation, msg *transport.Message) error {
	id := conv.PersonID
	switch msg.Text {
	case btnRegister:
		sessions, err := c.ledger.ListSessions(ctx, model.FilterActive)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			c.reply(ctx, id, "К сожалению, на данный момент игр для записи нет.", c.mainMenu(id))
			return nil
		}
		c.offerSessions(ctx, conv, sessions, prefixDate, btnBackToMenu, model.StateGameRegistration,
			"На какую игру ты хочешь записаться?\n\nВремя начала игр можно посмотреть в расписании.")

	case btnCancel:
		sessions, err := c.ledger.SessionsForPerson(ctx, id)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			c.reply(ctx, id, "Ты пока не записан ни на какую игру.", c.mainMenu(id))
			return nil
		}
		c.offerSessions(ctx, conv, sessions, prefixDate, btnBackToMenu, model.StateGameCancellation,
			"Запись на какую игру ты хочешь отменить?")

	case btnSchedule:
		announcement, err := c.ledger.ScheduleText(ctx)
		if err != nil {
			return err
		}
		sessions, err := c.ledger.ListSessions(ctx, model.FilterActive)
		if err != nil {
			return err
		}
		c.reply(ctx, id, scheduleText(announcement, sessions), c.mainMenu(id))

	case btnParticipants:
		sessions, err := c.ledger.ListSessions(ctx, model.FilterActive)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			c.reply(ctx, id, "К сожалению, на данный момент игр нет.", c.mainMenu(id))
			return nil
		}
		c.offerSessions(ctx, conv, sessions, prefixParticipants, btnBackToMenu, model.StateUserViewParticipants,
			"Список участников какой игры ты хочешь посмотреть?")

	case btnDirections:
		c.reply(ctx, id, directionsText(c.cfg.VenueAddress), c.mainMenu(id))

	case btnAdminPanel:
		if !c.isOrganizer(id) {
			c.reply(ctx, id, msgUseMenu, c.mainMenu(id))
			return nil
		}
		conv.Reset(model.StateAdminMenu)
		c.reply(ctx, id, "Добро пожаловать в админ-панель!", adminMenu())

	default:
		c.reply(ctx, id, msgUseMenu, c.mainMenu(id))
	}
	return nil
}

func (c *Controller) stepGameRegistration(ctx context.Context, conv *model.Conversation, msg *transport.Message) error {
	sessionID, ok := c.chooseSession(ctx, conv, msg, btnBackToMenu)
	if !ok {
		return nil
	}
	session, err := c.ledger.Register(ctx, conv.PersonID, sessionID)
	if err != nil {
		return err
	}
	conv.Reset(model.StateMenu)
	c.reply(ctx, conv.PersonID, registeredText(session, c.cfg.VenueAddress), c.mainMenu(conv.PersonID))
	c.notify(ctx, conv.PersonID, session, noticeRegistered)
	return nil
}

func (c *Controller) stepGameCancellation(ctx context.Context, conv *model.Conversation, msg *transport.Message) error {
	sessionID, ok := c.chooseSession(ctx, conv, msg, btnBackToMenu)
	if !ok {
		return nil
	}
	session, err := c.ledger.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := c.ledger.CancelRegistration(ctx, conv.PersonID, sessionID); err != nil {
		return err
	}
	conv.Reset(model.StateMenu)
	c.reply(ctx, conv.PersonID, msgRegistrationCancelled, c.mainMenu(conv.PersonID))
	c.notify(ctx, conv.PersonID, session, noticeCancelled)
	return nil
}

func (c *Controller) stepUserParticipants(ctx context.Context, conv *model.Conversation, msg *transport.Message) error {
	sessionID, ok := c.chooseSession(ctx, conv, msg, btnBackToMenu)
	if !ok {
		return nil
	}
	session, err := c.ledger.GetActiveSession(ctx, sessionID)
	if err != nil {
		return err
	}
	participants, err := c.ledger.Participants(ctx, sessionID)
	if err != nil {
		return err
	}
	conv.Reset(model.StateMenu)
	c.reply(ctx, conv.PersonID, participantsText(session, participants, false), c.mainMenu(conv.PersonID))
	return nil
}

// offerSessions shows a selection list and records its labels in a fresh draft
func (c *Controller) offerSessions(
	ctx context.Context,
	conv *model.Conversation,
	sessions []*model.Session,
	prefix, back string,
	next model.State,
	prompt string,
) {
	choices, labels := sessionChoices(sessions, prefix)
	conv.Reset(next)
	conv.Draft.Choices = choices
	c.reply(ctx, conv.PersonID, prompt, transport.Column(append(labels, back)...))
}

// chooseSession resolves a pressed list button. It handles the back button
// and unknown labels itself and reports whether a session was chosen.
func (c *Controller) chooseSession(ctx context.Context, conv *model.Conversation, msg *transport.Message, back string) (model.SessionID, bool) {
	if msg.Text == back {
		c.backToMenu(ctx, conv)
		return 0, false
	}
	id, ok := conv.Draft.Choices[msg.Text]
	if !ok {
		c.send(ctx, conv.PersonID, transport.Outgoing{Text: msgPickFromList})
		return 0, false
	}
	return id, true
}

// backToMenu abandons the current flow and its draft
func (c *Controller) backToMenu(ctx context.Context, conv *model.Conversation) {
	next := c.nearestMenu(conv)
	conv.Reset(next)
	text := msgBackToMenu
	if next == model.StateAdminMenu {
		text = msgBackToAdmin
	}
	c.reply(ctx, conv.PersonID, text, c.menuFor(next, conv.PersonID))
}

// sessionChoices labels sessions for a reply keyboard. Archived sessions are
// marked and clashing labels get the session id appended.
func sessionChoices(sessions []*model.Session, prefix string) (map[string]model.SessionID, []string) {
	choices := make(map[string]model.SessionID, len(sessions))
	labels := make([]string, 0, len(sessions))
	for _, s := range sessions {
		label := prefix + s.Title()
		if !s.IsActive() {
			label += " (архив)"
		}
		if _, taken := choices[label]; taken {
			label += fmt.Sprintf(" #%d", s.ID)
		}
		choices[label] = s.ID
		labels = append(labels, label)
	}
	return choices, labels
}
