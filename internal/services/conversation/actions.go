package conversation

import (
	"context"
	"errors"

	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/services/fanout"
	"github.com/mcoot/gamenight/internal/transport"
)

// onReminderAction handles the buttons attached to reminders. They work from
// any conversation state and leave the conversation untouched.
func (c *Controller) onReminderAction(ctx context.Context, action *transport.Action, verb string, sessionID model.SessionID) error {
	var (
		id      = action.PersonID
		session *model.Session
		answer  string
		notice  func(*model.Person, *model.Session) string
		err     error
	)

	switch verb {
	case fanout.ActionRegister:
		session, err = c.ledger.Register(ctx, id, sessionID)
		if err == nil {
			c.send(ctx, id, transport.Outgoing{Text: registeredText(session, c.cfg.VenueAddress)})
			answer, notice = "Запись подтверждена! 😊", noticeRegistered
		}

	case fanout.ActionThinking:
		var recorded bool
		session, recorded, err = c.ledger.MarkThinking(ctx, id, sessionID)
		if err == nil {
			answer = "Ты уже записан на эту игру 😊"
			if recorded {
				answer, notice = "Админ уведомлен, что вы думаете! 😊", noticeThinking
			}
		}

	case fanout.ActionUnregister:
		session, err = c.ledger.GetSession(ctx, sessionID)
		if err == nil {
			err = c.ledger.CancelRegistration(ctx, id, sessionID)
		}
		if err == nil {
			c.send(ctx, id, transport.Outgoing{Text: msgRegistrationCancelled})
			answer, notice = "Запись отменена.", noticeCancelled
		}
	}

	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		c.answer(ctx, action, msgSessionNotFound, true)
		return nil
	case errors.Is(err, model.ErrPersonNotFound):
		c.answer(ctx, action, msgSendStart, true)
		return nil
	case err != nil:
		c.answer(ctx, action, msgTryLater, true)
		return err
	}

	c.answer(ctx, action, answer, false)
	if notice != nil {
		c.notify(ctx, id, session, notice)
	}
	return nil
}
