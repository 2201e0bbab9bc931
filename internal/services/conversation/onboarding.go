package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/transport"
)

const maxFieldLength = 64

var errAgeNotNumber = fmt.Errorf("%w: not a number", model.ErrInvalidAge)

// start restarts onboarding, or offers a profile update to known people
func (c *Controller) start(ctx context.Context, conv *model.Conversation) error {
	person, err := c.ledger.GetPerson(ctx, conv.PersonID)
	switch {
	case err == nil:
		conv.Reset(model.StateConfirmProfileUpdate)
		c.reply(ctx, conv.PersonID, welcomeBackText(person.Nickname), confirmProfileKeyboard())
		return nil
	case errors.Is(err, model.ErrPersonNotFound):
		conv.Reset(model.StateStart)
		c.reply(ctx, conv.PersonID, greetingText(c.cfg.ContactHandle), yesNoKeyboard())
		return nil
	}
	return err
}

func (c *Controller) stepStart(ctx context.Context, conv *model.Conversation, msg *transport.Message) error {
	switch fold(msg.Text) {
	case fold(btnYes):
		conv.Reset(model.StateGetName)
		c.send(ctx, conv.PersonID, transport.Outgoing{Text: promptFirstName, RemoveKeyboard: true})
	case fold(btnNo):
		c.send(ctx, conv.PersonID, transport.Outgoing{Text: msgComeBackLater, RemoveKeyboard: true})
	default:
		c.reply(ctx, conv.PersonID, msgUseButtons, yesNoKeyboard())
	}
	return nil
}

func (c *Controller) stepConfirmProfile(ctx context.Context, conv *model.Conversation, msg *transport.Message) error {
	switch msg.Text {
	case btnUpdateProfile:
		conv.Reset(model.StateGetName)
		c.send(ctx, conv.PersonID, transport.Outgoing{Text: promptUpdate, RemoveKeyboard: true})
	case btnKeepProfile:
		conv.Reset(model.StateMenu)
		c.reply(ctx, conv.PersonID, "Отлично! Переходим в главное меню.", c.mainMenu(conv.PersonID))
	default:
		c.reply(ctx, conv.PersonID, msgUseButtons, confirmProfileKeyboard())
	}
	return nil
}

func (c *Controller) stepName(ctx context.Context, conv *model.Conversation, msg *transport.Message) error {
	if !c.checkField(ctx, conv, msg.Text) {
		return nil
	}
	conv.Draft.FirstName = msg.Text
	conv.Transition(model.StateGetLastName)
	c.send(ctx, conv.PersonID, transport.Outgoing{Text: promptLastName})
	return nil
}

func (c *Controller) stepLastName(ctx context.Context, conv *model.Conversation, msg *transport.Message) error {
	if !c.checkField(ctx, conv, msg.Text) {
		return nil
	}
	conv.Draft.LastName = msg.Text
	conv.Transition(model.StateGetNick)
	c.send(ctx, conv.PersonID, transport.Outgoing{Text: promptNickname})
	return nil
}

func (c *Controller) stepNick(ctx context.Context, conv *model.Conversation, msg *transport.Message) error {
	if !c.checkField(ctx, conv, msg.Text) {
		return nil
	}
	conv.Draft.Nickname = msg.Text
	conv.Transition(model.StateGetAge)
	c.send(ctx, conv.PersonID, transport.Outgoing{Text: promptAge})
	return nil
}

func (c *Controller) stepAge(ctx context.Context, conv *model.Conversation, msg *transport.Message) error {
	age, err := parseAge(msg.Text)
	switch {
	case errors.Is(err, errAgeNotNumber):
		c.send(ctx, conv.PersonID, transport.Outgoing{Text: msgAgeNotNumber})
		return nil
	case err != nil:
		c.send(ctx, conv.PersonID, transport.Outgoing{Text: msgAgeOutOfRange})
		return nil
	}

	person := &model.Person{
		ID:        conv.PersonID,
		FirstName: conv.Draft.FirstName,
		LastName:  conv.Draft.LastName,
		Nickname:  conv.Draft.Nickname,
		Age:       age,
		Handle:    msg.Handle,
	}
	if err := c.ledger.SaveProfile(ctx, person); err != nil {
		if !errors.Is(err, model.ErrInvalidProfile) {
			return err
		}
		// Draft lost a field, start over
		conv.Reset(model.StateGetName)
		c.send(ctx, conv.PersonID, transport.Outgoing{
			Text: "Похоже, анкета заполнена не до конца. Давай заново. " + promptFirstName,
		})
		return nil
	}

	if person.IsMinor() {
		c.send(ctx, conv.PersonID, transport.Outgoing{Text: msgAgeNotice})
	}
	conv.Reset(model.StateMenu)
	c.reply(ctx, conv.PersonID, onboardedText(c.cfg.ContactHandle), c.mainMenu(conv.PersonID))
	return nil
}

func (c *Controller) checkField(ctx context.Context, conv *model.Conversation, text string) bool {
	if utf8.RuneCountInString(text) > maxFieldLength {
		c.send(ctx, conv.PersonID, transport.Outgoing{Text: msgNameTooLong})
		return false
	}
	return true
}

// Accepted ages. The re-prompts quote this range as ageRange.
const (
	minAge = 1
	maxAge = 120
)

// parseAge accepts whole numbers from minAge to maxAge
func parseAge(text string) (int, error) {
	age, err := strconv.Atoi(text)
	if err != nil {
		return 0, errAgeNotNumber
	}
	if age < minAge || age > maxAge {
		return 0, fmt.Errorf("%w: %d is out of range", model.ErrInvalidAge, age)
	}
	return age, nil
}
