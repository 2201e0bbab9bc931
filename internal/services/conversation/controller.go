// Package conversation implements the per-person chat state machine: the
// onboarding dialogue, the main menu flows and the organizer's admin panel.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mcoot/gamenight/internal/dependencies/clock"
	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/services/fanout"
	"github.com/mcoot/gamenight/internal/services/ledger"
	"github.com/mcoot/gamenight/internal/storage"
	"github.com/mcoot/gamenight/internal/transport"
)

// Config holds state machine settings
type Config struct {
	// OrganizerID is the only person allowed into the admin panel
	OrganizerID   model.PersonID
	VenueAddress  string
	ContactHandle string
}

// DefaultConfig returns the club's defaults
func DefaultConfig() Config {
	return Config{
		VenueAddress: "г. Королев, ул. Декабристов, д. 8\n" +
			"Вход со стороны дороги (не со двора), ищи стеклянную дверь с надписью «Тайная комната» " +
			"и спускайся по лестнице в самый низ.",
		ContactHandle: "@natabordo",
	}
}

type stepFunc func(ctx context.Context, conv *model.Conversation, msg *transport.Message) error

type actionFunc func(ctx context.Context, conv *model.Conversation, action *transport.Action) error

// Controller drives conversations. It is safe for concurrent use as long as
// events of one person are not handled concurrently; Dispatcher guarantees
// that.
type Controller struct {
	ledger        *ledger.Service
	fanout        *fanout.Service
	conversations storage.ConversationStore
	transport     transport.Transport
	clock         clock.Clock
	cfg           Config
	logger        *slog.Logger
	steps         map[model.State]stepFunc
}

// Ensure Controller implements the interface
var _ transport.Handler = (*Controller)(nil)

// NewController creates a new Controller
func NewController(
	ledger *ledger.Service,
	fanout *fanout.Service,
	conversations storage.ConversationStore,
	transport transport.Transport,
	clk clock.Clock,
	cfg Config,
	logger *slog.Logger,
) *Controller {
	c := &Controller{
		ledger:        ledger,
		fanout:        fanout,
		conversations: conversations,
		transport:     transport,
		clock:         clk,
		cfg:           cfg,
		logger:        logger.With(slog.String("component", "conversation")),
	}
	c.steps = map[model.State]stepFunc{
		model.StateStart:                c.stepStart,
		model.StateConfirmProfileUpdate: c.stepConfirmProfile,
		model.StateGetName:              c.stepName,
		model.StateGetLastName:          c.stepLastName,
		model.StateGetNick:              c.stepNick,
		model.StateGetAge:               c.stepAge,

		model.StateMenu:                 c.stepMenu,
		model.StateGameRegistration:     c.stepGameRegistration,
		model.StateGameCancellation:     c.stepGameCancellation,
		model.StateUserViewParticipants: c.stepUserParticipants,

		model.StateAdminMenu:               c.stepAdminMenu,
		model.StateAddGameDate:             c.stepAddGameDate,
		model.StateAddGameType:             c.stepAddGameType,
		model.StateDeleteGame:              c.stepDeleteGame,
		model.StateRestoreGame:             c.stepRestoreGame,
		model.StateViewParticipants:        c.stepAdminParticipants,
		model.StateAdminCancelGame:         c.stepCancelGame,
		model.StateEditSchedule:            c.stepEditSchedule,
		model.StateAdminReminder:           c.stepReminderSession,
		model.StateAdminReminderAudience:   c.stepReminderAudience,
		model.StateAdminReminderCustomUser: c.stepReminderCustom,
		model.StateAdminBroadcast:          c.stepBroadcast,
	}
	return c
}

// Handle processes one inbound event. Failures are reported to the person
// and logged; none of them stop the bot.
func (c *Controller) Handle(ctx context.Context, event transport.Event) {
	var err error
	switch {
	case event.Message != nil:
		err = c.HandleMessage(ctx, event.Message)
	case event.Action != nil:
		err = c.HandleAction(ctx, event.Action)
	}
	if err != nil {
		c.logger.Error("event handling failed",
			slog.Int64("person_id", int64(event.PersonID())),
			slog.String("error", err.Error()),
		)
	}
}

// HandleMessage advances the sender's conversation with a text message
func (c *Controller) HandleMessage(ctx context.Context, msg *transport.Message) error {
	conv, err := c.loadConversation(ctx, msg.PersonID)
	if err != nil {
		return c.fail(ctx, nil, msg.PersonID, err)
	}

	in := *msg
	in.Text = strings.TrimSpace(in.Text)

	if isCommand(in.Text, cmdStart) {
		err = c.start(ctx, conv)
	} else {
		err = c.step(ctx, conv, &in)
	}
	if errors.Is(err, errNoContext) {
		return nil
	}
	if err != nil {
		return c.fail(ctx, conv, msg.PersonID, err)
	}
	return c.saveConversation(ctx, conv)
}

var errNoContext = errors.New("no conversation context")

func (c *Controller) step(ctx context.Context, conv *model.Conversation, msg *transport.Message) error {
	step, ok := c.steps[conv.State]
	if !ok {
		// Evicted or never started
		onboarded, err := c.ledger.IsOnboarded(ctx, conv.PersonID)
		if err != nil {
			return err
		}
		if !onboarded {
			c.send(ctx, conv.PersonID, transport.Outgoing{Text: msgSendStart, RemoveKeyboard: true})
			return errNoContext
		}
		conv.Reset(model.StateMenu)
		step = c.stepMenu
	}

	if conv.State.IsAdmin() && !c.isOrganizer(conv.PersonID) {
		return model.ErrNotOrganizer
	}
	return step(ctx, conv, msg)
}

// HandleAction processes an inline button press
func (c *Controller) HandleAction(ctx context.Context, action *transport.Action) error {
	if verb, sessionID, ok := fanout.ParseAction(action.Data); ok {
		return c.onReminderAction(ctx, action, verb, sessionID)
	}

	var (
		want model.State
		next actionFunc
	)
	switch {
	case transport.IsCalendarAction(action.Data):
		want, next = model.StateAddGameDate, c.onCalendar
	case strings.HasPrefix(action.Data, pickPrefix):
		want, next = model.StateAdminReminderCustomUser, c.onPick
	default:
		c.answer(ctx, action, "", false)
		return nil
	}

	conv, err := c.loadConversation(ctx, action.PersonID)
	if err != nil {
		c.answer(ctx, action, msgTryLater, true)
		return err
	}
	if conv.State != want || !c.isOrganizer(action.PersonID) {
		c.answer(ctx, action, msgListInactive, false)
		return nil
	}
	if err := next(ctx, conv, action); err != nil {
		c.answer(ctx, action, "", false)
		return c.fail(ctx, conv, action.PersonID, err)
	}
	return c.saveConversation(ctx, conv)
}

// fail turns a handler error into a reply. Validation errors re-prompt with
// the state unchanged; missing or conflicting records send the person back to
// the nearest menu; anything else leaves the conversation untouched.
func (c *Controller) fail(ctx context.Context, conv *model.Conversation, id model.PersonID, err error) error {
	if conv == nil {
		c.send(ctx, id, transport.Outgoing{Text: msgTryLater})
		return err
	}

	switch {
	case errors.Is(err, model.ErrPersonNotFound):
		c.send(ctx, id, transport.Outgoing{Text: msgSendStart, RemoveKeyboard: true})
		return c.conversations.DeleteConversation(ctx, id)
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrConflict):
		text := msgSessionNotFound
		if errors.Is(err, model.ErrConflict) {
			text = msgSessionConflict
		}
		next := c.nearestMenu(conv)
		conv.Reset(next)
		c.reply(ctx, id, text, c.menuFor(next, id))
		return c.saveConversation(ctx, conv)
	case errors.Is(err, model.ErrNotOrganizer):
		c.logger.Warn("admin state without organizer rights", slog.Int64("person_id", int64(id)))
		conv.Reset(model.StateMenu)
		c.reply(ctx, id, msgUseMenu, c.mainMenu(id))
		return c.saveConversation(ctx, conv)
	case errors.Is(err, model.ErrValidation):
		c.send(ctx, id, transport.Outgoing{Text: msgUseButtons})
		return nil
	}

	c.send(ctx, id, transport.Outgoing{Text: msgTryLater})
	return err
}

func (c *Controller) loadConversation(ctx context.Context, id model.PersonID) (*model.Conversation, error) {
	conv, err := c.conversations.LoadConversation(ctx, id)
	if errors.Is(err, model.ErrConversationNotFound) {
		return &model.Conversation{PersonID: id}, nil
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (c *Controller) saveConversation(ctx context.Context, conv *model.Conversation) error {
	conv.UpdatedAt = c.clock.Now()
	return c.conversations.SaveConversation(ctx, conv)
}

func (c *Controller) isOrganizer(id model.PersonID) bool {
	return c.cfg.OrganizerID != 0 && id == c.cfg.OrganizerID
}

func (c *Controller) nearestMenu(conv *model.Conversation) model.State {
	if conv.State.IsAdmin() && c.isOrganizer(conv.PersonID) {
		return model.StateAdminMenu
	}
	return model.StateMenu
}

func (c *Controller) menuFor(state model.State, id model.PersonID) *transport.ReplyKeyboard {
	if state == model.StateAdminMenu {
		return adminMenu()
	}
	return c.mainMenu(id)
}

// send delivers a message to the person. Delivery failures are logged only.
func (c *Controller) send(ctx context.Context, to model.PersonID, msg transport.Outgoing) {
	if _, err := c.transport.Send(ctx, to, msg); err != nil {
		c.logger.Warn("reply failed",
			slog.Int64("person_id", int64(to)),
			slog.String("error", err.Error()),
		)
	}
}

func (c *Controller) reply(ctx context.Context, to model.PersonID, text string, keyboard *transport.ReplyKeyboard) {
	c.send(ctx, to, transport.Outgoing{Text: text, Keyboard: keyboard})
}

func (c *Controller) answer(ctx context.Context, action *transport.Action, text string, alert bool) {
	if err := c.transport.AnswerAction(ctx, action.ID, text, alert); err != nil {
		c.logger.Warn("action answer failed",
			slog.Int64("person_id", int64(action.PersonID)),
			slog.String("error", err.Error()),
		)
	}
}

// notify sends the organizer a notice about a person's registration change
func (c *Controller) notify(ctx context.Context, id model.PersonID, session *model.Session, notice func(*model.Person, *model.Session) string) {
	person, err := c.ledger.GetPerson(ctx, id)
	if err != nil {
		c.logger.Warn("organizer notice skipped",
			slog.Int64("person_id", int64(id)),
			slog.String("error", err.Error()),
		)
		return
	}
	c.fanout.NotifyOrganizer(ctx, notice(person, session))
}

func isCommand(text, command string) bool {
	name, _, _ := strings.Cut(text, " ")
	name, _, _ = strings.Cut(name, "@")
	return name == command
}

func fold(text string) string {
	return cases.Lower(language.Russian).String(strings.TrimSpace(text))
}
