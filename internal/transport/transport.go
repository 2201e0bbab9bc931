// Package transport defines the chat-facing side of the bot: inbound events,
// outbound messages and the affordances attached to them.
package transport

import (
	"context"

	"github.com/mcoot/gamenight/internal/model"
)

// Message is an inbound free-text message or reply-keyboard press
type Message struct {
	PersonID  model.PersonID
	Handle    string
	FirstName string
	Text      string
}

// Action is an inbound inline-button press
type Action struct {
	// ID must be passed back to AnswerAction
	ID       string
	PersonID model.PersonID
	Handle   string
	// Message is the message carrying the pressed button
	Message MessageRef
	Data    string
}

// Event is one inbound update. Exactly one of Message or Action is set.
type Event struct {
	Message *Message
	Action  *Action
}

// PersonID returns the sender of the event
func (e Event) PersonID() model.PersonID {
	if e.Message != nil {
		return e.Message.PersonID
	}
	if e.Action != nil {
		return e.Action.PersonID
	}
	return 0
}

// MessageRef identifies a delivered message so it can be edited later
type MessageRef struct {
	ChatID    model.PersonID
	MessageID int
}

// ReplyKeyboard is a persistent keyboard of text buttons
type ReplyKeyboard struct {
	Rows [][]string
}

// InlineButton is a button attached to a single message
type InlineButton struct {
	Text string
	Data string
}

// InlineKeyboard is a grid of inline buttons
type InlineKeyboard struct {
	Rows [][]InlineButton
}

// Outgoing is a message to deliver. At most one of Keyboard, Inline or
// RemoveKeyboard is honoured, in that order.
type Outgoing struct {
	Text           string
	Keyboard       *ReplyKeyboard
	Inline         *InlineKeyboard
	RemoveKeyboard bool
}

// Transport delivers messages to people
type Transport interface {
	Send(ctx context.Context, to model.PersonID, msg Outgoing) (MessageRef, error)
	EditActions(ctx context.Context, ref MessageRef, keyboard *InlineKeyboard) error
	EditText(ctx context.Context, ref MessageRef, text string, keyboard *InlineKeyboard) error
	AnswerAction(ctx context.Context, actionID string, text string, alert bool) error
}

// Handler consumes inbound events
type Handler interface {
	Handle(ctx context.Context, event Event)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, event Event)

// Handle calls f
func (f HandlerFunc) Handle(ctx context.Context, event Event) {
	f(ctx, event)
}

// Keyboard builds a reply keyboard from rows of labels
func Keyboard(rows ...[]string) *ReplyKeyboard {
	return &ReplyKeyboard{Rows: rows}
}

// Column builds a reply keyboard with one label per row
func Column(labels ...string) *ReplyKeyboard {
	rows := make([][]string, 0, len(labels))
	for _, label := range labels {
		rows = append(rows, []string{label})
	}
	return &ReplyKeyboard{Rows: rows}
}
