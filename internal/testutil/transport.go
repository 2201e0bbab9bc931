package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/transport"
)

// SentMessage is a message captured by RecordingTransport
type SentMessage struct {
	To  model.PersonID
	Ref transport.MessageRef
	transport.Outgoing
}

// ActionAnswer is an answered inline action
type ActionAnswer struct {
	ActionID string
	Text     string
	Alert    bool
}

// TextEdit is a captured EditText call
type TextEdit struct {
	Ref      transport.MessageRef
	Text     string
	Keyboard *transport.InlineKeyboard
}

// KeyboardEdit is a captured EditActions call
type KeyboardEdit struct {
	Ref      transport.MessageRef
	Keyboard *transport.InlineKeyboard
}

// RecordingTransport captures everything sent through it. Sends to people
// registered with FailFor return an error instead.
type RecordingTransport struct {
	mu       sync.Mutex
	nextID   int
	failing  map[model.PersonID]bool
	sent     []SentMessage
	answers  []ActionAnswer
	textEdit []TextEdit
	kbEdit   []KeyboardEdit
}

// Ensure RecordingTransport implements the interface
var _ transport.Transport = (*RecordingTransport)(nil)

// NewRecordingTransport creates an empty recorder
func NewRecordingTransport() *RecordingTransport {
	return &RecordingTransport{failing: make(map[model.PersonID]bool)}
}

// FailFor makes every send to the given people fail
func (t *RecordingTransport) FailFor(ids ...model.PersonID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		t.failing[id] = true
	}
}

func (t *RecordingTransport) Send(ctx context.Context, to model.PersonID, msg transport.Outgoing) (transport.MessageRef, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failing[to] {
		return transport.MessageRef{}, fmt.Errorf("send to %d: %w", to, model.ErrDeliveryFailed)
	}
	t.nextID++
	ref := transport.MessageRef{ChatID: to, MessageID: t.nextID}
	t.sent = append(t.sent, SentMessage{To: to, Ref: ref, Outgoing: msg})
	return ref, nil
}

func (t *RecordingTransport) EditActions(ctx context.Context, ref transport.MessageRef, keyboard *transport.InlineKeyboard) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.kbEdit = append(t.kbEdit, KeyboardEdit{Ref: ref, Keyboard: keyboard})
	return nil
}

func (t *RecordingTransport) EditText(ctx context.Context, ref transport.MessageRef, text string, keyboard *transport.InlineKeyboard) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.textEdit = append(t.textEdit, TextEdit{Ref: ref, Text: text, Keyboard: keyboard})
	return nil
}

func (t *RecordingTransport) AnswerAction(ctx context.Context, actionID string, text string, alert bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.answers = append(t.answers, ActionAnswer{ActionID: actionID, Text: text, Alert: alert})
	return nil
}

// Sent returns every delivered message in order
func (t *RecordingTransport) Sent() []SentMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.sent)
}

// SentTo returns the messages delivered to one person
func (t *RecordingTransport) SentTo(id model.PersonID) []SentMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []SentMessage
	for _, m := range t.sent {
		if m.To == id {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the most recent message delivered to a person
func (t *RecordingTransport) Last(id model.PersonID) (SentMessage, bool) {
	msgs := t.SentTo(id)
	if len(msgs) == 0 {
		return SentMessage{}, false
	}
	return msgs[len(msgs)-1], true
}

// Answers returns every answered action
func (t *RecordingTransport) Answers() []ActionAnswer {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.answers)
}

// TextEdits returns every EditText call
func (t *RecordingTransport) TextEdits() []TextEdit {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.textEdit)
}

// KeyboardEdits returns every EditActions call
func (t *RecordingTransport) KeyboardEdits() []KeyboardEdit {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.kbEdit)
}

// Reset forgets everything recorded so far
func (t *RecordingTransport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = nil
	t.answers = nil
	t.textEdit = nil
	t.kbEdit = nil
}
