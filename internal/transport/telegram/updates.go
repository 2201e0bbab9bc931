package telegram

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-telegram/bot/models"

	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/transport"
)

// maxUpdateBytes bounds a webhook payload
const maxUpdateBytes = 1 << 20

// DecodeUpdate reads one webhook update
func DecodeUpdate(r io.Reader) (*models.Update, error) {
	var update models.Update
	if err := json.NewDecoder(io.LimitReader(r, maxUpdateBytes)).Decode(&update); err != nil {
		return nil, fmt.Errorf("telegram: decode update: %w", err)
	}
	return &update, nil
}

// ToEvent converts an update into a transport event. Updates from groups,
// from bots, or without text or data are ignored.
func ToEvent(update *models.Update) (transport.Event, bool) {
	switch {
	case update == nil:
		return transport.Event{}, false

	case update.Message != nil:
		m := update.Message
		if m.From == nil || m.From.IsBot || m.Chat.Type != models.ChatTypePrivate || m.Text == "" {
			return transport.Event{}, false
		}
		return transport.Event{Message: &transport.Message{
			PersonID:  model.PersonID(m.From.ID),
			Handle:    m.From.Username,
			FirstName: m.From.FirstName,
			Text:      m.Text,
		}}, true

	case update.CallbackQuery != nil:
		q := update.CallbackQuery
		if q.From.IsBot || q.Data == "" {
			return transport.Event{}, false
		}
		action := &transport.Action{
			ID:       q.ID,
			PersonID: model.PersonID(q.From.ID),
			Handle:   q.From.Username,
			Data:     q.Data,
		}
		// Messages older than 48h arrive inaccessible and can no longer be edited
		if m := q.Message.Message; m != nil {
			action.Message = transport.MessageRef{
				ChatID:    model.PersonID(m.Chat.ID),
				MessageID: m.ID,
			}
		}
		return transport.Event{Action: action}, true
	}
	return transport.Event{}, false
}
