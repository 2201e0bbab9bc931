package model

import (
	"maps"
	"time"
)

// State is a node of the conversation state machine
type State string

// Onboarding
const (
	StateStart                State = "start"
	StateConfirmProfileUpdate State = "confirm_profile_update"
	StateGetName              State = "get_name"
	StateGetLastName          State = "get_lastname"
	StateGetNick              State = "get_nick"
	StateGetAge               State = "get_age"
)

// Steady state and user flows
const (
	StateMenu                 State = "menu"
	StateGameRegistration     State = "game_registration"
	StateGameCancellation     State = "game_cancellation"
	StateUserViewParticipants State = "user_view_participants"
)

// Organizer flows
const (
	StateAdminMenu               State = "admin_menu"
	StateAddGameDate             State = "add_game_date"
	StateAddGameType             State = "add_game_type"
	StateDeleteGame              State = "delete_game"
	StateRestoreGame             State = "restore_game"
	StateViewParticipants        State = "view_participants"
	StateAdminCancelGame         State = "admin_cancel_game"
	StateEditSchedule            State = "edit_schedule"
	StateAdminReminder           State = "admin_reminder"
	StateAdminReminderAudience   State = "admin_reminder_audience"
	StateAdminReminderCustomUser State = "admin_reminder_custom_users"
	StateAdminBroadcast          State = "admin_broadcast"
)

// IsAdmin reports whether the state belongs to the organizer branch
func (s State) IsAdmin() bool {
	switch s {
	case StateAdminMenu, StateAddGameDate, StateAddGameType, StateDeleteGame,
		StateRestoreGame, StateViewParticipants, StateAdminCancelGame,
		StateEditSchedule, StateAdminReminder, StateAdminReminderAudience,
		StateAdminReminderCustomUser, StateAdminBroadcast:
		return true
	}
	return false
}

// Draft accumulates the answers of an in-progress flow. It is scoped to one
// conversation and reset whenever a flow completes or is abandoned.
type Draft struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Nickname  string `json:"nickname,omitempty"`

	// GameDate is the date label picked before the session kind
	GameDate string `json:"game_date,omitempty"`
	// CalendarMonth is the month currently shown by the date picker (YYYY-MM)
	CalendarMonth string `json:"calendar_month,omitempty"`

	// Choices maps the button labels offered in the last selection list to
	// the sessions they stand for
	Choices map[string]SessionID `json:"choices,omitempty"`

	ReminderSession SessionID  `json:"reminder_session,omitempty"`
	Candidates      []PersonID `json:"candidates,omitempty"`
	Selected        []PersonID `json:"selected,omitempty"`
}

// Conversation is the per-person state machine context
type Conversation struct {
	PersonID  PersonID  `json:"person_id"`
	State     State     `json:"state"`
	Draft     Draft     `json:"draft"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transition moves to the next state keeping the draft
func (c *Conversation) Transition(next State) {
	c.State = next
}

// Reset moves to the next state and discards the draft
func (c *Conversation) Reset(next State) {
	c.State = next
	c.Draft = Draft{}
}

// Clone returns a deep copy so stored contexts never alias a handler's copy
func (c *Conversation) Clone() *Conversation {
	out := *c
	out.Draft.Choices = maps.Clone(c.Draft.Choices)
	out.Draft.Candidates = append([]PersonID(nil), c.Draft.Candidates...)
	out.Draft.Selected = append([]PersonID(nil), c.Draft.Selected...)
	return &out
}
