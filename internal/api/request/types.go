package request

// CreateSessionRequest is the request body for scheduling a session
type CreateSessionRequest struct {
	Kind string `json:"kind" validate:"required"`
	Date string `json:"date" validate:"required,max=32"`
}

// ReminderRequest is the request body for sending a session reminder.
// PersonIDs selects recipients by hand and takes precedence over Audience.
type ReminderRequest struct {
	Audience  string  `json:"audience,omitempty" validate:"required_without=PersonIDs"`
	PersonIDs []int64 `json:"person_ids,omitempty" validate:"omitempty,dive,ne=0"`
}

// BroadcastRequest is the request body for messaging everyone
type BroadcastRequest struct {
	Text string `json:"text" validate:"required,max=4096"`
}

// ScheduleTextRequest is the request body for replacing the schedule text
type ScheduleTextRequest struct {
	Text string `json:"text" validate:"required,max=4096"`
}
