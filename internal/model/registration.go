package model

import "time"

// RegistrationStatus is the status of a person's registration
type RegistrationStatus string

const StatusRegistered RegistrationStatus = "registered"

// Registration records committed intent to attend a session
type Registration struct {
	PersonID     PersonID           `json:"person_id"`
	SessionID    SessionID          `json:"session_id"`
	Status       RegistrationStatus `json:"status"`
	RegisteredAt time.Time          `json:"registered_at"`
}

// ThinkingMarker records non-committal interest in a session
type ThinkingMarker struct {
	PersonID  PersonID  `json:"person_id"`
	SessionID SessionID `json:"session_id"`
	MarkedAt  time.Time `json:"marked_at"`
}

// ParticipantTag distinguishes registered people from undecided ones
type ParticipantTag string

const (
	TagRegistered ParticipantTag = "registered"
	TagThinking   ParticipantTag = "thinking"
)

// Participant is a person listed against a session
type Participant struct {
	Person Person         `json:"person"`
	Tag    ParticipantTag `json:"tag"`
}

// AudienceCriterion selects the recipients of a reminder
type AudienceCriterion string

const (
	AudienceAll           AudienceCriterion = "all"
	AudienceRegistered    AudienceCriterion = "registered"
	AudienceNotRegistered AudienceCriterion = "not_registered"
	// AudienceManual is chosen by the organizer from a toggle list and never
	// resolved by the ledger.
	AudienceManual AudienceCriterion = "manual"
)

// Valid reports whether the criterion can be resolved by the ledger
func (c AudienceCriterion) Valid() bool {
	switch c {
	case AudienceAll, AudienceRegistered, AudienceNotRegistered:
		return true
	}
	return false
}
