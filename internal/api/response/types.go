package response

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/services/fanout"
)

// Session represents a scheduled session in API responses
type Session struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Date      string    `json:"date"`
	Title     string    `json:"title"`
	Lifecycle string    `json:"lifecycle"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionFromModel converts a model.Session
func SessionFromModel(s *model.Session) Session {
	return Session{
		ID:        int64(s.ID),
		Kind:      string(s.Kind),
		Date:      s.DateLabel,
		Title:     s.Title(),
		Lifecycle: string(s.Lifecycle),
		CreatedAt: s.CreatedAt,
	}
}

// SessionsFromModel converts a list of sessions
func SessionsFromModel(sessions []*model.Session) []Session {
	return lo.Map(sessions, func(s *model.Session, _ int) Session {
		return SessionFromModel(s)
	})
}

// Person represents an onboarded person
type Person struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Nickname  string `json:"nickname"`
	Age       int    `json:"age"`
	Handle    string `json:"handle,omitempty"`
}

// PersonFromModel converts a model.Person
func PersonFromModel(p *model.Person) Person {
	return Person{
		ID:        int64(p.ID),
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Nickname:  p.Nickname,
		Age:       p.Age,
		Handle:    p.Handle,
	}
}

// Participant is a person listed against a session
type Participant struct {
	Person Person `json:"person"`
	Tag    string `json:"tag"`
}

// ParticipantsFromModel converts a participant list
func ParticipantsFromModel(participants []model.Participant) []Participant {
	return lo.Map(participants, func(p model.Participant, _ int) Participant {
		return Participant{Person: PersonFromModel(&p.Person), Tag: string(p.Tag)}
	})
}

// Report summarises a fan-out batch
type Report struct {
	BatchID   uuid.UUID `json:"batch_id"`
	Delivered int       `json:"delivered"`
	Failed    int       `json:"failed"`
	FailedIDs []int64   `json:"failed_ids,omitempty"`
}

// ReportFromModel converts a fanout.Report
func ReportFromModel(r fanout.Report) Report {
	return Report{
		BatchID:   r.BatchID,
		Delivered: r.Delivered,
		Failed:    r.Failed,
		FailedIDs: IDs(r.FailedIDs),
	}
}

// CancelResponse is the response after cancelling a session
type CancelResponse struct {
	Removed []int64 `json:"removed"`
	Report  Report  `json:"report"`
}

// ScheduleText is the schedule announcement
type ScheduleText struct {
	Text string `json:"text"`
}

// Health is the health check response. Backends are reported so an
// operator can tell which stores a running bot is using.
type Health struct {
	Status        string `json:"status"`
	Ledger        string `json:"ledger,omitempty"`
	Conversations string `json:"conversations,omitempty"`
	UpdateMode    string `json:"update_mode,omitempty"`
}

// IDs converts person ids for a response
func IDs(in []model.PersonID) []int64 {
	return lo.Map(in, func(id model.PersonID, _ int) int64 { return int64(id) })
}
