package model

import (
	"strings"
	"time"
)

// SessionID identifies a scheduled game
type SessionID int64

// Lifecycle is the visibility of a session. Uniqueness of (kind, date) is
// enforced among Active sessions only.
type Lifecycle string

const (
	LifecycleActive   Lifecycle = "active"
	LifecycleArchived Lifecycle = "archived"
)

// SessionKind is one of the fixed kinds of game the club runs
type SessionKind string

const (
	KindCity   SessionKind = "city"
	KindSport  SessionKind = "sport"
	KindRating SessionKind = "rating"
)

// Kinds lists every session kind in menu order
var Kinds = []SessionKind{KindCity, KindSport, KindRating}

var kindLabels = map[SessionKind]string{
	KindCity:   "🏙️Городская мафия",
	KindSport:  "🌃Спортивная мафия",
	KindRating: "🏆Рейтинговая игра",
}

var kindRules = map[SessionKind]string{
	KindCity:   "18:00 – сбор и объяснение правил\n18:30 – начало игр\n",
	KindSport:  "17:00 – сбор и объяснение правил\n17:30 – школа мафии\n18:30 – начало игр\n",
	KindRating: "19:00 – начало игр\n",
}

// Label returns the button label for the kind
func (k SessionKind) Label() string {
	return kindLabels[k]
}

// Rules returns the fixed timetable text for the kind
func (k SessionKind) Rules() string {
	return kindRules[k]
}

// Valid reports whether k is one of the known kinds
func (k SessionKind) Valid() bool {
	_, ok := kindLabels[k]
	return ok
}

// KindFromLabel resolves a button label (or the bare kind name) to a kind
func KindFromLabel(label string) (SessionKind, error) {
	label = strings.TrimSpace(label)
	for _, k := range Kinds {
		if label == k.Label() || label == string(k) {
			return k, nil
		}
	}
	return "", ErrUnknownKind
}

// Session is a scheduled game people register for
type Session struct {
	ID        SessionID   `json:"id"`
	Kind      SessionKind `json:"kind"`
	DateLabel string      `json:"date_label"`
	Lifecycle Lifecycle   `json:"lifecycle"`
	CreatedAt time.Time   `json:"created_at"`
}

// Title is how the session is displayed in lists: "Сб 05.10 🏙️Городская мафия"
func (s Session) Title() string {
	return s.DateLabel + " " + s.Kind.Label()
}

// IsActive reports whether the session is visible for registration
func (s Session) IsActive() bool {
	return s.Lifecycle == LifecycleActive
}

// SessionFilter selects sessions by lifecycle
type SessionFilter int

const (
	FilterActive SessionFilter = iota
	FilterArchived
	FilterAll
)

// Matches reports whether the session passes the filter
func (f SessionFilter) Matches(s *Session) bool {
	switch f {
	case FilterActive:
		return s.Lifecycle == LifecycleActive
	case FilterArchived:
		return s.Lifecycle == LifecycleArchived
	default:
		return true
	}
}
