package model

import (
	"strings"
	"time"
)

// PersonID is the opaque numeric identity assigned by the chat transport
type PersonID int64

// AdultAge is the age below which onboarding emits the age-restriction notice
const AdultAge = 18

// Person is someone who completed onboarding
type Person struct {
	ID        PersonID  `json:"id"`
	FirstName string    `json:"first_name" validate:"required,max=64"`
	LastName  string    `json:"last_name" validate:"required,max=64"`
	Nickname  string    `json:"nickname" validate:"required,max=64"`
	Age       int       `json:"age" validate:"min=1,max=120"`
	Handle    string    `json:"handle,omitempty" validate:"max=64"` // transport username, may be empty
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName returns "First Last (Nick)", the form shown to the organizer
func (p Person) FullName() string {
	return strings.TrimSpace(p.FirstName+" "+p.LastName) + " (" + p.Nickname + ")"
}

// IsMinor reports whether the person is under AdultAge
func (p Person) IsMinor() bool {
	return p.Age < AdultAge
}
