package clock

import "time"

// Clock provides time operations that can be mocked for testing
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system clock, optionally pinned to a
// location so date labels follow the club's local calendar
type RealClock struct {
	loc *time.Location
}

// New creates a new RealClock in the local time zone
func New() *RealClock {
	return &RealClock{loc: time.Local}
}

// NewIn creates a RealClock reporting times in loc
func NewIn(loc *time.Location) *RealClock {
	return &RealClock{loc: loc}
}

// Now returns the current time
func (c *RealClock) Now() time.Time {
	return time.Now().In(c.loc)
}
