package model

import (
	"time"

	"daycal/internal/calendar"
)

// User is a local account that owns day documents.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// DayDoc is the persisted unit: one user's event list for one day.
// Month is 1-based.
type DayDoc struct {
	UserID string   `json:"-"`
	Year   int      `json:"year"`
	Month  int      `json:"month"`
	Day    int      `json:"day"`
	Events []string `json:"events"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Key returns the calendar key of the document.
func (d DayDoc) Key() calendar.DayKey {
	return calendar.DayKey{Year: d.Year, Month: time.Month(d.Month), Day: d.Day}
}

// Session is an issued login token.
type Session struct {
	Token     string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Occurrence represents a single concrete instance of a feed event
// (after recurrence expansion and timezone normalization).
type Occurrence struct {
	SourceID string // feed ID
	UID      string // iCalendar UID

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, typically derived from the local start time.
	InstanceKey string

	Summary     string
	Description string
	Location    string

	AllDay bool

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}

// Day returns the day the occurrence starts on.
func (o Occurrence) Day() calendar.DayKey {
	return calendar.DayKeyOf(o.Start)
}
