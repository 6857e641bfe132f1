package calendar

import (
	"time"
)

const (
	StatusConfirmed = "confirmed"
	StatusTentative = "tentative"
	StatusCancelled = "cancelled"
)

// Meta describes one remote calendar.
type Meta struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	TimeZone    string `json:"timeZone,omitempty"`
	Color       string `json:"backgroundColor,omitempty"`
	Primary     bool   `json:"primary,omitempty"`
}

// EventTime is either an all-day date or a timestamp.
type EventTime struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

func (t EventTime) IsAllDay() bool {
	return t.Date != "" && t.DateTime == ""
}

// Resolve returns the instant t refers to. All-day dates are midnight in loc.
func (t EventTime) Resolve(loc *time.Location) (time.Time, bool) {
	if t.DateTime != "" {
		v, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return v, true
	}
	if t.Date != "" {
		v, err := time.ParseInLocation(time.DateOnly, t.Date, loc)
		if err != nil {
			return time.Time{}, false
		}
		return v, true
	}
	return time.Time{}, false
}

type Event struct {
	ID          string    `json:"id"`
	CalendarID  string    `json:"calendarId,omitempty"`
	Status      string    `json:"status"`
	Summary     string    `json:"summary,omitempty"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
	Updated     string    `json:"updated,omitempty"`
}

func (e *Event) Cancelled() bool {
	return e.Status == StatusCancelled
}

// Interval returns the closed instant interval of the event. The end of an
// all-day event is exclusive, so it is pulled back by one millisecond.
func (e *Event) Interval(loc *time.Location) (time.Time, time.Time, bool) {
	start, ok := e.Start.Resolve(loc)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	end, ok := e.End.Resolve(loc)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	if e.End.IsAllDay() {
		end = end.Add(-time.Millisecond)
	}
	return start, end, true
}

// Calendar is the cached state of one remote calendar.
type Calendar struct {
	Meta       Meta              `json:"metadata"`
	SyncCursor string            `json:"nextSyncToken,omitempty"`
	Events     map[string]*Event `json:"events"`
}
