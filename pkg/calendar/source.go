package calendar

import (
	"context"
)

// ListOptions selects what ListEvents returns. An empty Cursor asks for the
// full event set; PageCursor resumes a paginated response.
type ListOptions struct {
	Cursor     string
	PageCursor string
}

// EventPage is one response of a paginated event listing.
type EventPage struct {
	Events         []*Event
	NextPageCursor string
	NextCursor     string
	// CursorExpired reports that the remote rejected Cursor as too old.
	CursorExpired bool
}

// Source is the remote calendar service.
type Source interface {
	ListCalendars(ctx context.Context) ([]Meta, error)
	ListEvents(ctx context.Context, calendarID string, opts ListOptions) (*EventPage, error)
}
