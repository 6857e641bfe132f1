package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DefaultPageSize is the largest page the Google Calendar API returns.
const DefaultPageSize = 2500

// GoogleSource reads calendars and events from the Google Calendar API.
// Recurring events are expanded and deleted events are included so that
// cancellations arrive as tombstones.
type GoogleSource struct {
	svc      *gcal.Service
	pageSize int64
}

func NewGoogleSource(ctx context.Context, ts oauth2.TokenSource, pageSize int) (*GoogleSource, error) {
	svc, err := gcal.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &GoogleSource{svc: svc, pageSize: int64(pageSize)}, nil
}

func (g *GoogleSource) ListCalendars(ctx context.Context) ([]Meta, error) {
	out := make([]Meta, 0)
	err := g.svc.CalendarList.List().Pages(ctx, func(page *gcal.CalendarList) error {
		for _, item := range page.Items {
			out = append(out, Meta{
				ID:          item.Id,
				Summary:     item.Summary,
				Description: item.Description,
				TimeZone:    item.TimeZone,
				Color:       item.BackgroundColor,
				Primary:     item.Primary,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}
	return out, nil
}

func (g *GoogleSource) ListEvents(ctx context.Context, calendarID string, opts ListOptions) (*EventPage, error) {
	call := g.svc.Events.List(calendarID).
		MaxResults(g.pageSize).
		SingleEvents(true).
		ShowDeleted(true).
		Context(ctx)
	if opts.Cursor != "" {
		call = call.SyncToken(opts.Cursor)
	}
	if opts.PageCursor != "" {
		call = call.PageToken(opts.PageCursor)
	}
	res, err := call.Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusGone {
			return &EventPage{CursorExpired: true}, nil
		}
		return nil, err
	}
	page := &EventPage{
		Events:         make([]*Event, 0, len(res.Items)),
		NextPageCursor: res.NextPageToken,
		NextCursor:     res.NextSyncToken,
	}
	for _, item := range res.Items {
		page.Events = append(page.Events, fromGoogleEvent(calendarID, item))
	}
	return page, nil
}

func fromGoogleTime(t *gcal.EventDateTime) EventTime {
	if t == nil {
		return EventTime{}
	}
	return EventTime{Date: t.Date, DateTime: t.DateTime, TimeZone: t.TimeZone}
}

func fromGoogleEvent(calendarID string, e *gcal.Event) *Event {
	return &Event{
		ID:          e.Id,
		CalendarID:  calendarID,
		Status:      e.Status,
		Summary:     e.Summary,
		Description: e.Description,
		Location:    e.Location,
		Start:       fromGoogleTime(e.Start),
		End:         fromGoogleTime(e.End),
		Updated:     e.Updated,
	}
}
