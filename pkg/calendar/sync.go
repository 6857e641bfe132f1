package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

var (
	ErrCursorExpired = errors.New("sync cursor expired")
	ErrTooManyPages  = errors.New("sync pass exceeded page limit")
)

const (
	defaultMaxPages    = 1000
	defaultConcurrency = 4
)

// Result summarises one calendar sync pass.
type Result struct {
	CalendarID string
	Requests   int
	Events     int
	FullResync bool
	Cursor     string
}

// Engine brings the cache to parity with a remote Source using incremental
// sync cursors.
type Engine struct {
	source      Source
	cache       *Cache
	maxPages    int
	concurrency int
}

type EngineOption func(*Engine)

// WithMaxPages bounds the number of requests of a single pass.
func WithMaxPages(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxPages = n
		}
	}
}

// WithConcurrency bounds how many calendars sync at once.
func WithConcurrency(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func NewEngine(source Source, cache *Cache, opts ...EngineOption) *Engine {
	e := &Engine{source: source, cache: cache, maxPages: defaultMaxPages, concurrency: defaultConcurrency}
	for _, o := range opts {
		o(e)
	}
	return e
}

// continueSync reports whether another request belongs to the current pass:
// while a page is pending, and also while a cursor-less pass has not yet
// produced a cursor.
func continueSync(pageCursor, cursor string) bool {
	return pageCursor != "" || (pageCursor == "" && cursor == "")
}

// SyncCalendar runs one sync pass for a calendar. Every page is applied to the
// cache as it arrives; the cursor is persisted only once the pass completes.
// An expired cursor restarts the pass from a full, cursor-less listing.
func (e *Engine) SyncCalendar(ctx context.Context, id string) (Result, error) {
	gen, cursor := e.cache.beginPass(id)
	res := Result{CalendarID: id, FullResync: cursor == ""}
	pageCursor := ""

	for {
		if res.Requests >= e.maxPages {
			return res, ErrTooManyPages
		}
		page, err := e.source.ListEvents(ctx, id, ListOptions{Cursor: cursor, PageCursor: pageCursor})
		res.Requests++
		if err != nil {
			return res, fmt.Errorf("failed to list events: %w", err)
		}

		if page.CursorExpired {
			if cursor == "" {
				return res, ErrCursorExpired
			}
			slog.Warn("sync cursor expired, performing full resync", "calendar", id)
			cursor, pageCursor = "", ""
			res.FullResync = true
			continue
		}

		if err := e.cache.applyPage(id, gen, page.Events); err != nil {
			return res, err
		}
		res.Events += len(page.Events)

		pageCursor = page.NextPageCursor
		if page.NextCursor != "" {
			cursor = page.NextCursor
		}
		if !continueSync(pageCursor, cursor) {
			break
		}
	}

	if err := e.cache.commitPass(id, gen, cursor); err != nil {
		return res, err
	}
	res.Cursor = cursor
	return res, nil
}

// SyncAll refreshes the calendar list and syncs every calendar. A failing
// calendar does not stop the others; all failures are returned joined.
func (e *Engine) SyncAll(ctx context.Context) ([]Result, error) {
	metas, err := e.source.ListCalendars(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}
	results := make([]Result, len(metas))
	errs := make([]error, len(metas))
	g := new(errgroup.Group)
	g.SetLimit(e.concurrency)
	for i, m := range metas {
		i, m := i, m
		results[i] = Result{CalendarID: m.ID}
		if err := e.cache.ensure(m); err != nil {
			slog.Error("failed to record calendar", "calendar", m.ID, "err", err)
			errs[i] = fmt.Errorf("calendar %s: %w", m.ID, err)
			continue
		}
		g.Go(func() error {
			res, err := e.SyncCalendar(ctx, m.ID)
			results[i] = res
			if err != nil {
				slog.Error("failed to sync calendar", "calendar", m.ID, "err", err)
				errs[i] = fmt.Errorf("calendar %s: %w", m.ID, err)
				return nil
			}
			slog.Info("updated events", "calendar", m.Summary, "events", res.Events, "requests", res.Requests)
			return nil
		})
	}
	_ = g.Wait()
	return results, errors.Join(errs...)
}
