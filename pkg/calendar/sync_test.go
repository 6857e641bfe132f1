package calendar

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	calendars []Meta
	calls     []ListOptions
	respond   func(calendarID string, opts ListOptions, call int) (*EventPage, error)
}

func (f *fakeSource) ListCalendars(context.Context) ([]Meta, error) {
	return f.calendars, nil
}

func (f *fakeSource) ListEvents(_ context.Context, calendarID string, opts ListOptions) (*EventPage, error) {
	f.calls = append(f.calls, opts)
	return f.respond(calendarID, opts, len(f.calls))
}

func confirmed(id string) *Event {
	return &Event{
		ID:     id,
		Status: StatusConfirmed,
		Start:  EventTime{DateTime: "2024-06-01T09:00:00Z"},
		End:    EventTime{DateTime: "2024-06-01T10:00:00Z"},
	}
}

func newTestCache(t *testing.T) (*Cache, string) {
	t.Helper()
	dir := t.TempDir()
	c, err := OpenCache(dir)
	require.NoError(t, err)
	return c, dir
}

func TestContinueSync(t *testing.T) {
	assert.True(t, continueSync("page", ""))
	assert.True(t, continueSync("page", "cursor"))
	assert.True(t, continueSync("", ""))
	assert.False(t, continueSync("", "cursor"))
}

func TestSyncCalendar_PaginatesAndPersistsCursor(t *testing.T) {
	cache, dir := newTestCache(t)
	src := &fakeSource{respond: func(_ string, opts ListOptions, call int) (*EventPage, error) {
		switch call {
		case 1:
			assert.Equal(t, ListOptions{}, opts)
			return &EventPage{Events: []*Event{confirmed("e1")}, NextPageCursor: "A"}, nil
		case 2:
			assert.Equal(t, ListOptions{PageCursor: "A"}, opts)
			return &EventPage{Events: []*Event{confirmed("e2")}, NextCursor: "Z"}, nil
		}
		t.Fatalf("unexpected call %d", call)
		return nil, nil
	}}

	res, err := NewEngine(src, cache).SyncCalendar(context.Background(), "cal1")
	require.NoError(t, err)
	assert.Len(t, src.calls, 2)
	assert.Equal(t, 2, res.Requests)
	assert.Equal(t, 2, res.Events)
	assert.Equal(t, "Z", res.Cursor)
	assert.Equal(t, "Z", cache.Cursor("cal1"))

	reopened, err := OpenCache(dir)
	require.NoError(t, err)
	assert.Equal(t, "Z", reopened.Cursor("cal1"))
	assert.Equal(t, 2, reopened.EventCount("cal1"))
}

func TestSyncCalendar_IncrementalPassSendsCursor(t *testing.T) {
	cache, _ := newTestCache(t)
	src := &fakeSource{respond: func(_ string, opts ListOptions, call int) (*EventPage, error) {
		if call == 1 {
			return &EventPage{Events: []*Event{confirmed("e1")}, NextCursor: "c1"}, nil
		}
		assert.Equal(t, ListOptions{Cursor: "c1"}, opts)
		changed := confirmed("e1")
		changed.Summary = "moved"
		return &EventPage{Events: []*Event{changed}, NextCursor: "c2"}, nil
	}}
	engine := NewEngine(src, cache)

	_, err := engine.SyncCalendar(context.Background(), "cal1")
	require.NoError(t, err)
	res, err := engine.SyncCalendar(context.Background(), "cal1")
	require.NoError(t, err)
	assert.False(t, res.FullResync)
	assert.Equal(t, "c2", cache.Cursor("cal1"))

	e, ok := cache.Event("cal1", "e1")
	require.True(t, ok)
	assert.Equal(t, "moved", e.Summary)
}

func TestSyncCalendar_CursorExpiryFallsBackToFullResync(t *testing.T) {
	cache, _ := newTestCache(t)
	src := &fakeSource{respond: func(_ string, opts ListOptions, call int) (*EventPage, error) {
		switch call {
		case 1:
			return &EventPage{NextCursor: "old"}, nil
		case 2:
			assert.Equal(t, "old", opts.Cursor)
			return &EventPage{CursorExpired: true}, nil
		case 3:
			assert.Equal(t, ListOptions{}, opts)
			return &EventPage{Events: []*Event{confirmed("e1")}, NextCursor: "new"}, nil
		}
		t.Fatalf("unexpected call %d", call)
		return nil, nil
	}}
	engine := NewEngine(src, cache)

	_, err := engine.SyncCalendar(context.Background(), "cal1")
	require.NoError(t, err)
	res, err := engine.SyncCalendar(context.Background(), "cal1")
	require.NoError(t, err)
	assert.True(t, res.FullResync)
	assert.Equal(t, 2, res.Requests)
	assert.Equal(t, "new", cache.Cursor("cal1"))
}

func TestSyncCalendar_ExpiryWithoutCursorStops(t *testing.T) {
	cache, _ := newTestCache(t)
	src := &fakeSource{respond: func(string, ListOptions, int) (*EventPage, error) {
		return &EventPage{CursorExpired: true}, nil
	}}

	_, err := NewEngine(src, cache).SyncCalendar(context.Background(), "cal1")
	require.ErrorIs(t, err, ErrCursorExpired)
	assert.Len(t, src.calls, 1)
}

func TestSyncCalendar_NeverLoopsForever(t *testing.T) {
	cache, _ := newTestCache(t)
	src := &fakeSource{respond: func(string, ListOptions, int) (*EventPage, error) {
		return &EventPage{}, nil
	}}

	_, err := NewEngine(src, cache, WithMaxPages(5)).SyncCalendar(context.Background(), "cal1")
	require.ErrorIs(t, err, ErrTooManyPages)
	assert.Len(t, src.calls, 5)
	assert.Empty(t, cache.Cursor("cal1"))
}

func TestSyncCalendar_FailureKeepsAppliedPagesAndOldCursor(t *testing.T) {
	cache, _ := newTestCache(t)
	boom := errors.New("network down")
	src := &fakeSource{respond: func(_ string, _ ListOptions, call int) (*EventPage, error) {
		switch call {
		case 1:
			return &EventPage{NextCursor: "c1"}, nil
		case 2:
			return &EventPage{Events: []*Event{confirmed("partial")}, NextPageCursor: "p2"}, nil
		}
		return nil, boom
	}}
	engine := NewEngine(src, cache)

	_, err := engine.SyncCalendar(context.Background(), "cal1")
	require.NoError(t, err)
	_, err = engine.SyncCalendar(context.Background(), "cal1")
	require.ErrorIs(t, err, boom)

	_, ok := cache.Event("cal1", "partial")
	assert.True(t, ok)
	assert.Equal(t, "c1", cache.Cursor("cal1"))
}

func TestSyncCalendar_StoresTombstones(t *testing.T) {
	cache, _ := newTestCache(t)
	src := &fakeSource{respond: func(_ string, _ ListOptions, call int) (*EventPage, error) {
		if call == 1 {
			return &EventPage{Events: []*Event{confirmed("e1")}, NextCursor: "c1"}, nil
		}
		return &EventPage{Events: []*Event{{ID: "e1", Status: StatusCancelled}}, NextCursor: "c2"}, nil
	}}
	engine := NewEngine(src, cache)

	for i := 0; i < 2; i++ {
		_, err := engine.SyncCalendar(context.Background(), "cal1")
		require.NoError(t, err)
	}
	e, ok := cache.Event("cal1", "e1")
	require.True(t, ok)
	assert.True(t, e.Cancelled())
}

func TestSyncCalendar_StalePassIsDiscarded(t *testing.T) {
	cache, _ := newTestCache(t)
	var engine *Engine
	src := &fakeSource{}
	src.respond = func(_ string, _ ListOptions, call int) (*EventPage, error) {
		if call == 1 {
			// A newer pass starts and completes while this response is in flight.
			res, err := engine.SyncCalendar(context.Background(), "cal1")
			require.NoError(t, err)
			require.Equal(t, "fresh", res.Cursor)
			return &EventPage{Events: []*Event{confirmed("stale")}, NextCursor: "stale"}, nil
		}
		return &EventPage{Events: []*Event{confirmed("fresh")}, NextCursor: "fresh"}, nil
	}
	engine = NewEngine(src, cache)

	_, err := engine.SyncCalendar(context.Background(), "cal1")
	require.ErrorIs(t, err, ErrStalePass)
	assert.Equal(t, "fresh", cache.Cursor("cal1"))
	_, ok := cache.Event("cal1", "stale")
	assert.False(t, ok)
}

func TestSyncAll_IsolatesCalendarFailures(t *testing.T) {
	cache, _ := newTestCache(t)
	boom := errors.New("forbidden")
	src := &fakeSource{
		calendars: []Meta{{ID: "good", Summary: "Good"}, {ID: "bad", Summary: "Bad"}},
		respond: func(calendarID string, _ ListOptions, _ int) (*EventPage, error) {
			if calendarID == "bad" {
				return nil, boom
			}
			return &EventPage{Events: []*Event{confirmed("e1")}, NextCursor: "c1"}, nil
		},
	}

	results, err := NewEngine(src, cache, WithConcurrency(1)).SyncAll(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bad")
	require.Len(t, results, 2)
	assert.Equal(t, "c1", cache.Cursor("good"))
	assert.Empty(t, cache.Cursor("bad"))

	metas := cache.Calendars()
	require.Len(t, metas, 2)
	assert.Equal(t, "Bad", metas[0].Summary)
	assert.Equal(t, "Good", metas[1].Summary)
}

func TestSyncAll_RecordFailureSkipsOnlyThatCalendar(t *testing.T) {
	cache, _ := newTestCache(t)
	diskFull := errors.New("disk full")
	write := cache.write
	cache.write = func(key string, raw []byte) error {
		if key == calendarKey("bad") {
			return diskFull
		}
		return write(key, raw)
	}
	var synced []string
	src := &fakeSource{
		calendars: []Meta{{ID: "bad", Summary: "Bad"}, {ID: "good", Summary: "Good"}},
		respond: func(calendarID string, _ ListOptions, _ int) (*EventPage, error) {
			synced = append(synced, calendarID)
			return &EventPage{Events: []*Event{confirmed("e1")}, NextCursor: "c1"}, nil
		},
	}

	results, err := NewEngine(src, cache, WithConcurrency(1)).SyncAll(context.Background())
	require.ErrorIs(t, err, diskFull)
	assert.Contains(t, err.Error(), "calendar bad")
	require.Len(t, results, 2)
	assert.Equal(t, "bad", results[0].CalendarID)
	assert.Zero(t, results[0].Requests)
	assert.Equal(t, 1, results[1].Requests)

	assert.Equal(t, []string{"good"}, synced)
	assert.Equal(t, "c1", cache.Cursor("good"))
	require.Len(t, cache.Calendars(), 1)
	assert.Equal(t, "good", cache.Calendars()[0].ID)
}
