package calendar

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// DayQuery answers "which events overlap this day" from the cache.
//
// Results are memoized by calendar set and day and are never invalidated:
// events synced after the first query for a key are not reflected until the
// process restarts. Reset drops the memo explicitly.
type DayQuery struct {
	cache *Cache
	mu    sync.Mutex
	memo  map[string][]Event
}

func NewDayQuery(cache *Cache) *DayQuery {
	return &DayQuery{cache: cache, memo: make(map[string][]Event)}
}

// DayWindow returns the first and last millisecond of day in its location.
func DayWindow(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return start, start.AddDate(0, 0, 1).Add(-time.Millisecond)
}

func normalizeIDs(ids []string) []string {
	out := append([]string{}, ids...)
	sort.Strings(out)
	n := 0
	for i, id := range out {
		if i > 0 && id == out[n-1] {
			continue
		}
		out[n] = id
		n++
	}
	return out[:n]
}

func memoKey(ids []string, day time.Time) string {
	return strings.Join(ids, "\x1f") + "|" + day.Format(time.DateOnly)
}

// Query returns the non-cancelled events of the given calendars whose interval
// overlaps the local day, ordered by start time.
func (q *DayQuery) Query(calendarIDs []string, day time.Time) []Event {
	ids := normalizeIDs(calendarIDs)
	key := memoKey(ids, day)

	q.mu.Lock()
	defer q.mu.Unlock()
	if cached, ok := q.memo[key]; ok {
		return cached
	}

	dayStart, dayEnd := DayWindow(day)
	out := make([]Event, 0)
	q.cache.each(ids, func(e *Event) {
		if e.Cancelled() {
			return
		}
		start, end, ok := e.Interval(day.Location())
		if !ok {
			return
		}
		if !start.After(dayEnd) && !end.Before(dayStart) {
			out = append(out, *e)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		si, _ := out[i].Start.Resolve(day.Location())
		sj, _ := out[j].Start.Resolve(day.Location())
		if !si.Equal(sj) {
			return si.Before(sj)
		}
		return out[i].ID < out[j].ID
	})
	q.memo[key] = out
	return out
}

// Reset drops every memoized result.
func (q *DayQuery) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.memo = make(map[string][]Event)
}
