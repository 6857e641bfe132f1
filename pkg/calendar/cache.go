package calendar

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/peterbourgon/diskv/v3"
)

const calendarKeyPrefix = "calendar-"

var ErrStalePass = errors.New("sync pass superseded by a newer pass")

// Cache is the durable local copy of calendar metadata and events. Only the
// sync engine writes to it; everything else reads.
type Cache struct {
	mu        sync.RWMutex
	disk      *diskv.Diskv
	write     func(key string, raw []byte) error
	calendars map[string]*Calendar
	passes    map[string]uint64
}

func flatTransform(string) []string {
	return []string{}
}

func newDisk(dir string) *diskv.Diskv {
	return diskv.New(diskv.Options{
		BasePath:     dir,
		Transform:    flatTransform,
		CacheSizeMax: 1024 * 1024, // 1MB
	})
}

// OpenCache loads every calendar previously persisted under dir.
func OpenCache(dir string) (*Cache, error) {
	c := &Cache{
		disk:      newDisk(dir),
		calendars: make(map[string]*Calendar),
		passes:    make(map[string]uint64),
	}
	c.write = c.disk.Write
	for key := range c.disk.KeysPrefix(calendarKeyPrefix, nil) {
		raw, err := c.disk.Read(key)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		cal := &Calendar{}
		if err := json.Unmarshal(raw, cal); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", key, err)
		}
		if cal.Events == nil {
			cal.Events = make(map[string]*Event)
		}
		c.calendars[cal.Meta.ID] = cal
	}
	return c, nil
}

func calendarKey(id string) string {
	return calendarKeyPrefix + base64.RawURLEncoding.EncodeToString([]byte(id))
}

// Tokens returns the credential store sharing this cache's directory.
func (c *Cache) Tokens() *TokenStore {
	return &TokenStore{disk: c.disk}
}

// Calendars lists cached calendar metadata ordered by summary.
func (c *Cache) Calendars() []Meta {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Meta, 0, len(c.calendars))
	for _, cal := range c.calendars {
		out = append(out, cal.Meta)
	}
	sort.Slice(out, func(i, j int) bool {
		if a, b := strings.ToLower(out[i].Summary), strings.ToLower(out[j].Summary); a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Cursor returns the persisted sync cursor of a calendar, empty if none.
func (c *Cache) Cursor(id string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cal, ok := c.calendars[id]; ok {
		return cal.SyncCursor
	}
	return ""
}

// Event returns a copy of a cached event, tombstones included.
func (c *Cache) Event(calendarID, eventID string) (Event, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cal, ok := c.calendars[calendarID]
	if !ok {
		return Event{}, false
	}
	e, ok := cal.Events[eventID]
	if !ok {
		return Event{}, false
	}
	return *e, true
}

func (c *Cache) EventCount(calendarID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cal, ok := c.calendars[calendarID]; ok {
		return len(cal.Events)
	}
	return 0
}

// each calls fn for every event of the given calendars under the read lock.
func (c *Cache) each(calendarIDs []string, fn func(e *Event)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range calendarIDs {
		cal, ok := c.calendars[id]
		if !ok {
			continue
		}
		for _, e := range cal.Events {
			fn(e)
		}
	}
}

func (c *Cache) persistLocked(cal *Calendar) error {
	raw, err := json.Marshal(cal)
	if err != nil {
		return fmt.Errorf("failed to encode calendar %s: %w", cal.Meta.ID, err)
	}
	if err := c.write(calendarKey(cal.Meta.ID), raw); err != nil {
		return fmt.Errorf("failed to write calendar %s: %w", cal.Meta.ID, err)
	}
	return nil
}

// ensure records the latest metadata for a calendar, creating an empty entry
// for calendars seen for the first time.
func (c *Cache) ensure(meta Meta) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cal, ok := c.calendars[meta.ID]
	if !ok {
		cal = &Calendar{Events: make(map[string]*Event)}
		c.calendars[meta.ID] = cal
	}
	prev := cal.Meta
	cal.Meta = meta
	if err := c.persistLocked(cal); err != nil {
		if ok {
			cal.Meta = prev
		} else {
			delete(c.calendars, meta.ID)
		}
		return err
	}
	return nil
}

// beginPass starts a new sync pass for a calendar, superseding any pass still
// in flight, and returns its generation and starting cursor.
func (c *Cache) beginPass(id string) (uint64, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.passes[id]++
	cursor := ""
	if cal, ok := c.calendars[id]; ok {
		cursor = cal.SyncCursor
	}
	return c.passes[id], cursor
}

func (c *Cache) currentLocked(id string, gen uint64) (*Calendar, error) {
	if c.passes[id] != gen {
		return nil, ErrStalePass
	}
	cal, ok := c.calendars[id]
	if !ok {
		cal = &Calendar{Meta: Meta{ID: id}, Events: make(map[string]*Event)}
		c.calendars[id] = cal
	}
	return cal, nil
}

// applyPage stores every event of one response page keyed by event id.
// Cancelled events are kept as tombstones.
func (c *Cache) applyPage(id string, gen uint64, events []*Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cal, err := c.currentLocked(id, gen)
	if err != nil {
		return err
	}
	for _, e := range events {
		if e == nil || e.ID == "" {
			continue
		}
		cp := *e
		cp.CalendarID = id
		cal.Events[e.ID] = &cp
	}
	return c.persistLocked(cal)
}

// commitPass persists the cursor reached by a completed pass.
func (c *Cache) commitPass(id string, gen uint64, cursor string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cal, err := c.currentLocked(id, gen)
	if err != nil {
		return err
	}
	cal.SyncCursor = cursor
	return c.persistLocked(cal)
}
