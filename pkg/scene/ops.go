package scene

import (
	"time"
)

// Default sizes for cards created by tools.
const (
	DefaultCardSize    = 5
	CalendarCardWidth  = 200
	CalendarCardHeight = 300
)

func mutateResult[T any](s *Store, message string, fn func(tx *Tx) (T, error)) (T, error) {
	var out T
	err := s.Mutate(message, func(tx *Tx) error {
		v, err := fn(tx)
		out = v
		return err
	})
	return out, err
}

func (s *Store) SetTitle(title string) error {
	return s.Mutate("set title", func(tx *Tx) error { return tx.SetTitle(title) })
}

// MarkCopy labels the document as a duplicate of another scene.
func (s *Store) MarkCopy() error {
	return s.Mutate("mark copy", func(tx *Tx) error { return tx.MarkCopy() })
}

func (s *Store) CreatePage() (PageID, error) {
	return mutateResult(s, "create page", func(tx *Tx) (PageID, error) { return tx.CreatePage() })
}

// CreateCard creates a card and places a first instance of it on page.
func (s *Store) CreateCard(page PageID, pos Point, width, height float64) (CardID, InstanceID, error) {
	var inst InstanceID
	card, err := mutateResult(s, "create card", func(tx *Tx) (CardID, error) {
		if !tx.exists(keyPages, string(page)) {
			return "", nil
		}
		id, err := tx.CreateCard(width, height)
		if err != nil {
			return "", err
		}
		inst, err = tx.CreateInstance(id, page, pos)
		return id, err
	})
	return card, inst, err
}

// CreateCalendarCard creates a calendar card and places it on page.
func (s *Store) CreateCalendarCard(page PageID, pos Point, calendarIDs []string, day time.Time) (CardID, InstanceID, error) {
	var inst InstanceID
	card, err := mutateResult(s, "create calendar card", func(tx *Tx) (CardID, error) {
		if !tx.exists(keyPages, string(page)) {
			return "", nil
		}
		id, err := tx.CreateCalendarCard(CalendarCardWidth, CalendarCardHeight, calendarIDs, day)
		if err != nil {
			return "", err
		}
		inst, err = tx.CreateInstance(id, page, pos)
		return id, err
	})
	return card, inst, err
}

func (s *Store) CreateInstance(card CardID, page PageID, pos Point) (InstanceID, error) {
	return mutateResult(s, "create instance", func(tx *Tx) (InstanceID, error) {
		return tx.CreateInstance(card, page, pos)
	})
}

func (s *Store) CreateLinkedInstance(target InstanceID, page PageID, pos Point) (InstanceID, error) {
	return mutateResult(s, "create linked instance", func(tx *Tx) (InstanceID, error) {
		return tx.CreateLinkedInstance(target, page, pos)
	})
}

func (s *Store) LinkInstance(id, target InstanceID) error {
	return s.Mutate("link instance", func(tx *Tx) error { return tx.LinkInstance(id, target) })
}

func (s *Store) ResizeCard(card CardID, width, height float64) error {
	return s.Mutate("resize card", func(tx *Tx) error { return tx.ResizeCard(card, width, height) })
}

func (s *Store) MoveInstance(id InstanceID, pos Point) error {
	return s.Mutate("move instance", func(tx *Tx) error { return tx.MoveInstance(id, pos) })
}

func (s *Store) RelocateInstance(id InstanceID, page PageID) error {
	return s.Mutate("relocate instance", func(tx *Tx) error { return tx.RelocateInstance(id, page) })
}

func (s *Store) DeleteInstance(id InstanceID) error {
	return s.Mutate("delete instance", func(tx *Tx) error { return tx.DeleteInstance(id) })
}

func (s *Store) CloneCard(card CardID) (CardID, error) {
	return mutateResult(s, "clone card", func(tx *Tx) (CardID, error) { return tx.CloneCard(card) })
}

func (s *Store) StartStroke(page PageID, at Point) (StrokeRef, error) {
	return mutateResult(s, "start stroke", func(tx *Tx) (StrokeRef, error) { return tx.StartStroke(page, at) })
}

func (s *Store) AppendStrokePoint(ref StrokeRef, at Point) error {
	return s.Mutate("append stroke point", func(tx *Tx) error { return tx.AppendStrokePoint(ref, at) })
}

func (s *Store) EraseAt(page PageID, at Point) (int, error) {
	return mutateResult(s, "erase", func(tx *Tx) (int, error) { return tx.EraseAt(page, at) })
}

func (s *Store) ToggleCalendar(card CardID, calendarID string) error {
	return s.Mutate("toggle calendar", func(tx *Tx) error { return tx.ToggleCalendar(card, calendarID) })
}

func (s *Store) SetCalendarDate(card CardID, day time.Time) error {
	return s.Mutate("set calendar date", func(tx *Tx) error { return tx.SetCalendarDate(card, day) })
}
