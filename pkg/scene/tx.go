package scene

import (
	"fmt"
	"time"

	"github.com/automerge/automerge-go"
)

// Tx is the mutable view of the document handed to Mutate callbacks. Every
// operation that references a missing entity is a silent no-op: concurrent
// deletes from other clients are expected, not exceptional.
type Tx struct {
	doc   *automerge.Doc
	ids   IDGenerator
	dirty bool
	scene *Scene
}

// StrokeRef identifies a stroke being drawn. Offset converts page space
// points into the owner's space.
type StrokeRef struct {
	ID     StrokeID
	PageID PageID
	CardID CardID
	Offset Point
}

func (r StrokeRef) IsZero() bool {
	return r.ID == ""
}

func (r StrokeRef) ownerPath() []interface{} {
	if r.PageID != "" {
		return []interface{}{keyPages, string(r.PageID), keyStrokes}
	}
	return []interface{}{keyCards, string(r.CardID), keyStrokes}
}

// Scene decodes the in-progress state of the transaction.
func (tx *Tx) Scene() (*Scene, error) {
	if tx.scene == nil {
		sc, err := Decode(tx.doc)
		if err != nil {
			return nil, err
		}
		tx.scene = sc
	}
	return tx.scene, nil
}

func (tx *Tx) exists(path ...interface{}) bool {
	v, err := tx.doc.Path(path...).Get()
	return err == nil && v != nil && !v.IsVoid()
}

func (tx *Tx) touch() {
	tx.dirty = true
	tx.scene = nil
}

// set writes value at path. Writing a scalar equal to the current one is
// skipped, automerge records no change for it and the commit would be empty.
func (tx *Tx) set(value interface{}, path ...interface{}) error {
	switch value.(type) {
	case string, float64:
		if cur, err := tx.doc.Path(path...).Get(); err == nil && cur != nil && cur.Interface() == value {
			return nil
		}
	}
	tx.touch()
	if err := tx.doc.Path(path...).Set(value); err != nil {
		return fmt.Errorf("failed to set %v: %w", path, err)
	}
	return nil
}

func (tx *Tx) appendTo(value interface{}, path ...interface{}) error {
	tx.touch()
	if err := tx.doc.Path(path...).List().Append(value); err != nil {
		return fmt.Errorf("failed to append to %v: %w", path, err)
	}
	return nil
}

// list resolves the list object at path. Lists reached through a Path are
// not bound to an object id and cannot be deleted from.
func (tx *Tx) list(path ...interface{}) (*automerge.List, error) {
	v, err := tx.doc.Path(path...).Get()
	if err != nil {
		return nil, fmt.Errorf("failed to get %v: %w", path, err)
	}
	if v.Kind() != automerge.KindList {
		return nil, fmt.Errorf("%v is %v, not a list", path, v.Kind())
	}
	return v.List(), nil
}

// indexOf finds the element of the list at path whose "id" equals id.
func (tx *Tx) indexOf(id string, path ...interface{}) int {
	l, err := tx.list(path...)
	if err != nil {
		return -1
	}
	for i := 0; i < l.Len(); i++ {
		got, err := automerge.As[string](tx.doc.Path(join(path, i, "id")...).Get())
		if err == nil && got == id {
			return i
		}
	}
	return -1
}

func join(path []interface{}, more ...interface{}) []interface{} {
	out := make([]interface{}, 0, len(path)+len(more))
	return append(append(out, path...), more...)
}

func (tx *Tx) SetTitle(title string) error {
	return tx.set(title, keyTitle)
}

// MarkCopy prefixes the title the way a duplicated document is labelled.
func (tx *Tx) MarkCopy() error {
	title, _ := automerge.As[string](tx.doc.Path(keyTitle).Get())
	return tx.SetTitle("Copy of " + title)
}

// CreatePage adds an empty page at the end of the page order.
func (tx *Tx) CreatePage() (PageID, error) {
	id := newPageID(tx.ids)
	if err := tx.set(&docPage{ID: string(id), Strokes: []docStroke{}}, keyPages, string(id)); err != nil {
		return "", err
	}
	if err := tx.appendTo(string(id), keyPageOrder); err != nil {
		return "", err
	}
	return id, nil
}

func (tx *Tx) CreateCard(width, height float64) (CardID, error) {
	id := newCardID(tx.ids)
	card := &Card{ID: id, Width: width, Height: height, Kind: CardKindDefault}
	if err := tx.set(fromCard(card), keyCards, string(id)); err != nil {
		return "", err
	}
	return id, nil
}

// CreateCalendarCard creates a card showing the given calendars on day.
func (tx *Tx) CreateCalendarCard(width, height float64, calendarIDs []string, day time.Time) (CardID, error) {
	id := newCardID(tx.ids)
	card := &Card{
		ID:     id,
		Width:  width,
		Height: height,
		Kind:   CardKindCalendar,
		CalendarProps: &CalendarProps{
			CalendarIDs: calendarIDs,
			Date:        day.Format(time.DateOnly),
		},
	}
	if err := tx.set(fromCard(card), keyCards, string(id)); err != nil {
		return "", err
	}
	return id, nil
}

// CreateInstance places card on page at pos above every existing instance.
// Returns a zero id when the card or page does not exist.
func (tx *Tx) CreateInstance(card CardID, page PageID, pos Point) (InstanceID, error) {
	return tx.createInstance(card, page, pos, "")
}

// CreateLinkedInstance places a transclusion pointer to target on page. The
// pointer shares the target's card.
func (tx *Tx) CreateLinkedInstance(target InstanceID, page PageID, pos Point) (InstanceID, error) {
	sc, err := tx.Scene()
	if err != nil {
		return "", err
	}
	t, ok := sc.Instance(target)
	if !ok {
		return "", nil
	}
	return tx.createInstance(t.CardID, page, pos, target)
}

func (tx *Tx) createInstance(card CardID, page PageID, pos Point, link InstanceID) (InstanceID, error) {
	if !tx.exists(keyCards, string(card)) || !tx.exists(keyPages, string(page)) {
		return "", nil
	}
	sc, err := tx.Scene()
	if err != nil {
		return "", err
	}
	inst := &CardInstance{
		ID:     newInstanceID(tx.ids),
		CardID: card,
		PageID: page,
		X:      pos.X,
		Y:      pos.Y,
		Z:      sc.maxZ() + 1,
		LinkTo: link,
	}
	if err := tx.set(fromInstance(inst), keyCardInstances, string(inst.ID)); err != nil {
		return "", err
	}
	return inst.ID, nil
}

// LinkInstance turns id into a transclusion pointer to target. Self links and
// missing instances are ignored.
func (tx *Tx) LinkInstance(id, target InstanceID) error {
	if id == target || !tx.exists(keyCardInstances, string(id)) || !tx.exists(keyCardInstances, string(target)) {
		return nil
	}
	return tx.set(string(target), keyCardInstances, string(id), "linkToCardInstanceId")
}

func (tx *Tx) ResizeCard(card CardID, width, height float64) error {
	if !tx.exists(keyCards, string(card)) {
		return nil
	}
	if err := tx.set(width, keyCards, string(card), "width"); err != nil {
		return err
	}
	return tx.set(height, keyCards, string(card), "height")
}

func (tx *Tx) MoveInstance(id InstanceID, pos Point) error {
	if !tx.exists(keyCardInstances, string(id)) {
		return nil
	}
	if err := tx.set(pos.X, keyCardInstances, string(id), "x"); err != nil {
		return err
	}
	return tx.set(pos.Y, keyCardInstances, string(id), "y")
}

// RelocateInstance changes the page an instance is placed on.
func (tx *Tx) RelocateInstance(id InstanceID, page PageID) error {
	if !tx.exists(keyCardInstances, string(id)) || !tx.exists(keyPages, string(page)) {
		return nil
	}
	return tx.set(string(page), keyCardInstances, string(id), "pageId")
}

// DeleteInstance removes the placement only; the card is kept even when no
// instance refers to it any more.
func (tx *Tx) DeleteInstance(id InstanceID) error {
	if !tx.exists(keyCardInstances, string(id)) {
		return nil
	}
	tx.touch()
	if err := tx.doc.Path(keyCardInstances).Map().Delete(string(id)); err != nil {
		return fmt.Errorf("failed to delete instance %s: %w", id, err)
	}
	return nil
}

// CloneCard deep copies a card under a fresh id with fresh stroke ids.
// Calendar props are copied by value.
func (tx *Tx) CloneCard(card CardID) (CardID, error) {
	sc, err := tx.Scene()
	if err != nil {
		return "", err
	}
	src, ok := sc.Card(card)
	if !ok {
		return "", nil
	}
	clone := &Card{
		ID:      newCardID(tx.ids),
		Width:   src.Width,
		Height:  src.Height,
		Kind:    src.Kind,
		Strokes: make([]Stroke, 0, len(src.Strokes)),
	}
	for _, s := range src.Strokes {
		clone.Strokes = append(clone.Strokes, Stroke{
			ID:     newStrokeID(tx.ids),
			CardID: clone.ID,
			Points: append([]Point{}, s.Points...),
		})
	}
	if src.CalendarProps != nil {
		clone.CalendarProps = &CalendarProps{
			CalendarIDs: append([]string{}, src.CalendarProps.CalendarIDs...),
			Date:        src.CalendarProps.Date,
		}
	}
	if err := tx.set(fromCard(clone), keyCards, string(clone.ID)); err != nil {
		return "", err
	}
	return clone.ID, nil
}

// CreatePageStroke starts a stroke owned by page with first in page space.
func (tx *Tx) CreatePageStroke(page PageID, first Point) (StrokeRef, error) {
	if !tx.exists(keyPages, string(page)) {
		return StrokeRef{}, nil
	}
	ref := StrokeRef{ID: newStrokeID(tx.ids), PageID: page}
	return ref, tx.appendStroke(ref, first)
}

// CreateCardStroke starts a stroke owned by card with first in card space.
func (tx *Tx) CreateCardStroke(card CardID, first Point) (StrokeRef, error) {
	if !tx.exists(keyCards, string(card)) {
		return StrokeRef{}, nil
	}
	ref := StrokeRef{ID: newStrokeID(tx.ids), CardID: card}
	return ref, tx.appendStroke(ref, first)
}

func (tx *Tx) appendStroke(ref StrokeRef, first Point) error {
	s := docStroke{
		ID:     string(ref.ID),
		PageID: string(ref.PageID),
		CardID: string(ref.CardID),
		Points: []docPoint{fromPoint(first)},
	}
	return tx.appendTo(s, ref.ownerPath()...)
}

// StartStroke begins a stroke at a page space point. A point over a card
// instance draws on that instance's card, otherwise on the page.
func (tx *Tx) StartStroke(page PageID, at Point) (StrokeRef, error) {
	sc, err := tx.Scene()
	if err != nil {
		return StrokeRef{}, err
	}
	if inst, ok := FindInstanceAt(sc, at, page); ok {
		card, _ := DisplayCard(sc, inst)
		ref, err := tx.CreateCardStroke(card.ID, at.Sub(inst.Origin()))
		ref.Offset = inst.Origin()
		return ref, err
	}
	return tx.CreatePageStroke(page, at)
}

// AppendStrokePoint adds a page space point to the stroke.
func (tx *Tx) AppendStrokePoint(ref StrokeRef, at Point) error {
	if ref.IsZero() {
		return nil
	}
	owner := ref.ownerPath()
	if !tx.exists(owner[:2]...) {
		return nil
	}
	idx := tx.indexOf(string(ref.ID), owner...)
	if idx < 0 {
		return nil
	}
	return tx.appendTo(fromPoint(at.Sub(ref.Offset)), join(owner, idx, keyPoints)...)
}

// RemoveStroke deletes a stroke from its owner.
func (tx *Tx) RemoveStroke(ref StrokeRef) error {
	owner := ref.ownerPath()
	if !tx.exists(owner[:2]...) {
		return nil
	}
	idx := tx.indexOf(string(ref.ID), owner...)
	if idx < 0 {
		return nil
	}
	l, err := tx.list(owner...)
	if err != nil {
		return err
	}
	tx.touch()
	if err := l.Delete(idx); err != nil {
		return fmt.Errorf("failed to delete stroke %s: %w", ref.ID, err)
	}
	return nil
}

// ToggleCalendar adds calendarID to a calendar card's filter set, or removes
// it when already present.
func (tx *Tx) ToggleCalendar(card CardID, calendarID string) error {
	path := []interface{}{keyCards, string(card), keyCalendarProps, keyCalendarIDs}
	if !tx.exists(path...) {
		return nil
	}
	l, err := tx.list(path...)
	if err != nil {
		return err
	}
	for i := 0; i < l.Len(); i++ {
		got, err := automerge.As[string](l.Get(i))
		if err == nil && got == calendarID {
			tx.touch()
			if err := l.Delete(i); err != nil {
				return fmt.Errorf("failed to remove calendar %s: %w", calendarID, err)
			}
			return nil
		}
	}
	return tx.appendTo(calendarID, path...)
}

// SetCalendarDate changes the day a calendar card shows.
func (tx *Tx) SetCalendarDate(card CardID, day time.Time) error {
	if !tx.exists(keyCards, string(card), keyCalendarProps, keyCalendarIDs) {
		return nil
	}
	return tx.set(day.Format(time.DateOnly), keyCards, string(card), keyCalendarProps, "date")
}
