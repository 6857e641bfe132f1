// Package tool turns pointer input into scene mutations. The set of tools is
// closed: every variant is handled by the switches in Dispatcher.
package tool

import (
	"fmt"
	"time"

	"github.com/astromechza/sketchy-calendar/pkg/scene"
)

// Tool is one of Draw, Erase, CreateCard, CreateCalendarCard, Select or
// CopyCard. Each variant holds only the state of the gesture in progress.
type Tool interface {
	Name() string
	sealed()
}

type Draw struct {
	stroke scene.StrokeRef
}

type Erase struct {
	down bool
}

type CreateCard struct {
	card    scene.CardID
	downPos scene.Point
}

// CreateCalendarCard places a calendar card showing CalendarIDs. Day defaults
// to the current date.
type CreateCalendarCard struct {
	CalendarIDs []string
	Day         time.Time
}

type Select struct {
	dragging bool
	last     scene.Point
}

type CopyCard struct {
	instance scene.InstanceID
}

func (*Draw) Name() string               { return "draw" }
func (*Erase) Name() string              { return "erase" }
func (*CreateCard) Name() string         { return "card" }
func (*CreateCalendarCard) Name() string { return "calendar" }
func (*Select) Name() string             { return "select" }
func (*CopyCard) Name() string           { return "copy" }

func (*Draw) sealed()               {}
func (*Erase) sealed()              {}
func (*CreateCard) sealed()         {}
func (*CreateCalendarCard) sealed() {}
func (*Select) sealed()             {}
func (*CopyCard) sealed()           {}

// ByName returns a fresh tool for one of the names reported by Tool.Name.
func ByName(name string) (Tool, error) {
	switch name {
	case "draw":
		return &Draw{}, nil
	case "erase":
		return &Erase{}, nil
	case "card":
		return &CreateCard{}, nil
	case "calendar":
		return &CreateCalendarCard{}, nil
	case "select":
		return &Select{}, nil
	case "copy":
		return &CopyCard{}, nil
	}
	return nil, fmt.Errorf("unknown tool '%s'", name)
}

// Dispatcher routes pointer events for the current page to the active tool.
// Points are in document space. It is not safe for concurrent use.
type Dispatcher struct {
	store  *scene.Store
	nav    *scene.Navigator
	sel    *scene.Selection
	active Tool
	now    func() time.Time
}

func NewDispatcher(store *scene.Store, nav *scene.Navigator, sel *scene.Selection) *Dispatcher {
	return &Dispatcher{store: store, nav: nav, sel: sel, active: &Draw{}, now: time.Now}
}

func (d *Dispatcher) Tool() Tool {
	return d.active
}

// SetTool switches tools, abandoning any gesture of the previous tool.
func (d *Dispatcher) SetTool(t Tool) {
	if t == nil {
		t = &Draw{}
	}
	d.active = t
}

func (d *Dispatcher) PointerDown(p scene.Point) error {
	page := d.nav.CurrentPage()
	switch t := d.active.(type) {
	case *Draw:
		ref, err := d.store.StartStroke(page, p)
		if err != nil {
			return fmt.Errorf("failed to start stroke: %w", err)
		}
		t.stroke = ref
	case *Erase:
		t.down = true
		if _, err := d.store.EraseAt(page, p); err != nil {
			return fmt.Errorf("failed to erase: %w", err)
		}
	case *CreateCard:
		card, _, err := d.store.CreateCard(page, p, scene.DefaultCardSize, scene.DefaultCardSize)
		if err != nil {
			return fmt.Errorf("failed to create card: %w", err)
		}
		t.card, t.downPos = card, p
	case *CreateCalendarCard:
		day := t.Day
		if day.IsZero() {
			day = d.now()
		}
		if _, _, err := d.store.CreateCalendarCard(page, p, t.CalendarIDs, day); err != nil {
			return fmt.Errorf("failed to create calendar card: %w", err)
		}
	case *Select:
		t.last = p
		found, err := d.sel.SelectAt(page, p)
		if err != nil {
			return fmt.Errorf("failed to select: %w", err)
		}
		t.dragging = found
	case *CopyCard:
		sc, err := d.store.Snapshot()
		if err != nil {
			return err
		}
		template, ok := scene.FindInstanceAt(sc, p, page)
		if !ok {
			return nil
		}
		card, ok := scene.DisplayCard(sc, template)
		if !ok {
			return nil
		}
		id, err := d.store.CreateInstance(card.ID, page, p)
		if err != nil {
			return fmt.Errorf("failed to copy card: %w", err)
		}
		t.instance = id
	}
	return nil
}

func (d *Dispatcher) PointerMove(p scene.Point) error {
	page := d.nav.CurrentPage()
	switch t := d.active.(type) {
	case *Draw:
		if t.stroke.IsZero() {
			return nil
		}
		return d.store.AppendStrokePoint(t.stroke, p)
	case *Erase:
		if !t.down {
			return nil
		}
		_, err := d.store.EraseAt(page, p)
		return err
	case *CreateCard:
		if t.card == "" {
			return nil
		}
		size := p.Sub(t.downPos)
		return d.store.ResizeCard(t.card, max(size.X, scene.DefaultCardSize), max(size.Y, scene.DefaultCardSize))
	case *CreateCalendarCard:
	case *Select:
		defer func() { t.last = p }()
		if !t.dragging || !d.sel.Active() {
			return nil
		}
		return d.sel.Drag(p.Sub(t.last))
	case *CopyCard:
		if t.instance == "" {
			return nil
		}
		return d.store.MoveInstance(t.instance, p)
	}
	return nil
}

func (d *Dispatcher) PointerUp(p scene.Point) error {
	switch t := d.active.(type) {
	case *Draw:
		t.stroke = scene.StrokeRef{}
	case *Erase:
		t.down = false
	case *CreateCard:
		t.card = ""
	case *CreateCalendarCard:
	case *Select:
		t.dragging = false
		t.last = p
	case *CopyCard:
		t.instance = ""
	}
	return nil
}
