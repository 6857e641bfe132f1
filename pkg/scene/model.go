package scene

import (
	"sort"
)

const DefaultTitle = "Sketchy Calendar"

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Add(o Point) Point { return Point{X: p.X + o.X, Y: p.Y + o.Y} }
func (p Point) Sub(o Point) Point { return Point{X: p.X - o.X, Y: p.Y - o.Y} }

type CardKind string

const (
	CardKindDefault  CardKind = "default"
	CardKindCalendar CardKind = "calendar"
)

// Stroke is owned by exactly one page or one card. Exactly one of PageID and
// CardID is set and it never changes after creation.
type Stroke struct {
	ID     StrokeID `json:"id"`
	PageID PageID   `json:"pageId,omitempty"`
	CardID CardID   `json:"cardId,omitempty"`
	Points []Point  `json:"points"`
}

type Page struct {
	ID      PageID   `json:"id"`
	Strokes []Stroke `json:"strokes"`
}

// CalendarProps binds a calendar card to a set of calendars and a day.
// Date is an ISO day string (2006-01-02).
type CalendarProps struct {
	CalendarIDs []string `json:"calendarIds"`
	Date        string   `json:"date"`
}

type Card struct {
	ID            CardID         `json:"id"`
	Width         float64        `json:"width"`
	Height        float64        `json:"height"`
	Strokes       []Stroke       `json:"strokes"`
	Kind          CardKind       `json:"kind"`
	CalendarProps *CalendarProps `json:"calendarProps,omitempty"`
}

// CardInstance places a card on a page. When LinkTo is set the instance is a
// transclusion pointer to another instance.
type CardInstance struct {
	ID     InstanceID `json:"id"`
	CardID CardID     `json:"cardId"`
	PageID PageID     `json:"pageId"`
	X      float64    `json:"x"`
	Y      float64    `json:"y"`
	Z      float64    `json:"z"`
	LinkTo InstanceID `json:"linkToCardInstanceId,omitempty"`
}

func (i *CardInstance) Origin() Point {
	return Point{X: i.X, Y: i.Y}
}

// Scene is a materialized, read-only view of the document.
type Scene struct {
	Title         string                       `json:"title"`
	Cards         map[CardID]*Card             `json:"cards"`
	Pages         map[PageID]*Page             `json:"pages"`
	CardInstances map[InstanceID]*CardInstance `json:"cardInstances"`
	PageOrder     []PageID                     `json:"pageOrder"`
}

func (s *Scene) Page(id PageID) (*Page, bool) {
	p, ok := s.Pages[id]
	return p, ok
}

func (s *Scene) Card(id CardID) (*Card, bool) {
	c, ok := s.Cards[id]
	return c, ok
}

func (s *Scene) Instance(id InstanceID) (*CardInstance, bool) {
	i, ok := s.CardInstances[id]
	return i, ok
}

// PageIndex returns the position of id in the page order or -1.
func (s *Scene) PageIndex(id PageID) int {
	for i, p := range s.PageOrder {
		if p == id {
			return i
		}
	}
	return -1
}

// InstancesOnPage returns the instances on the page in z-order, bottom first.
// Instances with dangling references are included; callers decide visibility.
func (s *Scene) InstancesOnPage(page PageID) []*CardInstance {
	out := make([]*CardInstance, 0)
	for _, inst := range s.CardInstances {
		if inst.PageID == page {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Z != out[j].Z {
			return out[i].Z < out[j].Z
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// InstancesOfCard returns the ids of every instance that shares the card.
func (s *Scene) InstancesOfCard(card CardID) []InstanceID {
	out := make([]InstanceID, 0)
	for id, inst := range s.CardInstances {
		if inst.CardID == card {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Scene) maxZ() float64 {
	var z float64
	for _, inst := range s.CardInstances {
		if inst.Z > z {
			z = inst.Z
		}
	}
	return z
}
