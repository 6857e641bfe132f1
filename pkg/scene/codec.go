package scene

import (
	"fmt"

	"github.com/automerge/automerge-go"
)

// Document keys at the root of every scene doc.
const (
	keyTitle         = "title"
	keyCards         = "cards"
	keyPages         = "pages"
	keyCardInstances = "cardInstances"
	keyPageOrder     = "pageOrder"
	keyStrokes       = "strokes"
	keyPoints        = "points"
	keyCalendarProps = "calendarProps"
	keyCalendarIDs   = "calendarIds"
)

// The doc* types mirror the document layout. They only use plain strings and
// float64 so that every value round trips through automerge unchanged.

type docPoint struct {
	X float64 `automerge:"x"`
	Y float64 `automerge:"y"`
}

type docStroke struct {
	ID     string     `automerge:"id"`
	PageID string     `automerge:"pageId"`
	CardID string     `automerge:"cardId"`
	Points []docPoint `automerge:"points"`
}

type docPage struct {
	ID      string      `automerge:"id"`
	Strokes []docStroke `automerge:"strokes"`
}

type docCalendarProps struct {
	CalendarIDs []string `automerge:"calendarIds"`
	Date        string   `automerge:"date"`
}

type docCard struct {
	ID            string            `automerge:"id"`
	Width         float64           `automerge:"width"`
	Height        float64           `automerge:"height"`
	Strokes       []docStroke       `automerge:"strokes"`
	Kind          string            `automerge:"kind"`
	CalendarProps *docCalendarProps `automerge:"calendarProps"`
}

type docInstance struct {
	ID     string  `automerge:"id"`
	CardID string  `automerge:"cardId"`
	PageID string  `automerge:"pageId"`
	X      float64 `automerge:"x"`
	Y      float64 `automerge:"y"`
	Z      float64 `automerge:"z"`
	LinkTo string  `automerge:"linkToCardInstanceId"`
}

type docScene struct {
	Title         string                  `automerge:"title"`
	Cards         map[string]*docCard     `automerge:"cards"`
	Pages         map[string]*docPage     `automerge:"pages"`
	CardInstances map[string]*docInstance `automerge:"cardInstances"`
	PageOrder     []string                `automerge:"pageOrder"`
}

// Decode materializes the scene held in doc.
func Decode(doc *automerge.Doc) (*Scene, error) {
	raw, err := automerge.As[*docScene](doc.Root())
	if err != nil {
		return nil, fmt.Errorf("failed to decode scene: %w", err)
	}
	out := &Scene{
		Cards:         make(map[CardID]*Card),
		Pages:         make(map[PageID]*Page),
		CardInstances: make(map[InstanceID]*CardInstance),
		PageOrder:     make([]PageID, 0),
	}
	if raw == nil {
		return out, nil
	}
	out.Title = raw.Title
	for id, c := range raw.Cards {
		if c == nil {
			continue
		}
		out.Cards[CardID(id)] = c.toCard()
	}
	for id, p := range raw.Pages {
		if p == nil {
			continue
		}
		out.Pages[PageID(id)] = &Page{ID: PageID(p.ID), Strokes: toStrokes(p.Strokes)}
	}
	for id, i := range raw.CardInstances {
		if i == nil {
			continue
		}
		out.CardInstances[InstanceID(id)] = i.toInstance()
	}
	for _, id := range raw.PageOrder {
		out.PageOrder = append(out.PageOrder, PageID(id))
	}
	return out, nil
}

func (c *docCard) toCard() *Card {
	card := &Card{
		ID:      CardID(c.ID),
		Width:   c.Width,
		Height:  c.Height,
		Strokes: toStrokes(c.Strokes),
		Kind:    CardKind(c.Kind),
	}
	if card.Kind == "" {
		card.Kind = CardKindDefault
	}
	if c.CalendarProps != nil {
		card.CalendarProps = &CalendarProps{
			CalendarIDs: append([]string{}, c.CalendarProps.CalendarIDs...),
			Date:        c.CalendarProps.Date,
		}
	}
	return card
}

func (i *docInstance) toInstance() *CardInstance {
	return &CardInstance{
		ID:     InstanceID(i.ID),
		CardID: CardID(i.CardID),
		PageID: PageID(i.PageID),
		X:      i.X,
		Y:      i.Y,
		Z:      i.Z,
		LinkTo: InstanceID(i.LinkTo),
	}
}

func toStrokes(in []docStroke) []Stroke {
	out := make([]Stroke, 0, len(in))
	for _, s := range in {
		out = append(out, Stroke{
			ID:     StrokeID(s.ID),
			PageID: PageID(s.PageID),
			CardID: CardID(s.CardID),
			Points: toPoints(s.Points),
		})
	}
	return out
}

func toPoints(in []docPoint) []Point {
	out := make([]Point, 0, len(in))
	for _, p := range in {
		out = append(out, Point{X: p.X, Y: p.Y})
	}
	return out
}

func fromPoint(p Point) docPoint {
	return docPoint{X: p.X, Y: p.Y}
}

func fromStroke(s Stroke) docStroke {
	points := make([]docPoint, 0, len(s.Points))
	for _, p := range s.Points {
		points = append(points, fromPoint(p))
	}
	return docStroke{ID: string(s.ID), PageID: string(s.PageID), CardID: string(s.CardID), Points: points}
}

// fromCard builds the document form of c. calendarProps is left out for
// cards that have none; automerge cannot encode a nil struct pointer.
func fromCard(c *Card) map[string]interface{} {
	strokes := make([]docStroke, 0, len(c.Strokes))
	for _, s := range c.Strokes {
		strokes = append(strokes, fromStroke(s))
	}
	out := map[string]interface{}{
		"id":       string(c.ID),
		"width":    c.Width,
		"height":   c.Height,
		keyStrokes: strokes,
		"kind":     string(c.Kind),
	}
	if c.CalendarProps != nil {
		ids := make([]string, 0, len(c.CalendarProps.CalendarIDs))
		out[keyCalendarProps] = &docCalendarProps{
			CalendarIDs: append(ids, c.CalendarProps.CalendarIDs...),
			Date:        c.CalendarProps.Date,
		}
	}
	return out
}

func fromInstance(i *CardInstance) *docInstance {
	return &docInstance{
		ID:     string(i.ID),
		CardID: string(i.CardID),
		PageID: string(i.PageID),
		X:      i.X,
		Y:      i.Y,
		Z:      i.Z,
		LinkTo: string(i.LinkTo),
	}
}
