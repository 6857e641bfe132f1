package scene

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seqIDs struct {
	prefix string
	n      int
}

func (g *seqIDs) NewID() string {
	g.n++
	return fmt.Sprintf("%sid-%03d", g.prefix, g.n)
}

func newTestStore(t *testing.T) (*Store, PageID) {
	t.Helper()
	s, err := New(WithIDGenerator(&seqIDs{}))
	require.NoError(t, err)
	sc, err := s.Snapshot()
	require.NoError(t, err)
	require.Len(t, sc.PageOrder, 1)
	return s, sc.PageOrder[0]
}

func TestNew_SeedsFirstPage(t *testing.T) {
	s, page := newTestStore(t)
	sc, err := s.Snapshot()
	require.NoError(t, err)

	assert.Equal(t, DefaultTitle, sc.Title)
	assert.Empty(t, sc.Cards)
	assert.Empty(t, sc.CardInstances)
	require.Contains(t, sc.Pages, page)
	assert.Empty(t, sc.Pages[page].Strokes)
}

func TestCreateCard(t *testing.T) {
	s, page := newTestStore(t)

	card, inst, err := s.CreateCard(page, Point{X: 10, Y: 20}, 30, 40)
	require.NoError(t, err)
	require.NotEmpty(t, card)
	require.NotEmpty(t, inst)

	sc, err := s.Snapshot()
	require.NoError(t, err)
	c, ok := sc.Card(card)
	require.True(t, ok)
	assert.Equal(t, 30.0, c.Width)
	assert.Equal(t, 40.0, c.Height)
	assert.Equal(t, CardKindDefault, c.Kind)

	i, ok := sc.Instance(inst)
	require.True(t, ok)
	assert.Equal(t, card, i.CardID)
	assert.Equal(t, page, i.PageID)
	assert.Equal(t, Point{X: 10, Y: 20}, i.Origin())
}

func TestMissingReferencesAreNoops(t *testing.T) {
	s, page := newTestStore(t)
	before := s.Heads()

	id, err := s.CreateInstance("missing-card", page, Point{})
	require.NoError(t, err)
	assert.Empty(t, id)

	card, inst, err := s.CreateCard("missing-page", Point{}, 1, 1)
	require.NoError(t, err)
	assert.Empty(t, card)
	assert.Empty(t, inst)

	require.NoError(t, s.MoveInstance("missing", Point{X: 1}))
	require.NoError(t, s.ResizeCard("missing", 2, 2))
	require.NoError(t, s.DeleteInstance("missing"))
	require.NoError(t, s.RelocateInstance("missing", page))
	require.NoError(t, s.ToggleCalendar("missing", "cal"))
	require.NoError(t, s.SetCalendarDate("missing", time.Now()))
	require.NoError(t, s.AppendStrokePoint(StrokeRef{ID: "missing", PageID: page}, Point{}))

	clone, err := s.CloneCard("missing")
	require.NoError(t, err)
	assert.Empty(t, clone)

	assert.Equal(t, before, s.Heads())
}

func TestMutate_FailureIsNotApplied(t *testing.T) {
	s, _ := newTestStore(t)
	boom := errors.New("boom")

	err := s.Mutate("half done", func(tx *Tx) error {
		if err := tx.SetTitle("changed"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	sc, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, sc.Title)
}

func TestMarkCopy(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Mutate("copy", func(tx *Tx) error { return tx.MarkCopy() }))
	sc, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "Copy of "+DefaultTitle, sc.Title)
}

func TestResizeAndMove(t *testing.T) {
	s, page := newTestStore(t)
	card, inst, err := s.CreateCard(page, Point{}, 5, 5)
	require.NoError(t, err)

	require.NoError(t, s.ResizeCard(card, 50, 60))
	require.NoError(t, s.MoveInstance(inst, Point{X: 7, Y: 8}))

	sc, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 50.0, sc.Cards[card].Width)
	assert.Equal(t, 60.0, sc.Cards[card].Height)
	assert.Equal(t, Point{X: 7, Y: 8}, sc.CardInstances[inst].Origin())
}

func TestDeleteInstance_KeepsCard(t *testing.T) {
	s, page := newTestStore(t)
	card, inst, err := s.CreateCard(page, Point{}, 5, 5)
	require.NoError(t, err)

	require.NoError(t, s.DeleteInstance(inst))

	sc, err := s.Snapshot()
	require.NoError(t, err)
	assert.NotContains(t, sc.CardInstances, inst)
	assert.Contains(t, sc.Cards, card)
	assert.Empty(t, sc.InstancesOfCard(card))
}

func TestCloneCard(t *testing.T) {
	s, page := newTestStore(t)
	card, _, err := s.CreateCard(page, Point{X: 100, Y: 100}, 40, 30)
	require.NoError(t, err)

	ref, err := s.StartStroke(page, Point{X: 101, Y: 102})
	require.NoError(t, err)
	require.Equal(t, card, ref.CardID)
	require.NoError(t, s.AppendStrokePoint(ref, Point{X: 110, Y: 112}))

	clone, err := s.CloneCard(card)
	require.NoError(t, err)
	require.NotEmpty(t, clone)
	assert.NotEqual(t, card, clone)

	sc, err := s.Snapshot()
	require.NoError(t, err)
	src, dst := sc.Cards[card], sc.Cards[clone]
	assert.Equal(t, src.Width, dst.Width)
	assert.Equal(t, src.Height, dst.Height)
	require.Len(t, dst.Strokes, 1)
	assert.NotEqual(t, src.Strokes[0].ID, dst.Strokes[0].ID)
	assert.Equal(t, clone, dst.Strokes[0].CardID)
	assert.Equal(t, src.Strokes[0].Points, dst.Strokes[0].Points)
	assert.Empty(t, sc.InstancesOfCard(clone))
}

func TestCloneCard_CopiesCalendarProps(t *testing.T) {
	s, page := newTestStore(t)
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	card, _, err := s.CreateCalendarCard(page, Point{}, []string{"cal1"}, day)
	require.NoError(t, err)

	clone, err := s.CloneCard(card)
	require.NoError(t, err)
	require.NoError(t, s.ToggleCalendar(card, "cal2"))

	sc, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, CardKindCalendar, sc.Cards[clone].Kind)
	assert.Equal(t, []string{"cal1"}, sc.Cards[clone].CalendarProps.CalendarIDs)
	assert.Equal(t, "2024-06-01", sc.Cards[clone].CalendarProps.Date)
	assert.Equal(t, []string{"cal1", "cal2"}, sc.Cards[card].CalendarProps.CalendarIDs)
}

func TestToggleCalendarAndDate(t *testing.T) {
	s, page := newTestStore(t)
	card, _, err := s.CreateCalendarCard(page, Point{}, []string{"a"}, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.NoError(t, s.ToggleCalendar(card, "b"))
	require.NoError(t, s.ToggleCalendar(card, "a"))
	require.NoError(t, s.SetCalendarDate(card, time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)))

	sc, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, sc.Cards[card].CalendarProps.CalendarIDs)
	assert.Equal(t, "2024-06-02", sc.Cards[card].CalendarProps.Date)

	plain, _, err := s.CreateCard(page, Point{}, 1, 1)
	require.NoError(t, err)
	require.NoError(t, s.ToggleCalendar(plain, "a"))
	sc, err = s.Snapshot()
	require.NoError(t, err)
	assert.Nil(t, sc.Cards[plain].CalendarProps)
}

func TestStrokes_PageAndCardOwnership(t *testing.T) {
	s, page := newTestStore(t)
	card, _, err := s.CreateCard(page, Point{X: 50, Y: 50}, 20, 20)
	require.NoError(t, err)

	onPage, err := s.StartStroke(page, Point{X: 1, Y: 1})
	require.NoError(t, err)
	require.NoError(t, s.AppendStrokePoint(onPage, Point{X: 2, Y: 2}))

	onCard, err := s.StartStroke(page, Point{X: 55, Y: 56})
	require.NoError(t, err)
	assert.Equal(t, Point{X: 50, Y: 50}, onCard.Offset)
	require.NoError(t, s.AppendStrokePoint(onCard, Point{X: 60, Y: 61}))

	sc, err := s.Snapshot()
	require.NoError(t, err)

	require.Len(t, sc.Pages[page].Strokes, 1)
	ps := sc.Pages[page].Strokes[0]
	assert.Equal(t, page, ps.PageID)
	assert.Empty(t, ps.CardID)
	assert.Equal(t, []Point{{X: 1, Y: 1}, {X: 2, Y: 2}}, ps.Points)

	require.Len(t, sc.Cards[card].Strokes, 1)
	cs := sc.Cards[card].Strokes[0]
	assert.Equal(t, card, cs.CardID)
	assert.Empty(t, cs.PageID)
	assert.Equal(t, []Point{{X: 5, Y: 6}, {X: 10, Y: 11}}, cs.Points)
}

func TestEraseAt(t *testing.T) {
	s, page := newTestStore(t)
	card, _, err := s.CreateCard(page, Point{X: 100, Y: 100}, 50, 50)
	require.NoError(t, err)

	_, err = s.StartStroke(page, Point{X: 10, Y: 10})
	require.NoError(t, err)
	cardStroke, err := s.StartStroke(page, Point{X: 120, Y: 120})
	require.NoError(t, err)
	require.Equal(t, card, cardStroke.CardID)

	n, err := s.EraseAt(page, Point{X: 300, Y: 300})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.EraseAt(page, Point{X: 121, Y: 121})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.EraseAt(page, Point{X: 11, Y: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sc, err := s.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, sc.Cards[card].Strokes)
	assert.Empty(t, sc.Pages[page].Strokes)
}

func TestEraseAt_CardStrokesKeepOthers(t *testing.T) {
	s, page := newTestStore(t)
	card, _, err := s.CreateCard(page, Point{X: 100, Y: 100}, 50, 50)
	require.NoError(t, err)

	first, err := s.StartStroke(page, Point{X: 110, Y: 110})
	require.NoError(t, err)
	second, err := s.StartStroke(page, Point{X: 111, Y: 110})
	require.NoError(t, err)
	far, err := s.StartStroke(page, Point{X: 140, Y: 140})
	require.NoError(t, err)
	require.Equal(t, card, first.CardID)
	require.Equal(t, card, second.CardID)

	n, err := s.EraseAt(page, Point{X: 110, Y: 111})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	sc, err := s.Snapshot()
	require.NoError(t, err)
	require.Len(t, sc.Cards[card].Strokes, 1)
	assert.Equal(t, far.ID, sc.Cards[card].Strokes[0].ID)
}

func TestDefaultCard_CreateAndClone(t *testing.T) {
	s, page := newTestStore(t)
	card, _, err := s.CreateCard(page, Point{}, DefaultCardSize, DefaultCardSize)
	require.NoError(t, err)

	clone, err := s.CloneCard(card)
	require.NoError(t, err)

	sc, err := s.Snapshot()
	require.NoError(t, err)
	for _, id := range []CardID{card, clone} {
		c, ok := sc.Card(id)
		require.True(t, ok)
		assert.Equal(t, CardKindDefault, c.Kind)
		assert.Nil(t, c.CalendarProps)
		assert.Empty(t, c.Strokes)
	}
}

func TestUnchangedWritesAreNoops(t *testing.T) {
	s, page := newTestStore(t)
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	card, inst, err := s.CreateCard(page, Point{X: 3, Y: 4}, DefaultCardSize, DefaultCardSize)
	require.NoError(t, err)
	cal, calInst, err := s.CreateCalendarCard(page, Point{X: 500, Y: 500}, []string{"a"}, day)
	require.NoError(t, err)
	require.NoError(t, s.LinkInstance(calInst, inst))
	before := s.Heads()

	require.NoError(t, s.SetTitle(DefaultTitle))
	require.NoError(t, s.MoveInstance(inst, Point{X: 3, Y: 4}))
	require.NoError(t, s.ResizeCard(card, DefaultCardSize, DefaultCardSize))
	require.NoError(t, s.RelocateInstance(inst, page))
	require.NoError(t, s.LinkInstance(calInst, inst))
	require.NoError(t, s.SetCalendarDate(cal, day.Add(3*time.Hour)))
	assert.Equal(t, before, s.Heads())

	require.NoError(t, s.MoveInstance(inst, Point{X: 3, Y: 5}))
	assert.NotEqual(t, before, s.Heads())
	sc, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, Point{X: 3, Y: 5}, sc.CardInstances[inst].Origin())
}

func TestToggleCalendar_OffAndBackOn(t *testing.T) {
	s, page := newTestStore(t)
	card, _, err := s.CreateCalendarCard(page, Point{}, []string{"a", "b"}, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.NoError(t, s.ToggleCalendar(card, "a"))
	sc, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, sc.Cards[card].CalendarProps.CalendarIDs)

	require.NoError(t, s.ToggleCalendar(card, "a"))
	sc, err = s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, sc.Cards[card].CalendarProps.CalendarIDs)

	require.NoError(t, s.ToggleCalendar(card, "b"))
	require.NoError(t, s.ToggleCalendar(card, "a"))
	sc, err = s.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, sc.Cards[card].CalendarProps.CalendarIDs)
}

func TestMerge_ConcurrentEditsKeepBothSides(t *testing.T) {
	a, page := newTestStore(t)
	card, inst, err := a.CreateCard(page, Point{}, 10, 10)
	require.NoError(t, err)

	b, err := a.Fork()
	require.NoError(t, err)
	b.ids = &seqIDs{prefix: "b-"}

	fromA, err := a.CreateInstance(card, page, Point{X: 1})
	require.NoError(t, err)
	fromB, err := b.CreateInstance(card, page, Point{X: 2})
	require.NoError(t, err)
	require.NoError(t, b.MoveInstance(inst, Point{X: 9, Y: 9}))
	_, err = b.CreatePage()
	require.NoError(t, err)

	require.NoError(t, a.Merge(b))
	require.NoError(t, b.Merge(a))

	for _, s := range []*Store{a, b} {
		sc, err := s.Snapshot()
		require.NoError(t, err)
		assert.Contains(t, sc.CardInstances, fromA)
		assert.Contains(t, sc.CardInstances, fromB)
		assert.Equal(t, Point{X: 9, Y: 9}, sc.CardInstances[inst].Origin())
		assert.Len(t, sc.PageOrder, 2)
	}
}

func TestSaveLoad(t *testing.T) {
	s, page := newTestStore(t)
	card, _, err := s.CreateCard(page, Point{X: 3, Y: 4}, 5, 6)
	require.NoError(t, err)

	loaded, err := Load(s.Save())
	require.NoError(t, err)
	sc, err := loaded.Snapshot()
	require.NoError(t, err)
	assert.Contains(t, sc.Cards, card)
	assert.Equal(t, []PageID{page}, sc.PageOrder)
}

func exchange(t *testing.T, a, b *SyncPeer) {
	t.Helper()
	hadMessages := true
	for hadMessages {
		hadMessages = false
		for msg, ok := a.GenerateMessage(); ok; msg, ok = a.GenerateMessage() {
			hadMessages = true
			require.NoError(t, b.ReceiveMessage(msg))
		}
		for msg, ok := b.GenerateMessage(); ok; msg, ok = b.GenerateMessage() {
			hadMessages = true
			require.NoError(t, a.ReceiveMessage(msg))
		}
	}
}

func TestSyncPeer_Converges(t *testing.T) {
	a, page := newTestStore(t)
	b, err := a.Fork()
	require.NoError(t, err)
	b.ids = &seqIDs{prefix: "b-"}

	_, _, err = a.CreateCard(page, Point{X: 1, Y: 1}, 10, 10)
	require.NoError(t, err)
	_, err = b.CreatePage()
	require.NoError(t, err)

	exchange(t, a.NewSyncPeer(), b.NewSyncPeer())

	assert.ElementsMatch(t, a.Heads(), b.Heads())
	sa, err := a.Snapshot()
	require.NoError(t, err)
	sb, err := b.Snapshot()
	require.NoError(t, err)
	assert.Len(t, sa.PageOrder, 2)
	assert.Equal(t, sa.PageOrder, sb.PageOrder)
	assert.Len(t, sb.Cards, 1)
}
