package scene

// eraseRadiusSq is the squared distance within which a stroke point is
// considered under the eraser.
const eraseRadiusSq = 10

func nearAny(p Point, points []Point, offset Point) bool {
	for _, pt := range points {
		dx := pt.X + offset.X - p.X
		dy := pt.Y + offset.Y - p.Y
		if dx*dx+dy*dy < eraseRadiusSq {
			return true
		}
	}
	return false
}

// EraseAt removes every stroke under the page space point. Over an instance
// the strokes of its displayed card are erased, otherwise the page strokes.
// It returns the number of strokes removed.
func (tx *Tx) EraseAt(page PageID, at Point) (int, error) {
	sc, err := tx.Scene()
	if err != nil {
		return 0, err
	}
	var refs []StrokeRef
	if inst, ok := FindInstanceAt(sc, at, page); ok {
		card, _ := DisplayCard(sc, inst)
		for _, s := range card.Strokes {
			if nearAny(at, s.Points, inst.Origin()) {
				refs = append(refs, StrokeRef{ID: s.ID, CardID: card.ID})
			}
		}
	} else if pg, ok := sc.Page(page); ok {
		for _, s := range pg.Strokes {
			if nearAny(at, s.Points, Point{}) {
				refs = append(refs, StrokeRef{ID: s.ID, PageID: page})
			}
		}
	}
	for _, r := range refs {
		if err := tx.RemoveStroke(r); err != nil {
			return 0, err
		}
	}
	return len(refs), nil
}
