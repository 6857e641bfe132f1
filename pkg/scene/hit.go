package scene

// ResolveLink follows transclusion pointers starting at id and returns the
// instance whose card is displayed. A chain that revisits an instance is cut
// at the last instance before the repeat. A pointer to a missing instance
// resolves to nothing.
func ResolveLink(sc *Scene, id InstanceID) (*CardInstance, bool) {
	cur, ok := sc.Instance(id)
	if !ok {
		return nil, false
	}
	seen := map[InstanceID]bool{cur.ID: true}
	for cur.LinkTo != "" {
		if seen[cur.LinkTo] {
			return cur, true
		}
		next, ok := sc.Instance(cur.LinkTo)
		if !ok {
			return nil, false
		}
		seen[next.ID] = true
		cur = next
	}
	return cur, true
}

// DisplayCard returns the card an instance shows. Instances whose card (or
// link target) no longer exists are invisible.
func DisplayCard(sc *Scene, inst *CardInstance) (*Card, bool) {
	target, ok := ResolveLink(sc, inst.ID)
	if !ok {
		return nil, false
	}
	return sc.Card(target.CardID)
}

// Contains reports whether p lies inside the instance bounds, edges included.
func Contains(inst *CardInstance, card *Card, p Point) bool {
	return p.X >= inst.X && p.X <= inst.X+card.Width &&
		p.Y >= inst.Y && p.Y <= inst.Y+card.Height
}

// FindInstanceAt returns the topmost visible instance on page containing p.
func FindInstanceAt(sc *Scene, p Point, page PageID) (*CardInstance, bool) {
	if _, ok := sc.Page(page); !ok {
		return nil, false
	}
	instances := sc.InstancesOnPage(page)
	for i := len(instances) - 1; i >= 0; i-- {
		inst := instances[i]
		card, ok := DisplayCard(sc, inst)
		if !ok {
			continue
		}
		if Contains(inst, card, p) {
			return inst, true
		}
	}
	return nil, false
}
