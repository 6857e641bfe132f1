package scene

// Selection holds at most one selected card instance.
type Selection struct {
	store    *Store
	selected InstanceID
}

func NewSelection(store *Store) *Selection {
	return &Selection{store: store}
}

func (s *Selection) Active() bool {
	return s.selected != ""
}

func (s *Selection) Selected() InstanceID {
	return s.selected
}

func (s *Selection) Select(id InstanceID) {
	s.selected = id
}

func (s *Selection) Clear() {
	s.selected = ""
}

// SelectAt selects the topmost instance at p on page, clearing the selection
// when there is none.
func (s *Selection) SelectAt(page PageID, p Point) (bool, error) {
	sc, err := s.store.Snapshot()
	if err != nil {
		return false, err
	}
	inst, ok := FindInstanceAt(sc, p, page)
	if !ok {
		s.Clear()
		return false, nil
	}
	s.selected = inst.ID
	return true, nil
}

// Drag moves the selected instance by delta.
func (s *Selection) Drag(delta Point) error {
	if !s.Active() {
		return nil
	}
	sc, err := s.store.Snapshot()
	if err != nil {
		return err
	}
	inst, ok := sc.Instance(s.selected)
	if !ok {
		return nil
	}
	return s.store.MoveInstance(inst.ID, inst.Origin().Add(delta))
}
