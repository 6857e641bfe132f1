package scene

import (
	"fmt"
)

// Navigator tracks the current page over the document's page order. It is
// not safe for concurrent use.
type Navigator struct {
	store   *Store
	current PageID
}

// NewNavigator starts at the first page in the page order, creating one if
// the document has none.
func NewNavigator(store *Store) (*Navigator, error) {
	sc, err := store.Snapshot()
	if err != nil {
		return nil, err
	}
	n := &Navigator{store: store}
	if len(sc.PageOrder) > 0 {
		n.current = sc.PageOrder[0]
		return n, nil
	}
	id, err := store.CreatePage()
	if err != nil {
		return nil, fmt.Errorf("failed to create first page: %w", err)
	}
	n.current = id
	return n, nil
}

func (n *Navigator) CurrentPage() PageID {
	return n.current
}

// SetCurrentPage switches to page. Unknown pages are ignored and false is
// returned.
func (n *Navigator) SetCurrentPage(page PageID) (bool, error) {
	sc, err := n.store.Snapshot()
	if err != nil {
		return false, err
	}
	if _, ok := sc.Page(page); !ok {
		return false, nil
	}
	n.current = page
	return true, nil
}

// GotoPage moves the active selection, if any, onto page and then switches to
// it. This is how a pointer instance is carried along when following a link.
func (n *Navigator) GotoPage(page PageID, sel *Selection) error {
	if sel != nil && sel.Active() {
		if err := n.store.RelocateInstance(sel.Selected(), page); err != nil {
			return fmt.Errorf("failed to relocate selection: %w", err)
		}
	}
	_, err := n.SetCurrentPage(page)
	return err
}

// GotoNext advances to the next page, appending a new page when the current
// page is the last one.
func (n *Navigator) GotoNext() error {
	cur := n.current
	next, err := mutateResult(n.store, "goto next page", func(tx *Tx) (PageID, error) {
		sc, err := tx.Scene()
		if err != nil {
			return "", err
		}
		idx := sc.PageIndex(cur)
		switch {
		case idx >= 0 && idx+1 < len(sc.PageOrder):
			return sc.PageOrder[idx+1], nil
		case idx < 0 && len(sc.PageOrder) > 0:
			return sc.PageOrder[0], nil
		}
		return tx.CreatePage()
	})
	if err != nil {
		return fmt.Errorf("failed to advance page: %w", err)
	}
	n.current = next
	return nil
}

// GotoPrev moves to the previous page. At the first page it does nothing and
// returns false.
func (n *Navigator) GotoPrev() (bool, error) {
	sc, err := n.store.Snapshot()
	if err != nil {
		return false, err
	}
	idx := sc.PageIndex(n.current)
	if idx <= 0 {
		return false, nil
	}
	n.current = sc.PageOrder[idx-1]
	return true, nil
}

// FollowLink jumps to the page of the instance that pointer links to. The
// selection is carried along as in GotoPage. It returns false when pointer is
// not a link or its target is gone.
func (n *Navigator) FollowLink(pointer InstanceID, sel *Selection) (bool, error) {
	sc, err := n.store.Snapshot()
	if err != nil {
		return false, err
	}
	inst, ok := sc.Instance(pointer)
	if !ok || inst.LinkTo == "" {
		return false, nil
	}
	target, ok := sc.Instance(inst.LinkTo)
	if !ok {
		return false, nil
	}
	if _, ok := sc.Page(target.PageID); !ok {
		return false, nil
	}
	return true, n.GotoPage(target.PageID, sel)
}
