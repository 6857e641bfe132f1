package scene

import (
	"github.com/google/uuid"
)

// Entity identifiers are distinct types so that an id for one kind of entity
// cannot be passed where another kind is expected.
type (
	PageID     string
	CardID     string
	InstanceID string
	StrokeID   string
)

// IDGenerator produces globally unique opaque identifiers.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator is the default IDGenerator.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

func newPageID(g IDGenerator) PageID         { return PageID(g.NewID()) }
func newCardID(g IDGenerator) CardID         { return CardID(g.NewID()) }
func newInstanceID(g IDGenerator) InstanceID { return InstanceID(g.NewID()) }
func newStrokeID(g IDGenerator) StrokeID     { return StrokeID(g.NewID()) }
