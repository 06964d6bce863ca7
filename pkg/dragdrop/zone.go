package dragdrop

import "time"

// Position is where a dragged node lands relative to its target.
type Position string

const (
	Before Position = "before"
	After  Position = "after"
	Inside Position = "inside"
)

// MoveEvent is the structural move intent emitted on a successful drop.
type MoveEvent struct {
	NodeID     string
	FromParent string
	ToParent   string
	Position   Position
	Sibling    string
}

// Rect is an element's box in the host's coordinate space.
type Rect struct {
	Left, Top, Width, Height float64
}

// Bottom returns the lower edge.
func (r Rect) Bottom() float64 { return r.Top + r.Height }

func (r Rect) containsY(y float64) bool { return y >= r.Top && y <= r.Bottom() }

func (r Rect) containsX(x float64) bool {
	return r.Width <= 0 || (x >= r.Left && x <= r.Left+r.Width)
}

// Element is a rendered node, identified by its stable node id attribute.
type Element struct {
	NodeID string
	Rect   Rect
}

// DropZone adapts one rendering surface to the controller.
type DropZone interface {
	DropAllowed(id string) bool
	DropInsideAllowed(id string) bool
	IsExpandable(id string) bool
	IsExpanded(id string) bool
	ExpandNode(id string)
	Parent(id string) (string, bool)
	NodePositionChanged(ev MoveEvent)
	// ScrollContainer is the box autoscroll measures against.
	ScrollContainer() Rect
}

// ExtendedDropZone exposes an extra element that stands for "the forest
// root". Dropping on it always lands inside RootNodeID.
type ExtendedDropZone interface {
	DropZone
	ExtendedDropzoneElement() string
	RootNodeID() string
}

// InsideOnlyZone is implemented by zones that forbid before/after drops.
type InsideOnlyZone interface {
	DropZone
	InsideOnly() bool
}

// Marker is a drop indicator applied to the hovered element.
type Marker string

const (
	MarkerBefore Marker = "drop-before"
	MarkerAfter  Marker = "drop-after"
	MarkerInside Marker = "drop-inside"
)

func markerFor(p Position) Marker {
	switch p {
	case Before:
		return MarkerBefore
	case After:
		return MarkerAfter
	default:
		return MarkerInside
	}
}

// Renderer is the host capability the controller draws and listens through.
type Renderer interface {
	AddMarker(elementID string, m Marker)
	RemoveMarker(elementID string, m Marker)
	ScrollBy(zone DropZone, dy float64)
	// ObserveResize calls fn whenever scroll containers change size and
	// returns a function that stops observing.
	ObserveResize(fn func()) (stop func())
	Listen(elementID string)
	Unlisten(elementID string)
}

// Timer is a cancellable scheduled call.
type Timer interface {
	Stop() bool
}

// Scheduler schedules delayed calls. The default uses time.AfterFunc.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type timeScheduler struct{}

func (timeScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
