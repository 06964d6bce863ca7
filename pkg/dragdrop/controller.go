// Package dragdrop turns pointer gestures over rendered tree nodes into
// structural move intents.
//
// A Controller runs at most one drag session. The session owns the hover
// expand timer, the drop indicator on the hovered element, autoscroll, and
// the listeners attached to node elements. Ending the session in any way
// (drop, cancel, or a new Start) releases all of them.
package dragdrop

import (
	"sync"
	"time"

	"github.com/Tailormap/tailormap-viewer-sub000/pkg/debug"
)

// Options tune the controller. Zero fields fall back to DefaultOptions.
type Options struct {
	HoverExpandDelay time.Duration
	// AutoscrollEdge is the fraction of the scroll container, at the top and
	// at the bottom, in which the pointer triggers scrolling.
	AutoscrollEdge float64
	AutoscrollStep float64
	// InsideLow and InsideHigh bound the "inside" band of a target that
	// accepts children, as fractions of its height.
	InsideLow  float64
	InsideHigh float64
	Scheduler  Scheduler
}

// DefaultOptions returns the stock thresholds.
func DefaultOptions() Options {
	return Options{
		HoverExpandDelay: 300 * time.Millisecond,
		AutoscrollEdge:   0.2,
		AutoscrollStep:   10,
		InsideLow:        0.25,
		InsideHigh:       0.75,
		Scheduler:        timeScheduler{},
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.HoverExpandDelay <= 0 {
		o.HoverExpandDelay = d.HoverExpandDelay
	}
	if o.AutoscrollEdge <= 0 {
		o.AutoscrollEdge = d.AutoscrollEdge
	}
	if o.AutoscrollStep <= 0 {
		o.AutoscrollStep = d.AutoscrollStep
	}
	if o.InsideLow <= 0 || o.InsideHigh <= o.InsideLow || o.InsideHigh > 1 {
		o.InsideLow, o.InsideHigh = d.InsideLow, d.InsideHigh
	}
	if o.Scheduler == nil {
		o.Scheduler = d.Scheduler
	}
	return o
}

// PointerKind distinguishes pointer events.
type PointerKind int

const (
	PointerMove PointerKind = iota
	PointerUp
	PointerCancel
)

// PointerEvent is a host pointer event. Target is nil when the pointer is
// not over any node element.
type PointerEvent struct {
	Kind   PointerKind
	X, Y   float64
	Target *Element
}

type session struct {
	id       uint64
	node     string
	zones    []DropZone
	attached map[string]bool

	hoverID     string
	expandTimer Timer

	targetID   string
	offset     float64
	hasOffset  bool
	position   Position
	markedID   string
	marker     Marker
	scrollRect map[int]Rect
	stopResize func()
}

// Controller is the drag/drop state machine: idle or dragging.
type Controller struct {
	mu       sync.Mutex
	opts     Options
	renderer Renderer
	seq      uint64
	s        *session
}

// NewController builds an idle controller drawing through r.
func NewController(r Renderer, opts Options) *Controller {
	return &Controller{renderer: r, opts: opts.withDefaults()}
}

// Active reports whether a drag session is running.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s != nil
}

// Dragged returns the id of the node being dragged.
func (c *Controller) Dragged() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.s == nil {
		return ""
	}
	return c.s.node
}

// Position returns the current drop classification and hovered target.
func (c *Controller) Position() (Position, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.s == nil {
		return "", ""
	}
	return c.s.position, c.s.targetID
}

// Start begins a drag of nodeID over zones, attaching listeners to the
// given elements. A running session is torn down first.
func (c *Controller) Start(nodeID string, zones []DropZone, elements []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endLocked()
	if len(zones) == 0 {
		return
	}
	c.seq++
	s := &session{
		id:         c.seq,
		node:       nodeID,
		zones:      zones,
		attached:   make(map[string]bool),
		scrollRect: make(map[int]Rect),
	}
	c.s = s
	c.measureLocked()
	s.stopResize = c.renderer.ObserveResize(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.s == s {
			c.measureLocked()
		}
	})
	c.attachLocked(elements)
	debug.Log("dragdrop: start %s over %d zone(s)", nodeID, len(zones))
}

// AddElements attaches listeners to elements rendered mid-drag. Elements
// that already have listeners are skipped.
func (c *Controller) AddElements(elements ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.s == nil {
		return
	}
	c.attachLocked(elements)
}

func (c *Controller) attachLocked(elements []string) {
	for _, id := range elements {
		if c.s.attached[id] {
			continue
		}
		c.s.attached[id] = true
		c.renderer.Listen(id)
	}
}

func (c *Controller) measureLocked() {
	for i, z := range c.s.zones {
		c.s.scrollRect[i] = z.ScrollContainer()
	}
}

// Handle dispatches a pointer event.
func (c *Controller) Handle(ev PointerEvent) {
	switch ev.Kind {
	case PointerMove:
		c.Move(ev)
	case PointerUp:
		c.Drop(ev)
	case PointerCancel:
		c.Cancel()
	}
}

// Move processes a pointer move during a drag.
func (c *Controller) Move(ev PointerEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.s
	if s == nil {
		return
	}
	c.autoscrollLocked(ev)

	var targetID string
	if ev.Target != nil {
		targetID = ev.Target.NodeID
	}
	zone, extended := c.owningZoneLocked(targetID)
	if ev.Target == nil || zone == nil {
		c.hoverLocked("", nil, false)
		c.clearMarkerLocked()
		s.targetID = ""
		s.hasOffset = false
		s.position = ""
		return
	}
	c.hoverLocked(targetID, zone, extended)

	offset := ev.Y - ev.Target.Rect.Top
	if s.targetID == targetID && s.hasOffset && s.offset == offset {
		return
	}
	s.targetID = targetID
	s.offset = offset
	s.hasOffset = true
	s.position = c.classify(zone, extended, targetID, offset, ev.Target.Rect.Height)
	c.markLocked(targetID, markerFor(s.position))
}

// hoverLocked re-arms the hover-to-expand timer when the hovered id changes.
func (c *Controller) hoverLocked(id string, zone DropZone, extended bool) {
	s := c.s
	if id == s.hoverID {
		return
	}
	if s.expandTimer != nil {
		s.expandTimer.Stop()
		s.expandTimer = nil
	}
	s.hoverID = id
	if id == "" || zone == nil || extended || id == s.node {
		return
	}
	if !zone.DropAllowed(id) || !zone.IsExpandable(id) || zone.IsExpanded(id) {
		return
	}
	sessionID := s.id
	s.expandTimer = c.opts.Scheduler.AfterFunc(c.opts.HoverExpandDelay, func() {
		c.mu.Lock()
		still := c.s != nil && c.s.id == sessionID && c.s.hoverID == id
		if still {
			c.s.expandTimer = nil
		}
		c.mu.Unlock()
		if still {
			debug.Log("dragdrop: hover expand %s", id)
			zone.ExpandNode(id)
		}
	})
}

func (c *Controller) classify(zone DropZone, extended bool, id string, offset, height float64) Position {
	if extended {
		return Inside
	}
	if io, ok := zone.(InsideOnlyZone); ok && io.InsideOnly() {
		return Inside
	}
	p := 0.5
	if height > 0 {
		p = offset / height
	}
	if zone.DropInsideAllowed(id) {
		switch {
		case p < c.opts.InsideLow:
			return Before
		case p >= c.opts.InsideHigh:
			return After
		default:
			return Inside
		}
	}
	if p < 0.5 {
		return Before
	}
	return After
}

func (c *Controller) markLocked(id string, m Marker) {
	s := c.s
	if s.markedID == id && s.marker == m {
		return
	}
	c.clearMarkerLocked()
	c.renderer.AddMarker(id, m)
	s.markedID = id
	s.marker = m
}

func (c *Controller) clearMarkerLocked() {
	s := c.s
	if s.markedID == "" {
		return
	}
	c.renderer.RemoveMarker(s.markedID, s.marker)
	s.markedID = ""
	s.marker = ""
}

func (c *Controller) autoscrollLocked(ev PointerEvent) {
	s := c.s
	for i, z := range s.zones {
		r := s.scrollRect[i]
		if r.Height <= 0 || !r.containsY(ev.Y) || !r.containsX(ev.X) {
			continue
		}
		edge := r.Height * c.opts.AutoscrollEdge
		switch {
		case ev.Y < r.Top+edge:
			c.renderer.ScrollBy(z, -c.opts.AutoscrollStep)
		case ev.Y > r.Bottom()-edge:
			c.renderer.ScrollBy(z, c.opts.AutoscrollStep)
		}
	}
}

func (c *Controller) owningZoneLocked(id string) (DropZone, bool) {
	if id == "" {
		return nil, false
	}
	for _, z := range c.s.zones {
		if ext, ok := z.(ExtendedDropZone); ok {
			if el := ext.ExtendedDropzoneElement(); el != "" && el == id {
				return z, true
			}
		}
		if z.DropAllowed(id) {
			return z, false
		}
	}
	return nil, false
}

// Drop finishes the drag. It returns the emitted move event, or false when
// the drop had no effect. The session ends either way.
func (c *Controller) Drop(ev PointerEvent) (MoveEvent, bool) {
	c.mu.Lock()
	s := c.s
	if s == nil {
		c.mu.Unlock()
		return MoveEvent{}, false
	}
	var targetID string
	if ev.Target != nil {
		targetID = ev.Target.NodeID
	}
	zone, extended := c.owningZoneLocked(targetID)
	if zone == nil || targetID == s.node {
		debug.Log("dragdrop: drop of %s on %q ignored", s.node, targetID)
		c.endLocked()
		c.mu.Unlock()
		return MoveEvent{}, false
	}

	pos := c.classify(zone, extended, targetID, ev.Y-ev.Target.Rect.Top, ev.Target.Rect.Height)
	me := MoveEvent{NodeID: s.node, Position: pos, Sibling: targetID}
	if extended {
		root := zone.(ExtendedDropZone).RootNodeID()
		me.ToParent = root
		me.Sibling = root
	} else if pos == Inside && zone.IsExpandable(targetID) {
		me.ToParent = targetID
	} else if p, ok := zone.Parent(targetID); ok {
		me.ToParent = p
	}
	me.FromParent = parentOf(s.node, zone, s.zones)
	c.endLocked()
	c.mu.Unlock()

	debug.Log("dragdrop: %s %s %s (from %q to %q)", me.NodeID, me.Position, me.Sibling, me.FromParent, me.ToParent)
	zone.NodePositionChanged(me)
	return me, true
}

// parentOf asks the target zone first, then the others, for id's parent.
func parentOf(id string, first DropZone, zones []DropZone) string {
	if p, ok := first.Parent(id); ok {
		return p
	}
	for _, z := range zones {
		if z == first {
			continue
		}
		if p, ok := z.Parent(id); ok {
			return p
		}
	}
	return ""
}

// Cancel aborts the drag without emitting anything.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.s != nil {
		debug.Log("dragdrop: cancel %s", c.s.node)
	}
	c.endLocked()
}

func (c *Controller) endLocked() {
	s := c.s
	if s == nil {
		return
	}
	if s.expandTimer != nil {
		s.expandTimer.Stop()
		s.expandTimer = nil
	}
	c.clearMarkerLocked()
	if s.stopResize != nil {
		s.stopResize()
	}
	for id := range s.attached {
		c.renderer.Unlisten(id)
	}
	c.s = nil
}
