package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Tailormap/tailormap-viewer-sub000/pkg/dragdrop"
)

// rowUnits is the height of one terminal row in drag coordinates. The
// default autoscroll step of 10 therefore scrolls one row.
const rowUnits = 10

// canvas is the terminal side of a drag session: it remembers drop markers
// and listening rows for the next render and owns the scroll offset of the
// tree body.
type canvas struct {
	markers   map[string]dragdrop.Marker
	listening map[string]bool
	observers map[int]func()
	nextObs   int

	offset int // first visible row
	rows   int // body height
	total  int // rows available
}

func newCanvas() *canvas {
	return &canvas{
		markers:   make(map[string]dragdrop.Marker),
		listening: make(map[string]bool),
		observers: make(map[int]func()),
	}
}

func (c *canvas) AddMarker(id string, m dragdrop.Marker) { c.markers[id] = m }

func (c *canvas) RemoveMarker(id string, m dragdrop.Marker) {
	if c.markers[id] == m {
		delete(c.markers, id)
	}
}

// ScrollBy moves the body by whole rows, at least one in the direction of dy.
func (c *canvas) ScrollBy(_ dragdrop.DropZone, dy float64) {
	lines := int(dy / rowUnits)
	switch {
	case lines == 0 && dy > 0:
		lines = 1
	case lines == 0 && dy < 0:
		lines = -1
	}
	c.scrollTo(c.offset + lines)
}

func (c *canvas) ObserveResize(fn func()) func() {
	c.nextObs++
	id := c.nextObs
	c.observers[id] = fn
	return func() { delete(c.observers, id) }
}

func (c *canvas) Listen(id string)   { c.listening[id] = true }
func (c *canvas) Unlisten(id string) { delete(c.listening, id) }

// resize updates the body height and notifies drag observers.
func (c *canvas) resize(rows int) {
	if rows < 1 {
		rows = 1
	}
	c.rows = rows
	c.scrollTo(c.offset)
	for _, fn := range c.observers {
		fn()
	}
}

func (c *canvas) setTotal(n int) {
	c.total = n
	c.scrollTo(c.offset)
}

func (c *canvas) scrollTo(offset int) {
	maxOffset := c.total - c.rows
	if maxOffset < 0 {
		maxOffset = 0
	}
	if offset > maxOffset {
		offset = maxOffset
	}
	if offset < 0 {
		offset = 0
	}
	c.offset = offset
}

// reveal scrolls the least amount that brings row i into view.
func (c *canvas) reveal(i int) {
	switch {
	case i < c.offset:
		c.scrollTo(i)
	case i >= c.offset+c.rows:
		c.scrollTo(i - c.rows + 1)
	}
}

// viewport is the scroll container in drag coordinates.
func (c *canvas) viewport(width int) dragdrop.Rect {
	return dragdrop.Rect{Width: float64(width), Height: float64(c.rows * rowUnits)}
}

// rowRect is the element rectangle of visible row i.
func (c *canvas) rowRect(i, width int) dragdrop.Rect {
	return dragdrop.Rect{
		Top:    float64((i - c.offset) * rowUnits),
		Width:  float64(width),
		Height: rowUnits,
	}
}

// timerFiredMsg delivers a scheduled drag callback to Update.
type timerFiredMsg struct{ id uint64 }

// teaScheduler runs drag timers through the bubbletea loop so callbacks
// execute on the Update goroutine, never concurrently with it.
type teaScheduler struct {
	next    uint64
	pending map[uint64]func()
	queued  []tea.Cmd
}

func newTeaScheduler() *teaScheduler {
	return &teaScheduler{pending: make(map[uint64]func())}
}

func (s *teaScheduler) AfterFunc(d time.Duration, f func()) dragdrop.Timer {
	s.next++
	id := s.next
	s.pending[id] = f
	s.queued = append(s.queued, tea.Tick(d, func(time.Time) tea.Msg { return timerFiredMsg{id: id} }))
	return teaTimer{s: s, id: id}
}

// fire runs the callback for id unless it was stopped.
func (s *teaScheduler) fire(id uint64) bool {
	f, ok := s.pending[id]
	if !ok {
		return false
	}
	delete(s.pending, id)
	f()
	return true
}

// drain hands the ticks scheduled since the last call to the runtime.
func (s *teaScheduler) drain() []tea.Cmd {
	cmds := s.queued
	s.queued = nil
	return cmds
}

type teaTimer struct {
	s  *teaScheduler
	id uint64
}

func (t teaTimer) Stop() bool {
	_, ok := t.s.pending[t.id]
	delete(t.s.pending, t.id)
	return ok
}

var (
	_ dragdrop.Renderer  = (*canvas)(nil)
	_ dragdrop.Scheduler = (*teaScheduler)(nil)
)
