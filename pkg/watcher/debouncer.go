package watcher

import (
	"sync"
	"time"
)

// DefaultDebounceDuration is the quiet period a change must be followed by
// before it is reported.
const DefaultDebounceDuration = 200 * time.Millisecond

// Debouncer coalesces rapid triggers into a single call made once the
// triggers stop for the configured duration.
type Debouncer struct {
	duration time.Duration

	mu    sync.Mutex
	timer *time.Timer
	seq   uint64
}

// NewDebouncer creates a debouncer. A non-positive duration uses
// DefaultDebounceDuration.
func NewDebouncer(d time.Duration) *Debouncer {
	if d <= 0 {
		d = DefaultDebounceDuration
	}
	return &Debouncer{duration: d}
}

// Trigger (re)starts the quiet period; fn runs when it ends. Only the fn of
// the last trigger runs.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		current := d.seq == seq
		if current {
			d.timer = nil
		}
		d.mu.Unlock()
		if current {
			fn()
		}
	})
}

// Cancel drops a pending call.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
}

// Duration returns the quiet period.
func (d *Debouncer) Duration() time.Duration { return d.duration }

// KeyedDebouncer runs one independent Debouncer per key, so triggers for
// different keys never cancel each other.
type KeyedDebouncer struct {
	duration time.Duration

	mu   sync.Mutex
	keys map[string]*Debouncer
}

// NewKeyedDebouncer creates a keyed debouncer. A non-positive duration uses
// DefaultDebounceDuration.
func NewKeyedDebouncer(d time.Duration) *KeyedDebouncer {
	if d <= 0 {
		d = DefaultDebounceDuration
	}
	return &KeyedDebouncer{duration: d, keys: make(map[string]*Debouncer)}
}

// Trigger debounces fn under key.
func (k *KeyedDebouncer) Trigger(key string, fn func()) {
	k.mu.Lock()
	d, ok := k.keys[key]
	if !ok {
		d = NewDebouncer(k.duration)
		k.keys[key] = d
	}
	k.mu.Unlock()
	d.Trigger(fn)
}

// Cancel drops the pending call for key.
func (k *KeyedDebouncer) Cancel(key string) {
	k.mu.Lock()
	d := k.keys[key]
	k.mu.Unlock()
	if d != nil {
		d.Cancel()
	}
}

// CancelAll drops every pending call.
func (k *KeyedDebouncer) CancelAll() {
	k.mu.Lock()
	all := make([]*Debouncer, 0, len(k.keys))
	for _, d := range k.keys {
		all = append(all, d)
	}
	k.mu.Unlock()
	for _, d := range all {
		d.Cancel()
	}
}

// Duration returns the quiet period.
func (k *KeyedDebouncer) Duration() time.Duration { return k.duration }
