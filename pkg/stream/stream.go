// Package stream is a small synchronous publish/subscribe primitive.
//
// Delivery happens on the publisher's goroutine in subscription order.
package stream

import "sync"

// Stream fans events out to its subscribers.
type Stream[E any] struct {
	mu     sync.Mutex
	nextID int
	subs   []subscriber[E]
}

type subscriber[E any] struct {
	id int
	fn func(E)
}

// Subscribe registers fn and returns a function that removes it again.
func (s *Stream[E]) Subscribe(fn func(E)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber[E]{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers e to every current subscriber, in order.
// Subscribers may subscribe or unsubscribe from inside a callback; the
// change applies to the next Publish.
func (s *Stream[E]) Publish(e E) {
	s.mu.Lock()
	subs := make([]subscriber[E], len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()
	for _, sub := range subs {
		sub.fn(e)
	}
}

// Len returns the number of subscribers.
func (s *Stream[E]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
