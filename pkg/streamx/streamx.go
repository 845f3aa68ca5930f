package streamx

import (
	"context"
	"sync"

	"github.com/gammazero/channelqueue"
)

// ─── Source ──────────────────────────────────────────────────────────────────

// Source is a fan-out broadcast point for values of T. Emit delivers the
// value to every subscriber without ever blocking the emitter: each
// subscriber reads through its own unbounded channel queue, so a slow
// reader only delays itself.
type Source[T any] struct {
	mu     sync.Mutex
	subs   map[int]chan<- T
	nextID int
	closed bool
}

// NewSource creates an empty source.
func NewSource[T any]() *Source[T] {
	return &Source[T]{subs: make(map[int]chan<- T)}
}

// Subscribe registers a new subscriber and returns its receive channel.
// Calling the returned cancel function unregisters the subscriber and closes
// the channel so reading goroutines stop waiting. Cancel is idempotent.
func (s *Source[T]) Subscribe() (<-chan T, context.CancelFunc) {
	cq := channelqueue.New[T](-1)
	in := cq.In()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(in)
		return cq.Out(), func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = in
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if ch, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
	return cq.Out(), cancel
}

// Emit broadcasts v to all current subscribers.
func (s *Source[T]) Emit(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		ch <- v
	}
}

// Len returns the number of active subscribers.
func (s *Source[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close unregisters and closes every subscriber channel. Emit after Close is
// a no-op, and new subscribers receive an already-closed channel.
func (s *Source[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// ─── Conflation ──────────────────────────────────────────────────────────────

// Conflate returns a channel that tracks in with single-slot backpressure:
// while the consumer is not reading, newer values overwrite the one pending
// value, so the consumer always receives the most recent state and never an
// older value after a newer one. At most one value is buffered.
//
// The returned channel closes when in closes; a value still pending at that
// point is dropped rather than risking a blocked flush on a departed reader.
func Conflate[T any](in <-chan T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		var (
			pending T
			loaded  bool
		)
		for {
			if !loaded {
				v, ok := <-in
				if !ok {
					return
				}
				pending = v
				loaded = true
				continue
			}
			select {
			case v, ok := <-in:
				if !ok {
					return
				}
				pending = v
			case out <- pending:
				loaded = false
			}
		}
	}()
	return out
}
