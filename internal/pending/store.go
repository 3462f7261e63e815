package pending

import (
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/netrec/internal/bundle"
)

// Reply is what a waiter receives. Err is set when the call failed before a
// bundle arrived.
type Reply struct {
	Bundle bundle.Bundle
	Err    error
}

// Store maps sequence numbers to waiting callers.
type Store struct {
	waiters sync.Map // Key: int sequence, Value: chan Reply
	size    atomic.Int64
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// Register creates a waiter for seq. The returned channel receives exactly
// one Reply, or nothing if the waiter is cancelled. Registering a sequence
// that is already waiting returns nil.
func (s *Store) Register(seq int) <-chan Reply {
	ch := make(chan Reply, 1)
	if _, loaded := s.waiters.LoadOrStore(seq, ch); loaded {
		return nil
	}
	s.size.Add(1)
	return ch
}

// Resolve hands r to the waiter for seq and forgets it. It reports false when
// no one is waiting, e.g. after a Cancel or for a duplicate reply.
func (s *Store) Resolve(seq int, r Reply) bool {
	v, ok := s.waiters.LoadAndDelete(seq)
	if !ok {
		return false
	}
	s.size.Add(-1)
	v.(chan Reply) <- r
	return true
}

// Cancel forgets the waiter for seq without replying.
func (s *Store) Cancel(seq int) {
	if _, ok := s.waiters.LoadAndDelete(seq); ok {
		s.size.Add(-1)
	}
}

// Len reports how many waiters are outstanding.
func (s *Store) Len() int {
	return int(s.size.Load())
}
