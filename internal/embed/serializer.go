package embed

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Serializer allows one embed interaction per document at a time. A second
// caller waits for the first to settle, or gives up when its context ends.
type Serializer struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	sem  *semaphore.Weighted
	refs int
}

func NewSerializer() *Serializer {
	return &Serializer{slots: make(map[string]*slot)}
}

// Do runs fn while holding the document's slot.
func (s *Serializer) Do(ctx context.Context, documentID string, fn func(ctx context.Context) error) error {
	sl := s.acquireRef(documentID)
	defer s.releaseRef(documentID)

	if err := sl.sem.Acquire(ctx, 1); err != nil {
		return cancelled(ctx)
	}
	defer sl.sem.Release(1)
	return fn(ctx)
}

// Busy reports whether an interaction holds or awaits the document's slot.
func (s *Serializer) Busy(documentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.slots[documentID]
	return ok
}

func (s *Serializer) acquireRef(documentID string) *slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[documentID]
	if !ok {
		sl = &slot{sem: semaphore.NewWeighted(1)}
		s.slots[documentID] = sl
	}
	sl.refs++
	return sl
}

func (s *Serializer) releaseRef(documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.slots[documentID]
	sl.refs--
	if sl.refs == 0 {
		delete(s.slots, documentID)
	}
}
