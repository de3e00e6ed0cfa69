package preview

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps views in process. Used when Redis is not configured.
type MemoryStore struct {
	mu       sync.Mutex
	now      func() time.Time
	views    map[string]memoryEntry[View]
	measures map[string]memoryEntry[float64]
}

type memoryEntry[T any] struct {
	value     T
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:      time.Now,
		views:    make(map[string]memoryEntry[View]),
		measures: make(map[string]memoryEntry[float64]),
	}
}

func (s *MemoryStore) SaveView(_ context.Context, view View, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if view.CreatedAt.IsZero() {
		view.CreatedAt = s.now().UTC()
	}
	s.views[view.ID] = memoryEntry[View]{value: view, expiresAt: s.expiry(ttl)}
	return nil
}

func (s *MemoryStore) LookupView(_ context.Context, id string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.views[id]
	if !ok || s.now().After(entry.expiresAt) {
		delete(s.views, id)
		return View{}, ErrViewNotFound
	}
	return entry.value, nil
}

func (s *MemoryStore) DeleteView(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.views, id)
	return nil
}

func (s *MemoryStore) CachedMeasurement(_ context.Context, contentHash string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.measures[contentHash]
	if !ok || s.now().After(entry.expiresAt) {
		delete(s.measures, contentHash)
		return 0, false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) SaveMeasurement(_ context.Context, contentHash string, lines float64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.measures[contentHash] = memoryEntry[float64]{value: lines, expiresAt: s.expiry(ttl)}
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
func (s *MemoryStore) Close() error               { return nil }

func (s *MemoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return s.now().Add(ttl)
}
