package duration

import (
	"context"
	"sync"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
)

// MemoryStore is an append-only in-process duration cache. Entries are never
// replaced or evicted.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[domain.VideoID]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[domain.VideoID]int64)}
}

func (s *MemoryStore) Get(_ context.Context, id domain.VideoID) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seconds, ok := s.entries[id]
	return seconds, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, id domain.VideoID, seconds int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[id]; !exists {
		s.entries[id] = seconds
	}
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
