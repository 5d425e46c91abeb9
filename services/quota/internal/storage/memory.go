package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps windows in process. It exists for local development and tests;
// it does not survive restarts and is not shared between instances.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[memoryKey]*Window
}

type memoryKey struct {
	key   string
	class string
}

func NewMemory() *MemoryStore {
	return &MemoryStore{windows: map[memoryKey]*Window{}}
}

func (s *MemoryStore) ReadAndPrune(ctx context.Context, key, class string, now time.Time, lookback time.Duration) ([]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if lookback <= 0 {
		return nil, ErrInvalidWindow
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[memoryKey{key, class}]
	if !ok {
		return nil, nil
	}
	w.Hits = Prune(w.Hits, now, lookback)
	out := make([]time.Time, len(w.Hits))
	copy(out, w.Hits)
	return out, nil
}

func (s *MemoryStore) Append(ctx context.Context, key, class string, ts time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := memoryKey{key, class}
	w, ok := s.windows[k]
	if !ok {
		w = &Window{Key: key, Class: class}
		s.windows[k] = w
	}
	w.Hits = append(w.Hits, ts)
	w.UpdatedAt = ts
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len reports how many records exist. Used by tests to check key isolation.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Keys lists the record keys stored for class.
func (s *MemoryStore) Keys(class string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.windows {
		if k.class == class {
			keys = append(keys, k.key)
		}
	}
	return keys
}
