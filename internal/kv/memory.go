package kv

import (
	"context"
	"sync"

	"github.com/canonical/hydra-operator/internal/leadership"
)

// MemoryStore is an in-process Store used by unit tests. It honors the same
// leader-guarded write discipline as the real store.
type MemoryStore struct {
	mu         sync.Mutex
	data       map[string]string
	leadership leadership.Checker
}

// NewMemoryStore returns an empty store guarded by check.
func NewMemoryStore(check leadership.Checker) *MemoryStore {
	return &MemoryStore{
		data:       map[string]string{},
		leadership: check,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.data[key]
	return value, ok, nil
}

func (s *MemoryStore) Put(ctx context.Context, key, value string) error {
	leader, err := s.leadership.IsLeader(ctx)
	if err != nil {
		return err
	}
	if !leader {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	leader, err := s.leadership.IsLeader(ctx)
	if err != nil {
		return err
	}
	if !leader {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	return keys, nil
}

// Len reports the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
