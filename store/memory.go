package store

import (
	"bytes"
	"sort"
	"sync"
)

// MemoryStore implements StateStore in memory, for tests and ephemeral runs.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get returns the value for a key, or ErrNotFound.
func (s *MemoryStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Commit writes all records atomically.
func (s *MemoryStore) Commit(records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		v := make([]byte, len(r.Value))
		copy(v, r.Value)
		s.data[string(r.Key)] = v
	}
	return nil
}

// Iterate calls fn for every key with the given prefix, in key order.
func (s *MemoryStore) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()

	sort.Strings(keys)

	for _, k := range keys {
		s.mu.RLock()
		v := s.data[k]
		s.mu.RUnlock()
		if err := fn([]byte(k), v); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

var _ StateStore = (*MemoryStore)(nil)
