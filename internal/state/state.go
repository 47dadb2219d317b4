package state

import (
	"fmt"
	"sync"
)

// Store is a first-write-wins index of record documents keyed by id.
type Store interface {
	// Add stores doc under id unless id is already present.
	Add(id string, doc []byte) (added bool, err error)
	Get(id string) ([]byte, bool)
	Has(id string) bool
	Len() int
	Range(fn func(id string, doc []byte) error) error
}

// InMemoryStore is a thread-safe map store that remembers insertion order.
type InMemoryStore struct {
	mu    sync.RWMutex
	data  map[string][]byte
	order []string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string][]byte)}
}

func (s *InMemoryStore) Add(id string, doc []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; ok {
		return false, nil
	}
	s.data[id] = append([]byte(nil), doc...)
	s.order = append(s.order, id)
	return true, nil
}

func (s *InMemoryStore) Get(id string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.data[id]
	return doc, ok
}

func (s *InMemoryStore) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[id]
	return ok
}

func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Range visits entries in insertion order.
func (s *InMemoryStore) Range(fn func(id string, doc []byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if err := fn(id, s.data[id]); err != nil {
			return fmt.Errorf("range callback failed: %w", err)
		}
	}
	return nil
}
