package cache

import (
	"context"
	"sync"
)

// MemoryStore is an unbounded in-memory Store. Entries live until deleted.
type MemoryStore[T any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[T]
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{entries: make(map[string]Entry[T])}
}

// Get retrieves an entry. Returns (zero, false) on miss.
func (s *MemoryStore[T]) Get(_ context.Context, key string) (Entry[T], bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	return e, ok
}

// Set stores an entry, replacing any previous one for key.
func (s *MemoryStore[T]) Set(_ context.Context, key string, entry Entry[T]) error {
	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}

// Delete removes an entry. Idempotent - no error on miss.
func (s *MemoryStore[T]) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var _ Store[int] = (*MemoryStore[int])(nil)
