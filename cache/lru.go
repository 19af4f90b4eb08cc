package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUStore is a size-bounded Store that evicts the least recently used
// entry once full.
type LRUStore[T any] struct {
	entries *lru.Cache[string, Entry[T]]
}

// NewLRUStore creates a store holding at most size entries.
func NewLRUStore[T any](size int) (*LRUStore[T], error) {
	c, err := lru.New[string, Entry[T]](size)
	if err != nil {
		return nil, fmt.Errorf("cache: lru store: %w", err)
	}
	return &LRUStore[T]{entries: c}, nil
}

// Get retrieves an entry and marks it recently used.
func (s *LRUStore[T]) Get(_ context.Context, key string) (Entry[T], bool) {
	return s.entries.Get(key)
}

// Set stores an entry, evicting the oldest one if the store is full.
func (s *LRUStore[T]) Set(_ context.Context, key string, entry Entry[T]) error {
	s.entries.Add(key, entry)
	return nil
}

// Delete removes an entry. Idempotent - no error on miss.
func (s *LRUStore[T]) Delete(_ context.Context, key string) error {
	s.entries.Remove(key)
	return nil
}

// Len returns the number of stored entries.
func (s *LRUStore[T]) Len() int {
	return s.entries.Len()
}

var _ Store[int] = (*LRUStore[int])(nil)
