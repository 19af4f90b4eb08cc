package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)

// Entry is one cached result.
type Entry[T any] struct {
	Value      T
	InsertedAt time.Time
}

// Store holds cache entries for a Cache.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use. Each Get
// and each Set must be atomic with respect to the others.
// - Errors: Get never errors; it returns (zero, false) on miss.
// - Delete is idempotent.
type Store[T any] interface {
	Get(ctx context.Context, key string) (Entry[T], bool)
	Set(ctx context.Context, key string, entry Entry[T]) error
	Delete(ctx context.Context, key string) error
	Len() int
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
