package cache

import (
	"slices"
	"strings"
	"time"
)

// Policy configures caching behavior.
type Policy struct {
	// TTL bounds how long an entry is served. Zero keeps entries until they
	// are invalidated or evicted by the store.
	TTL time.Duration

	// AllowUnsafe permits caching operations with unsafe tags (write, delete, etc.)
	AllowUnsafe bool

	// SingleFlight collapses concurrent misses on the same key into one
	// execution whose result every waiter shares.
	SingleFlight bool
}

// DefaultPolicy returns the default caching policy: no expiry, unsafe
// operations skipped, concurrent misses collapsed.
func DefaultPolicy() Policy {
	return Policy{SingleFlight: true}
}

// Expired reports whether an entry inserted at insertedAt is stale at now.
func (p Policy) Expired(insertedAt, now time.Time) bool {
	return p.TTL > 0 && now.Sub(insertedAt) >= p.TTL
}

// SkipRule determines whether to skip caching for a given operation.
// Returns true if caching should be skipped.
type SkipRule func(opID string, tags []string) bool

// UnsafeTags are tags that mark an operation as having side effects.
var UnsafeTags = []string{"write", "danger", "unsafe", "mutation", "delete"}

// DefaultSkipRule skips caching for operations with unsafe tags.
// Tag matching is case-insensitive.
func DefaultSkipRule(_ string, tags []string) bool {
	for _, tag := range tags {
		if slices.Contains(UnsafeTags, strings.ToLower(tag)) {
			return true
		}
	}
	return false
}
