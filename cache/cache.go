package cache

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Option configures a Cache.
type Option func(*options)

type options struct {
	keyer    Keyer
	skipRule SkipRule
	onLookup func(key string, hit bool)
	now      func() time.Time
}

// WithKeyer sets the keyer used by Key. Default: DefaultKeyer.
func WithKeyer(k Keyer) Option {
	return func(o *options) {
		if k != nil {
			o.keyer = k
		}
	}
}

// WithSkipRule sets the rule deciding which operations bypass the cache.
// Default: DefaultSkipRule.
func WithSkipRule(rule SkipRule) Option {
	return func(o *options) {
		if rule != nil {
			o.skipRule = rule
		}
	}
}

// WithLookupHook registers fn to be called after every lookup with a valid key.
func WithLookupHook(fn func(key string, hit bool)) Option {
	return func(o *options) {
		o.onLookup = fn
	}
}

// WithClock overrides the time source used for insertion stamps and expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Stats contains cache statistics.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// Cache memoizes successful results of type T by key. A Cache is an owned
// value; create one per result type and share it between the callers that
// should see each other's results.
//
// Failures are never stored. A nil *Cache runs every body directly.
type Cache[T any] struct {
	store  Store[T]
	policy Policy
	opts   options
	group  singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache over store. A nil store gets a fresh MemoryStore.
func New[T any](store Store[T], policy Policy, opts ...Option) *Cache[T] {
	if store == nil {
		store = NewMemoryStore[T]()
	}
	o := options{
		keyer:    NewDefaultKeyer(),
		skipRule: DefaultSkipRule,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[T]{store: store, policy: policy, opts: o}
}

// Key derives the cache key for an operation and its arguments.
func (c *Cache[T]) Key(opID string, args any) (string, error) {
	return c.opts.keyer.Key(opID, args)
}

// Bypass reports whether an operation with the given tags must not be cached.
func (c *Cache[T]) Bypass(opID string, tags []string) bool {
	return !c.policy.AllowUnsafe && c.opts.skipRule(opID, tags)
}

// Run returns the stored value for key, or invokes body and stores its
// result if body succeeds. Invalid keys execute body without caching.
func (c *Cache[T]) Run(ctx context.Context, key string, body func(context.Context) (T, error)) (T, error) {
	v, _, err := c.Fetch(ctx, key, body)
	return v, err
}

// Fetch is Run that also reports whether the lookup was a hit, as counted
// by Stats. A single-flight waiter that receives the leader's result
// counts as a miss.
func (c *Cache[T]) Fetch(ctx context.Context, key string, body func(context.Context) (T, error)) (T, bool, error) {
	if c == nil || ValidateKey(key) != nil {
		v, err := body(ctx)
		return v, false, err
	}

	if v, ok := c.lookup(ctx, key); ok {
		c.record(key, true)
		return v, true, nil
	}
	c.record(key, false)

	if !c.policy.SingleFlight {
		v, err := c.fill(ctx, key, body)
		return v, false, err
	}

	// Waiters share the leader's outcome, including a failure caused by
	// the leader's context.
	res, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.lookup(ctx, key); ok {
			return v, nil
		}
		return c.fill(ctx, key, body)
	})
	v, _ := res.(T)
	return v, false, err
}

// Invalidate removes the entry for key.
func (c *Cache[T]) Invalidate(ctx context.Context, key string) error {
	c.group.Forget(key)
	return c.store.Delete(ctx, key)
}

// Stats returns hit and miss counts and the current store size.
func (c *Cache[T]) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.store.Len(),
	}
}

func (c *Cache[T]) lookup(ctx context.Context, key string) (T, bool) {
	e, ok := c.store.Get(ctx, key)
	if !ok {
		var zero T
		return zero, false
	}
	if c.policy.Expired(e.InsertedAt, c.opts.now()) {
		_ = c.store.Delete(ctx, key)
		var zero T
		return zero, false
	}
	return e.Value, true
}

func (c *Cache[T]) fill(ctx context.Context, key string, body func(context.Context) (T, error)) (T, error) {
	v, err := body(ctx)
	if err != nil {
		// Don't cache errors
		return v, err
	}
	_ = c.store.Set(ctx, key, Entry[T]{Value: v, InsertedAt: c.opts.now()})
	return v, nil
}

func (c *Cache[T]) record(key string, hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	if c.opts.onLookup != nil {
		c.opts.onLookup(key, hit)
	}
}
