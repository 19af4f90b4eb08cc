// Package cache memoizes successful operation results by a deterministic key.
//
// A Cache[T] is created explicitly and owned by its caller; there is no
// package-level table. Entries live in a Store: MemoryStore keeps them
// until invalidated, LRUStore bounds the entry count. Policy adds an
// optional TTL and per-key single-flight for concurrent misses.
//
//	users := cache.New[[]User](cache.NewMemoryStore[[]User](), cache.DefaultPolicy())
//
//	key, _ := users.Key("users.older_than", []any{30})
//	list, err := users.Run(ctx, key, func(ctx context.Context) ([]User, error) {
//	    return loadOlderThan(ctx, 30)
//	})
//
// Failed executions are never cached: the next call with the same key runs
// the body again. Operations tagged with any of UnsafeTags bypass the cache
// unless Policy.AllowUnsafe is set.
package cache
