// Package pipeline composes resource scoping, retries, transactions and
// result caching around database operations.
//
// Layers always nest in the same order regardless of how options are given:
//
//	cache ⊃ bulkhead ⊃ timeout ⊃ resource scope ⊃ retry ⊃ transaction ⊃ body
//
// One handle is acquired per top-level call and reused across retries, each
// retry attempt runs in a fresh transaction, and a cache hit skips
// acquisition entirely.
//
//	p := pipeline.New[*sqlstore.Conn](provider, sqlstore.Directives{},
//	    pipeline.WithRetry(resilience.RetryConfig{MaxAttempts: 3}),
//	)
//
//	u, err := pipeline.Run(ctx, p, pipeline.Operation[*sqlstore.Conn, users.User]{
//	    ID:   "users.get",
//	    Args: []any{id},
//	    Body: func(ctx context.Context, c *sqlstore.Conn) (users.User, error) {
//	        return users.SQLite.Get(ctx, c, id)
//	    },
//	})
//
// Use RunCached to put a cache.Cache in front of a read-only operation and
// All to run independent operations concurrently.
package pipeline
