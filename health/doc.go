// Package health reports whether the database behind a pipeline is usable.
//
// A ResourceChecker acquires a handle from the same Provider the pipeline
// uses, runs an optional probe query, and releases it. A BulkheadChecker
// reports saturation of a shared bulkhead. An Aggregator runs checkers
// concurrently under one deadline and folds them into a single Status.
//
//	agg := health.NewAggregator(5 * time.Second)
//	agg.Register(health.NewResourceChecker("database", provider, ping, health.ResourceCheckerConfig{
//	    SlowThreshold: 200 * time.Millisecond,
//	}))
//	results, err := agg.CheckAll(ctx)
//	if err == nil && health.Overall(results) == health.StatusUnhealthy {
//	    ...
//	}
package health
