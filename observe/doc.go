// Package observe provides tracing, metrics and structured logging for
// operation calls.
//
// It is a pure instrumentation library: it never runs operations itself.
// The pipeline package wraps each top-level call with a Middleware and
// reports attempts, transaction outcomes and cache lookups through Metrics
// and AddEvent.
//
// Instruments:
//
//	dbops.op.total        calls, by op.id
//	dbops.op.errors       failed calls, by op.id
//	dbops.op.duration_ms  call duration histogram
//	dbops.op.attempts     body invocations, by op.id and op.error
//	dbops.txn.outcomes    transaction outcomes, by txn.outcome
//	dbops.cache.lookups   cache lookups, by cache.hit
package observe
