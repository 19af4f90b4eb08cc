// Package resilience provides the retry policy and concurrency limiting used
// around database operations.
//
// # Retry
//
// A Retry re-invokes an operation after failures its Classifier reports as
// Retryable, up to MaxAttempts, waiting between attempts according to the
// configured BackoffStrategy. Fatal failures are returned unchanged after
// the first attempt; exhausting every attempt returns a
// *RetriesExhaustedError that wraps the last failure and carries the
// attempt count.
//
//	r := resilience.NewRetry(resilience.RetryConfig{
//	    MaxAttempts: 5,
//	    Delay:       50 * time.Millisecond,
//	    Strategy:    resilience.BackoffExponential,
//	    MaxDelay:    time.Second,
//	    Classifier:  resilience.RetryOn(sqlstore.ErrBusy),
//	})
//
//	err := r.Execute(ctx, func(ctx context.Context) error {
//	    return updateBalance(ctx)
//	})
//
// The wait between attempts is abandoned as soon as ctx is cancelled.
// Attempts never overlap.
//
// # Classification
//
// DefaultClassifier retries everything except context cancellation,
// deadline expiry and errors wrapped with Permanent. RetryIf and RetryOn
// narrow the retryable set.
//
// # Bulkhead
//
// A Bulkhead caps how many operations may run at once, optionally waiting up
// to MaxWait for a free slot before failing with ErrBulkheadFull.
//
// # Timeout
//
// A Timeout runs an operation under a deadline and reports ErrTimeout when
// that deadline is what stopped it. Because DefaultClassifier treats
// deadline expiry as fatal, wrapping a Retry in a Timeout bounds the total
// time spent across attempts.
package resilience
