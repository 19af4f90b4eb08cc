package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	retry "github.com/sethvargo/go-retry"
)

// BackoffStrategy defines how delays grow between retries.
type BackoffStrategy int

const (
	// BackoffConstant waits Delay before every retry.
	BackoffConstant BackoffStrategy = iota
	// BackoffExponential doubles the delay after each retry.
	BackoffExponential
	// BackoffFibonacci grows the delay along the Fibonacci sequence.
	BackoffFibonacci
	// BackoffLinear waits Delay * n before the n-th retry.
	BackoffLinear
)

// RetryConfig configures the retry behavior. It is copied by NewRetry and
// never changed afterwards.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 3
	MaxAttempts int

	// Delay is the wait before the first retry. Zero retries immediately.
	// Default: 0
	Delay time.Duration

	// MaxDelay caps the wait between retries. Zero leaves it uncapped.
	MaxDelay time.Duration

	// Strategy is the backoff strategy.
	// Default: BackoffConstant
	Strategy BackoffStrategy

	// JitterPercent randomizes each wait by up to this percentage.
	// Default: 0 (no jitter)
	JitterPercent uint64

	// MaxElapsed bounds the time spent across all attempts. A retryable
	// failure observed after the budget is spent becomes fatal.
	// Default: 0 (unbounded)
	MaxElapsed time.Duration

	// Classifier decides whether a failure is retried.
	// Default: DefaultClassifier
	Classifier Classifier

	// OnRetry is called before each wait, with the attempt that just failed.
	OnRetry func(attempt int, err error, delay time.Duration)

	// OnAttempt is called after every attempt, successful or not.
	OnAttempt func(a Attempt)
}

// Attempt records one invocation of the retried operation.
type Attempt struct {
	// Index is 1-based.
	Index int

	// ID uniquely identifies the attempt in logs and traces.
	ID string

	// Start is when the attempt began.
	Start time.Time

	// Duration is how long the operation ran.
	Duration time.Duration

	// Err is the attempt's failure, nil on success.
	Err error

	// Class is the failure's classification; meaningless when Err is nil.
	Class Classification
}

// Succeeded reports whether the attempt returned without error.
func (a Attempt) Succeeded() bool {
	return a.Err == nil
}

// Retry implements retry with backoff.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	// Apply defaults
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.Delay < 0 {
		config.Delay = 0
	}
	if config.MaxDelay < 0 {
		config.MaxDelay = 0
	}
	if config.JitterPercent > 100 {
		config.JitterPercent = 100
	}
	if config.Classifier == nil {
		config.Classifier = DefaultClassifier
	}

	return &Retry{config: config}
}

// Execute runs op until it succeeds, fails fatally, or runs out of attempts.
//
// Fatal failures are returned unchanged. Running out of attempts returns a
// *RetriesExhaustedError wrapping the last failure. Cancelling ctx during a
// wait returns at once with an error matching both ctx.Err() and the last
// failure. No two attempts ever run concurrently.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	backoff := r.backoff()
	start := time.Now()

	for attempt := 1; ; attempt++ {
		a := Attempt{
			Index: attempt,
			ID:    uuid.NewString(),
			Start: time.Now(),
		}
		err := op(ctx)
		a.Duration = time.Since(a.Start)

		if err == nil {
			r.observe(a)
			return nil
		}

		a.Err = err
		a.Class = r.config.Classifier(err)
		if a.Class == Retryable && r.config.MaxElapsed > 0 && time.Since(start) >= r.config.MaxElapsed {
			a.Class = Fatal
			a.Err = fmt.Errorf("%w after %s: %w", ErrElapsedExceeded, time.Since(start).Round(time.Millisecond), err)
		}
		r.observe(a)

		if a.Class == Fatal {
			return a.Err
		}

		// Don't retry if this was the last attempt
		if attempt >= r.config.MaxAttempts {
			return &RetriesExhaustedError{Attempts: attempt, Err: err}
		}

		delay, _ := backoff.Next()

		// Callback before retry
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		if werr := wait(ctx, delay); werr != nil {
			return fmt.Errorf("resilience: retry canceled after %d attempt(s): %w (last error: %w)", attempt, werr, err)
		}
	}
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

func (r *Retry) observe(a Attempt) {
	if r.config.OnAttempt != nil {
		r.config.OnAttempt(a)
	}
}

// backoff builds a fresh delay schedule for one Execute call.
func (r *Retry) backoff() retry.Backoff {
	if r.config.Delay == 0 {
		return retry.BackoffFunc(func() (time.Duration, bool) {
			return 0, false
		})
	}

	var b retry.Backoff
	switch r.config.Strategy {
	case BackoffExponential:
		b = retry.NewExponential(r.config.Delay)
	case BackoffFibonacci:
		b = retry.NewFibonacci(r.config.Delay)
	case BackoffLinear:
		b = linearBackoff(r.config.Delay)
	default:
		b = retry.NewConstant(r.config.Delay)
	}

	if r.config.JitterPercent > 0 {
		b = retry.WithJitterPercent(r.config.JitterPercent, b)
	}
	if r.config.MaxDelay > 0 {
		b = retry.WithCappedDuration(r.config.MaxDelay, b)
	}
	return b
}

func linearBackoff(base time.Duration) retry.Backoff {
	var n time.Duration
	return retry.BackoffFunc(func() (time.Duration, bool) {
		n++
		return base * n, false
	})
}

// wait blocks for d or until ctx is done. A zero d only checks ctx.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
