package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/dbops/resilience"
)

func ExampleNewRetry() {
	r := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts: 3,
		Delay:       time.Millisecond,
	})

	attempts := 0
	err := r.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("database is locked")
		}
		return nil
	})

	fmt.Println("Error:", err)
	fmt.Println("Attempts:", attempts)
	// Output:
	// Error: <nil>
	// Attempts: 2
}

func ExampleRetriesExhaustedError() {
	r := resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 2})

	err := r.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("connection refused")
	})

	fmt.Println(errors.Is(err, resilience.ErrMaxRetriesExceeded))
	fmt.Println(resilience.AttemptsOf(err))
	// Output:
	// true
	// 2
}

func ExamplePermanent() {
	r := resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 5})

	attempts := 0
	err := r.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return resilience.Permanent(errors.New("no such table: users"))
	})

	fmt.Println("Error:", err)
	fmt.Println("Attempts:", attempts)
	// Output:
	// Error: no such table: users
	// Attempts: 1
}

func ExampleNewBulkhead() {
	b := resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 1})

	_ = b.Acquire(context.Background())
	err := b.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})
	fmt.Println(err)
	b.Release()

	fmt.Println(b.Metrics().Rejected)
	// Output:
	// resilience: bulkhead at capacity
	// 1
}
