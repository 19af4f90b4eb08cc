package resilience

import (
	"errors"
	"fmt"
)

// Sentinel errors for resilience operations.
var (
	// ErrMaxRetriesExceeded is matched by every *RetriesExhaustedError.
	ErrMaxRetriesExceeded = errors.New("resilience: max retries exceeded")

	// ErrElapsedExceeded is returned when a retryable failure happens after
	// RetryConfig.MaxElapsed has passed.
	ErrElapsedExceeded = errors.New("resilience: retry time budget exceeded")

	// ErrBulkheadFull is returned when the bulkhead is at capacity.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout is returned when a Timeout's deadline stops an operation.
	ErrTimeout = errors.New("resilience: operation timed out")
)

// RetriesExhaustedError wraps the last failure once every attempt was used.
type RetriesExhaustedError struct {
	// Attempts is the number of times the operation was invoked.
	Attempts int

	// Err is the failure of the final attempt.
	Err error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("resilience: retries exhausted after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrMaxRetriesExceeded.
func (e *RetriesExhaustedError) Is(target error) bool {
	return target == ErrMaxRetriesExceeded
}

// AttemptsOf returns the attempt count carried by err, or 0 when err does
// not wrap a *RetriesExhaustedError.
func AttemptsOf(err error) int {
	var re *RetriesExhaustedError
	if errors.As(err, &re) {
		return re.Attempts
	}
	return 0
}
