package resilience

import (
	"context"
	"errors"
)

// Classification decides whether a failure is worth another attempt.
type Classification int

const (
	// Retryable failures are transient; the operation may be invoked again.
	Retryable Classification = iota
	// Fatal failures stop the retry loop immediately.
	Fatal
)

// String returns the string representation of the classification.
func (c Classification) String() string {
	switch c {
	case Retryable:
		return "retryable"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classifier maps a failure to a Classification.
// Classifiers must be pure and safe for concurrent use.
type Classifier func(err error) Classification

// DefaultClassifier treats every failure as retryable except cancellation,
// deadline expiry, and errors marked with Permanent.
func DefaultClassifier(err error) Classification {
	if IsPermanent(err) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return Fatal
	}
	return Retryable
}

// RetryIf returns a classifier that retries only when pred reports true.
// Cancellation and Permanent errors stay fatal.
func RetryIf(pred func(err error) bool) Classifier {
	return func(err error) Classification {
		if DefaultClassifier(err) == Fatal || !pred(err) {
			return Fatal
		}
		return Retryable
	}
}

// RetryOn returns a classifier that retries failures matching any of
// targets via errors.Is.
func RetryOn(targets ...error) Classifier {
	return RetryIf(func(err error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	})
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as fatal for DefaultClassifier. The returned error
// unwraps to err. Permanent(nil) is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
