package resource

import "errors"

// Operation names carried by Error.
const (
	OpAcquire = "acquire"
	OpRelease = "release"
)

// ErrNilProvider indicates a Scope was built without a Provider.
var ErrNilProvider = errors.New("resource: provider is nil")

// Error reports a failure to acquire or release a resource handle.
type Error struct {
	// Op is OpAcquire or OpRelease.
	Op string

	// Err is the provider's failure.
	Err error
}

func (e *Error) Error() string {
	return "resource: " + e.Op + " failed: " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsResourceError reports whether err is or wraps an *Error.
func IsResourceError(err error) bool {
	var re *Error
	return errors.As(err, &re)
}
