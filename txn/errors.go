package txn

import (
	"errors"
	"fmt"
)

// Directive names carried by Error.
const (
	OpBegin    = "begin"
	OpCommit   = "commit"
	OpRollback = "rollback"
)

// ErrNilDirectives indicates a Wrapper was built without Directives.
var ErrNilDirectives = errors.New("txn: directives are nil")

// errPanicked is the rollback cause reported when the unit of work panics.
var errPanicked = errors.New("txn: unit of work panicked")

// Error reports a failed transaction directive.
type Error struct {
	// Op is the directive that failed: OpBegin, OpCommit or OpRollback.
	Op string

	// State is the transaction state when the directive failed.
	State State

	// Err is the directive's failure.
	Err error

	// Cause is the unit of work's failure that triggered a rollback.
	// Only set when Op is OpRollback.
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("txn: %s failed in state %s: %v (original error: %v)", e.Op, e.State, e.Err, e.Cause)
	}
	return fmt.Sprintf("txn: %s failed in state %s: %v", e.Op, e.State, e.Err)
}

// Unwrap exposes both the directive failure and the original cause.
func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}
