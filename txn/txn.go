package txn

import (
	"context"
)

// State is the lifecycle state of one transaction.
type State int

const (
	// StateIdle means Begin has not been issued.
	StateIdle State = iota
	// StateActive means the transaction is open.
	StateActive
	// StateCommitted means Commit succeeded. Terminal.
	StateCommitted
	// StateRolledBack means Rollback succeeded. Terminal.
	StateRolledBack
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateRolledBack
}

// Directives issues transaction control statements on a handle.
//
// Contract:
// - Concurrency: a handle is never used by two transactions at once.
// - Errors: each directive may fail; failures are surfaced as *Error.
type Directives[R any] interface {
	Begin(ctx context.Context, res R) error
	Commit(ctx context.Context, res R) error
	Rollback(ctx context.Context, res R) error
}

// Config configures a Wrapper.
type Config struct {
	// OnStateChange is called after every successful transition.
	OnStateChange func(from, to State)

	// OnRollbackError is called when a rollback directive fails, before the
	// failure is returned.
	OnRollbackError func(err, cause error)
}

// Wrapper runs units of work inside a transaction.
type Wrapper[R any] struct {
	directives Directives[R]
	config     Config
}

// New creates a transaction wrapper.
func New[R any](directives Directives[R], config Config) *Wrapper[R] {
	return &Wrapper[R]{
		directives: directives,
		config:     config,
	}
}

// Run begins a transaction on res, runs body, and commits or rolls back.
//
// The body's error is returned unchanged after a successful rollback. If the
// body succeeds but ctx was cancelled meanwhile, the transaction is rolled
// back and ctx.Err() is returned. A panic in body rolls back and re-panics.
func (w *Wrapper[R]) Run(ctx context.Context, res R, body func(context.Context, R) error) (err error) {
	if w.directives == nil {
		return ErrNilDirectives
	}

	t := &tracker{state: StateIdle, onChange: w.config.OnStateChange}

	if berr := w.directives.Begin(ctx, res); berr != nil {
		return &Error{Op: OpBegin, State: t.state, Err: berr}
	}
	t.to(StateActive)

	finished := false
	defer func() {
		if !finished {
			_ = w.rollback(ctx, res, t, errPanicked)
		}
	}()

	err = body(ctx, res)
	finished = true

	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return w.rollback(ctx, res, t, err)
	}

	if cerr := w.directives.Commit(ctx, res); cerr != nil {
		return &Error{Op: OpCommit, State: t.state, Err: cerr}
	}
	t.to(StateCommitted)
	return nil
}

func (w *Wrapper[R]) rollback(ctx context.Context, res R, t *tracker, cause error) error {
	rerr := w.directives.Rollback(context.WithoutCancel(ctx), res)
	if rerr != nil {
		if w.config.OnRollbackError != nil {
			w.config.OnRollbackError(rerr, cause)
		}
		return &Error{Op: OpRollback, State: t.state, Err: rerr, Cause: cause}
	}
	t.to(StateRolledBack)
	return cause
}

// tracker holds the state of one Run.
type tracker struct {
	state    State
	onChange func(from, to State)
}

func (t *tracker) to(next State) {
	prev := t.state
	t.state = next
	if t.onChange != nil {
		t.onChange(prev, next)
	}
}
