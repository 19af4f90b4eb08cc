package resource

import (
	"context"
	"errors"
	"time"
)

// Provider acquires and releases resource handles.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Ownership: every handle returned by Acquire is passed to Release exactly once.
// - Context: Acquire should honor cancellation; Release receives a context
//   that is not cancelled with the caller's.
type Provider[R any] interface {
	// Acquire returns a handle owned exclusively by the caller.
	Acquire(ctx context.Context) (R, error)

	// Release returns the handle to the provider or closes it.
	Release(ctx context.Context, res R) error
}

// Funcs adapts a pair of functions to the Provider interface.
type Funcs[R any] struct {
	AcquireFunc func(ctx context.Context) (R, error)
	ReleaseFunc func(ctx context.Context, res R) error
}

// Acquire calls AcquireFunc.
func (f Funcs[R]) Acquire(ctx context.Context) (R, error) {
	return f.AcquireFunc(ctx)
}

// Release calls ReleaseFunc. A nil ReleaseFunc releases nothing.
func (f Funcs[R]) Release(ctx context.Context, res R) error {
	if f.ReleaseFunc == nil {
		return nil
	}
	return f.ReleaseFunc(ctx, res)
}

// ScopeConfig configures a Scope.
type ScopeConfig struct {
	// OnAcquire is called after a handle was acquired, with the time it took.
	OnAcquire func(wait time.Duration)

	// OnRelease is called after every release attempt with its result.
	OnRelease func(err error)
}

// Scope acquires a handle around one unit of work.
type Scope[R any] struct {
	provider Provider[R]
	config   ScopeConfig
}

// NewScope creates a scope over the given provider.
func NewScope[R any](provider Provider[R], config ScopeConfig) *Scope[R] {
	return &Scope[R]{
		provider: provider,
		config:   config,
	}
}

// Run acquires a handle, invokes body with it exactly once, and releases
// the handle before returning.
//
// A release failure is returned when body succeeded and joined after the
// body's error otherwise. A cancelled ctx is reported as an acquire failure
// without contacting the provider.
func (s *Scope[R]) Run(ctx context.Context, body func(context.Context, R) error) (err error) {
	if s.provider == nil {
		return ErrNilProvider
	}
	if cerr := ctx.Err(); cerr != nil {
		return &Error{Op: OpAcquire, Err: cerr}
	}

	start := time.Now()
	res, aerr := s.provider.Acquire(ctx)
	if aerr != nil {
		return &Error{Op: OpAcquire, Err: aerr}
	}
	if s.config.OnAcquire != nil {
		s.config.OnAcquire(time.Since(start))
	}

	defer func() {
		rerr := s.provider.Release(context.WithoutCancel(ctx), res)
		if s.config.OnRelease != nil {
			s.config.OnRelease(rerr)
		}
		if rerr == nil {
			return
		}
		rerr = &Error{Op: OpRelease, Err: rerr}
		if err == nil {
			err = rerr
		} else {
			err = errors.Join(err, rerr)
		}
	}()

	return body(ctx, res)
}
