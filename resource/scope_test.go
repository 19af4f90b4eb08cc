package resource

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeHandle struct {
	id int
}

// fakeProvider counts acquisitions and releases per handle.
type fakeProvider struct {
	mu         sync.Mutex
	next       int
	acquireErr error
	releaseErr error
	acquired   int
	released   map[int]int
	releaseCtx context.Context
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{released: make(map[int]int)}
}

func (p *fakeProvider) Acquire(_ context.Context) (*fakeHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	p.next++
	p.acquired++
	return &fakeHandle{id: p.next}, nil
}

func (p *fakeProvider) Release(ctx context.Context, h *fakeHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released[h.id]++
	p.releaseCtx = ctx
	return p.releaseErr
}

func (p *fakeProvider) releasedOnce(t *testing.T) {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.released) != p.acquired {
		t.Fatalf("released %d handles, acquired %d", len(p.released), p.acquired)
	}
	for id, n := range p.released {
		if n != 1 {
			t.Errorf("handle %d released %d times, want 1", id, n)
		}
	}
}

func TestScope_ReleasesOnSuccess(t *testing.T) {
	p := newFakeProvider()
	scope := NewScope[*fakeHandle](p, ScopeConfig{})

	calls := 0
	err := scope.Run(context.Background(), func(ctx context.Context, h *fakeHandle) error {
		calls++
		if h == nil {
			t.Fatal("body received nil handle")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("body calls = %d, want 1", calls)
	}
	p.releasedOnce(t)
}

func TestScope_ReleasesOnFailure(t *testing.T) {
	p := newFakeProvider()
	scope := NewScope[*fakeHandle](p, ScopeConfig{})
	opErr := errors.New("query failed")

	err := scope.Run(context.Background(), func(ctx context.Context, h *fakeHandle) error {
		return opErr
	})

	if err != opErr {
		t.Errorf("Run() error = %v, want %v", err, opErr)
	}
	p.releasedOnce(t)
}

func TestScope_ReleasesOnPanic(t *testing.T) {
	p := newFakeProvider()
	scope := NewScope[*fakeHandle](p, ScopeConfig{})

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_ = scope.Run(context.Background(), func(ctx context.Context, h *fakeHandle) error {
			panic("boom")
		})
	}()

	p.releasedOnce(t)
}

func TestScope_ReleasesOnCancellation(t *testing.T) {
	p := newFakeProvider()
	scope := NewScope[*fakeHandle](p, ScopeConfig{})
	ctx, cancel := context.WithCancel(context.Background())

	err := scope.Run(ctx, func(ctx context.Context, h *fakeHandle) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	p.releasedOnce(t)
	if p.releaseCtx.Err() != nil {
		t.Error("release context should not inherit the caller's cancellation")
	}
}

func TestScope_AcquireFailure(t *testing.T) {
	p := newFakeProvider()
	p.acquireErr = errors.New("connection refused")
	scope := NewScope[*fakeHandle](p, ScopeConfig{})

	called := false
	err := scope.Run(context.Background(), func(ctx context.Context, h *fakeHandle) error {
		called = true
		return nil
	})

	if called {
		t.Error("body should not run when acquire fails")
	}
	var re *Error
	if !errors.As(err, &re) {
		t.Fatalf("Run() error = %v, want *Error", err)
	}
	if re.Op != OpAcquire {
		t.Errorf("Op = %q, want %q", re.Op, OpAcquire)
	}
	if !errors.Is(err, p.acquireErr) {
		t.Error("expected acquire error to be wrapped")
	}
	if len(p.released) != 0 {
		t.Errorf("released = %d, want 0", len(p.released))
	}
}

func TestScope_CancelledBeforeAcquire(t *testing.T) {
	p := newFakeProvider()
	scope := NewScope[*fakeHandle](p, ScopeConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := scope.Run(ctx, func(ctx context.Context, h *fakeHandle) error {
		t.Fatal("body should not run")
		return nil
	})

	if !IsResourceError(err) || !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want resource error wrapping context.Canceled", err)
	}
	if p.acquired != 0 {
		t.Errorf("acquired = %d, want 0", p.acquired)
	}
}

func TestScope_ReleaseFailure(t *testing.T) {
	t.Run("after success", func(t *testing.T) {
		p := newFakeProvider()
		p.releaseErr = errors.New("close failed")
		scope := NewScope[*fakeHandle](p, ScopeConfig{})

		err := scope.Run(context.Background(), func(ctx context.Context, h *fakeHandle) error {
			return nil
		})

		var re *Error
		if !errors.As(err, &re) || re.Op != OpRelease {
			t.Fatalf("Run() error = %v, want release *Error", err)
		}
	})

	t.Run("after failure", func(t *testing.T) {
		p := newFakeProvider()
		p.releaseErr = errors.New("close failed")
		scope := NewScope[*fakeHandle](p, ScopeConfig{})
		opErr := errors.New("query failed")

		err := scope.Run(context.Background(), func(ctx context.Context, h *fakeHandle) error {
			return opErr
		})

		if !errors.Is(err, opErr) {
			t.Errorf("expected original error to survive, got %v", err)
		}
		if !errors.Is(err, p.releaseErr) {
			t.Errorf("expected release error to be joined, got %v", err)
		}
	})
}

func TestScope_Hooks(t *testing.T) {
	p := newFakeProvider()
	var waited bool
	var releaseResults []error
	scope := NewScope[*fakeHandle](p, ScopeConfig{
		OnAcquire: func(wait time.Duration) { waited = true },
		OnRelease: func(err error) { releaseResults = append(releaseResults, err) },
	})

	_ = scope.Run(context.Background(), func(ctx context.Context, h *fakeHandle) error {
		return nil
	})

	if !waited {
		t.Error("OnAcquire was not called")
	}
	if len(releaseResults) != 1 || releaseResults[0] != nil {
		t.Errorf("OnRelease results = %v, want [nil]", releaseResults)
	}
}

func TestScope_NilProvider(t *testing.T) {
	scope := NewScope[*fakeHandle](nil, ScopeConfig{})
	err := scope.Run(context.Background(), func(ctx context.Context, h *fakeHandle) error {
		return nil
	})
	if err != ErrNilProvider {
		t.Errorf("Run() error = %v, want ErrNilProvider", err)
	}
}

func TestScope_ConcurrentCallsOwnHandles(t *testing.T) {
	p := newFakeProvider()
	scope := NewScope[*fakeHandle](p, ScopeConfig{})

	var wg sync.WaitGroup
	seen := make(chan int, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = scope.Run(context.Background(), func(ctx context.Context, h *fakeHandle) error {
				seen <- h.id
				return nil
			})
		}()
	}
	wg.Wait()
	close(seen)

	ids := make(map[int]bool)
	for id := range seen {
		if ids[id] {
			t.Errorf("handle %d shared across calls", id)
		}
		ids[id] = true
	}
	p.releasedOnce(t)
}

func TestFuncs(t *testing.T) {
	released := 0
	p := Funcs[string]{
		AcquireFunc: func(ctx context.Context) (string, error) { return "conn", nil },
		ReleaseFunc: func(ctx context.Context, res string) error {
			released++
			return nil
		},
	}
	scope := NewScope[string](p, ScopeConfig{})

	var got string
	err := scope.Run(context.Background(), func(ctx context.Context, res string) error {
		got = res
		return nil
	})

	if err != nil || got != "conn" || released != 1 {
		t.Errorf("got (%q, %v, released=%d), want (conn, nil, 1)", got, err, released)
	}
}
