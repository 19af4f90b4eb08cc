package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingBody returns value and counts invocations.
type countingBody struct {
	calls atomic.Int32
	value string
	errs  []error // returned by successive calls until exhausted
}

func (b *countingBody) run(ctx context.Context) (string, error) {
	n := int(b.calls.Add(1))
	if n <= len(b.errs) && b.errs[n-1] != nil {
		return "", b.errs[n-1]
	}
	return b.value, nil
}

func TestCache_HitSkipsBody(t *testing.T) {
	c := New[string](nil, Policy{})
	body := &countingBody{value: "alice@example.com"}
	ctx := context.Background()

	first, err := c.Run(ctx, "users:alice", body.run)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	second, err := c.Run(ctx, "users:alice", body.run)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if body.calls.Load() != 1 {
		t.Errorf("body calls = %d, want 1", body.calls.Load())
	}
	if first != second {
		t.Errorf("results differ: %q vs %q", first, second)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Entries != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestCache_FailureNotCached(t *testing.T) {
	c := New[string](nil, DefaultPolicy())
	opErr := errors.New("database is locked")
	body := &countingBody{value: "ok", errs: []error{opErr}}
	ctx := context.Background()

	if _, err := c.Run(ctx, "users:bob", body.run); err != opErr {
		t.Fatalf("first Run() error = %v, want %v", err, opErr)
	}
	if c.Stats().Entries != 0 {
		t.Fatal("failure was cached")
	}

	v, err := c.Run(ctx, "users:bob", body.run)
	if err != nil || v != "ok" {
		t.Fatalf("second Run() = %q, %v", v, err)
	}
	if _, err := c.Run(ctx, "users:bob", body.run); err != nil {
		t.Fatalf("third Run() error = %v", err)
	}
	if body.calls.Load() != 2 {
		t.Errorf("body calls = %d, want 2", body.calls.Load())
	}
}

func TestCache_InvalidKeyBypasses(t *testing.T) {
	c := New[string](nil, Policy{})
	body := &countingBody{value: "x"}

	for i := 0; i < 3; i++ {
		if _, err := c.Run(context.Background(), "", body.run); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	}
	if body.calls.Load() != 3 {
		t.Errorf("body calls = %d, want 3", body.calls.Load())
	}
	if s := c.Stats(); s.Hits+s.Misses != 0 {
		t.Errorf("invalid keys should not be counted, got %+v", s)
	}
}

func TestCache_NilCacheRunsBody(t *testing.T) {
	var c *Cache[string]
	body := &countingBody{value: "x"}

	v, err := c.Run(context.Background(), "users:alice", body.run)
	if err != nil || v != "x" {
		t.Errorf("Run() = %q, %v", v, err)
	}
}

func TestCache_TTL(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	c := New[string](nil, Policy{TTL: time.Minute}, WithClock(clock))
	body := &countingBody{value: "v"}
	ctx := context.Background()

	_, _ = c.Run(ctx, "k", body.run)
	now = now.Add(30 * time.Second)
	_, _ = c.Run(ctx, "k", body.run)
	if body.calls.Load() != 1 {
		t.Fatalf("entry expired early, calls = %d", body.calls.Load())
	}

	now = now.Add(time.Minute)
	_, _ = c.Run(ctx, "k", body.run)
	if body.calls.Load() != 2 {
		t.Errorf("expired entry served, calls = %d", body.calls.Load())
	}
}

func TestCache_Invalidate(t *testing.T) {
	c := New[string](nil, Policy{})
	body := &countingBody{value: "v"}
	ctx := context.Background()

	_, _ = c.Run(ctx, "k", body.run)
	if err := c.Invalidate(ctx, "k"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	_, _ = c.Run(ctx, "k", body.run)

	if body.calls.Load() != 2 {
		t.Errorf("body calls = %d, want 2", body.calls.Load())
	}
}

func TestCache_SingleFlight(t *testing.T) {
	c := New[string](nil, Policy{SingleFlight: true})
	release := make(chan struct{})
	var calls atomic.Int32

	body := func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Run(context.Background(), "users:hot", body)
			if err != nil {
				t.Errorf("Run() error = %v", err)
			}
			results[i] = v
		}(i)
	}

	// Let every goroutine reach the cache before the leader finishes.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("body calls = %d, want 1", calls.Load())
	}
	for i, v := range results {
		if v != "shared" {
			t.Errorf("results[%d] = %q", i, v)
		}
	}
}

func TestCache_FetchReportsCountedHits(t *testing.T) {
	c := New[string](nil, Policy{SingleFlight: true})
	release := make(chan struct{})
	body := func(ctx context.Context) (string, error) {
		<-release
		return "shared", nil
	}

	var (
		wg   sync.WaitGroup
		hits atomic.Int64
	)
	for range 4 {
		wg.Go(func() {
			_, hit, err := c.Fetch(context.Background(), "users:hot", body)
			if err != nil {
				t.Errorf("Fetch() error = %v", err)
			}
			if hit {
				hits.Add(1)
			}
		})
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if _, hit, _ := c.Fetch(context.Background(), "users:hot", body); !hit {
		t.Error("Fetch() after fill reported a miss")
	}
	hits.Add(1)

	stats := c.Stats()
	if stats.Hits != hits.Load() || stats.Hits+stats.Misses != 5 {
		t.Errorf("Stats() = %+v, Fetch reported %d hits", stats, hits.Load())
	}

	if _, hit, _ := c.Fetch(context.Background(), "", body); hit {
		t.Error("Fetch() with an invalid key reported a hit")
	}
}

func TestCache_Bypass(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		tags   []string
		want   bool
	}{
		{"read", Policy{}, []string{"read"}, false},
		{"no tags", Policy{}, nil, false},
		{"write", Policy{}, []string{"write"}, true},
		{"case insensitive", Policy{}, []string{"Mutation"}, true},
		{"allow unsafe", Policy{AllowUnsafe: true}, []string{"delete"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New[int](nil, tt.policy)
			if got := c.Bypass("users.update_email", tt.tags); got != tt.want {
				t.Errorf("Bypass() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCache_Options(t *testing.T) {
	var lookups []bool
	c := New[int](nil, Policy{},
		WithSkipRule(func(opID string, _ []string) bool { return opID == "never" }),
		WithLookupHook(func(_ string, hit bool) { lookups = append(lookups, hit) }),
	)

	if !c.Bypass("never", nil) {
		t.Error("custom skip rule ignored")
	}

	body := func(ctx context.Context) (int, error) { return 7, nil }
	_, _ = c.Run(context.Background(), "k", body)
	_, _ = c.Run(context.Background(), "k", body)
	if len(lookups) != 2 || lookups[0] || !lookups[1] {
		t.Errorf("lookups = %v, want [false true]", lookups)
	}
}

func TestPolicy_Expired(t *testing.T) {
	at := time.Unix(0, 0)
	if (Policy{}).Expired(at, at.Add(24*time.Hour)) {
		t.Error("zero TTL must never expire")
	}
	p := Policy{TTL: time.Second}
	if p.Expired(at, at.Add(500*time.Millisecond)) {
		t.Error("expired before TTL")
	}
	if !p.Expired(at, at.Add(time.Second)) {
		t.Error("not expired at TTL")
	}
}
