package health

import (
	"context"
	"time"

	"github.com/jonwraymond/dbops/resilience"
	"github.com/jonwraymond/dbops/resource"
)

// ResourceCheckerConfig configures a ResourceChecker.
type ResourceCheckerConfig struct {
	// SlowThreshold marks the check degraded when acquire plus probe takes
	// longer. Zero disables the threshold.
	SlowThreshold time.Duration
}

// ResourceChecker acquires and releases a handle to verify a provider.
type ResourceChecker[R any] struct {
	name     string
	provider resource.Provider[R]
	probe    func(ctx context.Context, res R) error
	config   ResourceCheckerConfig
}

// NewResourceChecker creates a checker over provider. probe, when non-nil,
// runs against the acquired handle, typically a trivial query.
func NewResourceChecker[R any](name string, provider resource.Provider[R], probe func(context.Context, R) error, config ResourceCheckerConfig) *ResourceChecker[R] {
	return &ResourceChecker[R]{name: name, provider: provider, probe: probe, config: config}
}

// Name returns the checker name.
func (c *ResourceChecker[R]) Name() string { return c.name }

// Check acquires a handle, probes it, and releases it.
func (c *ResourceChecker[R]) Check(ctx context.Context) Result {
	start := time.Now()
	var acquireWait time.Duration

	scope := resource.NewScope(c.provider, resource.ScopeConfig{
		OnAcquire: func(wait time.Duration) { acquireWait = wait },
	})
	err := scope.Run(ctx, func(ctx context.Context, res R) error {
		if c.probe == nil {
			return nil
		}
		return c.probe(ctx, res)
	})
	elapsed := time.Since(start)

	details := map[string]any{
		"acquire_ms": float64(acquireWait.Microseconds()) / 1000,
		"total_ms":   float64(elapsed.Microseconds()) / 1000,
	}

	switch {
	case resource.IsResourceError(err):
		return Unhealthy("cannot acquire resource", err).WithDetails(details)
	case err != nil:
		return Unhealthy("probe failed", err).WithDetails(details)
	case c.config.SlowThreshold > 0 && elapsed > c.config.SlowThreshold:
		return Degraded("resource is slow").WithDetails(details)
	default:
		return Healthy("resource available").WithDetails(details)
	}
}

// BulkheadChecker reports a bulkhead with no free slots as degraded.
func BulkheadChecker(name string, b *resilience.Bulkhead) Checker {
	return NewCheckerFunc(name, func(context.Context) Result {
		m := b.Metrics()
		details := map[string]any{
			"active":         m.Active,
			"available":      m.Available,
			"max_concurrent": m.MaxConcurrent,
			"rejected":       m.Rejected,
		}
		if m.Available <= 0 {
			return Degraded("bulkhead saturated").WithDetails(details)
		}
		return Healthy("bulkhead has capacity").WithDetails(details)
	})
}
