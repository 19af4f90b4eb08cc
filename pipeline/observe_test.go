package pipeline

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jonwraymond/dbops/cache"
	"github.com/jonwraymond/dbops/observe"
	"github.com/jonwraymond/dbops/resilience"
)

func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string, attr attribute.KeyValue) int64 {
	t.Helper()
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: expected Sum[int64], got %T", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attr.Key); ok && v == attr.Value {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestRun_Observed(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := observe.NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	var logs bytes.Buffer
	mw := observe.NewMiddleware(observe.NewTracer(tp.Tracer("test")), metrics, observe.NewLoggerWithWriter("debug", &logs))

	rec, prov, dirs := newFakes()
	p := New[*conn](prov, dirs, WithObserver(mw), WithRetry(resilience.RetryConfig{MaxAttempts: 3}))
	c := cache.New[string](nil, cache.DefaultPolicy())
	op := Operation[*conn, string]{
		ID:   "users.get",
		Args: []any{"carol"},
		Body: failingBody(rec, 2, errBusy, "carol@example.com"),
	}

	if _, err := RunCached(context.Background(), p, c, op); err != nil {
		t.Fatalf("RunCached() error = %v", err)
	}
	if _, err := RunCached(context.Background(), p, c, op); err != nil {
		t.Fatalf("RunCached() error = %v", err)
	}

	ended := spans.Ended()
	if len(ended) != 1 || ended[0].Name() != "dbops.op.users.get" {
		t.Fatalf("spans = %v, want one span for the executed call", ended)
	}
	var attemptEvents, rollbackEvents int
	for _, ev := range ended[0].Events() {
		switch ev.Name {
		case "retry.attempt":
			attemptEvents++
		case "txn.rolled_back":
			rollbackEvents++
		}
	}
	if attemptEvents != 3 || rollbackEvents != 2 {
		t.Errorf("span events: attempts=%d rollbacks=%d", attemptEvents, rollbackEvents)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	checks := []struct {
		metric string
		attr   attribute.KeyValue
		want   int64
	}{
		{"dbops.op.total", attribute.String("op.id", "users.get"), 1},
		{"dbops.op.attempts", attribute.String("op.id", "users.get"), 3},
		{"dbops.op.attempts", attribute.Bool("op.error", true), 2},
		{"dbops.txn.outcomes", attribute.String("txn.outcome", observe.OutcomeRolledBack), 2},
		{"dbops.txn.outcomes", attribute.String("txn.outcome", observe.OutcomeCommitted), 1},
		{"dbops.cache.lookups", attribute.Bool("cache.hit", false), 1},
		{"dbops.cache.lookups", attribute.Bool("cache.hit", true), 1},
	}
	for _, c := range checks {
		if got := counterValue(t, rm, c.metric, c.attr); got != c.want {
			t.Errorf("%s{%s} = %d, want %d", c.metric, c.attr.Key, got, c.want)
		}
	}

	out := logs.String()
	for _, want := range []string{"retrying operation", "transaction rolled back", "operation completed", `"cache.hit":true`} {
		if !strings.Contains(out, want) {
			t.Errorf("logs missing %q", want)
		}
	}
	if strings.Contains(out, "carol") {
		t.Error("operation arguments leaked into logs")
	}
}

func TestWithRetry_UserHooksStillFire(t *testing.T) {
	rec := &recorder{}
	var retries, attempts int
	p := New[*conn](nil, nil, WithRetry(resilience.RetryConfig{
		MaxAttempts: 3,
		OnRetry:     func(int, error, time.Duration) { retries++ },
		OnAttempt:   func(resilience.Attempt) { attempts++ },
	}))

	if _, err := Run(context.Background(), p, Operation[*conn, string]{
		ID:   "flaky",
		Body: failingBody(rec, 1, errBusy, "ok"),
	}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if retries != 1 || attempts != 2 {
		t.Errorf("retries=%d attempts=%d, want 1 and 2", retries, attempts)
	}
}

func TestRunCached_LookupMetricsMatchCacheStats(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := observe.NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	mw := observe.NewMiddleware(observe.NopTracer(), metrics, observe.NopLogger())

	p := New[*conn](nil, nil, WithObserver(mw))
	c := cache.New[string](nil, cache.Policy{SingleFlight: true})
	release := make(chan struct{})
	var calls atomic.Int32
	op := Operation[*conn, string]{
		ID:   "users.get",
		Args: []any{"u1"},
		Body: func(context.Context, *conn) (string, error) {
			calls.Add(1)
			<-release
			return "alice@example.com", nil
		},
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Go(func() {
			if _, err := RunCached(context.Background(), p, c, op); err != nil {
				t.Errorf("RunCached() error = %v", err)
			}
		})
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	if _, err := RunCached(context.Background(), p, c, op); err != nil {
		t.Fatalf("RunCached() error = %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	stats := c.Stats()
	hits := counterValue(t, rm, "dbops.cache.lookups", attribute.Bool("cache.hit", true))
	misses := counterValue(t, rm, "dbops.cache.lookups", attribute.Bool("cache.hit", false))
	if hits != stats.Hits || misses != stats.Misses {
		t.Errorf("metrics hits=%d misses=%d, Stats() = %+v", hits, misses, stats)
	}
	if calls.Load() != 1 {
		t.Errorf("body calls = %d, want 1", calls.Load())
	}
}
