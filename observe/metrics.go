package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Transaction outcomes recorded by RecordTransaction.
const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
	OutcomeFailed     = "failed"
)

// Metrics records execution metrics for operations.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordExecution records one top-level call with its duration and outcome.
	RecordExecution(ctx context.Context, meta OperationMeta, duration time.Duration, err error)

	// RecordAttempt records one retry attempt.
	RecordAttempt(ctx context.Context, meta OperationMeta, err error)

	// RecordTransaction records a transaction's terminal outcome.
	RecordTransaction(ctx context.Context, meta OperationMeta, outcome string)

	// RecordCacheLookup records a cache hit or miss.
	RecordCacheLookup(ctx context.Context, meta OperationMeta, hit bool)
}

type metricsImpl struct {
	total        metric.Int64Counter
	errors       metric.Int64Counter
	duration     metric.Float64Histogram
	attempts     metric.Int64Counter
	transactions metric.Int64Counter
	lookups      metric.Int64Counter
}

// NewMetrics creates the operation instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error

	if m.total, err = meter.Int64Counter("dbops.op.total",
		metric.WithDescription("Total number of operation calls"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}
	if m.errors, err = meter.Int64Counter("dbops.op.errors",
		metric.WithDescription("Total number of failed operation calls"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram("dbops.op.duration_ms",
		metric.WithDescription("Operation call duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.attempts, err = meter.Int64Counter("dbops.op.attempts",
		metric.WithDescription("Operation body invocations, including retries"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, err
	}
	if m.transactions, err = meter.Int64Counter("dbops.txn.outcomes",
		metric.WithDescription("Transaction terminal outcomes"),
		metric.WithUnit("{transaction}"),
	); err != nil {
		return nil, err
	}
	if m.lookups, err = meter.Int64Counter("dbops.cache.lookups",
		metric.WithDescription("Result cache lookups"),
		metric.WithUnit("{lookup}"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordExecution(ctx context.Context, meta OperationMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(attribute.String("op.id", meta.ID))

	m.total.Add(ctx, 1, opt)
	if err != nil {
		m.errors.Add(ctx, 1, opt)
	}
	m.duration.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordAttempt(ctx context.Context, meta OperationMeta, err error) {
	m.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op.id", meta.ID),
		attribute.Bool("op.error", err != nil),
	))
}

func (m *metricsImpl) RecordTransaction(ctx context.Context, meta OperationMeta, outcome string) {
	m.transactions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op.id", meta.ID),
		attribute.String("txn.outcome", outcome),
	))
}

func (m *metricsImpl) RecordCacheLookup(ctx context.Context, meta OperationMeta, hit bool) {
	m.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op.id", meta.ID),
		attribute.Bool("cache.hit", hit),
	))
}

// NopMetrics returns a Metrics backed by the OpenTelemetry no-op meter.
func NopMetrics() Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter("noop"))
	return m
}
