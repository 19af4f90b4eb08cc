package pipeline

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jonwraymond/dbops/cache"
	"github.com/jonwraymond/dbops/observe"
	"github.com/jonwraymond/dbops/resilience"
	"github.com/jonwraymond/dbops/resource"
	"github.com/jonwraymond/dbops/txn"
)

// ErrNilBody indicates an Operation without a Body.
var ErrNilBody = errors.New("pipeline: operation body is nil")

// Operation describes one unit of work against a resource of type R.
type Operation[R, T any] struct {
	// ID identifies the operation in cache keys, spans and logs.
	ID string

	// Args are the call arguments. They only feed the cache key; Body
	// captures whatever it needs.
	Args []any

	// Tags classify the operation. Any of cache.UnsafeTags disables caching.
	Tags []string

	// Body performs the work. It may be invoked more than once when retries
	// are configured.
	Body func(ctx context.Context, res R) (T, error)
}

// Option configures a Pipeline.
type Option func(*settings)

type settings struct {
	retry       *resilience.RetryConfig
	bulkhead    *resilience.Bulkhead
	timeout     time.Duration
	middleware  *observe.Middleware
	logger      observe.Logger
	concurrency int
}

// WithRetry re-runs failed attempts inside the resource scope. Each attempt
// gets its own transaction when directives are configured. Hooks set on
// cfg still fire.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(s *settings) {
		s.retry = &cfg
	}
}

// WithBulkhead bounds how many calls hold a resource at once. A bulkhead may
// be shared between pipelines.
func WithBulkhead(b *resilience.Bulkhead) Option {
	return func(s *settings) {
		s.bulkhead = b
	}
}

// WithTimeout bounds each call from resource acquisition to release, every
// retry attempt and backoff wait included. A call stopped by it fails with
// resilience.ErrTimeout. Zero or negative disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.timeout = d
	}
}

// WithObserver traces, measures and logs every top-level call.
func WithObserver(mw *observe.Middleware) Option {
	return func(s *settings) {
		s.middleware = mw
	}
}

// WithLogger sets the logger for layer events. Default: the observer's
// logger, or none.
func WithLogger(l observe.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// WithConcurrency caps how many operations All runs at once. Zero or
// negative means no cap.
func WithConcurrency(n int) Option {
	return func(s *settings) {
		s.concurrency = n
	}
}

// Pipeline composes the execution layers around operation bodies, always in
// this order from outside in:
//
//	bulkhead ⊃ timeout ⊃ resource scope ⊃ retry ⊃ transaction ⊃ body
//
// A result cache, when used through RunCached, sits outside all of them.
// Every layer is optional. A Pipeline is safe for concurrent use; each call
// owns its own handle, attempts and transaction state.
type Pipeline[R any] struct {
	provider   resource.Provider[R]
	directives txn.Directives[R]
	settings
}

// New builds a pipeline. A nil provider runs bodies with the zero R; nil
// directives run them without transactions.
func New[R any](provider resource.Provider[R], directives txn.Directives[R], opts ...Option) *Pipeline[R] {
	p := &Pipeline[R]{provider: provider, directives: directives}
	for _, opt := range opts {
		opt(&p.settings)
	}
	if p.logger == nil {
		if p.middleware != nil {
			p.logger = p.middleware.Logger()
		} else {
			p.logger = observe.NopLogger()
		}
	}
	return p
}

// Run executes op through the pipeline and returns its result.
func Run[R, T any](ctx context.Context, p *Pipeline[R], op Operation[R, T]) (T, error) {
	var result T
	if op.Body == nil {
		return result, ErrNilBody
	}

	call := func(ctx context.Context, meta observe.OperationMeta) error {
		return p.execute(ctx, meta, func(ctx context.Context, res R) error {
			v, err := op.Body(ctx, res)
			if err != nil {
				return err
			}
			result = v
			return nil
		})
	}
	if p.middleware != nil {
		call = p.middleware.Wrap(call)
	}

	if err := call(ctx, observe.OperationMeta{ID: op.ID, Tags: op.Tags}); err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// RunCached serves op from c when possible and otherwise runs it through the
// pipeline, storing a successful result. Operations tagged unsafe, or whose
// arguments cannot be keyed, run uncached.
func RunCached[R, T any](ctx context.Context, p *Pipeline[R], c *cache.Cache[T], op Operation[R, T]) (T, error) {
	if c == nil || c.Bypass(op.ID, op.Tags) {
		return Run(ctx, p, op)
	}

	meta := observe.OperationMeta{ID: op.ID, Tags: op.Tags}
	log := p.logger.WithOperation(meta)

	key, err := c.Key(op.ID, op.Args)
	if err != nil {
		log.Warn(ctx, "cache key unavailable, running uncached", observe.F("error", err))
		return Run(ctx, p, op)
	}

	v, hit, err := c.Fetch(ctx, key, func(ctx context.Context) (T, error) {
		return Run(ctx, p, op)
	})

	if p.middleware != nil {
		p.middleware.Metrics().RecordCacheLookup(ctx, meta, hit)
	}
	log.Debug(ctx, "cache lookup", observe.F("cache.key", key), observe.F("cache.hit", hit))
	return v, err
}

// execute runs body inside the configured layers.
func (p *Pipeline[R]) execute(ctx context.Context, meta observe.OperationMeta, body func(context.Context, R) error) error {
	log := p.logger.WithOperation(meta)

	transactional := body
	if p.directives != nil {
		transactional = func(ctx context.Context, res R) error {
			return txn.New(p.directives, p.txnConfig(ctx, meta, log)).Run(ctx, res, body)
		}
	}

	attempted := transactional
	if p.retry != nil {
		attempted = func(ctx context.Context, res R) error {
			r := resilience.NewRetry(p.retryConfig(ctx, meta, log))
			return r.Execute(ctx, func(ctx context.Context) error {
				return transactional(ctx, res)
			})
		}
	}

	scoped := func(ctx context.Context) error {
		if p.provider == nil {
			var zero R
			return attempted(ctx, zero)
		}
		return resource.NewScope(p.provider, p.scopeConfig(ctx, log)).Run(ctx, attempted)
	}

	bounded := scoped
	if p.timeout > 0 {
		bounded = func(ctx context.Context) error {
			return resilience.ExecuteWithTimeout(ctx, p.timeout, scoped)
		}
	}

	if p.bulkhead != nil {
		return p.bulkhead.Execute(ctx, bounded)
	}
	return bounded(ctx)
}

func (p *Pipeline[R]) scopeConfig(ctx context.Context, log observe.Logger) resource.ScopeConfig {
	return resource.ScopeConfig{
		OnAcquire: func(wait time.Duration) {
			log.Debug(ctx, "resource acquired", observe.F("wait_ms", float64(wait.Microseconds())/1000))
		},
		OnRelease: func(err error) {
			if err != nil {
				log.Error(ctx, "resource release failed", observe.F("error", err))
				return
			}
			log.Debug(ctx, "resource released")
		},
	}
}

func (p *Pipeline[R]) txnConfig(ctx context.Context, meta observe.OperationMeta, log observe.Logger) txn.Config {
	return txn.Config{
		OnStateChange: func(from, to txn.State) {
			observe.AddEvent(ctx, "txn."+to.String())
			switch to {
			case txn.StateCommitted:
				p.recordTxn(ctx, meta, observe.OutcomeCommitted)
			case txn.StateRolledBack:
				p.recordTxn(ctx, meta, observe.OutcomeRolledBack)
				log.Warn(ctx, "transaction rolled back")
			}
		},
		OnRollbackError: func(err, cause error) {
			p.recordTxn(ctx, meta, observe.OutcomeFailed)
			log.Error(ctx, "transaction rollback failed",
				observe.F("error", err),
				observe.F("cause", cause),
			)
		},
	}
}

func (p *Pipeline[R]) recordTxn(ctx context.Context, meta observe.OperationMeta, outcome string) {
	if p.middleware != nil {
		p.middleware.Metrics().RecordTransaction(ctx, meta, outcome)
	}
}

func (p *Pipeline[R]) retryConfig(ctx context.Context, meta observe.OperationMeta, log observe.Logger) resilience.RetryConfig {
	cfg := *p.retry
	onRetry, onAttempt := cfg.OnRetry, cfg.OnAttempt

	cfg.OnAttempt = func(a resilience.Attempt) {
		attrs := []attribute.KeyValue{
			attribute.Int("attempt", a.Index),
			attribute.String("attempt.id", a.ID),
		}
		if a.Err != nil {
			attrs = append(attrs, attribute.String("attempt.class", a.Class.String()))
		}
		observe.AddEvent(ctx, "retry.attempt", attrs...)
		if p.middleware != nil {
			p.middleware.Metrics().RecordAttempt(ctx, meta, a.Err)
		}
		if onAttempt != nil {
			onAttempt(a)
		}
	}
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Warn(ctx, "retrying operation",
			observe.F("attempt", attempt),
			observe.F("delay_ms", delay.Milliseconds()),
			observe.F("error", err),
		)
		if onRetry != nil {
			onRetry(attempt, err, delay)
		}
	}
	return cfg
}
