package cmd

import (
	"context"

	"github.com/jonwraymond/dbops/cache"
	"github.com/jonwraymond/dbops/config"
	"github.com/jonwraymond/dbops/health"
	"github.com/jonwraymond/dbops/observe"
	"github.com/jonwraymond/dbops/pgstore"
	"github.com/jonwraymond/dbops/pipeline"
	"github.com/jonwraymond/dbops/resilience"
	"github.com/jonwraymond/dbops/resource"
	"github.com/jonwraymond/dbops/sqlstore"
	"github.com/jonwraymond/dbops/txn"
	"github.com/jonwraymond/dbops/users"
)

// backend is the set of user operations the commands need, independent of
// the driver.
type backend interface {
	Seed(ctx context.Context, rows []users.User) (int, error)
	Get(ctx context.Context, id string) (users.User, error)
	GetMany(ctx context.Context, ids []string) ([]users.User, error)
	List(ctx context.Context) ([]users.User, error)
	OlderThan(ctx context.Context, age int) ([]users.User, error)
	UpdateEmail(ctx context.Context, id, email string) error
	AverageAge(ctx context.Context) (float64, error)
	Stream(ctx context.Context, batch int, emit func([]users.User) error) error
	Health(ctx context.Context) (map[string]health.Result, error)
	Close() error
}

// store runs repository calls for handles of type R through a pipeline.
type store[R any] struct {
	repo     users.Repository[R]
	provider resource.Provider[R]
	probe    func(context.Context, R) error
	bulkhead *resilience.Bulkhead
	closer   func() error

	// p retries; stream does not, so emitted batches are never replayed.
	p      *pipeline.Pipeline[R]
	stream *pipeline.Pipeline[R]

	user  *cache.Cache[users.User]
	list  *cache.Cache[[]users.User]
	stats *cache.Cache[float64]
}

type storeParts[R any] struct {
	repo       users.Repository[R]
	provider   resource.Provider[R]
	directives txn.Directives[R]
	classify   resilience.Classifier
	probe      func(context.Context, R) error
	closer     func() error
}

func newStore[R any](cfg config.Config, mw *observe.Middleware, parts storeParts[R]) (*store[R], error) {
	s := &store[R]{
		repo:     parts.repo,
		provider: parts.provider,
		probe:    parts.probe,
		bulkhead: cfg.Bulkhead.Bulkhead(),
		closer:   parts.closer,
	}

	opts := []pipeline.Option{
		pipeline.WithObserver(mw),
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithTimeout(cfg.Timeout),
	}
	if s.bulkhead != nil {
		opts = append(opts, pipeline.WithBulkhead(s.bulkhead))
	}
	s.stream = pipeline.New(parts.provider, parts.directives, opts...)
	if rc, ok := cfg.Retry.Policy(); ok {
		rc.Classifier = parts.classify
		opts = append(opts, pipeline.WithRetry(rc))
	}
	s.p = pipeline.New(parts.provider, parts.directives, opts...)

	var err error
	if s.user, err = config.NewCache[users.User](cfg.Cache); err != nil {
		return nil, err
	}
	if s.list, err = config.NewCache[[]users.User](cfg.Cache); err != nil {
		return nil, err
	}
	if s.stats, err = config.NewCache[float64](cfg.Cache); err != nil {
		return nil, err
	}
	return s, nil
}

var (
	readTags  = []string{"read"}
	writeTags = []string{"write"}
)

func (s *store[R]) getOp(id string) pipeline.Operation[R, users.User] {
	return pipeline.Operation[R, users.User]{
		ID:   "users.get",
		Args: []any{id},
		Tags: readTags,
		Body: func(ctx context.Context, c R) (users.User, error) {
			return s.repo.Get(ctx, c, id)
		},
	}
}

func (s *store[R]) Seed(ctx context.Context, rows []users.User) (int, error) {
	return pipeline.Run(ctx, s.p, pipeline.Operation[R, int]{
		ID:   "users.seed",
		Tags: writeTags,
		Body: func(ctx context.Context, c R) (int, error) {
			if err := s.repo.CreateTable(ctx, c); err != nil {
				return 0, err
			}
			return s.repo.Seed(ctx, c, rows)
		},
	})
}

func (s *store[R]) Get(ctx context.Context, id string) (users.User, error) {
	return pipeline.RunCached(ctx, s.p, s.user, s.getOp(id))
}

func (s *store[R]) GetMany(ctx context.Context, ids []string) ([]users.User, error) {
	ops := make([]pipeline.Operation[R, users.User], len(ids))
	for i, id := range ids {
		ops[i] = s.getOp(id)
	}
	return pipeline.All(ctx, s.p, ops...)
}

func (s *store[R]) List(ctx context.Context) ([]users.User, error) {
	return pipeline.RunCached(ctx, s.p, s.list, pipeline.Operation[R, []users.User]{
		ID:   "users.list",
		Tags: readTags,
		Body: s.repo.List,
	})
}

func (s *store[R]) OlderThan(ctx context.Context, age int) ([]users.User, error) {
	return pipeline.RunCached(ctx, s.p, s.list, pipeline.Operation[R, []users.User]{
		ID:   "users.older_than",
		Args: []any{age},
		Tags: readTags,
		Body: func(ctx context.Context, c R) ([]users.User, error) {
			return s.repo.OlderThan(ctx, c, age)
		},
	})
}

func (s *store[R]) UpdateEmail(ctx context.Context, id, email string) error {
	_, err := pipeline.Run(ctx, s.p, pipeline.Operation[R, struct{}]{
		ID:   "users.update_email",
		Args: []any{id, email},
		Tags: writeTags,
		Body: func(ctx context.Context, c R) (struct{}, error) {
			return struct{}{}, s.repo.UpdateEmail(ctx, c, id, email)
		},
	})
	if err != nil || s.user == nil {
		return err
	}
	key, kerr := s.user.Key("users.get", []any{id})
	if kerr != nil {
		return nil
	}
	return s.user.Invalidate(ctx, key)
}

func (s *store[R]) AverageAge(ctx context.Context) (float64, error) {
	return pipeline.RunCached(ctx, s.p, s.stats, pipeline.Operation[R, float64]{
		ID:   "users.average_age",
		Tags: readTags,
		Body: func(ctx context.Context, c R) (float64, error) {
			return users.AverageAge(s.repo.Ages(ctx, c))
		},
	})
}

func (s *store[R]) Stream(ctx context.Context, batch int, emit func([]users.User) error) error {
	_, err := pipeline.Run(ctx, s.stream, pipeline.Operation[R, struct{}]{
		ID:   "users.stream",
		Tags: readTags,
		Body: func(ctx context.Context, c R) (struct{}, error) {
			for b, err := range users.Batches(s.repo.Stream(ctx, c), batch) {
				if err != nil {
					return struct{}{}, err
				}
				if err := emit(b); err != nil {
					return struct{}{}, err
				}
			}
			return struct{}{}, nil
		},
	})
	return err
}

func (s *store[R]) Health(ctx context.Context) (map[string]health.Result, error) {
	agg := health.NewAggregator(0)
	agg.Register(health.NewResourceChecker("database", s.provider, s.probe, health.ResourceCheckerConfig{}))
	if s.bulkhead != nil {
		agg.Register(health.BulkheadChecker("bulkhead", s.bulkhead))
	}
	return agg.CheckAll(ctx)
}

func (s *store[R]) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

func openSQLite(ctx context.Context, cfg config.Config, mw *observe.Middleware) (backend, error) {
	db, err := sqlstore.Open(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	s, err := newStore(cfg, mw, storeParts[*sqlstore.Conn]{
		repo:       users.SQLite,
		provider:   sqlstore.NewProvider(db, mw.Logger()),
		directives: sqlstore.Directives{},
		classify:   sqlstore.Classify,
		probe: func(ctx context.Context, c *sqlstore.Conn) error {
			var one int
			return c.QueryRow(ctx, "SELECT 1").Scan(&one)
		},
		closer: db.Close,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func openPostgres(ctx context.Context, cfg config.Config, mw *observe.Middleware) (backend, error) {
	pool, err := pgstore.Open(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	s, err := newStore(cfg, mw, storeParts[*pgstore.Conn]{
		repo:       users.Postgres,
		provider:   pgstore.NewProvider(pgstore.FromPool(pool), mw.Logger()),
		directives: pgstore.Directives{},
		classify:   pgstore.Classify,
		probe: func(ctx context.Context, c *pgstore.Conn) error {
			_, err := c.Exec(ctx, "SELECT 1")
			return err
		},
		closer: func() error {
			pool.Close()
			return nil
		},
	})
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}
