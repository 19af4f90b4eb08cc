package pgstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/semaphore"

	"github.com/jonwraymond/dbops/observe"
	"github.com/jonwraymond/dbops/resource"
)

// Conner is a single connection that is not pooled, such as *pgx.Conn.
type Conner interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// PoolConn is one exclusive database connection. *pgxpool.Conn satisfies
// it.
type PoolConn interface {
	Conner
	Release()
}

var (
	_ Conner   = (*pgx.Conn)(nil)
	_ PoolConn = (*pgxpool.Conn)(nil)
)

// Pool hands out exclusive connections. Use FromPool for a *pgxpool.Pool
// and Single for one dedicated connection.
type Pool interface {
	Acquire(ctx context.Context) (PoolConn, error)
}

type pgxPool struct {
	pool *pgxpool.Pool
}

// FromPool adapts a pgx connection pool.
func FromPool(pool *pgxpool.Pool) Pool {
	return pgxPool{pool: pool}
}

func (p pgxPool) Acquire(ctx context.Context) (PoolConn, error) {
	c, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SingleConn is a Pool over one connection, held by at most one caller at a
// time. Acquire waits for the current holder to release it.
type SingleConn struct {
	conn Conner
	sem  *semaphore.Weighted
}

// Single creates a Pool over conn.
func Single(conn Conner) *SingleConn {
	return &SingleConn{conn: conn, sem: semaphore.NewWeighted(1)}
}

// Acquire waits until conn is free or ctx is done.
func (s *SingleConn) Acquire(ctx context.Context) (PoolConn, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return &singleHandle{Conner: s.conn, sem: s.sem}, nil
}

type singleHandle struct {
	Conner
	sem  *semaphore.Weighted
	once sync.Once
}

func (h *singleHandle) Release() {
	h.once.Do(func() { h.sem.Release(1) })
}

// Open creates a connection pool for dsn and verifies it is reachable.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgstore: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	return pool, nil
}

// Provider hands out connections taken from a Pool.
type Provider struct {
	pool   Pool
	logger observe.Logger
}

var _ resource.Provider[*Conn] = (*Provider)(nil)

// NewProvider creates a provider over pool. A nil logger disables query
// logging.
func NewProvider(pool Pool, logger observe.Logger) *Provider {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &Provider{pool: pool, logger: logger}
}

// Acquire takes a connection from the pool and holds it until Release.
// Every statement and transaction on the returned Conn runs on it.
func (p *Provider) Acquire(ctx context.Context) (*Conn, error) {
	if p.pool == nil {
		return nil, ErrNilPool
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pc, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("pgstore: acquire connection: %w", err)
	}
	return &Conn{conn: pc, logger: p.logger}, nil
}

// Release rolls back a transaction left open on c and returns its
// connection to the pool.
func (p *Provider) Release(ctx context.Context, c *Conn) error {
	if c == nil || c.conn == nil {
		return nil
	}
	var err error
	if c.tx != nil {
		err = c.tx.Rollback(ctx)
		c.tx = nil
	}
	c.conn.Release()
	c.conn = nil
	return err
}

// Conn is one acquired connection. A Conn must not be shared between
// goroutines.
type Conn struct {
	conn   PoolConn
	tx     pgx.Tx
	logger observe.Logger
}

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (c *Conn) target() querier {
	if c.tx != nil {
		return c.tx
	}
	return c.conn
}

// InTx reports whether a transaction is open on the connection.
func (c *Conn) InTx() bool { return c.tx != nil }

// Exec runs a statement that returns no rows.
func (c *Conn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	start := c.logStart(ctx, sql)
	tag, err := c.target().Exec(ctx, sql, args...)
	c.logDone(ctx, sql, start, err)
	return tag, translate(err)
}

// Query runs a statement that returns rows.
func (c *Conn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	start := c.logStart(ctx, sql)
	rows, err := c.target().Query(ctx, sql, args...)
	c.logDone(ctx, sql, start, err)
	return rows, translate(err)
}

// QueryRow runs a statement expected to return at most one row. Errors are
// deferred to Scan; use Err to apply conflict translation.
func (c *Conn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	start := c.logStart(ctx, sql)
	row := c.target().QueryRow(ctx, sql, args...)
	c.logDone(ctx, sql, start, nil)
	return row
}

// Err translates a failure returned by a Row or Rows obtained from c.
func (c *Conn) Err(err error) error { return translate(err) }

func (c *Conn) logStart(ctx context.Context, sql string) time.Time {
	c.logger.Debug(ctx, "executing query", observe.F("query", sql), observe.F("tx", c.tx != nil))
	return time.Now()
}

func (c *Conn) logDone(ctx context.Context, sql string, start time.Time, err error) {
	fields := []observe.Field{
		observe.F("query", sql),
		observe.F("duration_ms", float64(time.Since(start).Microseconds())/1000),
	}
	if err != nil {
		c.logger.Debug(ctx, "query failed", append(fields, observe.F("error", err))...)
		return
	}
	c.logger.Debug(ctx, "query executed", fields...)
}
