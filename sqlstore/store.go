package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jonwraymond/dbops/observe"
	"github.com/jonwraymond/dbops/resource"
)

// DefaultBusyTimeout is how long SQLite waits on a lock before reporting
// SQLITE_BUSY, unless the path already carries connection parameters.
const DefaultBusyTimeout = 5 * time.Second

// Open opens the SQLite database at path and verifies it is reachable.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn = fmt.Sprintf("%s?_busy_timeout=%d", path, DefaultBusyTimeout.Milliseconds())
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: open %s: %w", path, err)
	}
	return db, nil
}

// Provider hands out exclusive connections from a *sql.DB.
type Provider struct {
	db     *sql.DB
	logger observe.Logger
}

var _ resource.Provider[*Conn] = (*Provider)(nil)

// NewProvider creates a provider over db. A nil logger disables query
// logging.
func NewProvider(db *sql.DB, logger observe.Logger) *Provider {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &Provider{db: db, logger: logger}
}

// Acquire checks out a dedicated connection from the pool.
func (p *Provider) Acquire(ctx context.Context) (*Conn, error) {
	if p.db == nil {
		return nil, ErrNilDB
	}
	c, err := p.db.Conn(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return &Conn{conn: c, logger: p.logger}, nil
}

// Release returns the connection to the pool. A transaction left open is
// rolled back first.
func (p *Provider) Release(ctx context.Context, c *Conn) error {
	if c == nil {
		return nil
	}
	var rbErr error
	if c.tx != nil {
		rbErr = c.tx.Rollback()
		c.tx = nil
	}
	if err := c.conn.Close(); err != nil {
		return err
	}
	return rbErr
}

// Conn is one exclusive connection. Statements run inside the active
// transaction when there is one. A Conn must not be shared between
// goroutines.
type Conn struct {
	conn   *sql.Conn
	tx     *sql.Tx
	logger observe.Logger
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (c *Conn) target() execer {
	if c.tx != nil {
		return c.tx
	}
	return c.conn
}

// InTx reports whether a transaction is open on the connection.
func (c *Conn) InTx() bool { return c.tx != nil }

// Exec runs a statement that returns no rows.
func (c *Conn) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := c.logStart(ctx, query)
	res, err := c.target().ExecContext(ctx, query, args...)
	c.logDone(ctx, query, start, err)
	return res, translate(err)
}

// Query runs a statement that returns rows.
func (c *Conn) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := c.logStart(ctx, query)
	rows, err := c.target().QueryContext(ctx, query, args...)
	c.logDone(ctx, query, start, err)
	return rows, translate(err)
}

// QueryRow runs a statement expected to return at most one row. Errors are
// deferred to Scan; use Err to apply busy translation.
func (c *Conn) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	start := c.logStart(ctx, query)
	row := c.target().QueryRowContext(ctx, query, args...)
	c.logDone(ctx, query, start, row.Err())
	return row
}

// Err translates a failure returned by a Row or Rows obtained from c.
func (c *Conn) Err(err error) error { return translate(err) }

func (c *Conn) logStart(ctx context.Context, query string) time.Time {
	c.logger.Debug(ctx, "executing query", observe.F("query", query), observe.F("tx", c.tx != nil))
	return time.Now()
}

func (c *Conn) logDone(ctx context.Context, query string, start time.Time, err error) {
	fields := []observe.Field{
		observe.F("query", query),
		observe.F("duration_ms", float64(time.Since(start).Microseconds())/1000),
	}
	if err != nil {
		c.logger.Debug(ctx, "query failed", append(fields, observe.F("error", err))...)
		return
	}
	c.logger.Debug(ctx, "query executed", fields...)
}
