package sqlstore

import (
	"context"
	"database/sql"

	"github.com/jonwraymond/dbops/txn"
)

// Directives issues transaction control on a *Conn.
type Directives struct {
	// Options are passed to BeginTx. Nil uses the driver default
	// (deferred transaction).
	Options *sql.TxOptions
}

var _ txn.Directives[*Conn] = Directives{}

// Begin opens a transaction on c. The transaction is not bound to ctx:
// database/sql would otherwise roll it back and discard the connection on
// cancellation, leaving nothing for Rollback and Release to act on.
// Statements still observe the ctx they are issued with.
func (d Directives) Begin(ctx context.Context, c *Conn) error {
	if c.tx != nil {
		return ErrTxActive
	}
	tx, err := c.conn.BeginTx(context.WithoutCancel(ctx), d.Options)
	if err != nil {
		return translate(err)
	}
	c.tx = tx
	c.logger.Debug(ctx, "transaction begun")
	return nil
}

// Commit commits the open transaction on c.
func (d Directives) Commit(ctx context.Context, c *Conn) error {
	if c.tx == nil {
		return ErrNoTx
	}
	err := c.tx.Commit()
	// database/sql invalidates the Tx whether or not COMMIT succeeded.
	c.tx = nil
	if err != nil {
		return translate(err)
	}
	c.logger.Debug(ctx, "transaction committed")
	return nil
}

// Rollback discards the open transaction on c.
func (d Directives) Rollback(ctx context.Context, c *Conn) error {
	if c.tx == nil {
		return ErrNoTx
	}
	err := c.tx.Rollback()
	c.tx = nil
	if err != nil {
		return translate(err)
	}
	c.logger.Debug(ctx, "transaction rolled back")
	return nil
}
