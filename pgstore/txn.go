package pgstore

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/jonwraymond/dbops/txn"
)

// Directives issues transaction control on a *Conn.
type Directives struct {
	// Options are passed to BeginTx when non-zero.
	Options pgx.TxOptions
}

var _ txn.Directives[*Conn] = Directives{}

// Begin opens a transaction on c.
func (d Directives) Begin(ctx context.Context, c *Conn) error {
	if c.tx != nil {
		return ErrTxActive
	}
	var (
		tx  pgx.Tx
		err error
	)
	if d.Options == (pgx.TxOptions{}) {
		tx, err = c.conn.Begin(ctx)
	} else {
		tx, err = c.conn.BeginTx(ctx, d.Options)
	}
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
	err := c.tx.Commit(ctx)
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
	err := c.tx.Rollback(ctx)
	c.tx = nil
	if err != nil {
		return translate(err)
	}
	c.logger.Debug(ctx, "transaction rolled back")
	return nil
}
