package sqlstore

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/jonwraymond/dbops/resilience"
)

var (
	// ErrBusy indicates the database was locked by another connection.
	ErrBusy = errors.New("sqlstore: database is busy")

	// ErrNilDB indicates a Provider without a *sql.DB.
	ErrNilDB = errors.New("sqlstore: db is nil")

	// ErrTxActive indicates Begin on a connection that already has an open
	// transaction.
	ErrTxActive = errors.New("sqlstore: transaction already active")

	// ErrNoTx indicates Commit or Rollback without an open transaction.
	ErrNoTx = errors.New("sqlstore: no active transaction")
)

// translate tags SQLITE_BUSY and SQLITE_LOCKED failures with ErrBusy. The
// driver error stays in the chain.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return fmt.Errorf("%w: %w", ErrBusy, err)
	}
	return err
}

// IsBusy reports whether err is a lock contention failure.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}

// Classify is a resilience.Classifier that retries only lock contention.
func Classify(err error) resilience.Classification {
	return busyOnly(err)
}

var busyOnly = resilience.RetryOn(ErrBusy)
