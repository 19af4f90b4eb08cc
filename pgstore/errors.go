package pgstore

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jonwraymond/dbops/resilience"
)

// SQLSTATE codes translated to ErrConflict.
const (
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
)

var (
	// ErrConflict indicates the transaction lost a serialization race or a
	// deadlock and may succeed when run again.
	ErrConflict = errors.New("pgstore: transaction conflict")

	// ErrNilPool indicates a Provider without a pool.
	ErrNilPool = errors.New("pgstore: pool is nil")

	// ErrTxActive indicates Begin on a connection that already has an open
	// transaction.
	ErrTxActive = errors.New("pgstore: transaction already active")

	// ErrNoTx indicates Commit or Rollback without an open transaction.
	ErrNoTx = errors.New("pgstore: no active transaction")
)

func translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case CodeSerializationFailure, CodeDeadlockDetected:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		}
	}
	return err
}

// IsConflict reports whether err is a serialization failure or deadlock.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// Classify is a resilience.Classifier that retries only conflicts.
var Classify resilience.Classifier = resilience.RetryOn(ErrConflict)
