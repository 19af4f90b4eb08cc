// Package sqlstore adapts SQLite (database/sql with mattn/go-sqlite3) to the
// resource and txn layers.
//
// A Provider hands out one exclusive *Conn per call; Directives drive
// BEGIN/COMMIT/ROLLBACK on that connection. While a transaction is active,
// every statement issued through the Conn runs inside it.
//
//	db, err := sqlstore.Open(ctx, "users.db")
//	provider := sqlstore.NewProvider(db, logger)
//	p := pipeline.New[*sqlstore.Conn](provider, sqlstore.Directives{},
//	    pipeline.WithRetry(resilience.RetryConfig{
//	        MaxAttempts: 3,
//	        Delay:       50 * time.Millisecond,
//	        Classifier:  sqlstore.Classify,
//	    }),
//	)
//
// Lock contention ("database is locked", SQLITE_BUSY) is reported as ErrBusy
// so retry classifiers can single it out.
package sqlstore
