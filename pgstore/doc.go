// Package pgstore adapts PostgreSQL (jackc/pgx/v5) to the resource and txn
// layers.
//
// A Provider acquires one pool connection per call and holds it until
// Release, so every retry attempt of a call runs on the same connection.
// Directives begin a pgx.Tx on it; every statement issued through the Conn
// while the transaction is open runs inside it. FromPool adapts a
// *pgxpool.Pool and Single serves one dedicated connection.
// Conn satisfies pgxscan.Querier so results can be scanned with scany.
//
// Serialization failures and deadlocks are reported as ErrConflict, which
// Classify marks retryable.
package pgstore
