// Package txn wraps a unit of work in a single transaction on a borrowed
// resource handle.
//
// A Wrapper issues Begin, runs the body, and then issues exactly one of
// Commit (the body succeeded) or Rollback (the body failed, panicked, or its
// context was cancelled). The wrapper never owns the handle; releasing it is
// the caller's job, usually a resource.Scope.
//
// State transitions follow a small machine:
//
//	Idle --Begin--> Active --Commit--> Committed
//	                       --Rollback--> RolledBack
//
// A failed Commit is returned as *Error and is not followed by an implicit
// Rollback; what happens to a transaction whose commit failed is up to the
// driver.
package txn
