// Package resource scopes the lifetime of a resource handle to a single call.
//
// A Scope acquires one handle from a Provider, passes it to the unit of
// work, and releases it on every exit path: normal return, error, panic,
// or cancellation of the caller's context.
//
//	scope := resource.NewScope[*sqlstore.Conn](provider, resource.ScopeConfig{})
//
//	err := scope.Run(ctx, func(ctx context.Context, conn *sqlstore.Conn) error {
//	    _, err := conn.Exec(ctx, "UPDATE users SET email = ? WHERE id = ?", email, id)
//	    return err
//	})
//
// Acquisition and release failures are reported as *Error and are never
// retried by the scope itself.
package resource
