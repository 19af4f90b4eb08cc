// Package users is the sample domain driven through the pipeline: a user
// table with lookups, an email update, seeding from CSV, and row streaming
// that never materializes the whole table.
//
// Repository functions take the handle the pipeline hands to the body, so
// they run inside whatever transaction is active:
//
//	u, err := pipeline.Run(ctx, p, pipeline.Operation[*sqlstore.Conn, users.User]{
//	    ID:   "users.get",
//	    Args: []any{id},
//	    Body: func(ctx context.Context, c *sqlstore.Conn) (users.User, error) {
//	        return users.SQLite.Get(ctx, c, id)
//	    },
//	})
package users
