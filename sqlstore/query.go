package sqlstore

import (
	"context"
	"database/sql"

	"github.com/jonwraymond/dbops/resource"
)

// ExecuteQuery acquires a connection from provider, runs query, and returns
// every row as a column-name map. The connection is released before
// ExecuteQuery returns. TEXT and BLOB values are returned as strings.
func ExecuteQuery(ctx context.Context, provider resource.Provider[*Conn], query string, args ...any) ([]map[string]any, error) {
	var out []map[string]any
	err := resource.NewScope(provider, resource.ScopeConfig{}).Run(ctx, func(ctx context.Context, c *Conn) error {
		rows, err := c.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out, err = scanMaps(rows)
		return c.Err(err)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scanMaps(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
