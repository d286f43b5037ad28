package storage

import (
	"context"
	"database/sql"
)

// Collect scans every row with scan and closes rows. Scan and iteration
// errors are classified the same way as query errors. The result is never nil.
func Collect[T any](ctx context.Context, db *DB, rows *sql.Rows, scan func(*sql.Rows) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, db.Read(ctx, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Read(ctx, err)
	}
	return out, nil
}
