package storage

import (
	"context"
	"database/sql"
	"time"
)

// Seed fills the catalog with a few books when it is empty.
func (db *DB) Seed(ctx context.Context) (bool, error) {
	seeded := false
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		var c int64
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM books`).Scan(&c); err != nil {
			return err
		}
		if c > 0 {
			return nil
		}
		inserts := [][]any{
			{"The Go Programming Language", "Alan A. A. Donovan, Brian W. Kernighan", 3999, 10},
			{"Designing Data-Intensive Applications", "Martin Kleppmann", 4550, 5},
			{"Cien años de soledad", "Gabriel García Márquez", 2500, 0},
			{"Concurrency in Go", "Katherine Cox-Buday", 3499, 20},
			{"The Pragmatic Programmer", "David Thomas, Andrew Hunt", 4200, 1},
		}
		now := time.Now().Unix()
		for _, v := range inserts {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO books(title, author, price_cents, available_quantity, created_unix)
VALUES(?,?,?,?,?)`, append(v, now)...); err != nil {
				return err
			}
		}
		seeded = true
		return nil
	})
	return seeded, err
}
