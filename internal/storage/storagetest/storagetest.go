// Package storagetest opens throwaway bookstore databases for tests.
package storagetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ahinestrog/onlinebookstore/internal/storage"
)

// Open returns a migrated database in a temp dir, closed on cleanup.
func Open(t testing.TB) *storage.DB {
	t.Helper()
	db, err := storage.Open(context.Background(), storage.Options{
		Path:       filepath.Join(t.TempDir(), "bookstore.db"),
		MaxConns:   8,
		TxAttempts: 20,
		TxBackoff:  2 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// Book inserts a book priced in cents and returns its id.
func Book(t testing.TB, db *storage.DB, title string, priceCents int64, qty int) int64 {
	t.Helper()
	res, err := db.ExecContext(context.Background(), `
		INSERT INTO books(title, author, price_cents, available_quantity, created_unix)
		VALUES(?, 'test author', ?, ?, ?)`, title, priceCents, qty, time.Now().Unix())
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// User inserts a user with an unusable password hash and returns its id.
func User(t testing.TB, db *storage.DB, name string) int64 {
	t.Helper()
	now := time.Now().Unix()
	res, err := db.ExecContext(context.Background(), `
		INSERT INTO users(user_name, email, full_name, password_hash, created_unix, updated_unix)
		VALUES(?, ?, ?, 'x', ?, ?)`, name, name+"@example.com", name, now, now)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// Stock reads a book's available quantity.
func Stock(t testing.TB, db *storage.DB, bookID int64) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(context.Background(),
		`SELECT available_quantity FROM books WHERE id=?`, bookID).Scan(&n))
	return n
}

// Count runs SELECT COUNT(1) FROM table.
func Count(t testing.TB, db *storage.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), `SELECT COUNT(1) FROM `+table).Scan(&n))
	return n
}
