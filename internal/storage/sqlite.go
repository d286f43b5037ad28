package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	_ "github.com/mattn/go-sqlite3" // cgo driver, registered as "sqlite3"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // driver 100% Go, registered as "sqlite"
)

const (
	DriverModernc = "sqlite"
	DriverCgo     = "sqlite3"
)

type Options struct {
	Driver     string
	Path       string
	MaxConns   int
	TxAttempts int
	TxBackoff  time.Duration

	// BusyTimeout is how long a statement waits on a locked database before
	// failing with SQLITE_BUSY. Zero means 5s.
	BusyTimeout time.Duration
}

// DB is the shared bookstore database. Every multi-row mutation goes
// through WithTx.
type DB struct {
	*sql.DB
	driver string
	tx     TxOptions
}

func Open(ctx context.Context, opts Options) (*DB, error) {
	if opts.Driver == "" {
		opts.Driver = DriverModernc
	}
	if opts.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, err
		}
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}
	dsn, err := buildDSN(opts.Driver, opts.Path, opts.BusyTimeout)
	if err != nil {
		return nil, err
	}
	sqldb, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, err
	}
	maxConns := opts.MaxConns
	if maxConns <= 0 || opts.Path == ":memory:" {
		// every :memory: connection would be its own database
		maxConns = 1
	}
	sqldb.SetMaxOpenConns(maxConns)
	sqldb.SetConnMaxIdleTime(2 * time.Minute)

	db := &DB{
		DB:     sqldb,
		driver: opts.Driver,
		tx:     TxOptions{Attempts: opts.TxAttempts, Backoff: opts.TxBackoff}.withDefaults(),
	}
	if err := db.migrate(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if st, err := os.Stat(opts.Path); err == nil {
		log.Info().
			Str("driver", opts.Driver).
			Str("path", opts.Path).
			Str("size", humanize.Bytes(uint64(st.Size()))).
			Msg("database opened")
	}
	return db, nil
}

// buildDSN enables WAL, a busy timeout, foreign keys and BEGIN IMMEDIATE
// so the first statement of a transaction already holds the write lock.
func buildDSN(driver, path string, busy time.Duration) (string, error) {
	ms := busy.Milliseconds()
	switch driver {
	case DriverModernc:
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_txlock=immediate", path, ms), nil
	case DriverCgo:
		return fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate", path, ms), nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q", driver)
	}
}

func (db *DB) Driver() string { return db.driver }

func (db *DB) migrate(ctx context.Context) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS users(
  id            INTEGER PRIMARY KEY AUTOINCREMENT,
  user_name     TEXT NOT NULL UNIQUE,
  email         TEXT NOT NULL UNIQUE,
  full_name     TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL,
  created_unix  INTEGER NOT NULL,
  updated_unix  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS books(
  id                 INTEGER PRIMARY KEY AUTOINCREMENT,
  title              TEXT NOT NULL,
  author             TEXT NOT NULL DEFAULT '',
  price_cents        INTEGER NOT NULL CHECK(price_cents >= 0),
  available_quantity INTEGER NOT NULL CHECK(available_quantity >= 0),
  created_unix       INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS carts(
  id      INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS cart_items(
  id       INTEGER PRIMARY KEY AUTOINCREMENT,
  cart_id  INTEGER NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
  book_id  INTEGER NOT NULL REFERENCES books(id),
  quantity INTEGER NOT NULL CHECK(quantity > 0),
  UNIQUE(cart_id, book_id)
);
CREATE TABLE IF NOT EXISTS orders(
  id               INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id          INTEGER NOT NULL,
  total_cents      INTEGER NOT NULL,
  recipient_name   TEXT NOT NULL,
  shipping_address TEXT NOT NULL,
  created_unix     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS order_items(
  id               INTEGER PRIMARY KEY AUTOINCREMENT,
  order_id         INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  book_id          INTEGER NOT NULL,
  title            TEXT NOT NULL,
  quantity         INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cart_items_cart ON cart_items(cart_id);
CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);
CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);
`
