package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ahinestrog/onlinebookstore/internal/apperr"
)

type TxOptions struct {
	Attempts int
	Backoff  time.Duration
}

func (o TxOptions) withDefaults() TxOptions {
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = 50 * time.Millisecond
	}
	return o
}

// WithTx runs fn in one transaction, committing only when fn returns nil.
// Lock contention is retried up to Attempts times with linear backoff and
// then reported as apperr.Conflict. fn may run more than once.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = db.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return classify(ctx, err)
		}
		if attempt >= db.tx.Attempts {
			log.Warn().Err(err).Int("attempts", attempt).Msg("transaction retries exhausted")
			return apperr.Wrap(apperr.Conflict, err, "storage contention, try again")
		}
		select {
		case <-ctx.Done():
			return apperr.Wrap(apperr.Unavailable, ctx.Err(), "request cancelled")
		case <-time.After(db.tx.Backoff * time.Duration(attempt)):
		}
	}
}

func (db *DB) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Read wraps errors from plain (non-transactional) queries the same way.
func (db *DB) Read(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if isBusy(err) {
		return apperr.Wrap(apperr.Conflict, err, "storage contention, try again")
	}
	return classify(ctx, err)
}

func classify(ctx context.Context, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return apperr.Wrap(apperr.Unavailable, err, "storage unavailable")
	}
	if errors.Is(err, sql.ErrConnDone) {
		return apperr.Wrap(apperr.Unavailable, err, "storage unavailable")
	}
	return err
}

func isBusy(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	// the cgo driver reports the same condition through its message
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// IsUniqueViolation reports a UNIQUE or PRIMARY KEY constraint failure.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
