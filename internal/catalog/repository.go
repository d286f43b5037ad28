package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/ahinestrog/onlinebookstore/internal/apperr"
	"github.com/ahinestrog/onlinebookstore/internal/domain"
	"github.com/ahinestrog/onlinebookstore/internal/storage"
)

type Repository interface {
	Count(ctx context.Context, q string) (int64, error)
	List(ctx context.Context, q string, limit, offset int) ([]domain.Book, error)
	Get(ctx context.Context, id int64) (*domain.Book, error)
	Create(ctx context.Context, b domain.Book) (*domain.Book, error)
	Restock(ctx context.Context, id int64, qty int) (*domain.Book, error)
}

type sqliteRepo struct{ db *storage.DB }

func NewSQLiteRepo(db *storage.DB) Repository { return &sqliteRepo{db: db} }

const bookColumns = `id,title,author,price_cents,available_quantity,created_unix`

type scanner interface {
	Scan(dest ...any) error
}

func scanBook(s scanner) (domain.Book, error) {
	var (
		b       domain.Book
		cents   int64
		created int64
	)
	if err := s.Scan(&b.ID, &b.Title, &b.Author, &cents, &b.AvailableQuantity, &created); err != nil {
		return b, err
	}
	b.Price = domain.FromCents(cents)
	b.CreatedAt = time.Unix(created, 0).UTC()
	return b, nil
}

func likePattern(q string) string { return "%" + strings.ToLower(strings.TrimSpace(q)) + "%" }

func (r *sqliteRepo) Count(ctx context.Context, q string) (int64, error) {
	var c int64
	var err error
	if strings.TrimSpace(q) == "" {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM books`).Scan(&c)
	} else {
		qp := likePattern(q)
		err = r.db.QueryRowContext(ctx, `
			SELECT COUNT(1) FROM books
			WHERE lower(title) LIKE ? OR lower(author) LIKE ?`, qp, qp).Scan(&c)
	}
	return c, r.db.Read(ctx, err)
}

func (r *sqliteRepo) List(ctx context.Context, q string, limit, offset int) ([]domain.Book, error) {
	var rows *sql.Rows
	var err error
	if strings.TrimSpace(q) == "" {
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+bookColumns+`
			FROM books ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	} else {
		qp := likePattern(q)
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+bookColumns+`
			FROM books
			WHERE lower(title) LIKE ? OR lower(author) LIKE ?
			ORDER BY id LIMIT ? OFFSET ?`, qp, qp, limit, offset)
	}
	if err != nil {
		return nil, r.db.Read(ctx, err)
	}
	return storage.Collect(ctx, r.db, rows, func(rows *sql.Rows) (domain.Book, error) {
		return scanBook(rows)
	})
}

func (r *sqliteRepo) Get(ctx context.Context, id int64) (*domain.Book, error) {
	b, err := scanBook(r.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id=?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "book %d not found", id)
		}
		return nil, r.db.Read(ctx, err)
	}
	return &b, nil
}

func (r *sqliteRepo) Create(ctx context.Context, b domain.Book) (*domain.Book, error) {
	var created domain.Book
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO books(title, author, price_cents, available_quantity, created_unix)
			VALUES(?,?,?,?,?)`,
			b.Title, b.Author, domain.ToCents(b.Price), b.AvailableQuantity, time.Now().Unix())
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		created, err = scanBook(tx.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id=?`, id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *sqliteRepo) Restock(ctx context.Context, id int64, qty int) (*domain.Book, error) {
	var b domain.Book
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE books SET available_quantity = available_quantity + ? WHERE id=?`, qty, id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return apperr.New(apperr.NotFound, "book %d not found", id)
		}
		b, err = scanBook(tx.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id=?`, id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}
