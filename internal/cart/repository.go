package cart

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ahinestrog/onlinebookstore/internal/apperr"
	"github.com/ahinestrog/onlinebookstore/internal/domain"
	"github.com/ahinestrog/onlinebookstore/internal/storage"
)

// Repository applies cart mutations together with the matching stock
// change, each in a single transaction.
type Repository interface {
	Get(ctx context.Context, userID int64) (*domain.Cart, error)
	Add(ctx context.Context, userID, bookID int64, qty int) (domain.CartItem, error)
	Update(ctx context.Context, userID, itemID int64, qty int) (domain.CartItem, int, error)
	Remove(ctx context.Context, userID, itemID int64) (domain.CartItem, error)
}

type sqliteRepo struct{ db *storage.DB }

func NewSQLiteRepo(db *storage.DB) Repository { return &sqliteRepo{db: db} }

func (r *sqliteRepo) Get(ctx context.Context, userID int64) (*domain.Cart, error) {
	cart := domain.Cart{UserID: userID, Items: []domain.CartItem{}}
	err := r.db.QueryRowContext(ctx, `SELECT id FROM carts WHERE user_id=?`, userID).Scan(&cart.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return &cart, nil
	}
	if err != nil {
		return nil, r.db.Read(ctx, err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT ci.id, ci.book_id, b.title, ci.quantity
		FROM cart_items ci JOIN books b ON b.id = ci.book_id
		WHERE ci.cart_id=? ORDER BY ci.id`, cart.ID)
	if err != nil {
		return nil, r.db.Read(ctx, err)
	}
	cart.Items, err = storage.Collect(ctx, r.db, rows, func(rows *sql.Rows) (domain.CartItem, error) {
		var it domain.CartItem
		err := rows.Scan(&it.ID, &it.BookID, &it.Title, &it.Quantity)
		return it, err
	})
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *sqliteRepo) Add(ctx context.Context, userID, bookID int64, qty int) (domain.CartItem, error) {
	var line domain.CartItem
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var available int
		err := tx.QueryRowContext(ctx,
			`SELECT title, available_quantity FROM books WHERE id=?`, bookID).
			Scan(&line.Title, &available)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.NotFound, "book %d not found", bookID)
		}
		if err != nil {
			return err
		}
		if qty > available {
			return insufficient(bookID, available)
		}
		if err := reserve(ctx, tx, bookID, qty); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO carts(user_id) VALUES(?) ON CONFLICT(user_id) DO NOTHING`, userID); err != nil {
			return err
		}
		var cartID int64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM carts WHERE user_id=?`, userID).Scan(&cartID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cart_items(cart_id, book_id, quantity)
			VALUES (?, ?, ?)
			ON CONFLICT(cart_id, book_id)
			DO UPDATE SET quantity = quantity + excluded.quantity`,
			cartID, bookID, qty); err != nil {
			return err
		}
		line.BookID = bookID
		return tx.QueryRowContext(ctx,
			`SELECT id, quantity FROM cart_items WHERE cart_id=? AND book_id=?`, cartID, bookID).
			Scan(&line.ID, &line.Quantity)
	})
	return line, err
}

// Update sets the line quantity and returns the line with the previous quantity.
func (r *sqliteRepo) Update(ctx context.Context, userID, itemID int64, qty int) (domain.CartItem, int, error) {
	var (
		line domain.CartItem
		old  int
	)
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		line, err = ownedLine(ctx, tx, userID, itemID)
		if err != nil {
			return err
		}
		old = line.Quantity
		switch delta := qty - old; {
		case delta > 0:
			if err := reserve(ctx, tx, line.BookID, delta); err != nil {
				return err
			}
		case delta < 0:
			if err := release(ctx, tx, line.BookID, -delta); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE cart_items SET quantity=? WHERE id=?`, qty, itemID); err != nil {
			return err
		}
		line.Quantity = qty
		return nil
	})
	return line, old, err
}

func (r *sqliteRepo) Remove(ctx context.Context, userID, itemID int64) (domain.CartItem, error) {
	var line domain.CartItem
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		line, err = ownedLine(ctx, tx, userID, itemID)
		if err != nil {
			return err
		}
		if err := release(ctx, tx, line.BookID, line.Quantity); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM cart_items WHERE id=?`, itemID)
		return err
	})
	return line, err
}

// ownedLine loads a cart line only if it belongs to userID's cart.
func ownedLine(ctx context.Context, tx *sql.Tx, userID, itemID int64) (domain.CartItem, error) {
	var it domain.CartItem
	err := tx.QueryRowContext(ctx, `
		SELECT ci.id, ci.book_id, b.title, ci.quantity
		FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		JOIN books b ON b.id = ci.book_id
		WHERE ci.id=? AND c.user_id=?`, itemID, userID).
		Scan(&it.ID, &it.BookID, &it.Title, &it.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return it, apperr.New(apperr.NotFound, "cart item %d not found", itemID)
	}
	return it, err
}

// reserve moves qty units from stock into a cart. The WHERE clause keeps
// available_quantity from going negative even if the caller's read is stale.
func reserve(ctx context.Context, tx *sql.Tx, bookID int64, qty int) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE books SET available_quantity = available_quantity - ?
		WHERE id=? AND available_quantity >= ?`, qty, bookID, qty)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var available int
		if err := tx.QueryRowContext(ctx,
			`SELECT available_quantity FROM books WHERE id=?`, bookID).Scan(&available); err != nil {
			return err
		}
		return insufficient(bookID, available)
	}
	return nil
}

func release(ctx context.Context, tx *sql.Tx, bookID int64, qty int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE books SET available_quantity = available_quantity + ? WHERE id=?`, qty, bookID)
	return err
}

func insufficient(bookID int64, available int) error {
	return apperr.New(apperr.InsufficientStock, "not enough stock for book %d (%d available)", bookID, available)
}

// ReleaseUserCart returns every unit reserved in userID's cart to stock and
// deletes the cart. It runs inside the caller's transaction.
func ReleaseUserCart(ctx context.Context, tx *sql.Tx, userID int64) (int, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT ci.book_id, ci.quantity
		FROM cart_items ci JOIN carts c ON c.id = ci.cart_id
		WHERE c.user_id=? ORDER BY ci.id`, userID)
	if err != nil {
		return 0, err
	}
	type reserved struct {
		bookID int64
		qty    int
	}
	var lines []reserved
	for rows.Next() {
		var l reserved
		if err := rows.Scan(&l.bookID, &l.qty); err != nil {
			rows.Close()
			return 0, err
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	units := 0
	for _, l := range lines {
		if err := release(ctx, tx, l.bookID, l.qty); err != nil {
			return 0, err
		}
		units += l.qty
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id IN (SELECT id FROM carts WHERE user_id=?)`, userID); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM carts WHERE user_id=?`, userID); err != nil {
		return 0, err
	}
	return units, nil
}
