package checkout

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ahinestrog/onlinebookstore/internal/apperr"
	"github.com/ahinestrog/onlinebookstore/internal/domain"
	"github.com/ahinestrog/onlinebookstore/internal/storage"
)

type Repository interface {
	// PlaceOrder turns the user's cart into an order and empties the cart.
	PlaceOrder(ctx context.Context, userID int64, recipient, address string) (*domain.Order, error)
}

type sqliteRepo struct {
	db  *storage.DB
	now func() time.Time
}

func NewSQLiteRepo(db *storage.DB) Repository {
	return &sqliteRepo{db: db, now: time.Now}
}

type line struct {
	itemID     int64
	bookID     int64
	title      string
	qty        int
	priceCents int64
}

func (r *sqliteRepo) PlaceOrder(ctx context.Context, userID int64, recipient, address string) (*domain.Order, error) {
	var order *domain.Order
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var cartID int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM carts WHERE user_id=?`, userID).Scan(&cartID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.EmptyCart, "Cart is empty.")
		}
		if err != nil {
			return err
		}

		lines, err := cartLines(ctx, tx, cartID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return apperr.New(apperr.EmptyCart, "Cart is empty.")
		}
		if recipient == "" || address == "" {
			return apperr.New(apperr.Invalid, "recipientName and shippingAddress are required")
		}

		var totalCents int64
		for _, l := range lines {
			totalCents += l.priceCents * int64(l.qty)
		}
		created := r.now().UTC()

		res, err := tx.ExecContext(ctx, `
			INSERT INTO orders(user_id, total_cents, recipient_name, shipping_address, created_unix)
			VALUES(?,?,?,?,?)`, userID, totalCents, recipient, address, created.Unix())
		if err != nil {
			return err
		}
		oid, err := res.LastInsertId()
		if err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO order_items(order_id, book_id, title, quantity, unit_price_cents)
			VALUES(?,?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		o := &domain.Order{
			ID:              oid,
			UserID:          userID,
			TotalAmount:     domain.FromCents(totalCents),
			RecipientName:   recipient,
			ShippingAddress: address,
			OrderDate:       time.Unix(created.Unix(), 0).UTC(),
			Items:           make([]domain.OrderItem, 0, len(lines)),
		}
		for _, l := range lines {
			if _, err := stmt.ExecContext(ctx, oid, l.bookID, l.title, l.qty, l.priceCents); err != nil {
				return err
			}
			o.Items = append(o.Items, domain.OrderItem{
				BookID:    l.bookID,
				Title:     l.title,
				Quantity:  l.qty,
				UnitPrice: domain.FromCents(l.priceCents),
			})
		}

		// Stock was already taken when the lines were added; only the lines go.
		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id=?`, cartID); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func cartLines(ctx context.Context, tx *sql.Tx, cartID int64) ([]line, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT ci.id, ci.book_id, b.title, ci.quantity, b.price_cents
		FROM cart_items ci JOIN books b ON b.id = ci.book_id
		WHERE ci.cart_id=? ORDER BY ci.id`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.itemID, &l.bookID, &l.title, &l.qty, &l.priceCents); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
