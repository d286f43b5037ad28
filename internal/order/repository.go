package order

import (
	"context"
	"database/sql"
	"time"

	"github.com/ahinestrog/onlinebookstore/internal/domain"
	"github.com/ahinestrog/onlinebookstore/internal/storage"
)

type Repository interface {
	ListByUser(ctx context.Context, userID int64) ([]domain.Order, error)
}

type sqliteRepo struct{ db *storage.DB }

func NewSQLiteRepo(db *storage.DB) Repository { return &sqliteRepo{db: db} }

func (r *sqliteRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, total_cents, recipient_name, shipping_address, created_unix
		FROM orders WHERE user_id=? ORDER BY id`, userID)
	if err != nil {
		return nil, r.db.Read(ctx, err)
	}
	out, err := storage.Collect(ctx, r.db, rows, scanOrder)
	if err != nil {
		return nil, err
	}

	for i := range out {
		items, err := r.listItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func (r *sqliteRepo) listItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT book_id, title, quantity, unit_price_cents
		FROM order_items WHERE order_id=? ORDER BY id`, orderID)
	if err != nil {
		return nil, r.db.Read(ctx, err)
	}
	return storage.Collect(ctx, r.db, rows, scanOrderItem)
}

func scanOrder(rows *sql.Rows) (domain.Order, error) {
	var (
		o       domain.Order
		cents   int64
		created int64
	)
	if err := rows.Scan(&o.ID, &o.UserID, &cents, &o.RecipientName, &o.ShippingAddress, &created); err != nil {
		return o, err
	}
	o.TotalAmount = domain.FromCents(cents)
	o.OrderDate = time.Unix(created, 0).UTC()
	return o, nil
}

func scanOrderItem(rows *sql.Rows) (domain.OrderItem, error) {
	var (
		it    domain.OrderItem
		cents int64
	)
	if err := rows.Scan(&it.BookID, &it.Title, &it.Quantity, &cents); err != nil {
		return it, err
	}
	it.UnitPrice = domain.FromCents(cents)
	return it, nil
}
