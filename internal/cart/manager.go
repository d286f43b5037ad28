// Package cart keeps each user's shopping cart. Adding a book reserves its
// stock immediately; updating or removing a line gives the difference back.
package cart

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/ahinestrog/onlinebookstore/internal/apperr"
	"github.com/ahinestrog/onlinebookstore/internal/domain"
	"github.com/ahinestrog/onlinebookstore/internal/events"
	"github.com/ahinestrog/onlinebookstore/internal/metrics"
)

type Manager struct {
	repo    Repository
	events  events.Publisher
	metrics *metrics.Metrics
}

func NewManager(repo Repository, pub events.Publisher, m *metrics.Metrics) *Manager {
	return &Manager{repo: repo, events: pub, metrics: m}
}

// GetCart returns an empty cart, not an error, when the user has none yet.
func (m *Manager) GetCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	return m.repo.Get(ctx, userID)
}

func (m *Manager) AddItem(ctx context.Context, userID, bookID int64, qty int) (line domain.CartItem, err error) {
	defer func() { m.metrics.RecordCartOp("add", err) }()
	if qty <= 0 {
		return line, apperr.New(apperr.Invalid, "quantity must be > 0")
	}
	line, err = m.repo.Add(ctx, userID, bookID, qty)
	if err != nil {
		return line, err
	}
	m.metrics.RecordReserved(qty)
	log.Debug().Int64("user_id", userID).Int64("book_id", bookID).Int("qty", qty).Msg("cart item added")
	events.Emit(ctx, m.events, events.CartItemAdded, events.CartItemChanged{
		UserID: userID, CartItemID: line.ID, BookID: bookID, Quantity: line.Quantity,
	})
	return line, nil
}

func (m *Manager) UpdateItem(ctx context.Context, userID, itemID int64, qty int) (line domain.CartItem, err error) {
	defer func() { m.metrics.RecordCartOp("update", err) }()
	if qty <= 0 {
		return line, apperr.New(apperr.Invalid, "quantity must be > 0")
	}
	line, old, err := m.repo.Update(ctx, userID, itemID, qty)
	if err != nil {
		return line, err
	}
	m.metrics.RecordReserved(qty - old)
	log.Debug().Int64("user_id", userID).Int64("cart_item_id", itemID).Int("from", old).Int("to", qty).Msg("cart item updated")
	events.Emit(ctx, m.events, events.CartItemUpdated, events.CartItemChanged{
		UserID: userID, CartItemID: line.ID, BookID: line.BookID, Quantity: qty,
	})
	return line, nil
}

func (m *Manager) RemoveItem(ctx context.Context, userID, itemID int64) (err error) {
	defer func() { m.metrics.RecordCartOp("remove", err) }()
	line, err := m.repo.Remove(ctx, userID, itemID)
	if err != nil {
		return err
	}
	log.Debug().Int64("user_id", userID).Int64("cart_item_id", itemID).Int("released", line.Quantity).Msg("cart item removed")
	events.Emit(ctx, m.events, events.CartItemRemoved, events.CartItemChanged{
		UserID: userID, CartItemID: line.ID, BookID: line.BookID, Quantity: line.Quantity,
	})
	return nil
}
