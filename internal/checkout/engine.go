// Package checkout converts a user's cart into an order.
package checkout

import (
	"context"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/ahinestrog/onlinebookstore/internal/domain"
	"github.com/ahinestrog/onlinebookstore/internal/events"
	"github.com/ahinestrog/onlinebookstore/internal/metrics"
)

const SuccessMessage = "Checkout successful."

type Engine struct {
	repo    Repository
	events  events.Publisher
	metrics *metrics.Metrics
}

func NewEngine(repo Repository, pub events.Publisher, m *metrics.Metrics) *Engine {
	return &Engine{repo: repo, events: pub, metrics: m}
}

// Checkout creates the order and clears the cart in one transaction. Book
// stock is left alone; it was reserved when the items entered the cart.
// An empty cart is reported before missing shipping details.
func (e *Engine) Checkout(ctx context.Context, userID int64, recipient, address string) (*domain.OrderSummary, error) {
	o, err := e.repo.PlaceOrder(ctx, userID, strings.TrimSpace(recipient), strings.TrimSpace(address))
	if err != nil {
		e.metrics.RecordCheckout(0, err)
		return nil, err
	}
	total := o.TotalAmount.InexactFloat64()
	e.metrics.RecordCheckout(total, nil)
	log.Info().
		Int64("order_id", o.ID).
		Int64("user_id", userID).
		Int("items", len(o.Items)).
		Str("total", humanize.CommafWithDigits(total, 2)).
		Msg("order placed")
	events.Emit(ctx, e.events, events.OrderCreated, events.OrderCreatedEvent{
		OrderID:     o.ID,
		UserID:      userID,
		TotalAmount: o.TotalAmount.StringFixed(2),
		Items:       len(o.Items),
	})

	return &domain.OrderSummary{
		OrderID:     o.ID,
		Message:     SuccessMessage,
		TotalAmount: o.TotalAmount,
	}, nil
}
