// Package events publishes bookstore domain events to a RabbitMQ topic exchange.
package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Routing keys.
const (
	CartItemAdded   = "cart.item.added"
	CartItemUpdated = "cart.item.updated"
	CartItemRemoved = "cart.item.removed"
	OrderCreated    = "order.created"
	UserCreated     = "user.created"
	BookCreated     = "catalog.book.created"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	Close() error
}

type CartItemChanged struct {
	UserID     int64 `json:"user_id"`
	CartItemID int64 `json:"cart_item_id"`
	BookID     int64 `json:"book_id"`
	Quantity   int   `json:"quantity"`
}

type OrderCreatedEvent struct {
	OrderID     int64  `json:"order_id"`
	UserID      int64  `json:"user_id"`
	TotalAmount string `json:"total_amount"`
	Items       int    `json:"items"`
}

type UserCreatedEvent struct {
	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name"`
	Email    string `json:"email"`
}

type BookCreatedEvent struct {
	BookID int64  `json:"book_id"`
	Title  string `json:"title"`
}

// Emit publishes after a commit. A failed publish is logged and dropped.
func Emit(ctx context.Context, p Publisher, routingKey string, payload any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, routingKey, payload); err != nil {
		log.Warn().Err(err).Str("event", routingKey).Msg("event publish failed")
	}
}

// Nop discards every event. Used when RabbitMQ is not configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
func (Nop) Close() error                               { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []Recorded
}

type Recorded struct {
	RoutingKey string
	Payload    any
}

func (r *Recorder) Publish(_ context.Context, routingKey string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Recorded{RoutingKey: routingKey, Payload: payload})
	return nil
}

func (r *Recorder) Close() error { return nil }

// Keys returns the routing keys published so far, in order.
func (r *Recorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.RoutingKey)
	}
	return out
}
