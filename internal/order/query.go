// Package order reads a user's past orders.
package order

import (
	"context"

	"github.com/ahinestrog/onlinebookstore/internal/domain"
)

type Query struct {
	repo Repository
}

func NewQuery(repo Repository) *Query { return &Query{repo: repo} }

// ListOrders returns the user's orders oldest first. No orders is an empty
// slice, not an error.
func (q *Query) ListOrders(ctx context.Context, userID int64) ([]domain.Order, error) {
	orders, err := q.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}
