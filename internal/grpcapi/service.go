// Package grpcapi serves the cart, checkout and order operations over gRPC.
// Messages travel as JSON through a registered codec.
package grpcapi

import (
	"context"

	"google.golang.org/grpc"

	"github.com/ahinestrog/onlinebookstore/internal/apperr"
	"github.com/ahinestrog/onlinebookstore/internal/auth"
	"github.com/ahinestrog/onlinebookstore/internal/cart"
	"github.com/ahinestrog/onlinebookstore/internal/checkout"
	"github.com/ahinestrog/onlinebookstore/internal/domain"
	"github.com/ahinestrog/onlinebookstore/internal/order"
)

const ServiceName = "bookstore.v1.Store"

type StoreServer interface {
	GetCart(context.Context, *GetCartRequest) (*CartResponse, error)
	AddItem(context.Context, *AddItemRequest) (*CartItemResponse, error)
	UpdateItem(context.Context, *UpdateItemRequest) (*CartItemResponse, error)
	RemoveItem(context.Context, *RemoveItemRequest) (*RemoveItemResponse, error)
	Checkout(context.Context, *CheckoutRequest) (*domain.OrderSummary, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
}

func unary[Req, Resp any](name string, call func(StoreServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(StoreServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(StoreServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var StoreServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StoreServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetCart", StoreServer.GetCart),
		unary("AddItem", StoreServer.AddItem),
		unary("UpdateItem", StoreServer.UpdateItem),
		unary("RemoveItem", StoreServer.RemoveItem),
		unary("Checkout", StoreServer.Checkout),
		unary("ListOrders", StoreServer.ListOrders),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bookstore/v1/store",
}

// Store implements StoreServer on top of the cart, checkout and order packages.
type Store struct {
	carts    *cart.Manager
	checkout *checkout.Engine
	orders   *order.Query
}

func NewStore(carts *cart.Manager, engine *checkout.Engine, orders *order.Query) *Store {
	return &Store{carts: carts, checkout: engine, orders: orders}
}

func caller(ctx context.Context) (int64, error) {
	p, ok := auth.FromContext(ctx)
	if !ok {
		return 0, apperr.New(apperr.Unauthorized, "missing bearer token")
	}
	return p.UserID, nil
}

func (s *Store) GetCart(ctx context.Context, _ *GetCartRequest) (*CartResponse, error) {
	uid, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	c, err := s.carts.GetCart(ctx, uid)
	if err != nil {
		return nil, err
	}
	return &CartResponse{Items: c.Items}, nil
}

func (s *Store) AddItem(ctx context.Context, in *AddItemRequest) (*CartItemResponse, error) {
	uid, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	line, err := s.carts.AddItem(ctx, uid, in.BookID, in.Quantity)
	if err != nil {
		return nil, err
	}
	return &CartItemResponse{Item: line, Message: "Book added to cart."}, nil
}

func (s *Store) UpdateItem(ctx context.Context, in *UpdateItemRequest) (*CartItemResponse, error) {
	uid, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	line, err := s.carts.UpdateItem(ctx, uid, in.CartItemID, in.Quantity)
	if err != nil {
		return nil, err
	}
	return &CartItemResponse{Item: line, Message: "Cart item updated."}, nil
}

func (s *Store) RemoveItem(ctx context.Context, in *RemoveItemRequest) (*RemoveItemResponse, error) {
	uid, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.carts.RemoveItem(ctx, uid, in.CartItemID); err != nil {
		return nil, err
	}
	return &RemoveItemResponse{Message: "Item removed from cart."}, nil
}

func (s *Store) Checkout(ctx context.Context, in *CheckoutRequest) (*domain.OrderSummary, error) {
	uid, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.checkout.Checkout(ctx, uid, in.RecipientName, in.ShippingAddress)
}

func (s *Store) ListOrders(ctx context.Context, _ *ListOrdersRequest) (*ListOrdersResponse, error) {
	uid, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := s.orders.ListOrders(ctx, uid)
	if err != nil {
		return nil, err
	}
	return &ListOrdersResponse{Orders: orders}, nil
}
