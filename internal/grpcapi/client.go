package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/ahinestrog/onlinebookstore/internal/domain"
)

// StoreClient calls the Store service using the JSON codec.
type StoreClient struct {
	cc grpc.ClientConnInterface
}

func NewStoreClient(cc grpc.ClientConnInterface) *StoreClient { return &StoreClient{cc: cc} }

// WithToken attaches a bearer token to outgoing calls made with ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

func (c *StoreClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

func (c *StoreClient) GetCart(ctx context.Context, in *GetCartRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	out := new(CartResponse)
	if err := c.invoke(ctx, "GetCart", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StoreClient) AddItem(ctx context.Context, in *AddItemRequest, opts ...grpc.CallOption) (*CartItemResponse, error) {
	out := new(CartItemResponse)
	if err := c.invoke(ctx, "AddItem", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StoreClient) UpdateItem(ctx context.Context, in *UpdateItemRequest, opts ...grpc.CallOption) (*CartItemResponse, error) {
	out := new(CartItemResponse)
	if err := c.invoke(ctx, "UpdateItem", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StoreClient) RemoveItem(ctx context.Context, in *RemoveItemRequest, opts ...grpc.CallOption) (*RemoveItemResponse, error) {
	out := new(RemoveItemResponse)
	if err := c.invoke(ctx, "RemoveItem", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StoreClient) Checkout(ctx context.Context, in *CheckoutRequest, opts ...grpc.CallOption) (*domain.OrderSummary, error) {
	out := new(domain.OrderSummary)
	if err := c.invoke(ctx, "Checkout", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StoreClient) ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	out := new(ListOrdersResponse)
	if err := c.invoke(ctx, "ListOrders", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
