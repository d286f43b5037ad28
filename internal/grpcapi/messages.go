package grpcapi

import "github.com/ahinestrog/onlinebookstore/internal/domain"

type GetCartRequest struct{}

type CartResponse struct {
	Items []domain.CartItem `json:"cartItems"`
}

type AddItemRequest struct {
	BookID   int64 `json:"bookId"`
	Quantity int   `json:"quantity"`
}

type UpdateItemRequest struct {
	CartItemID int64 `json:"cartItemId"`
	Quantity   int   `json:"quantity"`
}

type RemoveItemRequest struct {
	CartItemID int64 `json:"cartItemId"`
}

type CartItemResponse struct {
	Item    domain.CartItem `json:"item"`
	Message string          `json:"message"`
}

type RemoveItemResponse struct {
	Message string `json:"message"`
}

type CheckoutRequest struct {
	RecipientName   string `json:"recipientName"`
	ShippingAddress string `json:"shippingAddress"`
}

type ListOrdersRequest struct{}

type ListOrdersResponse struct {
	Orders []domain.Order `json:"orders"`
}
