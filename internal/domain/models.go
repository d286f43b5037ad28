package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Book struct {
	ID                int64           `json:"id"`
	Title             string          `json:"title"`
	Author            string          `json:"author"`
	Price             decimal.Decimal `json:"price"`
	AvailableQuantity int             `json:"availableQuantity"`
	CreatedAt         time.Time       `json:"createdAt"`
}

type Cart struct {
	ID     int64
	UserID int64
	Items  []CartItem
}

// CartItem is one cart line. Title is joined from books for display.
type CartItem struct {
	ID       int64  `json:"cartItemId"`
	BookID   int64  `json:"bookId"`
	Title    string `json:"bookTitle"`
	Quantity int    `json:"quantity"`
}

type Order struct {
	ID              int64           `json:"orderId"`
	UserID          int64           `json:"-"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	RecipientName   string          `json:"recipientName"`
	ShippingAddress string          `json:"shippingAddress"`
	OrderDate       time.Time       `json:"orderDate"`
	Items           []OrderItem     `json:"orderItems"`
}

// OrderItem snapshots the book title and unit price at checkout time.
type OrderItem struct {
	BookID    int64           `json:"bookId"`
	Title     string          `json:"bookTitle"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type OrderSummary struct {
	OrderID     int64           `json:"orderId"`
	Message     string          `json:"message"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

type User struct {
	ID           int64     `json:"id"`
	UserName     string    `json:"userName"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
