package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ahinestrog/onlinebookstore/internal/apperr"
)

type addToCartRequest struct {
	BookID   int64 `json:"bookId" binding:"required"`
	Quantity int   `json:"quantity"`
}

type updateCartItemRequest struct {
	CartItemID int64 `json:"cartItemId" binding:"required"`
	Quantity   int   `json:"quantity"`
}

type checkoutRequest struct {
	RecipientName   string `json:"recipientName"`
	ShippingAddress string `json:"shippingAddress"`
}

// GET /api/shoppingcart
func (h *handlers) getCart(c *gin.Context) {
	cart, err := h.Carts.GetCart(c.Request.Context(), userID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if cart.ID == 0 {
		c.JSON(http.StatusOK, gin.H{"cartItems": cart.Items})
		return
	}
	c.JSON(http.StatusOK, cart.Items)
}

// POST /api/shoppingcart/add
func (h *handlers) addToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if _, err := h.Carts.AddItem(c.Request.Context(), userID(c), req.BookID, req.Quantity); err != nil {
		abortWithError(c, err)
		return
	}
	c.String(http.StatusOK, "Book added to cart.")
}

// PUT /api/shoppingcart/update
func (h *handlers) updateCartItem(c *gin.Context) {
	var req updateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if _, err := h.Carts.UpdateItem(c.Request.Context(), userID(c), req.CartItemID, req.Quantity); err != nil {
		abortWithError(c, err)
		return
	}
	c.String(http.StatusOK, "Cart item updated.")
}

// DELETE /api/shoppingcart/remove/:id
func (h *handlers) removeFromCart(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		// a malformed id can never name a line in the caller's cart
		abortWithError(c, apperr.New(apperr.NotFound, "cart item %q not found", c.Param("id")))
		return
	}
	if err := h.Carts.RemoveItem(c.Request.Context(), userID(c), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.String(http.StatusOK, "Item removed from cart.")
}

// POST /api/shoppingcart/checkout
func (h *handlers) checkout(c *gin.Context) {
	var req checkoutRequest
	// no body is left to the engine so an empty cart is reported first
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}
	sum, err := h.Checkout.Checkout(c.Request.Context(), userID(c), req.RecipientName, req.ShippingAddress)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// GET /api/orders
func (h *handlers) listOrders(c *gin.Context) {
	orders, err := h.Orders.ListOrders(c.Request.Context(), userID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if len(orders) == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "No orders found."})
		return
	}
	c.JSON(http.StatusOK, orders)
}
