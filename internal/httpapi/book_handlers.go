package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ahinestrog/onlinebookstore/internal/catalog"
)

type restockRequest struct {
	Quantity int `json:"quantity"`
}

// GET /api/books?q=&page=&pageSize=
func (h *handlers) listBooks(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("pageSize"))
	p, err := h.Catalog.List(c.Request.Context(), c.Query("q"), page, size)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// GET /api/books/:id
func (h *handlers) getBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b, err := h.Catalog.Get(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// POST /api/books
func (h *handlers) createBook(c *gin.Context) {
	var req catalog.NewBook
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	b, err := h.Catalog.Create(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Location", "/api/books/"+strconv.FormatInt(b.ID, 10))
	c.JSON(http.StatusCreated, b)
}

// PUT /api/books/:id/stock
func (h *handlers) restockBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req restockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	b, err := h.Catalog.Restock(c.Request.Context(), id, req.Quantity)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// GET /healthz
func (h *handlers) health(c *gin.Context) {
	if h.DB != nil {
		if err := h.DB.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
