// Package httpapi exposes the bookstore over HTTP with gin.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/ahinestrog/onlinebookstore/internal/auth"
	"github.com/ahinestrog/onlinebookstore/internal/cart"
	"github.com/ahinestrog/onlinebookstore/internal/catalog"
	"github.com/ahinestrog/onlinebookstore/internal/checkout"
	"github.com/ahinestrog/onlinebookstore/internal/metrics"
	"github.com/ahinestrog/onlinebookstore/internal/order"
	"github.com/ahinestrog/onlinebookstore/internal/user"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	Users    *user.Service
	Auth     *auth.Authenticator
	Catalog  *catalog.Service
	Carts    *cart.Manager
	Checkout *checkout.Engine
	Orders   *order.Query
	Metrics  *metrics.Metrics
	DB       Pinger

	CORSOrigins    []string
	RequestTimeout time.Duration
	Release        bool
}

type handlers struct{ Deps }

func NewRouter(d Deps) *gin.Engine {
	if d.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	h := &handlers{Deps: d}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(d.Metrics))
	r.Use(requestTimeout(d.RequestTimeout))

	r.GET("/healthz", h.health)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		users := api.Group("/users")
		{
			users.POST("/register", h.register)
			users.POST("/login", h.login)
			users.POST("/logout", h.requireAuth, h.logout)
			users.GET("", h.requireAuth, h.listUsers)
			users.PUT("/:id", h.requireAuth, h.updateUser)
			users.DELETE("/:id", h.requireAuth, h.deleteUser)
		}

		books := api.Group("/books")
		{
			books.GET("", h.listBooks)
			books.GET("/:id", h.getBook)
			books.POST("", h.requireAuth, h.createBook)
			books.PUT("/:id/stock", h.requireAuth, h.restockBook)
		}

		sc := api.Group("/shoppingcart", h.requireAuth)
		{
			sc.GET("", h.getCart)
			sc.POST("/add", h.addToCart)
			sc.PUT("/update", h.updateCartItem)
			sc.DELETE("/remove/:id", h.removeFromCart)
			sc.POST("/checkout", h.checkout)
		}

		api.GET("/orders", h.requireAuth, h.listOrders)
	}
	return r
}

// Handler wraps the router with CORS.
func Handler(d Deps) http.Handler {
	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	})
	return c.Handler(NewRouter(d))
}
