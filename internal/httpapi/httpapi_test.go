package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/ahinestrog/onlinebookstore/internal/apperr"
	"github.com/ahinestrog/onlinebookstore/internal/auth"
	"github.com/ahinestrog/onlinebookstore/internal/cart"
	"github.com/ahinestrog/onlinebookstore/internal/catalog"
	"github.com/ahinestrog/onlinebookstore/internal/checkout"
	"github.com/ahinestrog/onlinebookstore/internal/events"
	"github.com/ahinestrog/onlinebookstore/internal/metrics"
	"github.com/ahinestrog/onlinebookstore/internal/order"
	"github.com/ahinestrog/onlinebookstore/internal/storage"
	"github.com/ahinestrog/onlinebookstore/internal/storage/storagetest"
	"github.com/ahinestrog/onlinebookstore/internal/user"
)

type APISuite struct {
	suite.Suite
	db      *storage.DB
	handler http.Handler
	token   string
}

func TestAPISuite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	s.db = storagetest.Open(s.T())
	pub := events.Nop{}
	m := metrics.New()
	users := user.NewService(user.NewSQLiteRepo(s.db), pub, bcrypt.MinCost)
	tokens := auth.NewTokens("http-test-signing-key-0123456789", "bookstore", "clients", 30*time.Minute)

	s.handler = Handler(Deps{
		Users:          users,
		Auth:           auth.NewAuthenticator(tokens, users),
		Catalog:        catalog.NewService(catalog.NewSQLiteRepo(s.db), pub),
		Carts:          cart.NewManager(cart.NewSQLiteRepo(s.db), pub, m),
		Checkout:       checkout.NewEngine(checkout.NewSQLiteRepo(s.db), pub, m),
		Orders:         order.NewQuery(order.NewSQLiteRepo(s.db)),
		Metrics:        m,
		DB:             s.db,
		RequestTimeout: 5 * time.Second,
	})
	s.token = s.signup("reader")
}

func (s *APISuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *APISuite) signup(name string) string {
	w := s.do(http.MethodPost, "/api/users/register", "", map[string]string{
		"userName": name, "email": name + "@example.com", "fullName": name, "password": "hunter22",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	s.NotContains(w.Body.String(), "hunter22")
	s.NotContains(w.Body.String(), "passwordHash")

	w = s.do(http.MethodPost, "/api/users/login", "", map[string]string{"userName": name, "password": "hunter22"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var out loginResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out))
	return out.Token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (s *APISuite) TestUnauthenticatedIs401() {
	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/api/orders"},
		{http.MethodGet, "/api/shoppingcart"},
		{http.MethodPost, "/api/shoppingcart/add"},
		{http.MethodPut, "/api/shoppingcart/update"},
		{http.MethodDelete, "/api/shoppingcart/remove/1"},
		{http.MethodPost, "/api/shoppingcart/checkout"},
	} {
		w := s.do(r.method, r.path, "", nil)
		s.Equal(http.StatusUnauthorized, w.Code, r.path)
		w = s.do(r.method, r.path, "garbage", nil)
		s.Equal(http.StatusUnauthorized, w.Code, r.path)
	}
}

func (s *APISuite) TestEmptyCartAndOrders() {
	w := s.do(http.MethodGet, "/api/shoppingcart", s.token, nil)
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"cartItems":[]}`, w.Body.String())

	w = s.do(http.MethodGet, "/api/orders", s.token, nil)
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"message":"No orders found."}`, w.Body.String())

	w = s.do(http.MethodPost, "/api/shoppingcart/checkout", s.token, map[string]string{
		"recipientName": "R", "shippingAddress": "A",
	})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("empty_cart", decode[errorBody](s.T(), w).Kind)

	w = s.do(http.MethodPost, "/api/shoppingcart/checkout", s.token, nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("empty_cart", decode[errorBody](s.T(), w).Kind)

	w = s.do(http.MethodPost, "/api/shoppingcart/checkout", s.token, map[string]string{})
	s.Equal("empty_cart", decode[errorBody](s.T(), w).Kind)
}

func (s *APISuite) TestShoppingFlow() {
	a := storagetest.Book(s.T(), s.db, "Book A", 1000, 5)
	b := storagetest.Book(s.T(), s.db, "Book B", 500, 5)

	w := s.do(http.MethodPost, "/api/shoppingcart/add", s.token, map[string]any{"bookId": a, "quantity": 3})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("Book added to cart.", w.Body.String())

	w = s.do(http.MethodPost, "/api/shoppingcart/add", s.token, map[string]any{"bookId": b, "quantity": 1})
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/shoppingcart/add", s.token, map[string]any{"bookId": b, "quantity": 9})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("insufficient_stock", decode[errorBody](s.T(), w).Kind)

	w = s.do(http.MethodPost, "/api/shoppingcart/add", s.token, map[string]any{"bookId": 999, "quantity": 1})
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/shoppingcart", s.token, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	items := decode[[]map[string]any](s.T(), w)
	s.Require().Len(items, 2)
	s.Equal("Book A", items[0]["bookTitle"])
	lineA := int64(items[0]["cartItemId"].(float64))

	w = s.do(http.MethodPut, "/api/shoppingcart/update", s.token, map[string]any{"cartItemId": lineA, "quantity": 2})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("Cart item updated.", w.Body.String())
	s.Equal(3, storagetest.Stock(s.T(), s.db, a))

	w = s.do(http.MethodPost, "/api/shoppingcart/checkout", s.token, map[string]string{
		"recipientName": "Reader", "shippingAddress": "1 Library Lane",
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	sum := decode[map[string]any](s.T(), w)
	s.Equal("Checkout successful.", sum["message"])
	s.Equal(25.0, sum["totalAmount"])
	s.NotZero(sum["orderId"])

	w = s.do(http.MethodGet, "/api/orders", s.token, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	orders := decode[[]map[string]any](s.T(), w)
	s.Require().Len(orders, 1)
	s.Equal("1 Library Lane", orders[0]["shippingAddress"])
	s.Len(orders[0]["orderItems"], 2)

	w = s.do(http.MethodGet, "/api/shoppingcart", s.token, nil)
	s.JSONEq(`[]`, w.Body.String())
}

func (s *APISuite) TestRemoveAndOwnership() {
	book := storagetest.Book(s.T(), s.db, "Mine", 100, 4)
	w := s.do(http.MethodPost, "/api/shoppingcart/add", s.token, map[string]any{"bookId": book, "quantity": 4})
	s.Require().Equal(http.StatusOK, w.Code)
	items := decode[[]map[string]any](s.T(), s.do(http.MethodGet, "/api/shoppingcart", s.token, nil))
	line := int64(items[0]["cartItemId"].(float64))

	other := s.signup("other")
	w = s.do(http.MethodDelete, fmt.Sprintf("/api/shoppingcart/remove/%d", line), other, nil)
	s.Equal(http.StatusNotFound, w.Code)
	w = s.do(http.MethodDelete, "/api/shoppingcart/remove/abc", s.token, nil)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodDelete, fmt.Sprintf("/api/shoppingcart/remove/%d", line), s.token, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("Item removed from cart.", w.Body.String())
	s.Equal(4, storagetest.Stock(s.T(), s.db, book))
}

func (s *APISuite) TestLogoutRevokesToken() {
	w := s.do(http.MethodPost, "/api/users/logout", s.token, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("Logout successful", w.Body.String())

	w = s.do(http.MethodGet, "/api/shoppingcart", s.token, nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *APISuite) TestDeletedUserTokenIs401() {
	users := decode[[]map[string]any](s.T(), s.do(http.MethodGet, "/api/users", s.token, nil))
	s.Require().Len(users, 1)
	id := int64(users[0]["id"].(float64))

	w := s.do(http.MethodDelete, fmt.Sprintf("/api/users/%d", id+1), s.token, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodDelete, fmt.Sprintf("/api/users/%d", id), s.token, nil)
	s.Equal(http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/api/orders", s.token, nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *APISuite) TestLoginFailures() {
	w := s.do(http.MethodPost, "/api/users/login", "", map[string]string{"userName": "reader", "password": "nope"})
	s.Equal(http.StatusUnauthorized, w.Code)
	w = s.do(http.MethodPost, "/api/users/login", "", map[string]string{"userName": "reader"})
	s.Equal(http.StatusBadRequest, w.Code)
	w = s.do(http.MethodPost, "/api/users/register", "", map[string]string{
		"userName": "reader", "email": "again@example.com", "password": "hunter22",
	})
	s.Equal(http.StatusConflict, w.Code)
}

func (s *APISuite) TestBooksAndHealth() {
	w := s.do(http.MethodPost, "/api/books", s.token, map[string]any{
		"title": "New Book", "author": "Someone", "price": 9.99, "availableQuantity": 2,
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	created := decode[map[string]any](s.T(), w)
	s.Equal(9.99, created["price"])
	id := int64(created["id"].(float64))

	w = s.do(http.MethodPut, fmt.Sprintf("/api/books/%d/stock", id), s.token, map[string]int{"quantity": 3})
	s.Require().Equal(http.StatusOK, w.Code)
	s.EqualValues(5, decode[map[string]any](s.T(), w)["availableQuantity"])

	w = s.do(http.MethodGet, "/api/books?q=new", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.EqualValues(1, decode[map[string]any](s.T(), w)["totalItems"])

	w = s.do(http.MethodGet, "/api/books/12345", "", nil)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/healthz", "", nil)
	s.JSONEq(`{"status":"ok"}`, w.Body.String())

	w = s.do(http.MethodGet, "/metrics", "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "bookstore_http_request_duration_seconds")
}

func TestStatusForKinds(t *testing.T) {
	cases := map[apperr.Kind]int{
		apperr.NotFound:          http.StatusNotFound,
		apperr.InsufficientStock: http.StatusBadRequest,
		apperr.EmptyCart:         http.StatusBadRequest,
		apperr.Invalid:           http.StatusBadRequest,
		apperr.Unauthorized:      http.StatusUnauthorized,
		apperr.Forbidden:         http.StatusForbidden,
		apperr.Conflict:          http.StatusConflict,
		apperr.Unavailable:       http.StatusServiceUnavailable,
		apperr.Internal:          http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, statusFor(kind), kind.String())
	}
}
