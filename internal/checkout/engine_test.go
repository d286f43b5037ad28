package checkout

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahinestrog/onlinebookstore/internal/apperr"
	"github.com/ahinestrog/onlinebookstore/internal/cart"
	"github.com/ahinestrog/onlinebookstore/internal/events"
	"github.com/ahinestrog/onlinebookstore/internal/metrics"
	"github.com/ahinestrog/onlinebookstore/internal/storage/storagetest"
)

func TestCheckoutCreatesOrderAndClearsCart(t *testing.T) {
	ctx := context.Background()
	db := storagetest.Open(t)
	rec := &events.Recorder{}
	m := metrics.New()
	carts := cart.NewManager(cart.NewSQLiteRepo(db), events.Nop{}, nil)
	engine := NewEngine(NewSQLiteRepo(db), rec, m)

	user := storagetest.User(t, db, "carol")
	bookA := storagetest.Book(t, db, "A", 1000, 6)
	bookB := storagetest.Book(t, db, "B", 500, 3)
	_, err := carts.AddItem(ctx, user, bookA, 2)
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, user, bookB, 1)
	require.NoError(t, err)
	stockA, stockB := storagetest.Stock(t, db, bookA), storagetest.Stock(t, db, bookB)

	sum, err := engine.Checkout(ctx, user, "Carol", "1 Main St")
	require.NoError(t, err)
	assert.Equal(t, SuccessMessage, sum.Message)
	assert.True(t, decimal.NewFromInt(25).Equal(sum.TotalAmount), "total %s", sum.TotalAmount)
	assert.NotZero(t, sum.OrderID)

	assert.Equal(t, 1, storagetest.Count(t, db, "orders"))
	assert.Equal(t, 2, storagetest.Count(t, db, "order_items"))
	assert.Equal(t, stockA, storagetest.Stock(t, db, bookA))
	assert.Equal(t, stockB, storagetest.Stock(t, db, bookB))

	c, err := carts.GetCart(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, c.Items)

	assert.Equal(t, []string{events.OrderCreated}, rec.Keys())
	assert.Equal(t, 25.0, testutil.ToFloat64(m.CheckoutRevenue))
}

func TestCheckoutEmptyCart(t *testing.T) {
	ctx := context.Background()
	db := storagetest.Open(t)
	engine := NewEngine(NewSQLiteRepo(db), events.Nop{}, nil)
	carts := cart.NewManager(cart.NewSQLiteRepo(db), events.Nop{}, nil)
	user := storagetest.User(t, db, "dave")

	_, err := engine.Checkout(ctx, user, "Dave", "2 Side St")
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)

	// a cart that existed but was emptied is still empty
	book := storagetest.Book(t, db, "A", 100, 1)
	line, err := carts.AddItem(ctx, user, book, 1)
	require.NoError(t, err)
	require.NoError(t, carts.RemoveItem(ctx, user, line.ID))

	_, err = engine.Checkout(ctx, user, "Dave", "2 Side St")
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)
	assert.Zero(t, storagetest.Count(t, db, "orders"))
}

func TestCheckoutRequiresShippingDetails(t *testing.T) {
	ctx := context.Background()
	db := storagetest.Open(t)
	engine := NewEngine(NewSQLiteRepo(db), events.Nop{}, nil)
	carts := cart.NewManager(cart.NewSQLiteRepo(db), events.Nop{}, nil)
	user := storagetest.User(t, db, "eve")
	book := storagetest.Book(t, db, "A", 100, 2)
	_, err := carts.AddItem(ctx, user, book, 1)
	require.NoError(t, err)

	_, err = engine.Checkout(ctx, user, "  ", "somewhere")
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	_, err = engine.Checkout(ctx, user, "Eve", "")
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	c, err := carts.GetCart(ctx, user)
	require.NoError(t, err)
	assert.Len(t, c.Items, 1)
	assert.Zero(t, storagetest.Count(t, db, "orders"))
}

func TestEmptyCartWinsOverMissingShippingDetails(t *testing.T) {
	ctx := context.Background()
	db := storagetest.Open(t)
	engine := NewEngine(NewSQLiteRepo(db), events.Nop{}, nil)
	carts := cart.NewManager(cart.NewSQLiteRepo(db), events.Nop{}, nil)
	user := storagetest.User(t, db, "gina")

	_, err := engine.Checkout(ctx, user, "", "")
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)

	book := storagetest.Book(t, db, "A", 100, 1)
	line, err := carts.AddItem(ctx, user, book, 1)
	require.NoError(t, err)
	require.NoError(t, carts.RemoveItem(ctx, user, line.ID))

	_, err = engine.Checkout(ctx, user, " ", "")
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)
}

func TestCheckoutSnapshotsPrices(t *testing.T) {
	ctx := context.Background()
	db := storagetest.Open(t)
	carts := cart.NewManager(cart.NewSQLiteRepo(db), events.Nop{}, nil)
	repo := NewSQLiteRepo(db)
	user := storagetest.User(t, db, "frank")
	book := storagetest.Book(t, db, "Priced", 1999, 5)
	_, err := carts.AddItem(ctx, user, book, 3)
	require.NoError(t, err)

	o, err := repo.PlaceOrder(ctx, user, "Frank", "3 Hill Rd")
	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Priced", o.Items[0].Title)
	assert.True(t, decimal.RequireFromString("19.99").Equal(o.Items[0].UnitPrice))
	assert.True(t, decimal.RequireFromString("59.97").Equal(o.TotalAmount))
}
