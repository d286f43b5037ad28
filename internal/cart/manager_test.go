package cart

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"github.com/ahinestrog/onlinebookstore/internal/apperr"
	"github.com/ahinestrog/onlinebookstore/internal/events"
	"github.com/ahinestrog/onlinebookstore/internal/metrics"
	"github.com/ahinestrog/onlinebookstore/internal/storage"
	"github.com/ahinestrog/onlinebookstore/internal/storage/storagetest"
)

type ManagerSuite struct {
	suite.Suite
	ctx     context.Context
	db      *storage.DB
	rec     *events.Recorder
	metrics *metrics.Metrics
	mgr     *Manager
	alice   int64
	bob     int64
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = storagetest.Open(s.T())
	s.rec = &events.Recorder{}
	s.metrics = metrics.New()
	s.mgr = NewManager(NewSQLiteRepo(s.db), s.rec, s.metrics)
	s.alice = storagetest.User(s.T(), s.db, "alice")
	s.bob = storagetest.User(s.T(), s.db, "bob")
}

func (s *ManagerSuite) stock(bookID int64) int { return storagetest.Stock(s.T(), s.db, bookID) }

func (s *ManagerSuite) TestGetCartWithoutCartIsEmpty() {
	c, err := s.mgr.GetCart(s.ctx, s.alice)
	s.Require().NoError(err)
	s.NotNil(c.Items)
	s.Empty(c.Items)
	s.Zero(storagetest.Count(s.T(), s.db, "carts"))
}

func (s *ManagerSuite) TestAddReservesStockAndMergesLines() {
	book := storagetest.Book(s.T(), s.db, "Dune", 1000, 10)

	first, err := s.mgr.AddItem(s.ctx, s.alice, book, 2)
	s.Require().NoError(err)
	second, err := s.mgr.AddItem(s.ctx, s.alice, book, 3)
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID)
	s.Equal(5, second.Quantity)
	s.Equal(5, s.stock(book))

	c, err := s.mgr.GetCart(s.ctx, s.alice)
	s.Require().NoError(err)
	s.Require().Len(c.Items, 1)
	s.Equal("Dune", c.Items[0].Title)
	s.Equal(5, c.Items[0].Quantity)
	s.Equal([]string{events.CartItemAdded, events.CartItemAdded}, s.rec.Keys())
	s.Equal(5.0, testutil.ToFloat64(s.metrics.ReservedUnits))
}

func (s *ManagerSuite) TestAddThenRemoveRestoresStock() {
	book := storagetest.Book(s.T(), s.db, "Emma", 500, 4)

	line, err := s.mgr.AddItem(s.ctx, s.alice, book, 3)
	s.Require().NoError(err)
	s.Equal(1, s.stock(book))

	s.Require().NoError(s.mgr.RemoveItem(s.ctx, s.alice, line.ID))
	s.Equal(4, s.stock(book))

	c, err := s.mgr.GetCart(s.ctx, s.alice)
	s.Require().NoError(err)
	s.Empty(c.Items)
}

func (s *ManagerSuite) TestAddErrors() {
	book := storagetest.Book(s.T(), s.db, "Ulysses", 900, 2)

	_, err := s.mgr.AddItem(s.ctx, s.alice, book, 3)
	s.ErrorIs(err, apperr.ErrInsufficientStock)
	s.Equal(2, s.stock(book))
	s.Zero(storagetest.Count(s.T(), s.db, "carts"))

	_, err = s.mgr.AddItem(s.ctx, s.alice, book+99, 1)
	s.ErrorIs(err, apperr.ErrNotFound)

	_, err = s.mgr.AddItem(s.ctx, s.alice, book, 0)
	s.ErrorIs(err, apperr.ErrInvalid)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.CartOperations.WithLabelValues("add", "insufficient_stock")))
	s.Empty(s.rec.Keys())
}

func (s *ManagerSuite) TestUpdateReleasesAndReserves() {
	// 8 copies, 3 in the cart, 5 on the shelf
	book := storagetest.Book(s.T(), s.db, "Beloved", 700, 8)
	line, err := s.mgr.AddItem(s.ctx, s.alice, book, 3)
	s.Require().NoError(err)
	s.Require().Equal(5, s.stock(book))

	_, err = s.mgr.UpdateItem(s.ctx, s.alice, line.ID, 10)
	s.ErrorIs(err, apperr.ErrInsufficientStock)
	s.Equal(5, s.stock(book))
	c, err := s.mgr.GetCart(s.ctx, s.alice)
	s.Require().NoError(err)
	s.Equal(3, c.Items[0].Quantity)

	updated, err := s.mgr.UpdateItem(s.ctx, s.alice, line.ID, 1)
	s.Require().NoError(err)
	s.Equal(1, updated.Quantity)
	s.Equal(7, s.stock(book))

	_, err = s.mgr.UpdateItem(s.ctx, s.alice, line.ID, 8)
	s.Require().NoError(err)
	s.Equal(0, s.stock(book))
}

func (s *ManagerSuite) TestUpdateRejectsNonPositive() {
	book := storagetest.Book(s.T(), s.db, "Beloved", 700, 8)
	line, err := s.mgr.AddItem(s.ctx, s.alice, book, 3)
	s.Require().NoError(err)

	_, err = s.mgr.UpdateItem(s.ctx, s.alice, line.ID, 0)
	s.ErrorIs(err, apperr.ErrInvalid)
	s.Equal(5, s.stock(book))
}

func (s *ManagerSuite) TestLinesOfOtherUsersAreNotFound() {
	book := storagetest.Book(s.T(), s.db, "Middlemarch", 1500, 5)
	line, err := s.mgr.AddItem(s.ctx, s.alice, book, 2)
	s.Require().NoError(err)

	_, err = s.mgr.UpdateItem(s.ctx, s.bob, line.ID, 1)
	s.ErrorIs(err, apperr.ErrNotFound)
	s.ErrorIs(s.mgr.RemoveItem(s.ctx, s.bob, line.ID), apperr.ErrNotFound)
	s.ErrorIs(s.mgr.RemoveItem(s.ctx, s.alice, line.ID+50), apperr.ErrNotFound)
	s.Equal(3, s.stock(book))
}

func (s *ManagerSuite) TestReleaseUserCart() {
	a := storagetest.Book(s.T(), s.db, "A", 100, 5)
	b := storagetest.Book(s.T(), s.db, "B", 100, 5)
	_, err := s.mgr.AddItem(s.ctx, s.alice, a, 2)
	s.Require().NoError(err)
	_, err = s.mgr.AddItem(s.ctx, s.alice, b, 4)
	s.Require().NoError(err)

	tx, err := s.db.BeginTx(s.ctx, nil)
	s.Require().NoError(err)
	units, err := ReleaseUserCart(s.ctx, tx, s.alice)
	s.Require().NoError(err)
	s.Require().NoError(tx.Commit())

	s.Equal(6, units)
	s.Equal(5, s.stock(a))
	s.Equal(5, s.stock(b))
	s.Zero(storagetest.Count(s.T(), s.db, "cart_items"))
	s.Zero(storagetest.Count(s.T(), s.db, "carts"))
}

func TestConcurrentAddsNeverOversell(t *testing.T) {
	db := storagetest.Open(t)
	mgr := NewManager(NewSQLiteRepo(db), events.Nop{}, nil)
	book := storagetest.Book(t, db, "Hot Title", 2000, 5)

	const buyers = 12
	users := make([]int64, buyers)
	for i := range users {
		users[i] = storagetest.User(t, db, "buyer"+string(rune('a'+i)))
	}

	var ok, rejected atomic.Int32
	var g errgroup.Group
	for _, uid := range users {
		uid := uid
		g.Go(func() error {
			_, err := mgr.AddItem(context.Background(), uid, book, 2)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, apperr.ErrInsufficientStock):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 2, ok.Load())
	assert.EqualValues(t, buyers-2, rejected.Load())
	assert.Equal(t, 1, storagetest.Stock(t, db, book))

	var reserved int
	require.NoError(t, db.QueryRow(`SELECT COALESCE(SUM(quantity),0) FROM cart_items WHERE book_id=?`, book).Scan(&reserved))
	assert.Equal(t, 4, reserved)
}

func TestConcurrentAddsFitWhenSumAllows(t *testing.T) {
	db := storagetest.Open(t)
	mgr := NewManager(NewSQLiteRepo(db), events.Nop{}, nil)
	book := storagetest.Book(t, db, "Plenty", 100, 10)
	u1 := storagetest.User(t, db, "u1")
	u2 := storagetest.User(t, db, "u2")

	var g errgroup.Group
	g.Go(func() error { _, err := mgr.AddItem(context.Background(), u1, book, 4); return err })
	g.Go(func() error { _, err := mgr.AddItem(context.Background(), u2, book, 6); return err })
	require.NoError(t, g.Wait())
	assert.Equal(t, 0, storagetest.Stock(t, db, book))
}
