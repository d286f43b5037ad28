package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ahinestrog/onlinebookstore/internal/apperr"
)

func TestRecordCartOpByKind(t *testing.T) {
	m := New()
	m.RecordCartOp("add", nil)
	m.RecordCartOp("add", apperr.New(apperr.InsufficientStock, "not enough"))
	m.RecordCartOp("add", errors.New("disk"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CartOperations.WithLabelValues("add", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CartOperations.WithLabelValues("add", "insufficient_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CartOperations.WithLabelValues("add", "internal")))
}

func TestCheckoutRevenueOnlyOnSuccess(t *testing.T) {
	m := New()
	m.RecordCheckout(25, nil)
	m.RecordCheckout(10, apperr.ErrEmptyCart)

	assert.Equal(t, 25.0, testutil.ToFloat64(m.CheckoutRevenue))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Checkouts.WithLabelValues("empty_cart")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCartOp("add", nil)
		m.RecordCheckout(1, nil)
		m.RecordHTTP("GET", "/", 200, 0)
		m.RecordGRPC("/x", "OK")
		m.RecordReserved(3)
	})
}
