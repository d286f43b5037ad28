// Package metrics holds the Prometheus collectors of the bookstore.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahinestrog/onlinebookstore/internal/apperr"
)

const namespace = "bookstore"

// Metrics is nil-safe: every Record method on a nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	CartOperations  *prometheus.CounterVec
	Checkouts       *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	GRPCRequests    *prometheus.CounterVec
	ReservedUnits   prometheus.Counter
	CheckoutRevenue prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CartOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_operations_total",
			Help:      "Cart mutations by operation and result kind",
		}, []string{"op", "result"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Checkout attempts by result kind",
		}, []string{"result"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		GRPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "gRPC requests by method and status code",
		}, []string{"method", "code"}),
		ReservedUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_reserved_units_total",
			Help:      "Book units moved from stock into carts",
		}),
		CheckoutRevenue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_amount_total",
			Help:      "Sum of order totals",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CartOperations,
		m.Checkouts,
		m.HTTPDuration,
		m.GRPCRequests,
		m.ReservedUnits,
		m.CheckoutRevenue,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the exposition format for this registry only.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.KindOf(err).String()
}

func (m *Metrics) RecordCartOp(op string, err error) {
	if m == nil {
		return
	}
	m.CartOperations.WithLabelValues(op, result(err)).Inc()
}

func (m *Metrics) RecordReserved(units int) {
	if m == nil || units <= 0 {
		return
	}
	m.ReservedUnits.Add(float64(units))
}

func (m *Metrics) RecordCheckout(amount float64, err error) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(result(err)).Inc()
	if err == nil {
		m.CheckoutRevenue.Add(amount)
	}
}

func (m *Metrics) RecordHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

func (m *Metrics) RecordGRPC(method, code string) {
	if m == nil {
		return
	}
	m.GRPCRequests.WithLabelValues(method, code).Inc()
}
