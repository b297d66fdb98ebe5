package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics содержит метрики жизненного цикла заказа.
type CheckoutMetrics struct {
	ordersCreated        prometheus.Counter
	ordersPaid           prometheus.Counter
	ordersCancelled      *prometheus.CounterVec
	reservationConflicts prometheus.Counter
	operationDuration    *prometheus.HistogramVec
}

// NewCheckoutMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewCheckoutMetrics() *CheckoutMetrics {
	return NewCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCheckoutMetricsWithRegisterer регистрирует метрики в переданном registerer (изолированные тесты).
func NewCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "resale_orders_created_total",
			Help: "Total number of orders created with reserved inventory",
		}),
		ordersPaid: registerCounter(registerer, prometheus.CounterOpts{
			Name: "resale_orders_paid_total",
			Help: "Total number of orders confirmed as paid",
		}),
		ordersCancelled: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "resale_orders_cancelled_total",
			Help: "Total number of cancelled orders grouped by reason",
		}, []string{"reason"}),
		reservationConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "resale_reservation_conflicts_total",
			Help: "Total number of order attempts rejected because inventory was unavailable",
		}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "resale_checkout_operation_duration_seconds",
			Help:    "Duration of checkout operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"operation", "result"}),
	}
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *CheckoutMetrics) RecordOrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

// RecordOrderPaid увеличивает счётчик оплаченных заказов.
func (m *CheckoutMetrics) RecordOrderPaid() {
	if m == nil {
		return
	}
	m.ordersPaid.Inc()
}

// RecordOrderCancelled увеличивает счётчик отмен с причиной reason.
func (m *CheckoutMetrics) RecordOrderCancelled(reason string) {
	if m == nil {
		return
	}
	m.ordersCancelled.WithLabelValues(reason).Inc()
}

// RecordReservationConflict фиксирует проигранную гонку за билет.
func (m *CheckoutMetrics) RecordReservationConflict() {
	if m == nil {
		return
	}
	m.reservationConflicts.Inc()
}

// ObserveOperation записывает длительность операции и её результат.
func (m *CheckoutMetrics) ObserveOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operationDuration.WithLabelValues(operation, result).Observe(duration.Seconds())
}
