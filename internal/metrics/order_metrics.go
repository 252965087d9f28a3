package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики операций с заказами и бронями.
type OrderMetrics struct {
	ordersPlaced       prometheus.Counter
	statusChanges      *prometheus.CounterVec
	statusDenied       prometheus.Counter
	changeDuration     prometheus.Histogram
	timelineEvents     prometheus.Counter
	outboxEvents       prometheus.Counter
	reservations       prometheus.Counter
	reservationClashes prometheus.Counter
}

// NewOrderMetrics регистрирует метрики в переданном registerer (nil означает глобальный).
func NewOrderMetrics(registerer prometheus.Registerer) *OrderMetrics {
	registerer = orDefault(registerer)
	return &OrderMetrics{
		ordersPlaced: registerCounter(registerer, prometheus.CounterOpts{
			Name: "yb_orders_placed_total",
			Help: "Total number of orders placed",
		}),
		statusChanges: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "yb_order_status_changes_total",
			Help: "Total number of applied status changes, by target status",
		}, []string{"status"}),
		statusDenied: registerCounter(registerer, prometheus.CounterOpts{
			Name: "yb_order_status_changes_denied_total",
			Help: "Total number of status changes rejected for lack of rights",
		}),
		changeDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "yb_order_status_change_duration_seconds",
			Help:    "Duration of the status change operation including fan-out",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "yb_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "yb_outbox_events_enqueued_total",
			Help: "Total number of outbox events enqueued",
		}),
		reservations: registerCounter(registerer, prometheus.CounterOpts{
			Name: "yb_reservations_booked_total",
			Help: "Total number of table reservations booked",
		}),
		reservationClashes: registerCounter(registerer, prometheus.CounterOpts{
			Name: "yb_reservation_conflicts_total",
			Help: "Total number of reservations rejected because the slot was taken",
		}),
	}
}

// RecordOrderPlaced увеличивает счётчик оформленных заказов.
func (m *OrderMetrics) RecordOrderPlaced() {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
}

// RecordStatusChange учитывает применённую смену статуса и её длительность.
func (m *OrderMetrics) RecordStatusChange(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
	m.changeDuration.Observe(duration.Seconds())
}

// RecordStatusDenied учитывает отказ в смене статуса.
func (m *OrderMetrics) RecordStatusDenied() {
	if m == nil {
		return
	}
	m.statusDenied.Inc()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *OrderMetrics) RecordTimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *OrderMetrics) RecordOutboxEvent() {
	if m == nil {
		return
	}
	m.outboxEvents.Inc()
}

func (m *OrderMetrics) RecordReservation() {
	if m == nil {
		return
	}
	m.reservations.Inc()
}

func (m *OrderMetrics) RecordReservationConflict() {
	if m == nil {
		return
	}
	m.reservationClashes.Inc()
}
