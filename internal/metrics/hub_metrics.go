package metrics

import "github.com/prometheus/client_golang/prometheus"

// Причины, по которым событие не доставлено подписчику.
const (
	DropReasonBackpressure = "backpressure"
	DropReasonClosed       = "closed"
	DropReasonError        = "error"
)

// HubMetrics содержит метрики хаба уведомлений. Нулевой указатель допустим: вызовы игнорируются.
type HubMetrics struct {
	activeSubscriptions prometheus.Gauge
	watchedOrders       prometheus.Gauge
	published           prometheus.Counter
	delivered           prometheus.Counter
	dropped             *prometheus.CounterVec
}

// NewHubMetrics регистрирует метрики хаба в переданном registerer (nil означает глобальный).
func NewHubMetrics(registerer prometheus.Registerer) *HubMetrics {
	registerer = orDefault(registerer)
	return &HubMetrics{
		activeSubscriptions: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "yb_hub_active_subscriptions",
			Help: "Number of live observer channels registered in the hub",
		}),
		watchedOrders: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "yb_hub_watched_orders",
			Help: "Number of orders with at least one observer",
		}),
		published: registerCounter(registerer, prometheus.CounterOpts{
			Name: "yb_hub_published_total",
			Help: "Total number of events published to the hub",
		}),
		delivered: registerCounter(registerer, prometheus.CounterOpts{
			Name: "yb_hub_delivered_total",
			Help: "Total number of events accepted by observer channels",
		}),
		dropped: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "yb_hub_dropped_total",
			Help: "Total number of events dropped, by reason",
		}, []string{"reason"}),
	}
}

// SetSubscriptions выставляет текущие размеры реестра.
func (m *HubMetrics) SetSubscriptions(channels, orders int) {
	if m == nil {
		return
	}
	m.activeSubscriptions.Set(float64(channels))
	m.watchedOrders.Set(float64(orders))
}

// RecordPublish учитывает одну публикацию и число успешных доставок.
func (m *HubMetrics) RecordPublish(delivered int) {
	if m == nil {
		return
	}
	m.published.Inc()
	m.delivered.Add(float64(delivered))
}

// RecordDrop учитывает потерянную доставку.
func (m *HubMetrics) RecordDrop(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}
