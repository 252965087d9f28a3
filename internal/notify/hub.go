// Package notify маршрутизирует события смены статуса наблюдателям конкретного заказа.
package notify

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/yummybites/internal/metrics"
)

// ErrTooManySubscribers — превышен лимит наблюдателей одного заказа.
var ErrTooManySubscribers = errors.New("too many subscribers for order")

// ErrHubClosed — хаб остановлен и новых подписок не принимает.
var ErrHubClosed = errors.New("hub is shut down")

// Hub хранит реестр order_id → множество каналов. Время жизни совпадает с процессом.
type Hub struct {
	mu          sync.RWMutex
	subs        map[string]map[Channel]struct{}
	channels    int
	closed      bool
	maxPerOrder int
	metrics     *metrics.HubMetrics
	logger      *log.Entry
}

// Option настраивает Hub.
type Option func(*Hub)

// WithMaxSubscribersPerOrder ограничивает число каналов на заказ (0 отключает лимит).
func WithMaxSubscribersPerOrder(n int) Option {
	return func(h *Hub) {
		if n >= 0 {
			h.maxPerOrder = n
		}
	}
}

// WithMetrics подключает метрики хаба.
func WithMetrics(m *metrics.HubMetrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHub создаёт пустой хаб.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:   make(map[string]map[Channel]struct{}),
		logger: log.WithField("component", "notify-hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe регистрирует канал за заказом. Повторная подписка того же канала ничего не меняет.
func (h *Hub) Subscribe(orderID string, ch Channel) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}

	set, ok := h.subs[orderID]
	if !ok {
		set = make(map[Channel]struct{})
		h.subs[orderID] = set
	}
	if _, dup := set[ch]; dup {
		return nil
	}
	if h.maxPerOrder > 0 && len(set) >= h.maxPerOrder {
		return ErrTooManySubscribers
	}

	set[ch] = struct{}{}
	h.channels++
	h.metrics.SetSubscriptions(h.channels, len(h.subs))
	h.logger.WithField("order_id", orderID).Debugf("observer subscribed (%d watching)", len(set))
	return nil
}

// Unsubscribe снимает регистрацию; отсутствие регистрации не ошибка.
func (h *Hub) Unsubscribe(orderID string, ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.removeLocked(orderID, ch) {
		h.logger.WithField("order_id", orderID).Debug("observer unsubscribed")
	}
}

func (h *Hub) removeLocked(orderID string, ch Channel) bool {
	set, ok := h.subs[orderID]
	if !ok {
		return false
	}
	if _, ok := set[ch]; !ok {
		return false
	}
	delete(set, ch)
	if len(set) == 0 {
		delete(h.subs, orderID)
	}
	h.channels--
	h.metrics.SetSubscriptions(h.channels, len(h.subs))
	return true
}

// Publish рассылает событие всем наблюдателям заказа и возвращает число принявших его каналов.
// Канал, не принявший событие, удаляется из реестра и закрывается; остальные получают событие.
func (h *Hub) Publish(orderID string, ev Event) int {
	h.mu.RLock()
	set := h.subs[orderID]
	targets := make([]Channel, 0, len(set))
	for ch := range set {
		targets = append(targets, ch)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		h.metrics.RecordPublish(0)
		return 0
	}

	delivered := 0
	var failed []Channel
	for _, ch := range targets {
		if err := ch.Deliver(ev); err != nil {
			h.metrics.RecordDrop(dropReason(err))
			h.logger.WithError(err).WithField("order_id", orderID).Warn("drop observer channel")
			failed = append(failed, ch)
			continue
		}
		delivered++
	}
	h.metrics.RecordPublish(delivered)

	if len(failed) > 0 {
		h.mu.Lock()
		for _, ch := range failed {
			h.removeLocked(orderID, ch)
		}
		h.mu.Unlock()
		for _, ch := range failed {
			ch.Close()
		}
	}

	return delivered
}

// Subscribers возвращает число каналов, наблюдающих за заказом.
func (h *Hub) Subscribers(orderID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[orderID])
}

// Shutdown закрывает все каналы и очищает реестр.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	all := h.subs
	h.subs = make(map[string]map[Channel]struct{})
	h.channels = 0
	h.closed = true
	h.metrics.SetSubscriptions(0, 0)
	h.mu.Unlock()

	for _, set := range all {
		for ch := range set {
			ch.Close()
		}
	}
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrChannelBackpressure):
		return metrics.DropReasonBackpressure
	case errors.Is(err, ErrChannelClosed):
		return metrics.DropReasonClosed
	default:
		return metrics.DropReasonError
	}
}
