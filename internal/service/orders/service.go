// Package orders содержит прикладной слой заказов и смену статуса с уведомлением
// наблюдателей.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
	"github.com/vladislavdragonenkov/yummybites/internal/messaging"
	"github.com/vladislavdragonenkov/yummybites/internal/metrics"
	"github.com/vladislavdragonenkov/yummybites/internal/notify"
)

const (
	// DefaultHistoryLimit — сколько заказов отдаёт история пользователя.
	DefaultHistoryLimit = 50
	// DefaultAdminListLimit — сколько заказов видит администратор.
	DefaultAdminListLimit = 200

	statusLockStripes = 64
)

// Publisher — хаб уведомлений, которому сервис сообщает о смене статуса.
type Publisher interface {
	Publish(orderID string, ev notify.Event) int
}

// ReservationCounter нужен только для админской сводки.
type ReservationCounter interface {
	Count(ctx context.Context) (int, error)
}

// Service остаётся единственной точкой изменения статуса заказа.
type Service struct {
	orders       domain.OrderRepository
	hub          Publisher
	timeline     domain.TimelineRepository
	outbox       domain.OutboxRepository
	reservations ReservationCounter
	metrics      *metrics.OrderMetrics
	logger       *log.Entry
	instanceID   string
	now          func() time.Time
	newID        func() string

	// statusLocks упорядочивают запись и публикацию смен статуса одного заказа.
	statusLocks [statusLockStripes]sync.Mutex
}

// Option настраивает Service.
type Option func(*Service)

// WithTimeline включает запись событий жизненного цикла.
func WithTimeline(repo domain.TimelineRepository) Option {
	return func(s *Service) { s.timeline = repo }
}

// WithOutbox включает постановку событий в transactional outbox.
func WithOutbox(repo domain.OutboxRepository) Option {
	return func(s *Service) { s.outbox = repo }
}

// WithReservations подключает счётчик броней для Stats.
func WithReservations(counter ReservationCounter) Option {
	return func(s *Service) { s.reservations = counter }
}

// WithMetrics подключает метрики.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithInstanceID помечает события outbox идентификатором инстанса.
func WithInstanceID(id string) Option {
	return func(s *Service) { s.instanceID = id }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator подменяет генератор идентификаторов заказов.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// NewService конструирует сервис заказов. hub может быть nil: тогда уведомлений нет.
func NewService(orders domain.OrderRepository, hub Publisher, opts ...Option) *Service {
	s := &Service{
		orders: orders,
		hub:    hub,
		logger: log.WithField("component", "order-service"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrderInput — данные оформления заказа.
type PlaceOrderInput struct {
	Items []domain.OrderItem
	// TotalMinor — итог корзины; 0 означает «посчитать по позициям».
	TotalMinor int64
	Delivery   domain.DeliveryDetails
}

// PlaceOrder сохраняет новый заказ в статусе Pending. Гость может оформить заказ.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput, actor domain.Actor) (domain.Order, error) {
	total := in.TotalMinor
	if total == 0 {
		for _, item := range in.Items {
			total += item.PriceMinor * int64(item.Quantity)
		}
	}

	now := s.now().UTC()
	order := domain.Order{
		ID:         s.newID(),
		Items:      append([]domain.OrderItem(nil), in.Items...),
		TotalMinor: total,
		Delivery:   in.Delivery.WithDefaults(),
		Status:     domain.OrderStatusPending,
		UserEmail:  actor.Email,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := domain.NewValidationError(order.ValidateInvariants()); err != nil {
		return domain.Order{}, err
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}

	s.metrics.RecordOrderPlaced()
	s.appendTimeline(ctx, order.ID, domain.EventOrderPlaced, string(order.Status), now)
	s.enqueue(ctx, order.ID, domain.EventOrderPlaced, orderPlacedPayload{
		OrderID:    order.ID,
		TotalMinor: order.TotalMinor,
		Guest:      order.IsGuest(),
		PlacedAt:   now,
	})

	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"guest":    order.IsGuest(),
		"items":    len(order.Items),
	}).Info("order placed")

	return order, nil
}

// GetOrder возвращает заказ целиком; используется для начальной синхронизации наблюдателя.
func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	if id == "" {
		return domain.Order{}, domain.NewValidationError([]error{domain.ErrOrderIDRequired})
	}
	return s.orders.Get(ctx, id)
}

// History возвращает заказы вошедшего пользователя, новые первыми.
// Лимит вне (0, DefaultHistoryLimit] заменяется на DefaultHistoryLimit.
func (s *Service) History(ctx context.Context, actor domain.Actor, limit int) ([]domain.Order, error) {
	if !actor.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}
	return s.orders.ListByUser(ctx, actor.Email, limit)
}

// ListAll отдаёт администратору все заказы, не больше DefaultAdminListLimit.
func (s *Service) ListAll(ctx context.Context, actor domain.Actor, limit int) ([]domain.Order, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > DefaultAdminListLimit {
		limit = DefaultAdminListLimit
	}
	return s.orders.ListAll(ctx, limit)
}

// Stats считает сводку для панели администратора.
func (s *Service) Stats(ctx context.Context, actor domain.Actor) (domain.AdminStats, error) {
	if err := actor.RequireAdmin(); err != nil {
		return domain.AdminStats{}, err
	}

	orderStats, err := s.orders.Stats(ctx)
	if err != nil {
		return domain.AdminStats{}, fmt.Errorf("order stats: %w", err)
	}
	stats := domain.AdminStats{
		TotalOrders:           orderStats.TotalOrders,
		PendingOrders:         orderStats.PendingOrders,
		DeliveredRevenueMinor: orderStats.DeliveredRevenueMinor,
	}
	if s.reservations != nil {
		n, err := s.reservations.Count(ctx)
		if err != nil {
			return domain.AdminStats{}, fmt.Errorf("count reservations: %w", err)
		}
		stats.TotalReservations = n
	}
	return stats, nil
}

// Timeline возвращает журнал событий заказа.
func (s *Service) Timeline(ctx context.Context, id string) ([]domain.TimelineEvent, error) {
	if _, err := s.orders.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.timeline == nil {
		return nil, nil
	}
	return s.timeline.List(ctx, id)
}

// ChangeStatus меняет статус заказа от имени администратора.
// Запись в хранилище завершается до уведомления наблюдателей.
// Допустим любой переход между статусами.
func (s *Service) ChangeStatus(ctx context.Context, id string, status domain.OrderStatus, actor domain.Actor) (domain.Order, error) {
	started := s.now()

	if err := actor.RequireAdmin(); err != nil {
		s.metrics.RecordStatusDenied()
		s.logger.WithFields(log.Fields{
			"order_id": id,
			"actor":    actor.Email,
		}).Warn("status change denied")
		return domain.Order{}, err
	}
	if !status.Valid() {
		return domain.Order{}, domain.NewValidationError([]error{domain.ErrInvalidStatus})
	}

	unlock := s.lockOrder(id)
	defer unlock()

	current, err := s.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	updated, err := s.orders.UpdateStatus(ctx, id, status)
	if err != nil {
		return domain.Order{}, fmt.Errorf("update status: %w", err)
	}

	changedAt := updated.UpdatedAt
	if changedAt.IsZero() {
		changedAt = s.now().UTC()
	}
	s.appendTimeline(ctx, id, domain.EventOrderStatusChanged,
		fmt.Sprintf("%s -> %s by %s", current.Status, status, actor.Email), changedAt)
	s.enqueueStatusChange(ctx, domain.StatusChange{
		OrderID:   id,
		Status:    status,
		Origin:    s.instanceID,
		ChangedAt: changedAt,
	})

	delivered := 0
	if s.hub != nil {
		delivered = s.hub.Publish(id, notify.StatusChanged(id, status))
	}

	s.metrics.RecordStatusChange(string(status), s.now().Sub(started))
	s.logger.WithFields(log.Fields{
		"order_id":  id,
		"from":      current.Status,
		"to":        status,
		"observers": delivered,
	}).Info("order status changed")

	return updated, nil
}

// lockOrder захватывает полосу блокировки заказа: наблюдатели получают статусы
// в том же порядке, в каком они записаны в хранилище.
func (s *Service) lockOrder(id string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	mu := &s.statusLocks[h.Sum32()%statusLockStripes]
	mu.Lock()
	return mu.Unlock
}

type orderPlacedPayload struct {
	OrderID    string    `json:"order_id"`
	TotalMinor int64     `json:"total_minor"`
	Guest      bool      `json:"guest"`
	PlacedAt   time.Time `json:"placed_at"`
}

func (s *Service) appendTimeline(ctx context.Context, orderID, eventType, reason string, occurred time.Time) {
	if s.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: occurred,
	}
	if err := s.timeline.Append(ctx, event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Warn("failed to append timeline event")
		return
	}
	s.metrics.RecordTimelineEvent()
}

func (s *Service) enqueueStatusChange(ctx context.Context, change domain.StatusChange) {
	if s.outbox == nil {
		return
	}
	payload, err := messaging.EncodeStatusChange(change)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", change.OrderID).Warn("failed to encode status change")
		return
	}
	s.enqueueRaw(ctx, change.OrderID, domain.EventOrderStatusChanged, payload)
}

func (s *Service) enqueue(ctx context.Context, orderID, eventType string, payload any) {
	if s.outbox == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("failed to encode outbox payload")
		return
	}
	s.enqueueRaw(ctx, orderID, eventType, data)
}

func (s *Service) enqueueRaw(ctx context.Context, orderID, eventType string, payload []byte) {
	_, err := s.outbox.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: domain.AggregateOrder,
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       payload,
	})
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Warn("failed to enqueue outbox message")
		return
	}
	s.metrics.RecordOutboxEvent()
}
