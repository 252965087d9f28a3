package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
)

// orderRepositoryInMemory — простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Order
	now   func() time.Time
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[string]domain.Order),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create сохраняет новый заказ, если ID ещё не занят.
func (r *orderRepositoryInMemory) Create(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.ErrOrderVersionConflict
	}
	r.items[order.ID] = cloneOrder(order)
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// ListByUser возвращает заказы пользователя, ограничивая выборку limit (если >0).
func (r *orderRepositoryInMemory) ListByUser(_ context.Context, email string, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(o domain.Order) bool { return o.UserEmail == email }, limit), nil
}

// ListAll возвращает все заказы, новые первыми.
func (r *orderRepositoryInMemory) ListAll(_ context.Context, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(domain.Order) bool { return true }, limit), nil
}

func (r *orderRepositoryInMemory) collect(match func(domain.Order) bool, limit int) []domain.Order {
	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		if !match(order) {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// UpdateStatus меняет статус и инкрементирует версию.
func (r *orderRepositoryInMemory) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order.Status = status
	order.Version++
	order.UpdatedAt = r.now()
	r.items[id] = order
	return cloneOrder(order), nil
}

// Stats считает агрегаты по всем заказам.
func (r *orderRepositoryInMemory) Stats(_ context.Context) (domain.OrderStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats domain.OrderStats
	for _, order := range r.items {
		stats.TotalOrders++
		switch order.Status {
		case domain.OrderStatusPending:
			stats.PendingOrders++
		case domain.OrderStatusDelivered:
			stats.DeliveredRevenueMinor += order.TotalMinor
		}
	}
	return stats, nil
}

func cloneOrder(o domain.Order) domain.Order {
	if o.Items != nil {
		items := make([]domain.OrderItem, len(o.Items))
		copy(items, o.Items)
		o.Items = items
	}
	return o
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
