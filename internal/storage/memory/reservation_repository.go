package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
)

// reservationRepositoryInMemory хранит брони и индекс занятых слотов.
type reservationRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Reservation
	slots map[string]string
}

// NewReservationRepository создаёт in-memory реализацию ReservationRepository.
func NewReservationRepository() domain.ReservationRepository {
	return &reservationRepositoryInMemory{
		items: make(map[string]domain.Reservation),
		slots: make(map[string]string),
	}
}

func slotKey(r domain.Reservation) string {
	return fmt.Sprintf("%d|%s|%s", r.TableNo, r.Date, r.Time)
}

// Create атомарно проверяет слот и сохраняет бронь.
func (r *reservationRepositoryInMemory) Create(_ context.Context, res domain.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := slotKey(res)
	if _, taken := r.slots[key]; taken {
		return res.Conflict()
	}
	r.slots[key] = res.ID
	r.items[res.ID] = res
	return nil
}

func (r *reservationRepositoryInMemory) Get(_ context.Context, id string) (domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.items[id]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return res, nil
}

func (r *reservationRepositoryInMemory) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items), nil
}

var _ domain.ReservationRepository = (*reservationRepositoryInMemory)(nil)
