package domain

import "context"

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ошибку, если запись с таким ID уже существует.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// ListByUser возвращает заказы пользователя, новые первыми.
	ListByUser(ctx context.Context, email string, limit int) ([]Order, error)
	// ListAll возвращает все заказы, новые первыми.
	ListAll(ctx context.Context, limit int) ([]Order, error)
	// UpdateStatus меняет статус и увеличивает версию; возвращает обновлённый заказ.
	UpdateStatus(ctx context.Context, id string, status OrderStatus) (Order, error)
	// Stats считает агрегаты по заказам.
	Stats(ctx context.Context) (OrderStats, error)
}

// OrderStats — агрегаты по таблице заказов.
type OrderStats struct {
	TotalOrders           int
	PendingOrders         int
	DeliveredRevenueMinor int64
}

// ReservationRepository описывает хранилище броней.
type ReservationRepository interface {
	// Create сохраняет бронь или возвращает *ReservationConflictError, если слот занят.
	Create(ctx context.Context, r Reservation) error
	// Get возвращает бронь или ErrReservationNotFound.
	Get(ctx context.Context, id string) (Reservation, error)
	Count(ctx context.Context) (int, error)
}

// MenuRepository хранит меню.
type MenuRepository interface {
	// Upsert сохраняет блюдо; запись с тем же ID заменяется.
	Upsert(ctx context.Context, item MenuItem) error
	// List возвращает всё меню, упорядоченное по названию.
	List(ctx context.Context) ([]MenuItem, error)
}

// RatingRepository хранит оценки блюд.
type RatingRepository interface {
	// Upsert сохраняет оценку, заменяя прежнюю оценку того же пользователя.
	Upsert(ctx context.Context, r Rating) error
	// Get возвращает оценку пользователя или ErrRatingNotFound.
	Get(ctx context.Context, dishID, email string) (Rating, error)
	// Recent возвращает последние оценки блюда, новые первыми.
	Recent(ctx context.Context, dishID string, limit int) ([]Rating, error)
	Stats(ctx context.Context, dishID string) (RatingStats, error)
}
