package domain

import "time"

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID string
	Type    string
	// Reason для смены статуса содержит новый статус и автора изменения.
	Reason   string
	Occurred time.Time
}
