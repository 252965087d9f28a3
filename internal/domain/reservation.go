package domain

import "time"

// Reservation описывает бронь столика. Пара (TableNo, Date, Time) уникальна.
// Date хранится как YYYY-MM-DD, Time как HH:MM.
type Reservation struct {
	ID        string
	FirstName string
	LastName  string
	TableNo   int
	Date      string
	Time      string
	Phone     string
	CreatedAt time.Time
}

// Conflict строит ошибку занятого слота для этой брони.
func (r *Reservation) Conflict() error {
	return &ReservationConflictError{TableNo: r.TableNo, Date: r.Date, Time: r.Time}
}
