package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation — общий класс ошибок некорректных входных данных.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidStatus возвращается для строки, не входящей в набор статусов заказа.
	ErrInvalidStatus = errors.New("invalid order status")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка неположительной суммы заказа.
	ErrTotalInvalid = errors.New("order total must be greater than zero")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка позиции без названия.
	ErrItemNameRequired = errors.New("item name is required")
	// ErrOrderIDRequired возвращается при пустом идентификаторе заказа.
	ErrOrderIDRequired = errors.New("order_id is required")

	// ErrReservationIncomplete — в брони заполнены не все поля.
	ErrReservationIncomplete = errors.New("reservation form is incomplete")
	ErrFirstNameLength       = errors.New("first name must be 3 to 30 characters")
	ErrLastNameLength        = errors.New("last name must be 3 to 30 characters")
	ErrTableNoRange          = errors.New("table number must be between 1 and 100")
	ErrPhoneInvalid          = errors.New("phone must be exactly 10 digits")
	ErrReservationDate       = errors.New("date must be in YYYY-MM-DD format")
	ErrReservationTime       = errors.New("time must be in HH:MM format")

	// ErrDishIDRequired — оценка без идентификатора блюда.
	ErrDishIDRequired  = errors.New("dish_id is required")
	ErrStarsRange      = errors.New("stars must be between 1 and 5")
	ErrCommentTooLong  = errors.New("comment must be at most 500 characters")
	ErrRatingNotFound  = errors.New("rating not found")
	ErrMenuEmpty       = errors.New("no menu items found")
	ErrMenuItemInvalid = errors.New("menu item is invalid")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrReservationNotFound возвращается, если бронь не найдена.
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrReservationConflict — столик уже занят на эту дату и время.
	ErrReservationConflict = errors.New("reservation conflict")

	// ErrUnauthenticated — учётные данные отсутствуют или недействительны.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden — пользователь опознан, но не имеет прав администратора.
	ErrForbidden = errors.New("forbidden")

	// ErrRatingLoginRequired — гость пытается оценить блюдо.
	ErrRatingLoginRequired = fmt.Errorf("%w: please log in to rate dishes", ErrUnauthenticated)

	// ErrTransientNetwork — временный сбой канала наблюдения; клиент переподключается сам.
	ErrTransientNetwork = errors.New("transient network failure")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// ValidationError собирает все нарушения инвариантов входных данных.
type ValidationError struct {
	Problems []error
}

// NewValidationError возвращает nil, если замечаний нет.
func NewValidationError(problems []error) error {
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Error())
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(msgs, "; "))
}

// Unwrap позволяет сопоставлять как общий класс, так и конкретное нарушение.
func (e *ValidationError) Unwrap() []error {
	out := make([]error, 0, len(e.Problems)+1)
	out = append(out, ErrValidation)
	return append(out, e.Problems...)
}

// ReservationConflictError описывает занятый слот (столик, дата, время).
type ReservationConflictError struct {
	TableNo int
	Date    string
	Time    string
}

func (e *ReservationConflictError) Error() string {
	return fmt.Sprintf("Table %d is already booked for %s at %s. Please choose another time or table.",
		e.TableNo, e.Date, e.Time)
}

func (e *ReservationConflictError) Unwrap() error {
	return ErrReservationConflict
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsValidation сообщает, относится ли ошибка к некорректным входным данным.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidStatus)
}
