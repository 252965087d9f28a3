package domain

import (
	"fmt"
	"time"
)

// OrderStatus описывает жизненный цикл заказа; значения совпадают с форматом на проводе.
type OrderStatus string

const (
	// Заказ принят, но ещё не подтверждён рестораном.
	OrderStatusPending OrderStatus = "Pending"
	// Ресторан подтвердил заказ.
	OrderStatusConfirmed OrderStatus = "Confirmed"
	// Заказ готовится на кухне.
	OrderStatusPreparing OrderStatus = "Preparing"
	// Заказ передан курьеру.
	OrderStatusOutForDelivery OrderStatus = "Out for Delivery"
	// Заказ доставлен клиенту.
	OrderStatusDelivered OrderStatus = "Delivered"
	// Заказ отменён.
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// OrderStatuses перечисляет допустимые статусы в порядке жизненного цикла.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusPreparing,
		OrderStatusOutForDelivery,
		OrderStatusDelivered,
		OrderStatusCancelled,
	}
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing,
		OrderStatusOutForDelivery, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// ParseOrderStatus разбирает статус без нормализации регистра: на проводе значения точные.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	Name string
	// PriceMinor — цена за единицу в пайсах.
	PriceMinor int64
	Quantity   int32
	Image      string
}

// DeliveryDetails хранит контакты доставки.
type DeliveryDetails struct {
	Name         string
	Phone        string
	Address      string
	Instructions string
}

// Значения по умолчанию для заказа без данных доставки.
const (
	DefaultDeliveryName    = "Guest User"
	DefaultDeliveryPhone   = "N/A"
	DefaultDeliveryAddress = "Online Order"
)

// WithDefaults подставляет значения по умолчанию в незаполненные поля.
func (d DeliveryDetails) WithDefaults() DeliveryDetails {
	if d.Name == "" {
		d.Name = DefaultDeliveryName
	}
	if d.Phone == "" {
		d.Phone = DefaultDeliveryPhone
	}
	if d.Address == "" {
		d.Address = DefaultDeliveryAddress
	}
	return d
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID         string
	Items      []OrderItem
	TotalMinor int64
	Delivery   DeliveryDetails
	Status     OrderStatus
	// UserEmail пуст для гостевого заказа.
	UserEmail string
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsGuest сообщает, оформлен ли заказ без входа в аккаунт.
func (o *Order) IsGuest() bool {
	return o.UserEmail == ""
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.TotalMinor <= 0 {
		errs = append(errs, ErrTotalInvalid)
	}
	if o.Status != "" && !o.Status.Valid() {
		errs = append(errs, ErrInvalidStatus)
	}

	for _, item := range o.Items {
		if item.Name == "" {
			errs = append(errs, ErrItemNameRequired)
		}
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
	}

	return errs
}

// AdminStats — сводка для панели администратора.
type AdminStats struct {
	TotalOrders   int
	PendingOrders int
	// DeliveredRevenueMinor — выручка только по доставленным заказам.
	DeliveredRevenueMinor int64
	TotalReservations     int
}
