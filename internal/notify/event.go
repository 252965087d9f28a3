package notify

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
)

// EventType различает события на проводе.
type EventType string

// EventStatusChanged пока единственный тип события.
const EventStatusChanged EventType = "status_changed"

var (
	// ErrUnknownEventType — событие неизвестного типа; клиент может его проигнорировать.
	ErrUnknownEventType = errors.New("unknown event type")
	// ErrMalformedEvent — сообщение не удалось разобрать или оно не прошло проверку.
	ErrMalformedEvent = errors.New("malformed event")
)

// Event описывает сообщение, которое хаб рассылает наблюдателям заказа.
// Формат: {"type":"status_changed","order_id":"...","status":"Confirmed"}.
// Минимальное сообщение канала {"status":"Confirmed"} тоже допустимо: заказ
// определяется подключением.
type Event struct {
	Type    EventType          `json:"type" validate:"required"`
	OrderID string             `json:"order_id,omitempty"`
	Status  domain.OrderStatus `json:"status" validate:"required,order_status"`
}

// StatusChanged строит событие смены статуса.
func StatusChanged(orderID string, status domain.OrderStatus) Event {
	return Event{Type: EventStatusChanged, OrderID: orderID, Status: status}
}

// Encode сериализует событие в JSON.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("order_status", func(fl validator.FieldLevel) bool {
		return domain.OrderStatus(fl.Field().String()).Valid()
	}); err != nil {
		panic(fmt.Sprintf("register order_status validation: %v", err))
	}
	return v
}

// DecodeEvent разбирает и проверяет сообщение канала.
// Сообщение без полей type и order_id трактуется как смена статуса заказа этого канала.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.Type == "" {
		ev.Type = EventStatusChanged
	}
	if ev.Type != EventStatusChanged {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEventType, ev.Type)
	}
	if err := validate.Struct(ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return ev, nil
}
