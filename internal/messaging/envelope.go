// Package messaging описывает формат сообщений брокера, общий для Kafka и RabbitMQ.
package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
)

// ErrMalformedMessage — сообщение брокера не удалось разобрать.
var ErrMalformedMessage = errors.New("malformed broker message")

// Envelope — конверт outbox-сообщения на проводе.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// NewEnvelope заворачивает outbox-сообщение.
func NewEnvelope(msg domain.OutboxMessage, publishedAt time.Time) Envelope {
	payload := json.RawMessage(msg.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	return Envelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       payload,
		PublishedAt:   publishedAt.UTC(),
	}
}

// Key возвращает ключ партиционирования по id агрегата.
func (e Envelope) Key() string {
	if e.AggregateID != "" {
		return e.AggregateID
	}
	return e.ID
}

// DecodeEnvelope разбирает конверт.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if env.EventType == "" {
		return Envelope{}, fmt.Errorf("%w: event_type is empty", ErrMalformedMessage)
	}
	return env, nil
}

type statusChangedPayload struct {
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	Origin    string    `json:"origin"`
	ChangedAt time.Time `json:"changed_at"`
}

// EncodeStatusChange сериализует полезную нагрузку события OrderStatusChanged.
func EncodeStatusChange(change domain.StatusChange) ([]byte, error) {
	return json.Marshal(statusChangedPayload{
		OrderID:   change.OrderID,
		Status:    string(change.Status),
		Origin:    change.Origin,
		ChangedAt: change.ChangedAt.UTC(),
	})
}

// DecodeStatusChange разбирает и проверяет полезную нагрузку OrderStatusChanged.
func DecodeStatusChange(data []byte) (domain.StatusChange, error) {
	var p statusChangedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.StatusChange{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if p.OrderID == "" {
		return domain.StatusChange{}, fmt.Errorf("%w: order_id is empty", ErrMalformedMessage)
	}
	status, err := domain.ParseOrderStatus(p.Status)
	if err != nil {
		return domain.StatusChange{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return domain.StatusChange{
		OrderID:   p.OrderID,
		Status:    status,
		Origin:    p.Origin,
		ChangedAt: p.ChangedAt,
	}, nil
}
