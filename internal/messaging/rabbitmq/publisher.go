package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
	"github.com/vladislavdragonenkov/yummybites/internal/messaging"
)

// DefaultExchange — fanout-exchange событий заказов.
const DefaultExchange = "yummybites.order_events"

// Publisher публикует outbox-сообщения в fanout-exchange.
type Publisher struct {
	conn     Connection
	exchange string
	now      func() time.Time
}

// NewPublisher создаёт паблишер. Пустой exchange заменяется DefaultExchange.
func NewPublisher(conn Connection, exchange string) *Publisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Publisher{conn: conn, exchange: exchange, now: time.Now}
}

func (p *Publisher) Publish(ctx context.Context, msg domain.OutboxMessage) error {
	if p == nil || p.conn == nil {
		return fmt.Errorf("rabbitmq publisher is not initialized")
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declareExchange(ch, p.exchange); err != nil {
		return err
	}

	envelope := messaging.NewEnvelope(msg, p.now())
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	err = ch.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    envelope.ID,
		Type:         envelope.EventType,
		Timestamp:    envelope.PublishedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func declareExchange(ch Channel, name string) error {
	if err := ch.ExchangeDeclare(name, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", name, err)
	}
	return nil
}

var _ domain.OutboxPublisher = (*Publisher)(nil)
