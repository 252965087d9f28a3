package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

const defaultReconnectDelay = 5 * time.Second

// Handler обрабатывает тело сообщения.
type Handler func(ctx context.Context, body []byte) error

// Consumer читает fanout-exchange через собственную временную очередь,
// поэтому каждый инстанс получает все события.
type Consumer struct {
	conn           Connection
	exchange       string
	handler        Handler
	reconnectDelay time.Duration
	logger         *log.Entry
}

// NewConsumer создаёт consumer. reconnectDelay <= 0 означает 5s.
func NewConsumer(conn Connection, exchange string, handler Handler, reconnectDelay time.Duration) *Consumer {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if reconnectDelay <= 0 {
		reconnectDelay = defaultReconnectDelay
	}
	return &Consumer{
		conn:           conn,
		exchange:       exchange,
		handler:        handler,
		reconnectDelay: reconnectDelay,
		logger:         log.WithFields(log.Fields{"component": "rabbitmq-consumer", "exchange": exchange}),
	}
}

// Run читает сообщения до отмены ctx, переподключаясь после обрывов.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrConnectionClosed) {
			return err
		}

		c.logger.WithError(err).WithField("retry_in", c.reconnectDelay).Warn("consumer disconnected")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *Consumer) consume(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	if err := declareExchange(ch, c.exchange); err != nil {
		return err
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", c.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.WithField("queue", q.Name).Info("rabbitmq consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr, ok := <-closed:
			if ok && amqpErr != nil {
				return fmt.Errorf("channel closed: %w", amqpErr)
			}
			return errors.New("channel closed")
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			// autoAck: повтор события статуса бесполезен, ошибки только логируем
			if err := c.handler(ctx, msg.Body); err != nil {
				c.logger.WithError(err).WithField("message_id", msg.MessageId).Warn("failed to handle message")
			}
		}
	}
}
