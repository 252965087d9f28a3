package kafka

import (
	"context"
	"errors"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/yummybites/internal/messaging"
)

// RelayHandler превращает ретранслятор статусов в MessageHandler.
// Неразборчивые сообщения уходят в DLQ без повторов.
func RelayHandler(relay *messaging.Relay) MessageHandler {
	return func(ctx context.Context, message *sarama.ConsumerMessage) error {
		err := relay.Handle(ctx, message.Value)
		if errors.Is(err, messaging.ErrMalformedMessage) {
			return Permanent(err)
		}
		return err
	}
}
