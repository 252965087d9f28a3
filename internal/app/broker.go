package app

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
	"github.com/vladislavdragonenkov/yummybites/internal/health"
	"github.com/vladislavdragonenkov/yummybites/internal/messaging"
	"github.com/vladislavdragonenkov/yummybites/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/yummybites/internal/messaging/rabbitmq"
)

// brokerDeps — транспорт смен статуса между инстансами.
// Без брокера publisher равен nil, и события доходят только до локального хаба.
type brokerDeps struct {
	publisher domain.OutboxPublisher
	dlq       domain.OutboxPublisher
	runRelay  func(ctx context.Context) error
	checker   health.Checker
	closeFn   func()
}

func localOnly(message string) brokerDeps {
	return brokerDeps{checker: health.StaticChecker{Name: "broker", Status: health.StatusDegraded, Message: message}}
}

func (b brokerDeps) close() {
	if b.closeFn != nil {
		b.closeFn()
	}
}

// initBroker подключает Kafka или RabbitMQ. Ошибка подключения не фатальна:
// сервис продолжает работать в пределах одного инстанса.
func initBroker(cfg Config, relay *messaging.Relay, logger *log.Entry) brokerDeps {
	switch cfg.Broker {
	case BrokerKafka:
		return initKafka(cfg, relay, logger)
	case BrokerRabbitMQ:
		return initRabbitMQ(cfg, relay, logger)
	default:
		logger.Info("broker is disabled, status changes stay on this instance")
		return localOnly("disabled")
	}
}

func initKafka(cfg Config, relay *messaging.Relay, logger *log.Entry) brokerDeps {
	producer, err := kafka.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return localOnly(err.Error())
	}

	// Группа уникальна для инстанса: каждый инстанс должен получить все события.
	groupID := cfg.KafkaGroupPrefix + "-" + cfg.InstanceID
	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		GroupID: groupID,
		Topics:  []string{cfg.KafkaTopic},
	}, kafka.RelayHandler(relay), producer)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka consumer, continuing without kafka")
		closeKafka(producer, logger)
		return localOnly(err.Error())
	}

	logger.WithFields(log.Fields{
		"brokers":  cfg.KafkaBrokers,
		"topic":    cfg.KafkaTopic,
		"group_id": groupID,
	}).Info("kafka initialized")

	return brokerDeps{
		publisher: kafka.NewOutboxPublisher(producer, cfg.KafkaTopic),
		dlq:       kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue),
		runRelay: func(ctx context.Context) error {
			if err := consumer.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return consumer.Stop()
		},
		checker: health.StaticChecker{Name: "broker", Status: health.StatusHealthy, Message: "kafka"},
		closeFn: func() { closeKafka(producer, logger) },
	}
}

func initRabbitMQ(cfg Config, relay *messaging.Relay, logger *log.Entry) brokerDeps {
	conn, err := rabbitmq.Dial(cfg.RabbitURL)
	if err != nil {
		logger.WithError(err).Warn("failed to connect to rabbitmq, continuing without broker")
		return localOnly(err.Error())
	}

	logger.WithField("exchange", cfg.RabbitExchange).Info("rabbitmq initialized")

	consumer := rabbitmq.NewConsumer(conn, cfg.RabbitExchange, relay.Handle, 0)
	return brokerDeps{
		publisher: rabbitmq.NewPublisher(conn, cfg.RabbitExchange),
		runRelay:  consumer.Run,
		checker:   health.StaticChecker{Name: "broker", Status: health.StatusHealthy, Message: "rabbitmq"},
		closeFn: func() {
			if err := conn.Close(); err != nil {
				logger.WithError(err).Warn("failed to close rabbitmq connection")
			}
		},
	}
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
