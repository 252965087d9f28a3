package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/yummybites/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/yummybites/internal/messaging/rabbitmq"
	"github.com/vladislavdragonenkov/yummybites/internal/notify"
)

// Поддерживаемые хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Поддерживаемые брокеры для рассылки статусов между инстансами.
const (
	BrokerNone     = "none"
	BrokerKafka    = "kafka"
	BrokerRabbitMQ = "rabbitmq"
)

// Config описывает настройки запуска сервиса.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	Broker           string
	KafkaBrokers     []string
	KafkaTopic       string
	KafkaGroupPrefix string
	RabbitURL        string
	RabbitExchange   string

	JWTSecret   string
	AdminEmail  string
	CORSOrigins []string

	WSSendBuffer           int
	MaxSubscribersPerOrder int

	// MenuFile — YAML-файл, из которого меню загружается при старте. Пустой путь не меняет хранилище.
	MenuFile string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	// OutboxRetention — сколько хранить обработанные outbox-сообщения.
	OutboxRetention time.Duration

	// InstanceID отличает события этого инстанса от чужих при ретрансляции.
	InstanceID      string
	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает конфигурацию для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:               ":8000",
		GRPCAddr:               ":50051",
		MetricsAddr:            ":9090",
		StorageDriver:          StorageDriverMemory,
		PostgresAutoMigrate:    true,
		Broker:                 BrokerNone,
		KafkaTopic:             kafka.TopicOrderEvents,
		KafkaGroupPrefix:       "yummybites-relay",
		RabbitExchange:         rabbitmq.DefaultExchange,
		AdminEmail:             "admin@yummybites.com",
		CORSOrigins:            []string{"*"},
		WSSendBuffer:           notify.DefaultQueueSize,
		MaxSubscribersPerOrder: 0,
		OutboxPollInterval:     time.Second,
		OutboxBatchSize:        100,
		OutboxMaxAttempts:      5,
		OutboxRetryDelay:       500 * time.Millisecond,
		OutboxRetention:        24 * time.Hour,
		ShutdownTimeout:        10 * time.Second,
	}
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var problems []error
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			problems = append(problems, errors.New("postgres storage requires a DSN"))
		}
	default:
		problems = append(problems, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}

	switch c.Broker {
	case BrokerNone, "":
	case BrokerKafka:
		if len(c.KafkaBrokers) == 0 {
			problems = append(problems, errors.New("kafka broker requires at least one address"))
		}
	case BrokerRabbitMQ:
		if strings.TrimSpace(c.RabbitURL) == "" {
			problems = append(problems, errors.New("rabbitmq broker requires a URL"))
		}
	default:
		problems = append(problems, fmt.Errorf("unsupported broker %q", c.Broker))
	}

	if c.WSSendBuffer <= 0 {
		problems = append(problems, errors.New("ws send buffer must be > 0"))
	}
	if c.MaxSubscribersPerOrder < 0 {
		problems = append(problems, errors.New("max subscribers per order must be >= 0"))
	}
	return errors.Join(problems...)
}

// instanceID возвращает заданный идентификатор или hostname с случайным суффиксом.
func (c Config) instanceID() string {
	if id := strings.TrimSpace(c.InstanceID); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "yummybites"
	}
	return host + "-" + uuid.NewString()[:8]
}
