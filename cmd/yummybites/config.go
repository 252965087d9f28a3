package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/yummybites/internal/app"
)

const (
	envConfigFile             = "YB_CONFIG_FILE"
	envHTTPAddr               = "YB_HTTP_ADDR"
	envGRPCAddr               = "YB_GRPC_ADDR"
	envMetricsAddr            = "YB_METRICS_ADDR"
	envStorageDriver          = "YB_STORAGE_DRIVER"
	envPostgresDSN            = "YB_POSTGRES_DSN"
	envPostgresAutoMigrate    = "YB_POSTGRES_AUTO_MIGRATE"
	envBroker                 = "YB_BROKER"
	envKafkaBrokers           = "YB_KAFKA_BROKERS"
	envKafkaTopic             = "YB_KAFKA_TOPIC"
	envKafkaGroupPrefix       = "YB_KAFKA_GROUP_PREFIX"
	envRabbitURL              = "YB_RABBITMQ_URL"
	envRabbitExchange         = "YB_RABBITMQ_EXCHANGE"
	envJWTSecret              = "YB_JWT_SECRET"
	envAdminEmail             = "YB_ADMIN_EMAIL"
	envCORSOrigins            = "YB_CORS_ORIGINS"
	envWSSendBuffer           = "YB_WS_SEND_BUFFER"
	envMaxSubscribersPerOrder = "YB_MAX_SUBSCRIBERS_PER_ORDER"
	envMenuFile               = "YB_MENU_FILE"
	envOutboxPollInterval     = "YB_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize        = "YB_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts      = "YB_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay       = "YB_OUTBOX_RETRY_DELAY"
	envOutboxRetention        = "YB_OUTBOX_RETENTION"
	envInstanceID             = "YB_INSTANCE_ID"
	envShutdownTimeout        = "YB_SHUTDOWN_TIMEOUT"
	envLogFormat              = "YB_LOG_FORMAT"
	envLogLevel               = "YB_LOG_LEVEL"

	// Имена, под которыми те же настройки задавались раньше.
	legacyKafkaBrokers = "KAFKA_BROKERS"
	legacyJWTSecret    = "SECRET_KEY"
	legacyAdminEmail   = "ADMIN_EMAIL"
)

type envLookup func(key string) (string, bool)

// fileConfig — YAML-файл конфигурации. Пустые поля не меняют значения по умолчанию.
type fileConfig struct {
	HTTPAddr    string `yaml:"http_addr"`
	GRPCAddr    string `yaml:"grpc_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	Storage     struct {
		Driver      string `yaml:"driver"`
		PostgresDSN string `yaml:"postgres_dsn"`
		AutoMigrate *bool  `yaml:"auto_migrate"`
	} `yaml:"storage"`
	Broker struct {
		Kind             string   `yaml:"kind"`
		KafkaBrokers     []string `yaml:"kafka_brokers"`
		KafkaTopic       string   `yaml:"kafka_topic"`
		KafkaGroupPrefix string   `yaml:"kafka_group_prefix"`
		RabbitURL        string   `yaml:"rabbitmq_url"`
		RabbitExchange   string   `yaml:"rabbitmq_exchange"`
	} `yaml:"broker"`
	Auth struct {
		JWTSecret  string `yaml:"jwt_secret"`
		AdminEmail string `yaml:"admin_email"`
	} `yaml:"auth"`
	CORSOrigins            []string `yaml:"cors_origins"`
	WSSendBuffer           int      `yaml:"ws_send_buffer"`
	MaxSubscribersPerOrder *int     `yaml:"max_subscribers_per_order"`
	MenuFile               string   `yaml:"menu_file"`
	Outbox                 struct {
		PollInterval string `yaml:"poll_interval"`
		BatchSize    int    `yaml:"batch_size"`
		MaxAttempts  int    `yaml:"max_attempts"`
		RetryDelay   string `yaml:"retry_delay"`
		Retention    string `yaml:"retention"`
	} `yaml:"outbox"`
	InstanceID      string `yaml:"instance_id"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// readConfigFromEnv собирает конфигурацию: значения по умолчанию, затем YAML-файл
// из YB_CONFIG_FILE, затем переменные окружения. Некорректные значения не прерывают
// запуск: остаётся предыдущее значение, а в warnings попадает описание проблемы.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string
	warn := func(key, raw string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s=%q ignored: %v", key, raw, err))
	}

	if path, ok := lookupTrimmed(lookup, envConfigFile); ok {
		fileWarnings, err := applyConfigFile(&cfg, path)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s=%q ignored: %v", envConfigFile, path, err))
		}
		warnings = append(warnings, fileWarnings...)
	}

	setString := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v, ok := lookupTrimmed(lookup, key); ok {
				*dst = v
				return
			}
		}
	}
	setString(&cfg.HTTPAddr, envHTTPAddr)
	setString(&cfg.GRPCAddr, envGRPCAddr)
	setString(&cfg.MetricsAddr, envMetricsAddr)
	setString(&cfg.PostgresDSN, envPostgresDSN)
	setString(&cfg.KafkaTopic, envKafkaTopic)
	setString(&cfg.KafkaGroupPrefix, envKafkaGroupPrefix)
	setString(&cfg.RabbitURL, envRabbitURL)
	setString(&cfg.RabbitExchange, envRabbitExchange)
	setString(&cfg.JWTSecret, envJWTSecret, legacyJWTSecret)
	setString(&cfg.AdminEmail, envAdminEmail, legacyAdminEmail)
	setString(&cfg.InstanceID, envInstanceID)
	setString(&cfg.MenuFile, envMenuFile)

	if v, ok := lookupTrimmed(lookup, envStorageDriver); ok {
		cfg.StorageDriver = strings.ToLower(v)
	}
	if v, ok := lookupTrimmed(lookup, envBroker); ok {
		cfg.Broker = strings.ToLower(v)
	}
	for _, key := range []string{envKafkaBrokers, legacyKafkaBrokers} {
		if v, ok := lookupTrimmed(lookup, key); ok {
			cfg.KafkaBrokers = splitList(v)
			// Старый способ включения Kafka: достаточно указать брокеров.
			if key == legacyKafkaBrokers && cfg.Broker == app.BrokerNone {
				cfg.Broker = app.BrokerKafka
			}
			break
		}
	}
	if v, ok := lookupTrimmed(lookup, envCORSOrigins); ok {
		cfg.CORSOrigins = splitList(v)
	}

	if raw, ok := lookupTrimmed(lookup, envPostgresAutoMigrate); ok {
		if v, err := parseBool(raw); err != nil {
			warn(envPostgresAutoMigrate, raw, err)
		} else {
			cfg.PostgresAutoMigrate = v
		}
	}

	positive := func(v int) bool { return v > 0 }
	intSettings := []struct {
		key   string
		dst   *int
		valid func(int) bool
		rule  string
	}{
		{envWSSendBuffer, &cfg.WSSendBuffer, positive, "must be > 0"},
		{envMaxSubscribersPerOrder, &cfg.MaxSubscribersPerOrder, func(v int) bool { return v >= 0 }, "must be >= 0"},
		{envOutboxBatchSize, &cfg.OutboxBatchSize, positive, "must be > 0"},
		{envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positive, "must be > 0"},
	}
	for _, s := range intSettings {
		raw, ok := lookupTrimmed(lookup, s.key)
		if !ok {
			continue
		}
		if v, err := parseInt(raw, s.valid, s.rule); err != nil {
			warn(s.key, raw, err)
		} else {
			*s.dst = v
		}
	}

	positiveDuration := func(v time.Duration) bool { return v > 0 }
	durationSettings := []struct {
		key   string
		dst   *time.Duration
		valid func(time.Duration) bool
		rule  string
	}{
		{envOutboxPollInterval, &cfg.OutboxPollInterval, positiveDuration, "must be > 0"},
		{envOutboxRetryDelay, &cfg.OutboxRetryDelay, func(v time.Duration) bool { return v >= 0 }, "must be >= 0"},
		{envOutboxRetention, &cfg.OutboxRetention, positiveDuration, "must be > 0"},
		{envShutdownTimeout, &cfg.ShutdownTimeout, positiveDuration, "must be > 0"},
	}
	for _, s := range durationSettings {
		raw, ok := lookupTrimmed(lookup, s.key)
		if !ok {
			continue
		}
		if v, err := parseDuration(raw, s.valid, s.rule); err != nil {
			warn(s.key, raw, err)
		} else {
			*s.dst = v
		}
	}

	return cfg, warnings
}

// applyConfigFile накладывает YAML-файл на cfg.
func applyConfigFile(cfg *app.Config, path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	setIf := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	setIf(&cfg.HTTPAddr, fc.HTTPAddr)
	setIf(&cfg.GRPCAddr, fc.GRPCAddr)
	setIf(&cfg.MetricsAddr, fc.MetricsAddr)
	setIf(&cfg.StorageDriver, strings.ToLower(fc.Storage.Driver))
	setIf(&cfg.PostgresDSN, fc.Storage.PostgresDSN)
	setIf(&cfg.Broker, strings.ToLower(fc.Broker.Kind))
	setIf(&cfg.KafkaTopic, fc.Broker.KafkaTopic)
	setIf(&cfg.KafkaGroupPrefix, fc.Broker.KafkaGroupPrefix)
	setIf(&cfg.RabbitURL, fc.Broker.RabbitURL)
	setIf(&cfg.RabbitExchange, fc.Broker.RabbitExchange)
	setIf(&cfg.JWTSecret, fc.Auth.JWTSecret)
	setIf(&cfg.AdminEmail, fc.Auth.AdminEmail)
	setIf(&cfg.InstanceID, fc.InstanceID)
	setIf(&cfg.MenuFile, fc.MenuFile)

	if fc.Storage.AutoMigrate != nil {
		cfg.PostgresAutoMigrate = *fc.Storage.AutoMigrate
	}
	if len(fc.Broker.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = fc.Broker.KafkaBrokers
	}
	if len(fc.CORSOrigins) > 0 {
		cfg.CORSOrigins = fc.CORSOrigins
	}
	if fc.WSSendBuffer > 0 {
		cfg.WSSendBuffer = fc.WSSendBuffer
	}
	if fc.MaxSubscribersPerOrder != nil && *fc.MaxSubscribersPerOrder >= 0 {
		cfg.MaxSubscribersPerOrder = *fc.MaxSubscribersPerOrder
	}
	if fc.Outbox.BatchSize > 0 {
		cfg.OutboxBatchSize = fc.Outbox.BatchSize
	}
	if fc.Outbox.MaxAttempts > 0 {
		cfg.OutboxMaxAttempts = fc.Outbox.MaxAttempts
	}

	var warnings []string
	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"outbox.poll_interval", fc.Outbox.PollInterval, &cfg.OutboxPollInterval},
		{"outbox.retry_delay", fc.Outbox.RetryDelay, &cfg.OutboxRetryDelay},
		{"outbox.retention", fc.Outbox.Retention, &cfg.OutboxRetention},
		{"shutdown_timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if strings.TrimSpace(d.raw) == "" {
			continue
		}
		v, err := parseDuration(d.raw, func(v time.Duration) bool { return v >= 0 }, "must be >= 0")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %s=%q ignored: %v", path, d.name, d.raw, err))
			continue
		}
		*d.dst = v
	}
	return warnings, nil
}

func lookupTrimmed(lookup envLookup, key string) (string, bool) {
	v, ok := lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q: %w", raw, err)
	}
	if valid != nil && !valid(v) {
		return 0, fmt.Errorf("value %d %s", v, rule)
	}
	return v, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q: %w", raw, err)
	}
	if valid != nil && !valid(v) {
		return 0, fmt.Errorf("value %s %s", v, rule)
	}
	return v, nil
}
