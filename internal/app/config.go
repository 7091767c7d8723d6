package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordering/internal/messaging/kafka"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска сервиса и CLI.
type Config struct {
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// Пустой RedisAddr выключает кэш клиентов.
	RedisAddr        string
	CustomerCacheTTL time.Duration

	// Без KafkaBrokers outbox relay не запускается.
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaDLQTopic string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	OTLPEndpoint string
	LogLevel     string
}

// DefaultConfig возвращает настройки для локального запуска на in-memory хранилище.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		CustomerCacheTTL:    5 * time.Minute,
		KafkaTopic:          kafka.TopicOrderEvents,
		KafkaDLQTopic:       kafka.TopicDeadLetterQueue,
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    50 * time.Millisecond,
		LogLevel:            "info",
	}
}

// LookupFunc совпадает по сигнатуре с os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ConfigFromEnv читает переопределения из окружения.
// Нераспознанные значения не прерывают запуск: остаётся значение по умолчанию,
// а в warnings попадает описание проблемы.
func ConfigFromEnv(lookup LookupFunc) (Config, []string) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg := DefaultConfig()
	r := envReader{lookup: lookup}

	r.str("ORDERING_GRPC_ADDR", &cfg.GRPCAddr)
	r.str("ORDERING_METRICS_ADDR", &cfg.MetricsAddr)
	r.str("ORDERING_STORAGE_DRIVER", &cfg.StorageDriver)
	r.str("ORDERING_POSTGRES_DSN", &cfg.PostgresDSN)
	r.boolean("ORDERING_POSTGRES_AUTO_MIGRATE", &cfg.PostgresAutoMigrate)
	r.str("ORDERING_REDIS_ADDR", &cfg.RedisAddr)
	r.duration("ORDERING_CUSTOMER_CACHE_TTL", &cfg.CustomerCacheTTL)
	r.list("KAFKA_BROKERS", &cfg.KafkaBrokers)
	r.str("ORDERING_KAFKA_TOPIC", &cfg.KafkaTopic)
	r.str("ORDERING_KAFKA_DLQ_TOPIC", &cfg.KafkaDLQTopic)
	r.duration("ORDERING_OUTBOX_POLL_INTERVAL", &cfg.OutboxPollInterval)
	r.positiveInt("ORDERING_OUTBOX_BATCH_SIZE", &cfg.OutboxBatchSize)
	r.positiveInt("ORDERING_OUTBOX_MAX_ATTEMPTS", &cfg.OutboxMaxAttempts)
	r.duration("ORDERING_OUTBOX_RETRY_DELAY", &cfg.OutboxRetryDelay)
	r.str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.OTLPEndpoint)
	r.str("ORDERING_LOG_LEVEL", &cfg.LogLevel)

	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	return cfg, r.warnings
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres storage requires ORDERING_POSTGRES_DSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}
	if len(c.KafkaBrokers) > 0 && strings.TrimSpace(c.KafkaTopic) == "" {
		errs = append(errs, errors.New("kafka topic must not be empty"))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level: %w", err))
	}
	return errors.Join(errs...)
}

type envReader struct {
	lookup   LookupFunc
	warnings []string
}

func (r *envReader) get(key string) (string, bool) {
	v, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *envReader) warn(key, value string, err error) {
	r.warnings = append(r.warnings, fmt.Sprintf("%s=%q ignored: %v", key, value, err))
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *envReader) boolean(key string, dst *bool) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.warn(key, v, err)
		return
	}
	*dst = b
}

func (r *envReader) duration(key string, dst *time.Duration) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err == nil && d < 0 {
		err = errors.New("must not be negative")
	}
	if err != nil {
		r.warn(key, v, err)
		return
	}
	*dst = d
}

func (r *envReader) positiveInt(key string, dst *int) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err == nil && n <= 0 {
		err = errors.New("must be positive")
	}
	if err != nil {
		r.warn(key, v, err)
		return
	}
	*dst = n
}

func (r *envReader) list(key string, dst *[]string) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	var items []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	*dst = items
}
