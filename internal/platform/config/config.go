package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"casereview/pkg/domain"
)

// Server captures process-level configuration.
type Server struct {
	Addr            string
	Environment     string
	LogLevel        string
	ShutdownTimeout time.Duration
	Review          ReviewConfig
	Database        DatabaseConfig
	Redis           RedisConfig
	Kafka           KafkaConfig
	Outbox          OutboxConfig
	Tracing         TracingConfig
}

// ReviewConfig holds the compliance policy and workflow timing.
type ReviewConfig struct {
	LocalJurisdiction       string
	RequiredLocalPercentage domain.Decimal
	StorageTimeout          time.Duration
	LockTimeout             time.Duration
	ExpiryInterval          time.Duration
}

// DatabaseConfig enables the Postgres stores when URL is set.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// ConnectRetries is how many times the first ping is retried at startup.
	ConnectRetries int
}

// RedisConfig enables the shared per-case lock when URL is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LockTTL      time.Duration
}

// KafkaConfig enables audit fact publishing when Brokers is set.
type KafkaConfig struct {
	Brokers           string
	ClientID          string
	Topic             string
	Partitions        int32
	ReplicationFactor int16
	Acks              string
	Retries           int
	DeliveryTimeout   time.Duration
}

// OutboxConfig tunes the relay from the outbox table to Kafka.
type OutboxConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// Retention is how long published entries are kept; zero keeps them.
	Retention time.Duration
}

// TracingConfig turns on OpenTelemetry spans exported over OTLP/gRPC.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	Insecure    bool
	SampleRate  float64
}

// Defaults used when the matching variable is unset.
var (
	DefaultRequiredLocalPercentage = domain.DecimalFromInt(51)
	DefaultStorageTimeout          = 5 * time.Second
	DefaultExpiryInterval          = time.Minute
)

// FromEnv builds a Server config from CASEREVIEW_* environment variables.
// Unset variables take their defaults; malformed values are reported.
func FromEnv() (Server, error) {
	e := &envReader{}
	cfg := Server{
		Addr:            e.str("CASEREVIEW_ADDR", ":8080"),
		Environment:     e.str("CASEREVIEW_ENV", "development"),
		LogLevel:        e.str("CASEREVIEW_LOG_LEVEL", "info"),
		ShutdownTimeout: e.duration("CASEREVIEW_SHUTDOWN_TIMEOUT", 10*time.Second),
		Review: ReviewConfig{
			LocalJurisdiction:       e.str("CASEREVIEW_LOCAL_JURISDICTION", "Ghana"),
			RequiredLocalPercentage: e.decimal("CASEREVIEW_REQUIRED_LOCAL_PERCENTAGE", DefaultRequiredLocalPercentage),
			StorageTimeout:          e.duration("CASEREVIEW_STORAGE_TIMEOUT", DefaultStorageTimeout),
			LockTimeout:             e.duration("CASEREVIEW_LOCK_TIMEOUT", DefaultStorageTimeout),
			ExpiryInterval:          e.duration("CASEREVIEW_EXPIRY_INTERVAL", DefaultExpiryInterval),
		},
		Database: DatabaseConfig{
			URL:             e.str("CASEREVIEW_DATABASE_URL", ""),
			MaxOpenConns:    e.integer("CASEREVIEW_DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    e.integer("CASEREVIEW_DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: e.duration("CASEREVIEW_DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnectRetries:  e.integer("CASEREVIEW_DATABASE_CONNECT_RETRIES", 5),
		},
		Redis: RedisConfig{
			URL:          e.str("CASEREVIEW_REDIS_URL", ""),
			PoolSize:     e.integer("CASEREVIEW_REDIS_POOL_SIZE", 10),
			MinIdleConns: e.integer("CASEREVIEW_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.duration("CASEREVIEW_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.duration("CASEREVIEW_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.duration("CASEREVIEW_REDIS_WRITE_TIMEOUT", 3*time.Second),
			LockTTL:      e.duration("CASEREVIEW_REDIS_LOCK_TTL", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:           e.str("CASEREVIEW_KAFKA_BROKERS", ""),
			ClientID:          e.str("CASEREVIEW_KAFKA_CLIENT_ID", "casereview"),
			Topic:             e.str("CASEREVIEW_KAFKA_TOPIC", "casereview.audit.facts"),
			Partitions:        int32(e.integer("CASEREVIEW_KAFKA_PARTITIONS", 3)),
			ReplicationFactor: int16(e.integer("CASEREVIEW_KAFKA_REPLICATION_FACTOR", 1)),
			Acks:              e.str("CASEREVIEW_KAFKA_ACKS", "all"),
			Retries:           e.integer("CASEREVIEW_KAFKA_RETRIES", 3),
			DeliveryTimeout:   e.duration("CASEREVIEW_KAFKA_DELIVERY_TIMEOUT", 30*time.Second),
		},
		Outbox: OutboxConfig{
			BatchSize:    e.integer("CASEREVIEW_OUTBOX_BATCH_SIZE", 100),
			PollInterval: e.duration("CASEREVIEW_OUTBOX_POLL_INTERVAL", time.Second),
			Retention:    e.duration("CASEREVIEW_OUTBOX_RETENTION", 7*24*time.Hour),
		},
		Tracing: TracingConfig{
			Enabled:     e.boolean("CASEREVIEW_TRACING_ENABLED", false),
			ServiceName: e.str("CASEREVIEW_SERVICE_NAME", "casereview"),
			Endpoint:    e.str("CASEREVIEW_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.boolean("CASEREVIEW_OTLP_INSECURE", true),
			SampleRate:  e.float("CASEREVIEW_TRACING_SAMPLE_RATE", 1),
		},
	}
	if e.err != nil {
		return Server{}, e.err
	}
	if cfg.Review.RequiredLocalPercentage.Sign() < 0 || cfg.Review.RequiredLocalPercentage.Cmp(domain.DecimalFromInt(100)) > 0 {
		return Server{}, fmt.Errorf("CASEREVIEW_REQUIRED_LOCAL_PERCENTAGE must be between 0 and 100")
	}
	return cfg, nil
}

// envReader keeps the first parse error so FromEnv can report it once.
type envReader struct {
	err error
}

func (e *envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) fail(key, raw string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s=%q: %w", key, raw, err)
	}
}

func (e *envReader) str(key, def string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return def
}

func (e *envReader) integer(key string, def int) int {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return n
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return d
}

func (e *envReader) boolean(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return b
}

func (e *envReader) float(key string, def float64) float64 {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return f
}

func (e *envReader) decimal(key string, def domain.Decimal) domain.Decimal {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	d, err := domain.ParseDecimal(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return d
}
