package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env      string `env:"APP_ENV" env-default:"dev"`
	HTTPAddr string `env:"HTTP_ADDR" env-default:":8080"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`

	StorageDriver string `env:"STORAGE_DRIVER" env-default:"memory"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDB       string `env:"MONGO_DB" env-default:"motorent"`
	PostgresDSN   string `env:"POSTGRES_DSN"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	KafkaBrokers       []string      `env:"KAFKA_BROKERS" env-separator:","`
	KafkaTopicPrefix   string        `env:"KAFKA_TOPIC_PREFIX"`
	KafkaCallbackTopic string        `env:"KAFKA_CALLBACK_TOPIC" env-default:"payments.callbacks.v1"`
	KafkaConsumerGroup string        `env:"KAFKA_CONSUMER_GROUP" env-default:"motorent-bookings"`
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" env-default:"500ms"`
	RetryBackoffRaw    string        `env:"RETRY_BACKOFF" env-default:"1s,5s,30s"`
	RetryBackoff       []time.Duration

	IdempotencyTTL   time.Duration `env:"IDEMP_TTL" env-default:"168h"`
	ConflictAttempts int           `env:"CONFLICT_RETRY_ATTEMPTS" env-default:"3"`

	CatalogURL     string        `env:"CATALOG_URL"`
	CatalogTimeout time.Duration `env:"CATALOG_TIMEOUT" env-default:"3s"`
	CatalogTTL     time.Duration `env:"CATALOG_CACHE_TTL" env-default:"1m"`
	AssetFixtures  string        `env:"ASSET_FIXTURES"`

	GatewayMode    string        `env:"GATEWAY_MODE" env-default:"sandbox"`
	GatewayBaseURL string        `env:"GATEWAY_BASE_URL" env-default:"https://api.razorpay.com"`
	GatewayKeyID   string        `env:"GATEWAY_KEY_ID" env-default:"rzp_test_local"`
	GatewaySecret  string        `env:"GATEWAY_KEY_SECRET" env-default:"local-secret"`
	GatewayTimeout time.Duration `env:"GATEWAY_TIMEOUT" env-default:"5s"`

	PendingTimeout time.Duration `env:"PENDING_TIMEOUT" env-default:"30m"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" env-default:"1m"`

	JWTSecret string `env:"JWT_SECRET" env-default:"dev-secret"`
	JWTIssuer string `env:"JWT_ISSUER"`

	S3Endpoint       string `env:"S3_ENDPOINT"`
	S3PublicEndpoint string `env:"S3_PUBLIC_ENDPOINT"`
	S3AccessKey      string `env:"S3_ACCESS_KEY" env-default:"minioadmin"`
	S3SecretKey      string `env:"S3_SECRET_KEY" env-default:"minioadmin"`
	S3Bucket         string `env:"S3_BUCKET" env-default:"motorent-reports"`
	S3UseSSL         bool   `env:"S3_USE_SSL" env-default:"false"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `env:"OTEL_SERVICE_NAME" env-default:"motorent"`
}

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	if path := os.Getenv("ENV_FILE"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	} else {
		_ = godotenv.Load()
	}
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	// A blank value in the environment or .env overrides env-default, so fall back here.
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	if c.StorageDriver == "" {
		c.StorageDriver = DriverMemory
	}
	switch c.StorageDriver {
	case DriverMemory:
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for the mongo driver")
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	c.GatewayMode = strings.ToLower(strings.TrimSpace(c.GatewayMode))
	if c.GatewayMode == "" {
		c.GatewayMode = "sandbox"
	}
	if c.GatewayMode != "sandbox" && c.GatewayMode != "live" {
		return fmt.Errorf("GATEWAY_MODE must be sandbox or live, got %q", c.GatewayMode)
	}
	if c.GatewaySecret == "" {
		return fmt.Errorf("GATEWAY_KEY_SECRET is required")
	}
	if c.PendingTimeout <= 0 {
		return fmt.Errorf("PENDING_TIMEOUT must be positive")
	}
	if c.ConflictAttempts < 1 {
		c.ConflictAttempts = 1
	}

	c.RetryBackoff = nil
	for _, raw := range strings.Split(c.RetryBackoffRaw, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		c.RetryBackoff = append(c.RetryBackoff, d)
	}
	if c.S3PublicEndpoint == "" {
		c.S3PublicEndpoint = c.S3Endpoint
	}
	return nil
}

// Dev reports whether the process runs in a local environment.
func (c Config) Dev() bool {
	return c.Env == "dev" || c.Env == "local"
}
