package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultOrderWindow is both the auto-confirm delay and the cancellation deadline.
const DefaultOrderWindow = 2 * time.Minute

type HTTPConfig struct {
	Port               string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
}

type MongoConfig struct {
	URI          string
	Database     string
	Transactions bool
}

type RedisConfig struct {
	Addr     string
	Password string
	CartTTL  time.Duration
	// IdempotencyTTL is how long a checkout Idempotency-Key stays claimed.
	IdempotencyTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type AuthConfig struct {
	JWTSecret string
}

type OrdersConfig struct {
	Window          time.Duration
	ConfirmTimeout  time.Duration
	RecoveryEnabled bool
}

type Config struct {
	LogLevel string
	HTTP     HTTPConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Orders   OrdersConfig
}

// Load reads the environment, after merging an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var errs []string
	duration := func(key string, def time.Duration) time.Duration {
		d, err := getDuration(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return d
	}
	boolean := func(key string, def bool) bool {
		b, err := getBool(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return b
	}

	cfg := &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		HTTP: HTTPConfig{
			Port:               getEnv("HTTP_PORT", "5000"),
			RequestTimeout:     duration("HTTP_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout:    duration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxRequestBodySize: 1 << 20, // 1MB
		},
		Mongo: MongoConfig{
			URI:          getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:     getEnv("MONGO_DB_NAME", "storefront"),
			Transactions: boolean("MONGO_TRANSACTIONS", false),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", ""),
			Password:       getEnv("REDIS_PASSWORD", ""),
			CartTTL:        duration("REDIS_CART_TTL", 15*time.Minute),
			IdempotencyTTL: duration("REDIS_IDEMPOTENCY_TTL", 10*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_ORDER_TOPIC", "order-events"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Orders: OrdersConfig{
			Window:          duration("ORDER_CONFIRM_WINDOW", DefaultOrderWindow),
			ConfirmTimeout:  duration("ORDER_CONFIRM_TIMEOUT", 5*time.Second),
			RecoveryEnabled: boolean("ORDER_RECOVERY_ENABLED", true),
		},
	}

	if cfg.Auth.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET is required")
	}
	if cfg.Orders.Window <= 0 {
		errs = append(errs, "ORDER_CONFIRM_WINDOW must be positive")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
