package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Registry drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Config holds the application configuration.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	RegistryDriver string
	DatabaseURL    string
	MongoURI       string
	MongoDatabase  string
	RedisURL       string
	RabbitMQURL    string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string
	PushTTL         time.Duration

	DeliveryTimeout         time.Duration
	DeliveryRatePerSec      int
	MaxConcurrentDeliveries int
	MaxPayloadBytes         int
	DefaultIcon             string
	DefaultBadge            string

	JWTSecret          string
	RateLimitPerMinute int
	IdempotencyTTL     time.Duration
	// CORSAllowedOrigins empty allows every origin.
	CORSAllowedOrigins []string

	SweepSchedule      string
	SweepInactiveAfter time.Duration
}

// Load loads the configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		RegistryDriver: strings.ToLower(getEnv("REGISTRY_DRIVER", DriverPostgres)),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		MongoURI:       getEnv("MONGO_URI", ""),
		MongoDatabase:  getEnv("MONGO_DATABASE", "yonsense"),
		RedisURL:       getEnv("REDIS_URL", ""),
		RabbitMQURL:    getEnv("RABBITMQ_URL", ""),

		VAPIDPublicKey:  getEnv("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: getEnv("VAPID_PRIVATE_KEY", ""),
		VAPIDSubject:    getEnv("VAPID_SUBJECT", "mailto:admin@example.com"),
		PushTTL:         getEnvAsDuration("PUSH_TTL", 24*time.Hour),

		DeliveryTimeout:         getEnvAsDuration("DELIVERY_TIMEOUT", 12*time.Second),
		DeliveryRatePerSec:      getEnvAsInt("DELIVERY_RATE_PER_SEC", 50),
		MaxConcurrentDeliveries: getEnvAsInt("MAX_CONCURRENT_DELIVERIES", 64),
		MaxPayloadBytes:         getEnvAsInt("MAX_PAYLOAD_BYTES", 3072),
		DefaultIcon:             getEnv("DEFAULT_ICON", "/icons/icon-192x192.png"),
		DefaultBadge:            getEnv("DEFAULT_BADGE", "/icons/badge-72x72.png"),

		JWTSecret:          getEnv("JWT_SECRET", ""),
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 100),
		IdempotencyTTL:     getEnvAsDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		SweepSchedule:      getEnv("SWEEP_SCHEDULE", "@daily"),
		SweepInactiveAfter: getEnvAsDuration("SWEEP_INACTIVE_AFTER", 30*24*time.Hour),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the settings required at startup are consistent.
func (c *Config) Validate() error {
	switch c.RegistryDriver {
	case DriverPostgres, DriverSQLite:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for registry driver %q", c.RegistryDriver)
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required for registry driver \"mongo\"")
		}
	default:
		return fmt.Errorf("unknown REGISTRY_DRIVER %q", c.RegistryDriver)
	}
	if c.VAPIDPublicKey == "" || c.VAPIDPrivateKey == "" {
		return errors.New("VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY are required")
	}
	if c.DeliveryTimeout <= 0 {
		return errors.New("DELIVERY_TIMEOUT must be positive")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("invalid duration for %s; using default %s", key, defaultValue)
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
		log.Printf("invalid integer for %s; using default %d", key, defaultValue)
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping empty items.
func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
