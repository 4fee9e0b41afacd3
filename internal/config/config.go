package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	DBDriver       string
	DatabaseURL    string
	RedisURL       string
	RabbitMQURL    string
	EventExchange  string
	JWTSecret      string
	Currency       string
	CacheTTL       time.Duration
	Gateway        GatewayConfig
	ReconcileAfter time.Duration
	ReconcileBatch int
}

type GatewayConfig struct {
	BaseURL       string
	ClientID      string
	ClientSecret  string
	APIVersion    string
	WebhookSecret string
	Timeout       time.Duration
	MaxRetries    int
}

func Load() *Config {
	// Load .env file if exists
	godotenv.Load()

	driver := getEnv("DB_DRIVER", "mysql")
	return &Config{
		Port:          getEnv("PORT", "8080"),
		DBDriver:      driver,
		DatabaseURL:   getEnv("DATABASE_URL", mysqlDSNFromEnv()),
		RedisURL:      getEnv("REDIS_URL", ""),
		RabbitMQURL:   getEnv("RABBITMQ_URL", ""),
		EventExchange: getEnv("EVENT_EXCHANGE", "order.exchange"),
		JWTSecret:     getEnv("JWT_SECRET", "your_jwt_secret"),
		Currency:      getEnv("CURRENCY", "INR"),
		CacheTTL:      getEnvAsDuration("CACHE_TTL", time.Minute),
		Gateway: GatewayConfig{
			BaseURL:       getEnv("GATEWAY_BASE_URL", "https://sandbox.cashfree.com/pg"),
			ClientID:      getEnv("GATEWAY_CLIENT_ID", ""),
			ClientSecret:  getEnv("GATEWAY_CLIENT_SECRET", ""),
			APIVersion:    getEnv("GATEWAY_API_VERSION", "2023-08-01"),
			WebhookSecret: getEnv("GATEWAY_WEBHOOK_SECRET", ""),
			Timeout:       getEnvAsDuration("GATEWAY_TIMEOUT", 10*time.Second),
			MaxRetries:    getEnvAsInt("GATEWAY_MAX_RETRIES", 3),
		},
		ReconcileAfter: getEnvAsDuration("RECONCILE_AFTER", 10*time.Minute),
		ReconcileBatch: getEnvAsInt("RECONCILE_BATCH", 50),
	}
}

func mysqlDSNFromEnv() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		os.Getenv("MYSQL_USER"),
		os.Getenv("MYSQL_PASSWORD"),
		getEnv("MYSQL_HOST", "localhost"),
		getEnv("MYSQL_PORT", "3306"),
		os.Getenv("MYSQL_DATABASE"),
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
