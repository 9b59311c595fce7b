package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort           string
	APIBaseURL         string
	OrderSubmitPath    string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	QueryStaleTime     time.Duration
	SessionIdleTTL     time.Duration
	MaxRequestBodySize int64
	RedisAddr          string
	RedisPassword      string
	StateDBPath        string
	KafkaBrokers       []string
	Currency           string
	Locale             string
	LogLevel           string
}

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) *Config {
	// a missing .env is fine, the environment may already be populated
	_ = godotenv.Load(envFiles...)

	return &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		APIBaseURL:         strings.TrimRight(getEnv("STOREFRONT_API_URL", "http://localhost:8000/api"), "/"),
		OrderSubmitPath:    getEnv("ORDER_SUBMIT_PATH", "/customer/checkout"),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		QueryStaleTime:     getDuration("QUERY_STALE_TIME", 5*time.Minute),
		SessionIdleTTL:     getDuration("SESSION_IDLE_TTL", 30*time.Minute),
		MaxRequestBodySize: 1 << 20, // 1MB
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		StateDBPath:        getEnv("STATE_DB_PATH", ""),
		KafkaBrokers:       splitList(getEnv("KAFKA_BROKERS", "")),
		Currency:           strings.ToUpper(getEnv("STOREFRONT_CURRENCY", "CAD")),
		Locale:             getEnv("STOREFRONT_LOCALE", "en-CA"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
