package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"canchita/internal/cache"
	"canchita/internal/external"
	"canchita/internal/messaging"

	"github.com/joho/godotenv"
)

// Config содержит конфигурацию приложения
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration

	// Свежесть кешей доступности и каталога площадок
	CacheTTL time.Duration
	// Часовой пояс, в котором определяется "сегодня"
	Location *time.Location

	Backend       external.BackendConfig
	Valkey        cache.ValkeyConfig
	NATS          messaging.Config
	Elasticsearch ElasticsearchConfig
}

// Load загружает конфигурацию из .env (если он есть) и переменных окружения
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to read .env file", "error", err)
	}

	return &Config{
		Port:           getEnv("PORT", "8081"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),
		Location: loadLocation(getEnv("TZ_LOCATION", "America/Argentina/Buenos_Aires")),

		Backend: external.BackendConfig{
			BaseURL: getEnv("BACKEND_URL", "http://localhost/BackEnd-Canchita/src/Api"),
			Timeout: time.Duration(getEnvInt("BACKEND_TIMEOUT_SEC", 10)) * time.Second,
		},

		Valkey: cache.ValkeyConfig{
			Enabled:    getEnvBool("VALKEY_ENABLED", false),
			Addr:       getEnv("VALKEY_ADDR", "localhost:6379"),
			Password:   getEnv("VALKEY_PASSWORD", ""),
			DB:         getEnvInt("VALKEY_DB", 0),
			SessionTTL: getEnvDuration("SESSION_TTL", 7*24*time.Hour),
		},

		NATS: messaging.Config{
			Enabled:   getEnvBool("NATS_ENABLED", false),
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "canchita"),
			ClientID:  getEnv("NATS_CLIENT_ID", "canchita-api"),
		},

		Elasticsearch: LoadElasticsearchConfig(),
	}
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("Unknown timezone, using UTC", "location", name, "error", err)
		return time.UTC
	}
	return loc
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленное значение переменной окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
