package configs

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/apesoftware1/Memorial-sub001/internal/constants"
)

// Backend names accepted by STORAGE_BACKEND and SYNC_BACKEND.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendRabbitMQ = "rabbitmq"
)

type RESTconfig struct {
	Port           string
	AllowedOrigins []string
}

type StorageConfig struct {
	Backend    string
	QuotaBytes int64

	SQLitePath  string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type SyncConfig struct {
	Backend     string
	RabbitMQURL string
	Exchange    string
}

type CatalogueConfig struct {
	URL     string
	Timeout time.Duration
}

type FavoritesConfig struct {
	CacheDuration  time.Duration
	BackupInterval time.Duration
	TabIdleTimeout time.Duration
}

type StdoutLogConfig struct {
	Level string
	JSON  bool
}

type FluentBitConfig struct {
	Host    string
	Port    int
	Enabled bool
	Level   string
}

// AppConfig - configuration of the service and of favoritesctl.
type AppConfig struct {
	AppName      string
	Rest         RESTconfig
	Storage      StorageConfig
	Sync         SyncConfig
	Catalogue    CatalogueConfig
	Favorites    FavoritesConfig
	FluentBit    FluentBitConfig
	StdoutLogger StdoutLogConfig
}

// LoadConfig reads the environment, after loading a .env file when present.
func LoadConfig(envPath ...string) (*AppConfig, error) {
	var err error
	if len(envPath) > 0 {
		err = godotenv.Load(envPath[0])
	} else {
		err = godotenv.Load()
	}
	if err != nil {
		log.Printf("Info: Could not load .env file (path: %v): %v. Using environment only.\n", envPath, err)
	}

	cfg := &AppConfig{}

	cfg.AppName = getEnvAsString("APP_NAME", "favorites-service")

	cfg.Rest.Port = getEnvAsString("PORT", "8083")
	cfg.Rest.AllowedOrigins = getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"})

	cfg.Storage.Backend = strings.ToLower(getEnvAsString("STORAGE_BACKEND", BackendMemory))
	cfg.Storage.QuotaBytes = getEnvAsInt64("STORAGE_QUOTA_BYTES", constants.DefaultQuotaBytes)
	cfg.Storage.SQLitePath = getEnvAsString("SQLITE_PATH", "favorites.db")
	cfg.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.Storage.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.Storage.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.Storage.RedisDB = getEnvAsInt("REDIS_DB", 0)

	cfg.Sync.Backend = strings.ToLower(getEnvAsString("SYNC_BACKEND", BackendMemory))
	cfg.Sync.RabbitMQURL = os.Getenv("RABBITMQ_URL")
	cfg.Sync.Exchange = getEnvAsString("SYNC_EXCHANGE", constants.StorageEventsExchange)

	cfg.Catalogue.URL = os.Getenv("CATALOGUE_API_URL")
	cfg.Catalogue.Timeout = getEnvAsDuration("CATALOGUE_API_TIMEOUT", 5*time.Second)

	cfg.Favorites.CacheDuration = getEnvAsDuration("CACHE_DURATION", constants.CacheDuration)
	cfg.Favorites.BackupInterval = getEnvAsDuration("BACKUP_INTERVAL", constants.BackupInterval)
	cfg.Favorites.TabIdleTimeout = getEnvAsDuration("TAB_IDLE_TIMEOUT", constants.TabIdleTimeout)

	cfg.FluentBit.Enabled = getEnvAsBool("FLUENTBIT_ENABLED", false)
	if cfg.FluentBit.Enabled {
		cfg.FluentBit.Host = os.Getenv("FLUENTBIT_HOST")
		if cfg.FluentBit.Host == "" {
			log.Println("WARNING: FLUENTBIT_ENABLED is true, but FLUENTBIT_HOST is not set. Disabling Fluent Bit.")
			cfg.FluentBit.Enabled = false
		}
		cfg.FluentBit.Port = getEnvAsInt("FLUENTBIT_PORT", 24224)
		cfg.FluentBit.Level = getEnvAsString("FLUENTBIT_LOG_LEVEL", "info")
	}

	cfg.StdoutLogger.Level = getEnvAsString("STDOUT_LOG_LEVEL", "debug")
	cfg.StdoutLogger.JSON = getEnvAsBool("STDOUT_LOG_JSON", false)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected backends have what they need.
func (c *AppConfig) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite storage backend")
		}
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres storage backend")
		}
	case BackendRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis storage backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}

	switch c.Sync.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis sync backend")
		}
	case BackendRabbitMQ:
		if c.Sync.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required for the rabbitmq sync backend")
		}
	default:
		return fmt.Errorf("unknown SYNC_BACKEND %q", c.Sync.Backend)
	}

	if c.Storage.QuotaBytes < 0 {
		return fmt.Errorf("STORAGE_QUOTA_BYTES cannot be negative")
	}
	return nil
}

func getEnvAsString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as int: %v. Using default value: %d\n", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueInt
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as int64: %v. Using default value: %d\n", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valStr, exists := os.LookupEnv(key)
	if !exists || valStr == "" {
		return defaultValue
	}
	valBool, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as bool: %v. Using default value: %t\n", key, valStr, err, defaultValue)
		return defaultValue
	}
	return valBool
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valStr, exists := os.LookupEnv(key)
	if !exists || valStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valStr)
	if err != nil || value <= 0 {
		log.Printf("Warning: Environment variable %s (value: %s) is not a positive duration. Using default value: %s\n", key, valStr, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated value, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valStr, exists := os.LookupEnv(key)
	if !exists || valStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
