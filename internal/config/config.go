package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewSettingsHolder),
)

// Config holds process-level configuration read from the environment.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	Timezone    string
	CORSOrigins []string

	SettingsPath string

	StorageBackend   string
	StorageNamespace string
	StorageMaxBytes  int

	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
	DBPath     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AssistEndpoint string
	NodeID         int64
}

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
	BackendRedis    = "redis"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:          getenv("APP_SERVICE", "quickinvoice"),
		AppVersion:       getenv("APP_VERSION", "0.1.0"),
		Environment:      getenv("ENVIRONMENT", "development"),
		HTTPAddr:         getenv("HTTP_ADDR", "localhost:8080"),
		Timezone:         getenv("TIMEZONE", "Local"),
		CORSOrigins:      splitList(getenv("CORS_ORIGINS", "")),
		SettingsPath:     strings.TrimSpace(getenv("SETTINGS_PATH", "")),
		StorageBackend:   normalizeBackend(getenv("STORAGE_BACKEND", BackendSQLite)),
		StorageNamespace: strings.TrimSpace(getenv("STORAGE_NAMESPACE", "default")),
		StorageMaxBytes:  getenvInt("STORAGE_MAX_BYTES", 5*1024*1024),
		DBHost:           getenv("DATABASE_HOST", "localhost"),
		DBPort:           getenv("DATABASE_PORT", "5432"),
		DBName:           getenv("DATABASE_NAME", "quickinvoice"),
		DBUser:           getenv("DATABASE_USER", "postgres"),
		DBPassword:       getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:        getenv("DATABASE_SSLMODE", "disable"),
		DBPath:           getenv("DATABASE_PATH", "quickinvoice.db"),
		RedisAddr:        strings.TrimSpace(getenv("REDIS_ADDR", "localhost:6379")),
		RedisPassword:    strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
		RedisDB:          getenvInt("REDIS_DB", 0),
		AssistEndpoint:   strings.TrimSpace(getenv("ASSIST_ENDPOINT", "")),
		NodeID:           int64(getenvInt("NODE_ID", 1)),
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// Location resolves Timezone, falling back to UTC when it is empty or
// unknown.
func (c Config) Location() *time.Location {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func normalizeBackend(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case BackendMemory, BackendSQLite, BackendPostgres, BackendMySQL, BackendRedis:
		return value
	default:
		return BackendSQLite
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
