package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds everything the server needs, loaded from the environment.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Remote   RemoteConfig
	Refresh  RefreshConfig
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port      int
	JWTSecret string
}

// PostgresConfig configures the plant store.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN renders the lib/pq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig configures the refresh-policy backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RemoteConfig configures the plant service client.
type RemoteConfig struct {
	BaseURL string
	Timeout time.Duration
}

// RefreshConfig configures the refresh gate.
type RefreshConfig struct {
	// Cooldown throttles on-demand refreshes per scope. Zero keeps the
	// default always-permit behavior.
	Cooldown time.Duration
}

// Load reads configuration from environment variables with sane defaults
// for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      getEnvInt("PORT", 8080),
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Postgres: PostgresConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "verdant"),
			Password: getEnv("POSTGRES_PASSWORD", "verdant"),
			Database: getEnv("POSTGRES_DB", "verdant"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Remote: RemoteConfig{
			BaseURL: getEnv("PLANT_SERVICE_URL", "http://localhost:9090/api/v1"),
			Timeout: getEnvDuration("PLANT_SERVICE_TIMEOUT", 15*time.Second),
		},
		Refresh: RefreshConfig{
			Cooldown: getEnvDuration("REFRESH_COOLDOWN", 0),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
