package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

// Config holds all configuration for the application.
// loaded from environment variables, no magic defaults for required fields.
type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Scheduler SchedulerConfig
	Server    ServerConfig
	LogLevel  string `validate:"oneof=debug info warn warning error"`
}

// DatabaseConfig contains database connection parameters.
type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     string `validate:"required,numeric"`
	User     string `validate:"required"`
	Password string `validate:"required"`
	Name     string `validate:"required"`
	SSLMode  string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
	Schema   string `validate:"required,alphanum"`
	// MaxConns caps the pool; zero sizes it from the participant fan-out.
	MaxConns int `validate:"min=0"`
}

// RedisConfig contains the optional redis connection.
// an empty URL disables redis.
type RedisConfig struct {
	URL string `validate:"omitempty,url"`
}

// CacheConfig selects the progress cache backend.
type CacheConfig struct {
	Backend string `validate:"oneof=memory redis"`
	// Size is the entry capacity of the in-memory backend.
	Size int `validate:"min=1"`
}

// SchedulerConfig contains the intervals of the background jobs.
type SchedulerConfig struct {
	PlacementInterval   time.Duration `validate:"gt=0"`
	LeaderboardInterval time.Duration `validate:"gt=0"`
	PlacementThreshold  float64       `validate:"gte=0,lte=100"`
	FanOut              int           `validate:"min=1"`
}

// ServerConfig contains the ops http server settings.
type ServerConfig struct {
	Port string `validate:"required,numeric"`
}

// ConnectionString returns the postgres connection string.
func (c DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&search_path=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
		c.SSLMode,
		c.Schema,
	)
}

// Load reads configuration from environment variables.
// loads .env file if present, but doesn't fail if it's missing.
func Load() (*Config, error) {
	// try to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	scheduler, err := loadSchedulerConfig()
	if err != nil {
		return nil, fmt.Errorf("scheduler config: %w", err)
	}

	cacheSize, err := getEnvInt("CACHE_SIZE", 50000)
	if err != nil {
		return nil, fmt.Errorf("cache config: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 0)
	if err != nil {
		return nil, fmt.Errorf("database config: %w", err)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvOrDefault("DB_PORT", "5432"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     os.Getenv("DB_NAME"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "require"),
			Schema:   getEnvOrDefault("DB_SCHEMA", "cadence"),
			MaxConns: maxConns,
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Cache: CacheConfig{
			Backend: getEnvOrDefault("CACHE_BACKEND", "memory"),
			Size:    cacheSize,
		},
		Scheduler: scheduler,
		Server: ServerConfig{
			Port: getEnvOrDefault("PORT", "8080"),
		},
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and the rules that span sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Cache.Backend == "redis" && c.Redis.URL == "" {
		return errors.New("invalid configuration: CACHE_BACKEND=redis requires REDIS_URL")
	}
	return nil
}

func loadSchedulerConfig() (SchedulerConfig, error) {
	placement, err := getEnvDuration("PLACEMENT_CHECK_INTERVAL", time.Hour)
	if err != nil {
		return SchedulerConfig{}, err
	}
	leaderboard, err := getEnvDuration("LEADERBOARD_CHECK_INTERVAL", 10*time.Minute)
	if err != nil {
		return SchedulerConfig{}, err
	}
	threshold, err := getEnvFloat("PLACEMENT_MIN_PERCENTAGE", 50)
	if err != nil {
		return SchedulerConfig{}, err
	}
	fanOut, err := getEnvInt("PARTICIPANT_FAN_OUT", 8)
	if err != nil {
		return SchedulerConfig{}, err
	}

	return SchedulerConfig{
		PlacementInterval:   placement,
		LeaderboardInterval: leaderboard,
		PlacementThreshold:  threshold,
		FanOut:              fanOut,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 1h or 30m: %w", key, err)
	}
	return d, nil
}
