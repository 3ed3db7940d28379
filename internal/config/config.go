// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Delivery modes for webhook events
const (
	DeliveryModeAsync = "async"
	DeliveryModeSync  = "sync"
)

// Queue drivers
const (
	QueueDriverRedis = "redis"
	QueueDriverKafka = "kafka"
)

// Config holds all configuration for our application
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Security SecurityConfig
	Webhook  WebhookConfig
	Queue    QueueConfig
	Catalog  CatalogConfig
	Logging  LoggingConfig
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string
	Version     string
	Environment string
	Debug       bool
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Host         string
	Port         string
	Name         string
	User         string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// JWTConfig contains JWT token configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	RateLimitPerMinute int
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
}

// WebhookConfig controls inbound signature checks and outbound delivery
type WebhookConfig struct {
	// Secret is the shared HMAC key for inbound events. Empty disables verification.
	Secret string
	// DeliveryURL is the single downstream subscriber. Empty means events are
	// considered delivered without any outbound call.
	DeliveryURL     string
	DeliveryTimeout time.Duration
	DeliveryMode    string
	MaxRetries      int
	BackoffBase     time.Duration
	BackoffCap      time.Duration
	SweepInterval   time.Duration
	SweepAge        time.Duration
}

// QueueConfig contains task queue configuration
type QueueConfig struct {
	Driver            string
	Name              string
	Workers           int
	PollInterval      time.Duration
	VisibilityTimeout time.Duration
	EmbeddedWorkers   bool
	KafkaBrokers      []string
	KafkaTopic        string
	KafkaGroupID      string
	// MetricsPort is where cmd/worker serves /metrics
	MetricsPort string
}

// CatalogConfig contains catalog read-path configuration
type CatalogConfig struct {
	CacheTTL time.Duration
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	config := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "ShopSphere Backend"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
			Debug:       getEnvAsBool("APP_DEBUG", true),
		},
		Server: ServerConfig{
			Port:           getEnv("APP_PORT", "8080"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout: getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Name:         getEnv("DB_NAME", "shopsphere"),
			User:         getEnv("DB_USER", "shopsphere"),
			Password:     getEnv("DB_PASSWORD", "shopsphere"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 300*time.Second),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", "change-me-in-production-please-32chars"),
			AccessTokenExpiry: getEnvAsDuration("JWT_ACCESS_EXPIRE", 24*time.Hour),
		},
		Security: SecurityConfig{
			RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 100),
			CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			CORSAllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			CORSAllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Signature"}),
		},
		Webhook: WebhookConfig{
			Secret:          getEnv("WEBHOOK_SECRET", ""),
			DeliveryURL:     getEnv("WEBHOOK_DELIVERY_URL", ""),
			DeliveryTimeout: getEnvAsDuration("WEBHOOK_DELIVERY_TIMEOUT", 5*time.Second),
			DeliveryMode:    getEnv("WEBHOOK_DELIVERY_MODE", DeliveryModeAsync),
			MaxRetries:      getEnvAsInt("WEBHOOK_MAX_RETRIES", 5),
			BackoffBase:     getEnvAsDuration("WEBHOOK_BACKOFF_BASE", 60*time.Second),
			BackoffCap:      getEnvAsDuration("WEBHOOK_BACKOFF_CAP", time.Hour),
			SweepInterval:   getEnvAsDuration("WEBHOOK_SWEEP_INTERVAL", time.Minute),
			SweepAge:        getEnvAsDuration("WEBHOOK_SWEEP_AGE", 2*time.Minute),
		},
		Queue: QueueConfig{
			Driver:            getEnv("QUEUE_DRIVER", QueueDriverRedis),
			Name:              getEnv("QUEUE_NAME", "webhook-delivery"),
			Workers:           getEnvAsInt("QUEUE_WORKERS", 4),
			PollInterval:      getEnvAsDuration("QUEUE_POLL_INTERVAL", time.Second),
			VisibilityTimeout: getEnvAsDuration("QUEUE_VISIBILITY_TIMEOUT", 30*time.Second),
			EmbeddedWorkers:   getEnvAsBool("QUEUE_EMBEDDED_WORKERS", true),
			KafkaBrokers:      getEnvAsSlice("KAFKA_BROKERS", []string{}),
			KafkaTopic:        getEnv("KAFKA_TOPIC", "webhook-delivery"),
			KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "webhook-dispatcher"),
			MetricsPort:       getEnv("WORKER_METRICS_PORT", "9091"),
		},
		Catalog: CatalogConfig{
			CacheTTL: getEnvAsDuration("CATALOG_CACHE_TTL", 60*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}

	if c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("APP_PORT is required")
	}

	switch c.Webhook.DeliveryMode {
	case DeliveryModeAsync, DeliveryModeSync:
	default:
		return fmt.Errorf("WEBHOOK_DELIVERY_MODE must be %q or %q", DeliveryModeAsync, DeliveryModeSync)
	}

	if c.Webhook.MaxRetries < 0 {
		return fmt.Errorf("WEBHOOK_MAX_RETRIES cannot be negative")
	}
	if c.Webhook.DeliveryTimeout <= 0 {
		return fmt.Errorf("WEBHOOK_DELIVERY_TIMEOUT must be positive")
	}

	switch c.Queue.Driver {
	case QueueDriverRedis:
	case QueueDriverKafka:
		if len(c.Queue.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when QUEUE_DRIVER=kafka")
		}
	default:
		return fmt.Errorf("unknown QUEUE_DRIVER %q", c.Queue.Driver)
	}

	if c.Queue.Workers < 1 {
		return fmt.Errorf("QUEUE_WORKERS must be at least 1")
	}

	return nil
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsSyncDelivery reports whether webhook events are delivered inline
func (c *Config) IsSyncDelivery() bool {
	return c.Webhook.DeliveryMode == DeliveryModeSync
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// Helper functions for environment variable parsing

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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
