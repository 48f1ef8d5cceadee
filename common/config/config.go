package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted by the *_BACKEND variables
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
	BackendRedis    = "redis"
	BackendFS       = "fs"
	BackendS3       = "s3"
)

// Config holds all service configuration
type Config struct {
	Service   ServiceConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Queue     QueueConfig
	Catalog   CatalogConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name          string
	Port          int
	Environment   string
	LogLevel      string
	LogFormat     string
	PublicBaseURL string
	MaxUploadMB   int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	CORSOrigins   []string
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig selects where each store keeps its state
type StorageConfig struct {
	CatalogBackend    string // memory | postgres | badger
	EngagementBackend string // memory | redis | postgres
	PayloadBackend    string // memory | fs | s3
	BadgerDir         string
	PayloadDir        string
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
}

// QueueConfig holds domain event settings
type QueueConfig struct {
	Type        string // memory | redis
	EventsTopic string
}

// CatalogConfig holds catalog policy settings
type CatalogConfig struct {
	AdmissionRule string // CEL expression over entry.title / entry.duration
}

// RateLimitConfig holds per-caller limits for engagement endpoints
type RateLimitConfig struct {
	Enabled       bool
	UserLimit     int64
	WindowSeconds int
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof   bool
	PprofPort     int
	EnableMetrics bool
	MetricsPort   int
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:          serviceName,
			Port:          getEnvInt("PORT", 8080),
			Environment:   getEnv("ENVIRONMENT", "development"),
			LogLevel:      getEnv("LOG_LEVEL", "info"),
			LogFormat:     getEnv("LOG_FORMAT", "text"),
			PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
			MaxUploadMB:   getEnvInt("MAX_UPLOAD_MB", 512),
			ReadTimeout:   getEnvDuration("HTTP_READ_TIMEOUT", 5*time.Minute),
			WriteTimeout:  getEnvDuration("HTTP_WRITE_TIMEOUT", 5*time.Minute),
			CORSOrigins:   getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "mediacatalog"),
			User:        getEnv("POSTGRES_USER", "mediacatalog"),
			Password:    getEnv("POSTGRES_PASSWORD", "mediacatalog"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 20),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 2),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			CatalogBackend:    getEnv("CATALOG_BACKEND", BackendMemory),
			EngagementBackend: getEnv("ENGAGEMENT_BACKEND", BackendMemory),
			PayloadBackend:    getEnv("PAYLOAD_BACKEND", BackendMemory),
			BadgerDir:         getEnv("BADGER_DIR", "./data/catalog"),
			PayloadDir:        getEnv("PAYLOAD_DIR", "./data/payloads"),
			S3Bucket:          getEnv("S3_BUCKET_NAME", "mediacatalog-payloads"),
			S3Region:          getEnv("S3_REGION", "us-east-1"),
			S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		},
		Queue: QueueConfig{
			Type:        getEnv("QUEUE_TYPE", BackendMemory),
			EventsTopic: getEnv("EVENTS_TOPIC", "catalog.events"),
		},
		Catalog: CatalogConfig{
			AdmissionRule: getEnv("ENTRY_ADMISSION_RULE", "entry.duration >= 0"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getEnvBool("RATE_LIMIT_ENABLED", false),
			UserLimit:     int64(getEnvInt("RATE_LIMIT_USER_LIMIT", 120)),
			WindowSeconds: getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		},
		Telemetry: TelemetryConfig{
			EnablePprof:   getEnvBool("ENABLE_PPROF", false),
			PprofPort:     getEnvInt("PPROF_PORT", 6060),
			EnableMetrics: getEnvBool("ENABLE_METRICS", true),
			MetricsPort:   getEnvInt("METRICS_PORT", 9090),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Service.MaxUploadMB < 1 {
		return fmt.Errorf("max upload size must be positive, got %d MB", c.Service.MaxUploadMB)
	}

	if err := oneOf("CATALOG_BACKEND", c.Storage.CatalogBackend, BackendMemory, BackendPostgres, BackendBadger); err != nil {
		return err
	}
	if err := oneOf("ENGAGEMENT_BACKEND", c.Storage.EngagementBackend, BackendMemory, BackendRedis, BackendPostgres); err != nil {
		return err
	}
	if err := oneOf("PAYLOAD_BACKEND", c.Storage.PayloadBackend, BackendMemory, BackendFS, BackendS3); err != nil {
		return err
	}
	if err := oneOf("QUEUE_TYPE", c.Queue.Type, BackendMemory, BackendRedis); err != nil {
		return err
	}

	// Likes reference catalog rows through a foreign key
	if c.Storage.EngagementBackend == BackendPostgres && c.Storage.CatalogBackend != BackendPostgres {
		return fmt.Errorf("postgres engagement backend requires the postgres catalog backend")
	}

	// Memory catalog ids restart at 1, so durable payloads or likers
	// would attach to whichever new entry reuses an old id
	if c.Storage.CatalogBackend == BackendMemory &&
		(c.Storage.PayloadBackend != BackendMemory || c.Storage.EngagementBackend != BackendMemory) {
		return fmt.Errorf("memory catalog backend requires memory payload and engagement backends")
	}

	if c.NeedsDatabase() {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return fmt.Errorf("max_conns must be >= min_conns")
		}
	}

	if c.Storage.PayloadBackend == BackendS3 && c.Storage.S3Bucket == "" {
		return fmt.Errorf("S3_BUCKET_NAME is required for the s3 payload backend")
	}

	if c.RateLimit.Enabled && (c.RateLimit.UserLimit < 1 || c.RateLimit.WindowSeconds < 1) {
		return fmt.Errorf("rate limit and window must be positive")
	}

	return nil
}

// NeedsDatabase reports whether any backend is Postgres
func (c *Config) NeedsDatabase() bool {
	return c.Storage.CatalogBackend == BackendPostgres || c.Storage.EngagementBackend == BackendPostgres
}

// NeedsRedis reports whether any component talks to Redis
func (c *Config) NeedsRedis() bool {
	return c.Storage.EngagementBackend == BackendRedis || c.Queue.Type == BackendRedis || c.RateLimit.Enabled
}

// NeedsKV reports whether the embedded badger store must be opened
func (c *Config) NeedsKV() bool {
	return c.Storage.CatalogBackend == BackendBadger
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// RedisAddr returns host:port for the Redis client
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func oneOf(name, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q (allowed: %s)", name, value, strings.Join(allowed, ", "))
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
