package bootstrap

import (
	"context"
	"fmt"

	"github.com/lyzr/mediacatalog/common/config"
	"github.com/lyzr/mediacatalog/common/db"
	"github.com/lyzr/mediacatalog/common/kv"
	"github.com/lyzr/mediacatalog/common/logger"
	"github.com/lyzr/mediacatalog/common/queue"
	"github.com/lyzr/mediacatalog/common/redis"
	"github.com/lyzr/mediacatalog/common/telemetry"
	goredis "github.com/redis/go-redis/v9"
)

// Setup initializes all service components
// This is the main entry point for all services
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	// 1. Load configuration
	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	cfg := components.Config

	// 2. Initialize logger
	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(cfg.Service.LogLevel, cfg.Service.LogFormat)
	}
	log := components.Logger

	log.Info("initializing service",
		"service", serviceName,
		"environment", cfg.Service.Environment,
		"catalog_backend", cfg.Storage.CatalogBackend,
		"engagement_backend", cfg.Storage.EngagementBackend,
		"payload_backend", cfg.Storage.PayloadBackend,
	)

	fail := func(err error) (*Components, error) {
		_ = components.Shutdown(ctx)
		return nil, err
	}

	// 3. Initialize database (only when a backend lives in Postgres)
	if !options.skipDB && cfg.NeedsDatabase() {
		log.Info("connecting to database")
		components.DB, err = db.New(ctx, cfg, log)
		if err != nil {
			return fail(fmt.Errorf("failed to connect to database: %w", err))
		}

		components.addCleanup(func() error {
			components.DB.Close()
			return nil
		})

		if options.dbInitHook != nil {
			log.Info("running database init hook")
			if err := options.dbInitHook(components.DB); err != nil {
				return fail(fmt.Errorf("database init hook failed: %w", err))
			}
		}
	}

	// 4. Initialize Redis
	if !options.skipRedis && cfg.NeedsRedis() {
		log.Info("connecting to redis", "addr", cfg.RedisAddr())
		raw := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		components.Redis = redis.NewClient(raw, log)

		components.addCleanup(func() error {
			log.Info("closing redis client")
			return components.Redis.Close()
		})

		if err := components.Redis.Ping(ctx); err != nil {
			return fail(fmt.Errorf("failed to connect to redis: %w", err))
		}
	}

	// 5. Open the embedded KV store
	if !options.skipKV && cfg.NeedsKV() {
		components.KV, err = kv.Open(cfg.Storage.BadgerDir, log)
		if err != nil {
			return fail(fmt.Errorf("failed to open kv store: %w", err))
		}
		components.addCleanup(components.KV.Close)
	}

	// 6. Initialize queue
	if !options.skipQueue {
		log.Info("initializing queue", "type", cfg.Queue.Type)

		switch cfg.Queue.Type {
		case config.BackendMemory:
			components.Queue = queue.NewMemoryQueue(log)
		case config.BackendRedis:
			if components.Redis == nil {
				return fail(fmt.Errorf("redis queue requires a redis connection"))
			}
			components.Queue = queue.NewRedisQueue(components.Redis, log)
		default:
			return fail(fmt.Errorf("unknown queue type: %s", cfg.Queue.Type))
		}

		// Registered after Redis so it closes first
		components.addCleanup(func() error {
			log.Info("closing queue")
			return components.Queue.Close()
		})
	}

	// 7. Initialize telemetry
	pprofAddr, metricsAddr := "", ""
	if !options.skipTelemetry {
		if cfg.Telemetry.EnablePprof {
			pprofAddr = fmt.Sprintf(":%d", cfg.Telemetry.PprofPort)
		}
		if cfg.Telemetry.EnableMetrics {
			metricsAddr = fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort)
		}
	}
	components.Telemetry = telemetry.New(pprofAddr, metricsAddr, log)
	if err := components.Telemetry.Start(ctx); err != nil {
		// Don't fail startup if telemetry fails
		log.Warn("failed to start telemetry", "error", err)
	}
	components.addCleanup(func() error {
		return components.Telemetry.Shutdown(context.Background())
	})

	log.Info("service initialization complete",
		"service", serviceName,
		"db", components.DB != nil,
		"redis", components.Redis != nil,
		"kv", components.KV != nil,
		"queue", components.Queue != nil,
		"pprof", pprofAddr != "",
		"metrics", metricsAddr != "",
	)

	return components, nil
}

// MustSetup is like Setup but panics on error
// Useful for services that can't recover from initialization failure
func MustSetup(ctx context.Context, serviceName string, opts ...Option) *Components {
	components, err := Setup(ctx, serviceName, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to setup service %s: %v", serviceName, err))
	}
	return components
}
