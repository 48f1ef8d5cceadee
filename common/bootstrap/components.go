package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/lyzr/mediacatalog/common/config"
	"github.com/lyzr/mediacatalog/common/db"
	"github.com/lyzr/mediacatalog/common/kv"
	"github.com/lyzr/mediacatalog/common/logger"
	"github.com/lyzr/mediacatalog/common/queue"
	"github.com/lyzr/mediacatalog/common/redis"
	"github.com/lyzr/mediacatalog/common/telemetry"
)

// Components holds all initialized service dependencies.
// DB, Redis and KV are nil when no configured backend needs them.
type Components struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        *db.DB
	Redis     *redis.Client
	KV        *kv.KV
	Queue     queue.Queue
	Telemetry *telemetry.Telemetry

	// Internal
	cleanupFuncs []func() error
}

// Shutdown performs graceful shutdown of all components
// Should be called with defer after Setup()
func (c *Components) Shutdown(ctx context.Context) error {
	c.Logger.Info("shutting down components")

	var errs []error

	// LIFO
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			errs = append(errs, err)
			c.Logger.Error("cleanup error", "error", err)
		}
	}
	c.cleanupFuncs = nil

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	c.Logger.Info("shutdown complete")
	return nil
}

// Health checks health of all components
func (c *Components) Health(ctx context.Context) error {
	if c.DB != nil {
		if err := c.DB.Health(ctx); err != nil {
			return fmt.Errorf("database unhealthy: %w", err)
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Ping(ctx); err != nil {
			return fmt.Errorf("redis unhealthy: %w", err)
		}
	}

	if c.KV != nil {
		if err := c.KV.Health(); err != nil {
			return fmt.Errorf("kv unhealthy: %w", err)
		}
	}

	return nil
}

// addCleanup registers a cleanup function
func (c *Components) addCleanup(fn func() error) {
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}
