package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Client wraps redis.Client with common operations and instrumentation
type Client struct {
	redis  *redis.Client
	logger Logger
}

// NewClient creates a new Redis client wrapper
func NewClient(redisClient *redis.Client, logger Logger) *Client {
	return &Client{
		redis:  redisClient,
		logger: logger,
	}
}

// GetUnderlying returns the underlying redis.Client for advanced operations
func (c *Client) GetUnderlying() *redis.Client {
	return c.redis
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the underlying connection pool
func (c *Client) Close() error {
	return c.redis.Close()
}

// Exists reports whether key exists
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.redis.Exists(ctx, key).Result()
	if err != nil {
		c.logger.Error("redis EXISTS failed", "key", key, "error", err)
		return false, fmt.Errorf("failed to check key %s: %w", key, err)
	}
	return n == 1, nil
}

// Members returns all members of a set
func (c *Client) Members(ctx context.Context, key string) ([]string, error) {
	members, err := c.redis.SMembers(ctx, key).Result()
	if err != nil {
		c.logger.Error("redis SMEMBERS failed", "key", key, "error", err)
		return nil, fmt.Errorf("failed to read set %s: %w", key, err)
	}
	c.logger.Debug("redis SMEMBERS", "key", key, "count", len(members))
	return members, nil
}

// CardinalityMany returns SCARD for each key using a pipeline (single network round-trip)
func (c *Client) CardinalityMany(ctx context.Context, keys []string) (map[string]int64, error) {
	result := make(map[string]int64, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	pipe := c.redis.Pipeline()
	cmds := make([]*redis.IntCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.SCard(ctx, key)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Error("redis pipeline SCARD failed", "key_count", len(keys), "error", err)
		return nil, fmt.Errorf("failed to count sets: %w", err)
	}

	for i, cmd := range cmds {
		result[keys[i]] = cmd.Val()
	}

	c.logger.Debug("redis pipeline SCARD", "requested", len(keys))
	return result, nil
}

// RunScript runs a Lua script atomically (EVALSHA with EVAL fallback)
func (c *Client) RunScript(ctx context.Context, script *redis.Script, keys []string, args ...interface{}) (interface{}, error) {
	res, err := script.Run(ctx, c.redis, keys, args...).Result()
	if err != nil {
		c.logger.Error("redis script failed", "keys", keys, "error", err)
		return nil, fmt.Errorf("failed to run script: %w", err)
	}
	return res, nil
}

// PublishEvent publishes an event to a Redis channel
func (c *Client) PublishEvent(ctx context.Context, channel string, message string) error {
	err := c.redis.Publish(ctx, channel, message).Err()
	if err != nil {
		c.logger.Error("redis PUBLISH failed", "channel", channel, "error", err)
		return fmt.Errorf("failed to publish to channel %s: %w", channel, err)
	}
	c.logger.Debug("redis PUBLISH", "channel", channel)
	return nil
}

// Subscribe subscribes to a channel. Caller closes the returned PubSub.
func (c *Client) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return c.redis.Subscribe(ctx, channel)
}

// Delete removes keys
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	err := c.redis.Del(ctx, keys...).Err()
	if err != nil {
		c.logger.Error("redis DEL failed", "keys", keys, "error", err)
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	c.logger.Debug("redis DEL", "keys", keys)
	return nil
}
