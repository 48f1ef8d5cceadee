package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/lyzr/mediacatalog/common/config"
	"github.com/lyzr/mediacatalog/common/logger"
	"github.com/lyzr/mediacatalog/common/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLimiter(t *testing.T) (*miniredis.Miniredis, *RateLimiter) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return mr, NewRateLimiter(redis.NewClient(raw, logger.Nop()), logger.Nop())
}

func TestCheckUserLimit_FixedWindow(t *testing.T) {
	mr, rl := setupLimiter(t)
	ctx := context.Background()
	policy := Policy{Limit: 2, WindowSeconds: 60}

	for i := 1; i <= 2; i++ {
		res, err := rl.CheckUserLimit(ctx, "alice", policy)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, int64(i), res.CurrentCount)
		assert.Equal(t, int64(0), res.RetryAfterSeconds)
	}

	res, err := rl.CheckUserLimit(ctx, "alice", policy)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(3), res.CurrentCount)
	assert.Equal(t, int64(2), res.Limit)
	assert.Greater(t, res.RetryAfterSeconds, int64(0))

	// Other callers have their own counter
	res, err = rl.CheckUserLimit(ctx, "bob", policy)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	mr.FastForward(61 * time.Second)

	res, err = rl.CheckUserLimit(ctx, "alice", policy)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), res.CurrentCount)
}

func TestGetCurrentCountAndReset(t *testing.T) {
	_, rl := setupLimiter(t)
	ctx := context.Background()

	n, err := rl.GetCurrentCount(ctx, UserKey("carol"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = rl.CheckUserLimit(ctx, "carol", DefaultUserPolicy)
	require.NoError(t, err)

	n, err = rl.GetCurrentCount(ctx, UserKey("carol"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, rl.ResetLimit(ctx, UserKey("carol")))
	n, err = rl.GetCurrentCount(ctx, UserKey("carol"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCheckGlobalLimit(t *testing.T) {
	_, rl := setupLimiter(t)

	res, err := rl.CheckGlobalLimit(context.Background(), GlobalConfig{Limit: 1, WindowSeconds: 60})
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = rl.CheckGlobalLimit(context.Background(), GlobalConfig{Limit: 1, WindowSeconds: 60})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestUserPolicyFromConfig(t *testing.T) {
	assert.Equal(t, DefaultUserPolicy, UserPolicyFromConfig(config.RateLimitConfig{}))
	assert.Equal(t, Policy{Limit: 5, WindowSeconds: 10},
		UserPolicyFromConfig(config.RateLimitConfig{UserLimit: 5, WindowSeconds: 10}))
}
