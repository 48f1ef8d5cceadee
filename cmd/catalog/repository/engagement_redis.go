package repository

import (
	"context"
	_ "embed"
	"fmt"
	"sort"

	"github.com/lyzr/mediacatalog/cmd/catalog/models"
	"github.com/lyzr/mediacatalog/common/redis"
	goredis "github.com/redis/go-redis/v9"
)

var (
	//go:embed scripts/register.lua
	registerScriptSource string
	//go:embed scripts/like.lua
	likeScriptSource string
	//go:embed scripts/unlike.lua
	unlikeScriptSource string
	//go:embed scripts/count.lua
	countScriptSource string
)

// Script sentinels
const (
	scriptMissing  = -1
	scriptConflict = -2
)

// RedisEngagementRegistry keeps liker sets in Redis. Each mutation is one
// Lua script, so Redis serializes every operation on an id.
type RedisEngagementRegistry struct {
	client   *redis.Client
	register *goredis.Script
	like     *goredis.Script
	unlike   *goredis.Script
	count    *goredis.Script
}

// NewRedisEngagementRegistry creates a registry over the shared client
func NewRedisEngagementRegistry(client *redis.Client) *RedisEngagementRegistry {
	return &RedisEngagementRegistry{
		client:   client,
		register: goredis.NewScript(registerScriptSource),
		like:     goredis.NewScript(likeScriptSource),
		unlike:   goredis.NewScript(unlikeScriptSource),
		count:    goredis.NewScript(countScriptSource),
	}
}

func recordKey(id int64) string {
	return fmt.Sprintf("engagement:%d:record", id)
}

func likersKey(id int64) string {
	return fmt.Sprintf("engagement:%d:likers", id)
}

// Register creates an empty record for id, dropping any likers left
// under the same keys
func (r *RedisEngagementRegistry) Register(ctx context.Context, id int64) error {
	_, err := r.run(ctx, r.register, "register engagement", id, nil)
	return err
}

// Like adds caller to the likers of id and returns the new count
func (r *RedisEngagementRegistry) Like(ctx context.Context, id int64, caller string) (int64, error) {
	return r.run(ctx, r.like, "like", id, models.ErrAlreadyLiked, caller)
}

// Unlike removes caller from the likers of id and returns the new count
func (r *RedisEngagementRegistry) Unlike(ctx context.Context, id int64, caller string) (int64, error) {
	return r.run(ctx, r.unlike, "unlike", id, models.ErrNotLiked, caller)
}

// Count returns the number of likers of id
func (r *RedisEngagementRegistry) Count(ctx context.Context, id int64) (int64, error) {
	return r.run(ctx, r.count, "count", id, nil)
}

func (r *RedisEngagementRegistry) run(ctx context.Context, script *goredis.Script, op string, id int64, conflict error, args ...interface{}) (int64, error) {
	res, err := r.client.RunScript(ctx, script, []string{recordKey(id), likersKey(id)}, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", models.ErrStorageFailure, op, err)
	}

	n, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: %s: unexpected script result %T", models.ErrStorageFailure, op, res)
	}

	switch {
	case n == scriptMissing:
		return 0, models.ErrNotFound
	case n == scriptConflict && conflict != nil:
		return 0, conflict
	case n < 0:
		return 0, fmt.Errorf("%w: %s: unexpected script result %d", models.ErrStorageFailure, op, n)
	}
	return n, nil
}

// LikedBy returns the likers of id sorted ascending
func (r *RedisEngagementRegistry) LikedBy(ctx context.Context, id int64) ([]string, error) {
	exists, err := r.client.Exists(ctx, recordKey(id))
	if err != nil {
		return nil, fmt.Errorf("%w: liked by: %w", models.ErrStorageFailure, err)
	}
	if !exists {
		return nil, models.ErrNotFound
	}

	members, err := r.client.Members(ctx, likersKey(id))
	if err != nil {
		return nil, fmt.Errorf("%w: liked by: %w", models.ErrStorageFailure, err)
	}

	sort.Strings(members)
	return members, nil
}

// Counts returns the like count for each id in one pipeline
func (r *RedisEngagementRegistry) Counts(ctx context.Context, ids []int64) (map[int64]int64, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = likersKey(id)
	}

	byKey, err := r.client.CardinalityMany(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("%w: counts: %w", models.ErrStorageFailure, err)
	}

	out := make(map[int64]int64, len(ids))
	for i, id := range ids {
		out[id] = byKey[keys[i]]
	}
	return out, nil
}
