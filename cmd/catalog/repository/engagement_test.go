package repository

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lyzr/mediacatalog/cmd/catalog/models"
	"github.com/lyzr/mediacatalog/common/logger"
	"github.com/lyzr/mediacatalog/common/redis"
	"github.com/pashagolub/pgxmock/v3"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return mr, redis.NewClient(raw, logger.Nop())
}

func engagementRegistries() map[string]func(t *testing.T) EngagementRegistry {
	return map[string]func(t *testing.T) EngagementRegistry{
		"memory": func(t *testing.T) EngagementRegistry { return NewMemoryEngagementRegistry() },
		"redis": func(t *testing.T) EngagementRegistry {
			_, client := newRedisClient(t)
			return NewRedisEngagementRegistry(client)
		},
	}
}

func TestEngagementRegistry_Contract(t *testing.T) {
	for name, newRegistry := range engagementRegistries() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("register starts empty", func(t *testing.T) {
				r := newRegistry(t)
				require.NoError(t, r.Register(ctx, 9))
				_, err := r.Like(ctx, 9, "alice")
				require.NoError(t, err)

				require.NoError(t, r.Register(ctx, 9))

				likers, err := r.LikedBy(ctx, 9)
				require.NoError(t, err)
				assert.Empty(t, likers)

				n, err := r.Count(ctx, 9)
				require.NoError(t, err)
				assert.Equal(t, int64(0), n)
			})

			t.Run("like and unlike round trip", func(t *testing.T) {
				r := newRegistry(t)
				require.NoError(t, r.Register(ctx, 1))

				n, err := r.Like(ctx, 1, "alice")
				require.NoError(t, err)
				assert.Equal(t, int64(1), n)

				n, err = r.Like(ctx, 1, "bob")
				require.NoError(t, err)
				assert.Equal(t, int64(2), n)

				_, err = r.Like(ctx, 1, "alice")
				assert.ErrorIs(t, err, models.ErrAlreadyLiked)

				likers, err := r.LikedBy(ctx, 1)
				require.NoError(t, err)
				assert.Equal(t, []string{"alice", "bob"}, likers)

				n, err = r.Unlike(ctx, 1, "alice")
				require.NoError(t, err)
				assert.Equal(t, int64(1), n)

				_, err = r.Unlike(ctx, 1, "alice")
				assert.ErrorIs(t, err, models.ErrNotLiked)

				n, err = r.Count(ctx, 1)
				require.NoError(t, err)
				assert.Equal(t, int64(1), n)
			})

			t.Run("unknown id", func(t *testing.T) {
				r := newRegistry(t)
				_, err := r.Like(ctx, 9, "alice")
				assert.ErrorIs(t, err, models.ErrNotFound)
				_, err = r.Unlike(ctx, 9, "alice")
				assert.ErrorIs(t, err, models.ErrNotFound)
				_, err = r.LikedBy(ctx, 9)
				assert.ErrorIs(t, err, models.ErrNotFound)
				_, err = r.Count(ctx, 9)
				assert.ErrorIs(t, err, models.ErrNotFound)
			})

			t.Run("fresh record", func(t *testing.T) {
				r := newRegistry(t)
				require.NoError(t, r.Register(ctx, 2))

				likers, err := r.LikedBy(ctx, 2)
				require.NoError(t, err)
				assert.NotNil(t, likers)
				assert.Empty(t, likers)

				_, err = r.Unlike(ctx, 2, "alice")
				assert.ErrorIs(t, err, models.ErrNotLiked)
			})

			t.Run("likers sorted", func(t *testing.T) {
				r := newRegistry(t)
				require.NoError(t, r.Register(ctx, 3))
				for _, u := range []string{"zoe", "Bob", "alice", "bob"} {
					_, err := r.Like(ctx, 3, u)
					require.NoError(t, err)
				}
				likers, err := r.LikedBy(ctx, 3)
				require.NoError(t, err)
				assert.Equal(t, []string{"Bob", "alice", "bob", "zoe"}, likers)
			})

			t.Run("counts", func(t *testing.T) {
				r := newRegistry(t)
				require.NoError(t, r.Register(ctx, 1))
				require.NoError(t, r.Register(ctx, 2))
				_, err := r.Like(ctx, 1, "alice")
				require.NoError(t, err)

				counts, err := r.Counts(ctx, []int64{1, 2})
				require.NoError(t, err)
				assert.Equal(t, map[int64]int64{1: 1, 2: 0}, counts)
			})

			t.Run("concurrent likes by one caller", func(t *testing.T) {
				r := newRegistry(t)
				require.NoError(t, r.Register(ctx, 4))

				var (
					wg        sync.WaitGroup
					successes atomic.Int64
					rejected  atomic.Int64
				)
				for i := 0; i < 32; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						_, err := r.Like(ctx, 4, "alice")
						switch {
						case err == nil:
							successes.Add(1)
						case assert.ErrorIs(t, err, models.ErrAlreadyLiked):
							rejected.Add(1)
						}
					}()
				}
				wg.Wait()

				assert.Equal(t, int64(1), successes.Load())
				assert.Equal(t, int64(31), rejected.Load())

				n, err := r.Count(ctx, 4)
				require.NoError(t, err)
				assert.Equal(t, int64(1), n)
			})

			t.Run("concurrent likes by many callers", func(t *testing.T) {
				r := newRegistry(t)
				require.NoError(t, r.Register(ctx, 5))

				var wg sync.WaitGroup
				for i := 0; i < 40; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						_, err := r.Like(ctx, 5, fmt.Sprintf("user-%02d", i))
						assert.NoError(t, err)
					}(i)
				}
				wg.Wait()

				n, err := r.Count(ctx, 5)
				require.NoError(t, err)
				assert.Equal(t, int64(40), n)

				likers, err := r.LikedBy(ctx, 5)
				require.NoError(t, err)
				assert.Len(t, likers, 40)
				assert.IsIncreasing(t, likers)
			})
		})
	}
}

func TestRedisEngagementRegistry_Keys(t *testing.T) {
	mr, client := newRedisClient(t)
	r := NewRedisEngagementRegistry(client)
	ctx := context.Background()

	require.NoError(t, r.Register(ctx, 8))
	_, err := r.Like(ctx, 8, "alice")
	require.NoError(t, err)

	assert.True(t, mr.Exists("engagement:8:record"))
	members, err := mr.Members("engagement:8:likers")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, members)

	// Registering again starts over
	require.NoError(t, r.Register(ctx, 8))
	n, err := r.Count(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.False(t, mr.Exists("engagement:8:likers"))
}

func TestRedisEngagementRegistry_RegisterDropsStaleLikers(t *testing.T) {
	mr, client := newRedisClient(t)
	r := NewRedisEngagementRegistry(client)
	ctx := context.Background()

	// Left behind by an earlier process that handed out the same id
	_, err := mr.SetAdd("engagement:1:likers", "alice", "bob")
	require.NoError(t, err)

	require.NoError(t, r.Register(ctx, 1))

	likers, err := r.LikedBy(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, likers)

	counts, err := r.Counts(ctx, []int64{1})
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts[1])

	n, err := r.Like(ctx, 1, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisEngagementRegistry_Unavailable(t *testing.T) {
	mr, client := newRedisClient(t)
	r := NewRedisEngagementRegistry(client)
	mr.Close()

	_, err := r.Like(context.Background(), 1, "alice")
	assert.ErrorIs(t, err, models.ErrStorageFailure)
}

func TestPostgresEngagementRegistry_Like(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	r := NewPostgresEngagementRegistry(mock)
	likeSQL := regexp.QuoteMeta("INSERT INTO entry_likes (entry_id, user_id) VALUES ($1, $2)")

	mock.ExpectQuery(likeSQL).WithArgs(int64(1), "alice").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	n, err := r.Like(ctx, 1, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mock.ExpectQuery(likeSQL).WithArgs(int64(1), "alice").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	_, err = r.Like(ctx, 1, "alice")
	assert.ErrorIs(t, err, models.ErrAlreadyLiked)

	mock.ExpectQuery(likeSQL).WithArgs(int64(2), "alice").
		WillReturnError(&pgconn.PgError{Code: "23503"})
	_, err = r.Like(ctx, 2, "alice")
	assert.ErrorIs(t, err, models.ErrNotFound)

	mock.ExpectQuery(likeSQL).WithArgs(int64(3), "alice").
		WillReturnError(assert.AnError)
	_, err = r.Like(ctx, 3, "alice")
	assert.ErrorIs(t, err, models.ErrStorageFailure)
}

func TestPostgresEngagementRegistry_Unlike(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	r := NewPostgresEngagementRegistry(mock)
	unlikeSQL := regexp.QuoteMeta("DELETE FROM entry_likes WHERE entry_id = $1 AND user_id = $2")
	cols := []string{"exists", "removed", "before"}

	mock.ExpectQuery(unlikeSQL).WithArgs(int64(1), "alice").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(true, int64(1), int64(3)))
	n, err := r.Unlike(ctx, 1, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	mock.ExpectQuery(unlikeSQL).WithArgs(int64(1), "carol").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(true, int64(0), int64(2)))
	_, err = r.Unlike(ctx, 1, "carol")
	assert.ErrorIs(t, err, models.ErrNotLiked)

	mock.ExpectQuery(unlikeSQL).WithArgs(int64(9), "alice").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(false, int64(0), int64(0)))
	_, err = r.Unlike(ctx, 9, "alice")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPostgresEngagementRegistry_LikedByAndCounts(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	r := NewPostgresEngagementRegistry(mock)
	countSQL := regexp.QuoteMeta("EXISTS (SELECT 1 FROM catalog_entries WHERE id = $1)")

	mock.ExpectQuery(countSQL).WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"exists", "count"}).AddRow(true, int64(2)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT user_id FROM entry_likes WHERE entry_id = $1 ORDER BY user_id COLLATE "C"`)).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow("alice").AddRow("bob"))

	likers, err := r.LikedBy(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, likers)

	mock.ExpectQuery(countSQL).WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows([]string{"exists", "count"}).AddRow(false, int64(0)))
	_, err = r.LikedBy(ctx, 9)
	assert.ErrorIs(t, err, models.ErrNotFound)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE entry_id = ANY($1) GROUP BY entry_id")).
		WithArgs([]int64{1, 2}).
		WillReturnRows(pgxmock.NewRows([]string{"entry_id", "count"}).AddRow(int64(1), int64(2)))

	counts, err := r.Counts(ctx, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{1: 2, 2: 0}, counts)

	empty, err := r.Counts(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, r.Register(ctx, 1))
}
