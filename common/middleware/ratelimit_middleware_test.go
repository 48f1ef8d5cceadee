package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/lyzr/mediacatalog/common/logger"
	"github.com/lyzr/mediacatalog/common/ratelimit"
	"github.com/lyzr/mediacatalog/common/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T) (*miniredis.Miniredis, *ratelimit.RateLimiter) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return mr, ratelimit.NewRateLimiter(redis.NewClient(raw, logger.Nop()), logger.Nop())
}

func TestUserRateLimitMiddleware(t *testing.T) {
	_, rl := newLimiter(t)
	e := echo.New()
	mw := UserRateLimitMiddleware(rl, ratelimit.Policy{Limit: 1, WindowSeconds: 60}, "s3cret")
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	call := func(user, internal string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/video/1/like", nil)
		if internal != "" {
			req.Header.Set("X-Internal-Service", internal)
		}
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if user != "" {
			c.Set(UsernameContextKey, user)
		}
		require.NoError(t, mw(ok)(c))
		return rec
	}

	assert.Equal(t, http.StatusOK, call("alice", "").Code)

	rec := call("alice", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "user_rate_limit_exceeded")

	assert.Equal(t, http.StatusOK, call("bob", "").Code)
	assert.Equal(t, http.StatusOK, call("", "").Code)
	assert.Equal(t, http.StatusOK, call("alice", "s3cret").Code)
	assert.Equal(t, http.StatusTooManyRequests, call("alice", "wrong").Code)
}

func TestUserRateLimitMiddleware_FailsOpen(t *testing.T) {
	mr, rl := newLimiter(t)
	mr.Close()

	e := echo.New()
	mw := UserRateLimitMiddleware(rl, ratelimit.Policy{Limit: 1, WindowSeconds: 60}, "")
	req := httptest.NewRequest(http.MethodPost, "/video/1/like", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(UsernameContextKey, "alice")

	require.NoError(t, mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGlobalRateLimitMiddleware(t *testing.T) {
	_, rl := newLimiter(t)
	e := echo.New()
	mw := GlobalRateLimitMiddleware(rl, ratelimit.GlobalConfig{Limit: 1, WindowSeconds: 60}, "")
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/video", nil), rec)
		require.NoError(t, mw(ok)(c))
		assert.Equal(t, want, rec.Code, "request %d", i)
	}
}
