package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/lyzr/mediacatalog/cmd/catalog/container"
	"github.com/lyzr/mediacatalog/cmd/catalog/middleware"
	"github.com/lyzr/mediacatalog/common/bootstrap"
	"github.com/lyzr/mediacatalog/common/config"
	"github.com/lyzr/mediacatalog/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEcho(t *testing.T, cfg *config.Config) *echo.Echo {
	t.Helper()
	ctx := context.Background()

	components, err := bootstrap.Setup(ctx, "catalog",
		bootstrap.WithCustomConfig(cfg),
		bootstrap.WithCustomLogger(logger.Nop()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = components.Shutdown(ctx) })

	c, err := container.NewContainer(ctx, components)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	e := echo.New()
	e.Use(middleware.ExtractUsername())
	RegisterCatalogRoutes(e, c)
	return e
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("catalog")
	require.NoError(t, err)
	cfg.Telemetry.EnableMetrics = false
	cfg.Storage.PayloadBackend = config.BackendMemory
	return cfg
}

func serve(e *echo.Echo, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRegisterCatalogRoutes(t *testing.T) {
	e := newEcho(t, testConfig(t))
	jsonBody := map[string]string{echo.HeaderContentType: echo.MIMEApplicationJSON}

	rec := serve(e, http.MethodPost, "/video", `{"title":"demo","duration":120}`, jsonBody)
	require.Equal(t, http.StatusOK, rec.Code)

	// Static search paths win over /video/:id
	rec = serve(e, http.MethodGet, "/video/search/findByName?title=demo", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"demo"`)

	rec = serve(e, http.MethodGet, "/video/search/findByDurationLessThan?duration=121", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":1`)

	rec = serve(e, http.MethodPost, "/video/1/like", "", map[string]string{middleware.CallerHeader: "alice"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(e, http.MethodGet, "/video/1/likedby", "", nil)
	assert.JSONEq(t, `["alice"]`, rec.Body.String())

	rec = serve(e, http.MethodPost, "/video/1/unlike", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "X-User-ID header is required")
}

func TestRegisterCatalogRoutes_EngagementRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.Redis.Host = mr.Host()
	cfg.Redis.Port = port
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.UserLimit = 2
	cfg.RateLimit.WindowSeconds = 60

	e := newEcho(t, cfg)
	rec := serve(e, http.MethodPost, "/video", `{"title":"demo","duration":1}`,
		map[string]string{echo.HeaderContentType: echo.MIMEApplicationJSON})
	require.Equal(t, http.StatusOK, rec.Code)

	alice := map[string]string{middleware.CallerHeader: "alice"}
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/video/1/like", "", alice).Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/video/1/unlike", "", alice).Code)

	rec = serve(e, http.MethodPost, "/video/1/like", "", alice)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Reads are not limited
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/video/1/likedby", "", nil).Code)

	// Another caller has its own window
	bob := map[string]string{middleware.CallerHeader: "bob"}
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/video/1/like", "", bob).Code)

	// Anonymous calls are turned away before the limiter
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodPost, "/video/1/like", "", nil).Code)
	}
}
