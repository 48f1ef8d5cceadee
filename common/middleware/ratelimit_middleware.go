package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/mediacatalog/common/ratelimit"
)

// UsernameContextKey is where the caller identity middleware stores the caller
const UsernameContextKey = "username"

// isInternalRequest reports whether the request carries the shared internal
// secret. With no secret configured nothing is treated as internal.
func isInternalRequest(c echo.Context, secret string) bool {
	if secret == "" {
		return false
	}
	return c.Request().Header.Get("X-Internal-Service") == secret
}

// GlobalRateLimitMiddleware checks the service-wide rate limit.
// Limiter errors fail open.
func GlobalRateLimitMiddleware(rateLimiter *ratelimit.RateLimiter, cfg ratelimit.GlobalConfig, internalSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if isInternalRequest(c, internalSecret) {
				return next(c)
			}

			result, err := rateLimiter.CheckGlobalLimit(c.Request().Context(), cfg)
			if err != nil {
				return next(c)
			}

			if !result.Allowed {
				c.Response().Header().Set("Retry-After", strconv.FormatInt(result.RetryAfterSeconds, 10))
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "global_rate_limit_exceeded",
					"message": "Service is experiencing high load. Please try again later.",
					"details": map[string]interface{}{
						"limit":               result.Limit,
						"window":              fmt.Sprintf("%d seconds", cfg.WindowSeconds),
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}

// UserRateLimitMiddleware checks per-caller rate limits.
// Requires the caller to be set in context by the identity middleware;
// requests without one pass through. Limiter errors fail open.
func UserRateLimitMiddleware(rateLimiter *ratelimit.RateLimiter, policy ratelimit.Policy, internalSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if isInternalRequest(c, internalSecret) {
				return next(c)
			}

			username, ok := c.Get(UsernameContextKey).(string)
			if !ok || username == "" {
				return next(c)
			}

			result, err := rateLimiter.CheckUserLimit(c.Request().Context(), username, policy)
			if err != nil {
				return next(c)
			}

			if !result.Allowed {
				c.Response().Header().Set("Retry-After", strconv.FormatInt(result.RetryAfterSeconds, 10))
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "user_rate_limit_exceeded",
					"message": "You have exceeded your request quota. Please wait before trying again.",
					"details": map[string]interface{}{
						"username":            username,
						"limit":               result.Limit,
						"window":              fmt.Sprintf("%d seconds", policy.WindowSeconds),
						"current_count":       result.CurrentCount,
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}
