package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	commonmw "github.com/lyzr/mediacatalog/common/middleware"
)

// CallerHeader carries the caller identity used for likes
const CallerHeader = "X-User-ID"

// ExtractUsername stores the X-User-ID header in the echo context when present.
// Routes that need a caller check with RequireUsername.
//
// Usage:
//
//	e := echo.New()
//	e.Use(middleware.ExtractUsername())
//
// Accessing in handlers:
//
//	username := middleware.GetUsername(c)
func ExtractUsername() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if username := c.Request().Header.Get(CallerHeader); username != "" {
				c.Set(commonmw.UsernameContextKey, username)
			}
			return next(c)
		}
	}
}

// ExtractUsernameStrict rejects requests without X-User-ID
func ExtractUsernameStrict() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			username := c.Request().Header.Get(CallerHeader)
			if username == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "X-User-ID header is required")
			}

			c.Set(commonmw.UsernameContextKey, username)
			return next(c)
		}
	}
}

// GetUsername retrieves the username from the request context
// Returns empty string if not set
func GetUsername(c echo.Context) string {
	username, _ := c.Get(commonmw.UsernameContextKey).(string)
	return username
}

// RequireUsername returns the caller or a 401 error
func RequireUsername(c echo.Context) (string, error) {
	username := GetUsername(c)
	if username == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "authentication required (X-User-ID header missing)")
	}
	return username, nil
}
