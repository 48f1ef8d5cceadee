package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/mediacatalog/cmd/catalog/models"
)

// httpError maps service errors onto HTTP status codes
func httpError(err error) error {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he
	case errors.Is(err, models.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "entry not found")
	case errors.Is(err, models.ErrAlreadyLiked):
		return echo.NewHTTPError(http.StatusBadRequest, "entry already liked by caller")
	case errors.Is(err, models.ErrNotLiked):
		return echo.NewHTTPError(http.StatusBadRequest, "entry not liked by caller")
	case errors.Is(err, models.ErrInvalidEntry):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrDuplicateIdentity):
		return echo.NewHTTPError(http.StatusConflict, "entry id already in use")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "storage failure").SetInternal(err)
	}
}
