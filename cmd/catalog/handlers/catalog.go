package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/mediacatalog/cmd/catalog/middleware"
	"github.com/lyzr/mediacatalog/cmd/catalog/models"
	"github.com/lyzr/mediacatalog/cmd/catalog/service"
	"github.com/lyzr/mediacatalog/common/logger"
)

// PayloadPart is the multipart form field carrying the payload
const PayloadPart = "data"

const maxPatchBytes = 64 << 10

// CatalogHandler handles catalog entry requests
type CatalogHandler struct {
	svc *service.CatalogService
	log *logger.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(svc *service.CatalogService, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{svc: svc, log: log}
}

// ListEntries lists all entries
// GET /video
func (h *CatalogHandler) ListEntries(c echo.Context) error {
	entries, err := h.svc.ListEntries(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

// CreateEntry creates an entry. Client-supplied id, contentType, dataUrl and likes are ignored.
// POST /video
func (h *CatalogHandler) CreateEntry(c echo.Context) error {
	var req models.CreateEntryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid entry body")
	}

	entry, err := h.svc.CreateEntry(c.Request().Context(), req.Title, req.Duration)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entry)
}

// GetEntry returns one entry
// GET /video/:id
func (h *CatalogHandler) GetEntry(c echo.Context) error {
	id, err := entryID(c)
	if err != nil {
		return err
	}

	entry, err := h.svc.GetEntry(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entry)
}

// UpdateEntry applies a JSON merge patch to title and duration
// PATCH /video/:id
func (h *CatalogHandler) UpdateEntry(c echo.Context) error {
	id, err := entryID(c)
	if err != nil {
		return err
	}

	patch, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPatchBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable patch body")
	}
	if len(patch) > maxPatchBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "patch body too large")
	}

	entry, err := h.svc.UpdateDetails(c.Request().Context(), id, patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entry)
}

// BindPayload streams the multipart "data" part into the payload store
// POST /video/:id/data
func (h *CatalogHandler) BindPayload(c echo.Context) error {
	id, err := entryID(c)
	if err != nil {
		return err
	}

	reader, err := c.Request().MultipartReader()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart body required")
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return echo.NewHTTPError(http.StatusBadRequest, "missing multipart part \"data\"")
		}
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed multipart body")
		}

		if part.FormName() != PayloadPart {
			_ = part.Close()
			continue
		}

		contentType := part.Header.Get(echo.HeaderContentType)
		if contentType == "" {
			contentType = echo.MIMEOctetStream
		}

		status, err := h.svc.BindPayload(c.Request().Context(), id, contentType, part)
		_ = part.Close()
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, status)
	}
}

// ReadPayload streams the stored payload with the content type saved alongside it
// GET /video/:id/data
func (h *CatalogHandler) ReadPayload(c echo.Context) error {
	id, err := entryID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	payload, err := h.svc.OpenPayload(ctx, id)
	if err != nil {
		return httpError(err)
	}
	defer payload.Body.Close()

	contentType := payload.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	c.Response().Header().Set(echo.HeaderContentType, contentType)
	if payload.Size >= 0 {
		c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(payload.Size, 10))
	}
	c.Response().WriteHeader(http.StatusOK)

	if _, err := io.Copy(c.Response(), payload.Body); err != nil {
		// Headers are gone; all that is left is to log
		h.log.WithContext(ctx).WithEntryID(id).Warn("payload stream aborted", "error", err)
	}
	return nil
}

// Like records the caller's like
// POST /video/:id/like
func (h *CatalogHandler) Like(c echo.Context) error {
	return h.engage(c, h.svc.Like)
}

// Unlike withdraws the caller's like
// POST /video/:id/unlike
func (h *CatalogHandler) Unlike(c echo.Context) error {
	return h.engage(c, h.svc.Unlike)
}

func (h *CatalogHandler) engage(c echo.Context, op func(ctx context.Context, id int64, caller string) (*models.Entry, error)) error {
	id, err := entryID(c)
	if err != nil {
		return err
	}

	caller, err := middleware.RequireUsername(c)
	if err != nil {
		return err
	}

	entry, err := op(c.Request().Context(), id, caller)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entry)
}

// LikedBy lists the callers who like the entry
// GET /video/:id/likedby
func (h *CatalogHandler) LikedBy(c echo.Context) error {
	id, err := entryID(c)
	if err != nil {
		return err
	}

	likers, err := h.svc.LikedBy(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, likers)
}

// FindByName returns entries whose title equals ?title exactly
// GET /video/search/findByName
func (h *CatalogHandler) FindByName(c echo.Context) error {
	if !c.QueryParams().Has("title") {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter title is required")
	}

	entries, err := h.svc.SearchByTitle(c.Request().Context(), c.QueryParam("title"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

// FindByDurationLessThan returns entries shorter than ?duration seconds
// GET /video/search/findByDurationLessThan
func (h *CatalogHandler) FindByDurationLessThan(c echo.Context) error {
	threshold, err := strconv.ParseInt(c.QueryParam("duration"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter duration must be an integer")
	}

	entries, err := h.svc.SearchByDurationLessThan(c.Request().Context(), threshold)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

func entryID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "entry id must be an integer")
	}
	return id, nil
}
