package handlers

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/lyzr/mediacatalog/cmd/catalog/stream"
	"github.com/lyzr/mediacatalog/common/logger"
)

// StreamHandler upgrades watchers to websockets fed by the event hub
type StreamHandler struct {
	hub      *stream.Hub
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewStreamHandler creates a stream handler. allowedOrigins follows the
// CORS setting; "*" admits any origin.
func NewStreamHandler(hub *stream.Hub, allowedOrigins []string, log *logger.Logger) *StreamHandler {
	anyOrigin := slices.Contains(allowedOrigins, "*")
	return &StreamHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return anyOrigin || origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
		log: log,
	}
}

// Watch streams catalog events as JSON text frames
// GET /video/events            every entry
// GET /video/events?id=7       one entry
func (h *StreamHandler) Watch(c echo.Context) error {
	var entryID int64
	if raw := c.QueryParam("id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "id must be a positive integer")
		}
		entryID = id
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the error response
		h.log.WithContext(c.Request().Context()).Debug("websocket upgrade failed", "error", err)
		return nil
	}

	h.log.WithContext(c.Request().Context()).Debug("watcher connected",
		"entry_id", entryID,
		"remote", c.RealIP(),
	)

	stream.NewClient(h.hub, conn, entryID).Serve()
	return nil
}
