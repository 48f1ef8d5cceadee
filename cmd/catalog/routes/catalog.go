package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/lyzr/mediacatalog/cmd/catalog/container"
	"github.com/lyzr/mediacatalog/cmd/catalog/handlers"
	catalogmw "github.com/lyzr/mediacatalog/cmd/catalog/middleware"
	commonmw "github.com/lyzr/mediacatalog/common/middleware"
)

// RegisterCatalogRoutes registers all catalog routes
func RegisterCatalogRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewCatalogHandler(c.CatalogService, c.Components.Logger)

	// Engagement endpoints need a caller, and are rate limited per caller
	// when a limiter is configured
	engagement := []echo.MiddlewareFunc{catalogmw.ExtractUsernameStrict()}
	if c.RateLimiter != nil {
		engagement = append(engagement, commonmw.UserRateLimitMiddleware(c.RateLimiter, c.UserPolicy, ""))
	}

	v := e.Group("/video")
	if c.Hub != nil {
		sh := handlers.NewStreamHandler(c.Hub, c.Components.Config.Service.CORSOrigins, c.Components.Logger)
		v.GET("/events", sh.Watch) // GET /video/events?id=7 (websocket)
	}
	{
		v.GET("", h.ListEntries)                                          // GET /video
		v.POST("", h.CreateEntry)                                         // POST /video
		v.GET("/:id", h.GetEntry)                                         // GET /video/7
		v.PATCH("/:id", h.UpdateEntry)                                    // PATCH /video/7
		v.POST("/:id/data", h.BindPayload)                                // POST /video/7/data (multipart "data")
		v.GET("/:id/data", h.ReadPayload)                                 // GET /video/7/data
		v.POST("/:id/like", h.Like, engagement...)                        // POST /video/7/like
		v.POST("/:id/unlike", h.Unlike, engagement...)                    // POST /video/7/unlike
		v.GET("/:id/likedby", h.LikedBy)                                  // GET /video/7/likedby
		v.GET("/search/findByName", h.FindByName)                         // GET /video/search/findByName?title=Intro
		v.GET("/search/findByDurationLessThan", h.FindByDurationLessThan) // GET /video/search/findByDurationLessThan?duration=60
	}
}
