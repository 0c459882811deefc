package routes

import (
	"net/http"
	"time"

	"pawboard/handlers"
	"pawboard/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterBoardRoutes registers the day board endpoints.
func RegisterBoardRoutes(r *gin.Engine, h *handlers.BoardHandler) {
	api := r.Group("/api/board")
	{
		api.GET("/days/:date", h.GetDayHandler)
		api.GET("/days/:date/calendar.ics", h.CalendarHandler)
		api.POST("/invalidate", h.InvalidateHandler)

		entries := api.Group("/entries/:id")
		entries.GET("", h.GetEntryHandler)
		entries.POST("/intents", h.DispatchIntentHandler)
		entries.POST("/bulk", h.BulkHandler)
		entries.POST("/interaction", h.BeginInteractionHandler)
		entries.PATCH("/state", h.UpdateEntryStateHandler)

		interaction := api.Group("/interaction")
		interaction.PUT("", h.TrackInteractionHandler)
		interaction.POST("/commit", h.CommitInteractionHandler)
		interaction.DELETE("", h.CancelInteractionHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		status := utils.GetHealthStatus()
		code := http.StatusOK
		if !status.CheckedAt.IsZero() && !status.Healthy() {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "message": "Hi, I'm Pawboard"})
	})
}

// RegisterRoutes sets up CORS and all route groups.
func RegisterRoutes(r *gin.Engine, board *handlers.BoardHandler) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r)
	RegisterBoardRoutes(r, board)
}
