package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterConfig carries the middleware and health check the router mounts. A nil
// HealthCheck reports ok unconditionally.
type RouterConfig struct {
	Environment    string
	AuthMiddleware gin.HandlerFunc
	APIKeyAuth     gin.HandlerFunc
	Metrics        http.Handler
	HealthCheck    func(ctx context.Context) error
}

func NewRouter(handler *Handler, cfg RouterConfig) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"*"},
		ExposeHeaders:   []string{"Content-Type", "Content-Disposition"},
		MaxAge:          12 * time.Hour,
	}))

	router.GET("/healthz", func(c *gin.Context) {
		if cfg.HealthCheck != nil {
			if err := cfg.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	protected := router.Group("/api/v1")
	protected.Use(cfg.AuthMiddleware)
	{
		protected.GET("/operations", handler.listOperations)
		protected.GET("/operations/active", handler.activeOperation)
		protected.GET("/operations/:id", handler.getOperation)
		protected.POST("/operations", handler.createOperation)
		protected.PUT("/operations/:id", handler.updateOperation)
		protected.POST("/operations/:id/close", handler.closeOperation)
		protected.GET("/operations/:id/journal/export", handler.exportJournal)

		protected.GET("/assignments", handler.listAssignments)
		protected.GET("/assignments/:id", handler.getAssignment)
		protected.POST("/assignments", handler.createAssignment)
		protected.PUT("/assignments/:id", handler.updateAssignment)
		protected.POST("/assignments/:id/complete", handler.completeAssignment)
		protected.POST("/assignments/:id/vehicles", handler.assignVehicle)
		protected.DELETE("/assignments/:id/vehicles/:vehicleId", handler.unassignVehicle)
		protected.POST("/assignments/:id/document", handler.uploadDocument)
		protected.GET("/assignments/:id/document", handler.downloadDocument)

		protected.GET("/journal", handler.listJournal)
		protected.POST("/journal", handler.createJournalEntry)
		protected.PUT("/journal/:id", handler.updateJournalEntry)
		protected.DELETE("/journal/:id", handler.deleteJournalEntry)

		protected.GET("/locations", handler.listLocations)
		protected.GET("/locations/:id", handler.getLocation)
		protected.POST("/locations", handler.createLocation)
		protected.PUT("/locations/:id", handler.updateLocation)
		protected.DELETE("/locations/:id", handler.deleteLocation)

		protected.GET("/vehicles", handler.listVehicles)
		protected.GET("/vehicles/by-location", handler.vehiclesByLocation)
		protected.GET("/vehicles/:id", handler.getVehicle)
		protected.POST("/vehicles", handler.createVehicle)
		protected.PUT("/vehicles/:id", handler.updateVehicle)
		protected.DELETE("/vehicles/:id", handler.deleteVehicle)

		protected.GET("/settings", handler.listSettings)
		protected.GET("/settings/:key", handler.getSetting)
		protected.POST("/settings", handler.upsertSettings)
	}

	external := router.Group("/api/external")
	{
		external.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		external.POST("/assignments", cfg.APIKeyAuth, handler.createAssignment)
	}

	return router
}
