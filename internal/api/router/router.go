package router

import (
	"net/http"

	"github.com/cuongbtq/workorder-watcher/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	service := deps.ServiceName
	if service == "" {
		service = "watcher-service"
	}

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if deps.DB != nil {
			if err := deps.DB.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":   "unhealthy",
					"service":  service,
					"database": err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": service,
		})
	})

	statusHandler := handler.NewStatusHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// GET /api/v1/status - Counters, local baseline and last published work order
		v1.GET("/status", statusHandler.GetStatus)

		// GET /api/v1/work-orders - Processed work orders, newest first
		v1.GET("/work-orders", statusHandler.ListWorkOrders)
	}

	return r
}
