package api

import (
	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine serving /healthz and everything under /api
func NewRouter(handler *AssignmentHandler, hub *SSEHub) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/healthz", handler.Health)

	api := router.Group("/api")
	{
		api.POST("/assignments", handler.CreateAssignment)
		api.GET("/assignments", handler.ListAssignments)
		api.GET("/balance", handler.GetBalance)
		api.GET("/settings", handler.GetSettings)
		api.PUT("/settings/block-size", handler.UpdateBlockSize)
		api.POST("/export", handler.ExportHistory)
		if hub != nil {
			api.GET("/events", hub.HandleSSE)
		}
	}

	return router
}
