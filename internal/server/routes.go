package server

import (
	"github.com/aletheia-codex/backend/internal/metrics"
	"github.com/aletheia-codex/backend/internal/server/middleware"
	"github.com/aletheia-codex/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})
	e.GET("/metrics", metrics.Handler())

	read := middleware.RequirePermission(middleware.PermReviewRead)
	write := middleware.RequirePermission(middleware.PermReviewWrite)

	// Review routes
	reviewRoutes := e.Group("/review", middleware.AuthMiddleware)
	reviewRoutes.GET("/pending", routes.GetPendingHandler, read)
	reviewRoutes.GET("/stats", routes.GetStatsHandler, read)
	reviewRoutes.GET("/items/:id", routes.GetItemHandler, read)
	reviewRoutes.DELETE("/items/:id", routes.DeleteItemHandler, write)
	reviewRoutes.POST("/approve", routes.ApproveHandler, write)
	reviewRoutes.POST("/reject", routes.RejectHandler, write)

	// Batch routes
	reviewRoutes.POST("/batch-approve", routes.BatchApproveHandler, write)
	reviewRoutes.POST("/batch-reject", routes.BatchRejectHandler, write)
	reviewRoutes.POST("/batch", routes.BatchProcessHandler, write)
	reviewRoutes.POST("/batch-estimate", routes.BatchEstimateHandler, read)
	reviewRoutes.POST("/batch-validate", routes.BatchValidateHandler, read)

	// Graph routes
	reviewRoutes.GET("/graph-stats", routes.GetGraphStatsHandler, read)
	reviewRoutes.POST("/graph/rebuild", routes.RebuildGraphHandler, middleware.RequirePermission(middleware.PermGraphRebuild))

	// Document routes
	documentRoutes := e.Group("/documents", middleware.AuthMiddleware)
	documentRoutes.POST("", routes.CreateDocumentHandler, middleware.RequirePermission(middleware.PermDocumentsCreate))
	documentRoutes.POST("/upload", routes.UploadDocumentHandler, middleware.RequirePermission(middleware.PermDocumentsCreate))
	documentRoutes.GET("/:id", routes.GetDocumentHandler, read)
	documentRoutes.GET("/:id/items", routes.GetDocumentItemsHandler, read)
}
