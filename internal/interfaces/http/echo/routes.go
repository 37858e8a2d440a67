package echo

import e "github.com/labstack/echo/v4"

func RegisterRoutes(server *e.Echo, uploadHandler *UploadHandler, syncHandler *SyncHandler) {
	server.POST("/api/v1/uploads", uploadHandler.Upload)
	server.DELETE("/api/v1/uploads", uploadHandler.Clear)
	server.POST("/api/v1/mappings", uploadHandler.RememberMapping)
	server.POST("/api/v1/sync", syncHandler.Sync)
	server.GET("/api/v1/sync/status", syncHandler.Status)
	server.GET("/api/v1/sync/passes", syncHandler.Passes)
	server.POST("/api/v1/conflicts/apply", syncHandler.ApplyConflicts)
}
