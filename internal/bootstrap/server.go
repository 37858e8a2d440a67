package bootstrap

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	app "github.com/nvclab/student-sync/internal/application/sync"
	"github.com/nvclab/student-sync/internal/config"
	"github.com/nvclab/student-sync/internal/infrastructure/bitable"
	"github.com/nvclab/student-sync/internal/infrastructure/repository"
	httpecho "github.com/nvclab/student-sync/internal/interfaces/http/echo"
)

func NewHTTPServer(cfg *config.Config, db *gorm.DB, logger *slog.Logger) *echo.Echo {
	server := echo.New()
	server.HideBanner = true

	server.Use(middleware.Recover())
	server.Use(middleware.RequestID())
	server.Use(middleware.BodyLimit("10M"))

	client := bitable.NewClient(cfg, logger)
	cache := repository.NewStudentCacheRepository(db, client, cfg.StudentTable, cfg.StudentIDField, logger)
	journal := repository.NewSyncPassRepository(db)
	memory := repository.NewMappingMemoryRepository(db)
	mapper := app.NewFieldMapper(cfg, logger)
	orchestrator := app.NewOrchestrator(client, cache, journal, mapper, cfg, logger)

	session := httpecho.NewUploadSession()
	uploadHandler := httpecho.NewUploadHandler(session, memory)
	syncHandler := httpecho.NewSyncHandler(orchestrator, session, journal)

	httpecho.RegisterRoutes(server, uploadHandler, syncHandler)

	server.GET("/healthz", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	return server
}
