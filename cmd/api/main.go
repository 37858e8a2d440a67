package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nvclab/student-sync/internal/bootstrap"
	"github.com/nvclab/student-sync/internal/config"
	"github.com/nvclab/student-sync/internal/infrastructure/db/models"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration rejected", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.CacheDBPath), 0o755); err != nil {
		logger.Error("creating cache directory failed", "error", err)
		os.Exit(1)
	}

	db, err := gorm.Open(sqlite.Open(cfg.CacheDBPath), &gorm.Config{})
	if err != nil {
		logger.Error("opening local store failed", "path", cfg.CacheDBPath, "error", err)
		os.Exit(1)
	}
	if err := db.AutoMigrate(&models.CachedStudent{}, &models.SyncPass{}, &models.MappingChoice{}); err != nil {
		logger.Error("migrating local store failed", "error", err)
		os.Exit(1)
	}

	server := bootstrap.NewHTTPServer(cfg, db, logger)

	go func() {
		if err := server.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
