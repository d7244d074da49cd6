package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mr1hm/go-rupture-hazard/internal/api"
	"github.com/mr1hm/go-rupture-hazard/internal/config"
	"github.com/mr1hm/go-rupture-hazard/internal/ingestion"
	"github.com/mr1hm/go-rupture-hazard/internal/logging"
	"github.com/mr1hm/go-rupture-hazard/internal/metrics"
	"github.com/mr1hm/go-rupture-hazard/internal/repository"
	"github.com/mr1hm/go-rupture-hazard/internal/stream"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port,
		"usgs_enabled", cfg.Sources.USGSEnabled, "time_span", cfg.Hazard.TimeSpan)

	if cfg.DB.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DB.Path), 0o755); err != nil {
			logging.Fatalf("Failed to create database directory: %v", err)
		}
	}
	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	m := metrics.New()
	m.RegisterCatalogSize(db.Count)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Fan-out for the SSE stream
	broadcaster := stream.NewBroadcaster(cfg.Stream.Buffer)

	mgr := ingestion.NewManager(cfg, db, broadcaster, m)
	mgr.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // must stay false with wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(cfg.Server.RateLimit))

	handler := api.NewHandler(db, broadcaster, m, cfg.Hazard.TimeSpan)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	mgr.Stop()
	broadcaster.Close() // ends open SSE streams

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete", "dropped_stream_events", broadcaster.Dropped())
}
