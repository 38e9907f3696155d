package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	log "github.com/sirupsen/logrus"

	httpapi "github.com/i474232898/road-watch/internal/api/http"
	"github.com/i474232898/road-watch/internal/config"
	"github.com/i474232898/road-watch/internal/scheduler"
	"github.com/i474232898/road-watch/internal/store"
	"github.com/i474232898/road-watch/internal/watch"
	"github.com/i474232898/road-watch/internal/watch/sources"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	// Load configuration (also reads .env).
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	log.SetLevel(cfg.LogLevel)

	// Shared HTTP client for outbound calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Upstreams with resilience (backoff + circuit breaker).
	road := sources.NewDigitrafficClient(httpClient, cfg.DigitrafficBaseURL)
	weather := sources.NewFMIClient(httpClient, cfg.FMIBaseURL)

	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
	repo, err := store.NewFileRepository(cfg.DataDir)
	if err != nil {
		log.WithError(err).WithField("dir", cfg.DataDir).Fatal("failed to open data directory")
	}

	service := watch.NewService(cfg.Cities, road, weather, memStore, repo)

	sched := scheduler.New(cfg.Watched, cfg.FetchInterval, service)
	if err := sched.Start(); err != nil {
		log.WithError(err).Fatal("failed to start scheduler")
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "road-watch",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Searches fan out to several upstreams.
		WriteTimeout: cfg.HTTPTimeout + 15*time.Second,
		ErrorHandler: httpapi.ErrorHandler,
	})

	app.Use(logger.New())
	app.Use(recover.New())

	httpapi.RegisterRoutes(app, service)

	go func() {
		log.WithFields(log.Fields{"port": cfg.Port, "cities": cfg.Watched}).Info("road-watch listening")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.WithError(err).Info("fiber server stopped")
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.WithError(err).Error("error during shutdown")
	}
}
