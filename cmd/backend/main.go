// Package main provides the entry point for the tracer-link redirect and
// click-analytics service.
package main

import (
	"context"
	lg "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kyle-bartlett/job-ops-sub000/internal/config"
	"github.com/kyle-bartlett/job-ops-sub000/internal/database"
	httpHandler "github.com/kyle-bartlett/job-ops-sub000/internal/handler/http"
	"github.com/kyle-bartlett/job-ops-sub000/internal/repository/postgres"
	"github.com/kyle-bartlett/job-ops-sub000/internal/service"
	"github.com/kyle-bartlett/job-ops-sub000/pkg/logger"
	"github.com/kyle-bartlett/job-ops-sub000/pkg/useragent"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)
	defer func() {
		if err := log.Sync(); err != nil {
			lg.Printf("ERROR: failed to sync zap logger: %v\n", err)
		}
	}()

	log.Info("starting tracer-link service", zap.String("env", cfg.Env))

	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, log); err != nil {
			log.Error("failed to close database connection", zap.Error(err))
		}
	}()

	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db, log); err != nil {
			log.Fatal("failed to run database migrations", zap.Error(err))
		}
	} else {
		log.Info("skipping database migrations (auto_migrate: false)")
	}

	if cfg.Database.SeedData {
		if err := database.SeedData(db, log); err != nil {
			log.Fatal("failed to seed database", zap.Error(err))
		}
	}

	// Optional: rich User-Agent detail in redirect debug logs.
	if err := useragent.InitGlobalParser(cfg.Tracer.UARegexesPath, log); err != nil {
		log.Warn("User-Agent parser unavailable, redirect logs carry heuristic detail only", zap.Error(err))
	}

	storage := postgres.New(db, log, cfg.Tracer.TokenLength, cfg.Tracer.CreateRetries)
	redirectService := service.NewRedirectService(storage, log)
	tracerService := service.NewTracerService(storage, log)
	analyticsService := service.NewAnalyticsService(storage, &cfg.Tracer, log)

	server := httpHandler.NewServer(storage, redirectService, tracerService, analyticsService, log)

	httpServer := &http.Server{
		Addr:         cfg.HTTPServer.Addr,
		Handler:      server.SetupRoutes(),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting HTTP server", zap.String("address", cfg.HTTPServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down tracer-link service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown HTTP server", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}
}
