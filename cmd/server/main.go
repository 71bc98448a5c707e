// Package main provides the API server entry point for the privacy engine.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/privacy-engine/internal/api"
	"github.com/privacy-engine/internal/config"
	"github.com/privacy-engine/internal/logging"
	"github.com/privacy-engine/internal/retry"
	"github.com/privacy-engine/internal/service"
	"github.com/privacy-engine/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Initialize repositories
	registryRepo := storage.NewRegistryRepository(postgres)
	settingRepo := storage.NewSettingRepository(postgres)
	twinRepo := storage.NewTwinRepository(postgres)
	presetRepo := storage.NewPresetRepository(postgres)
	templateRepo := storage.NewTemplateRepository(postgres)
	auditRepo := storage.NewAuditRepository(postgres)

	registry := storage.NewRegistryCache(registryRepo, redis, cfg.Registry.CacheTTL)

	// Initialize services
	logger.Info("Initializing services...")

	auditRetry := &retry.Config{
		MaxAttempts:  cfg.Audit.WriteAttempts,
		InitialDelay: cfg.Audit.RetryDelay,
		MaxDelay:     cfg.Audit.RetryDelay * 8,
		Multiplier:   2.0,
	}
	auditLogger := service.NewAuditLogger(auditRepo, auditRetry)
	resolver := service.NewResolver(registry, settingRepo, twinRepo, presetRepo)

	privacyService := service.NewPrivacyService(registry, settingRepo, twinRepo, templateRepo, presetRepo, auditLogger, resolver)
	twinService := service.NewTwinService(registry, twinRepo, auditLogger)
	templateService := service.NewTemplateService(registry, settingRepo, templateRepo, presetRepo, auditLogger)

	logger.Info("Services initialized")

	// Create server configuration
	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		PerUserRPS:      cfg.RateLimit.PerUserRPS,
		RateLimitBurst:  cfg.RateLimit.Burst,
	}

	server := api.NewServer(serverConfig, privacyService, twinService, templateService, registry)
	server.RegisterHealthCheck("postgres", postgres.Ping)
	server.RegisterHealthCheck("redis", redis.Ping)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
