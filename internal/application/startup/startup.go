// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/application/container"
	"github.com/AtRiskMedia/adstack-go/internal/application/services"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/caching/cleanup"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/tenant"
	"github.com/AtRiskMedia/adstack-go/internal/presentation/http/server"
	"github.com/AtRiskMedia/adstack-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// Initialize performs the complete multi-tenant startup sequence
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	log.Println("\033[32m" + `
   ▄▄▄   ▄▄▄▄  ▄▄▄▄▄▄▄  ▄▄▄   ▄▄▄▄ ▄▄ ▄▄
  ▄▀ ▀▄ ██  ██ ██▄  ██ ▄▀ ▀▄ ██    ██▄█▀
  ██▀██ ██  ██ ▄▄██ ██ ██▀██ ██    ██▀█▄
  ▀▀ ▀▀ ▀▀▀▀▀  ▀▀▀▀  ▀ ▀▀ ▀▀  ▀▀▀▀ ▀▀ ▀▀
` + "\033[97m" + `
  made by At Risk Media
` + "\033[0m")

	// Step 1: Initialize logging channels
	logger, err := logging.NewChanneledLogger(logging.DefaultLoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize channeled logger: %w", err)
	}

	// Step 2: Initialize tenant system
	log.Println("Initializing...")
	tenantManager := tenant.NewManager(logger)

	// Step 3: Load tenant registry to discover all tenants
	log.Println("Loading tenant registry...")
	registry, err := tenant.LoadTenantRegistry()
	if err != nil {
		return fmt.Errorf("failed to load tenant registry: %w", err)
	}

	if len(registry.Tenants) == 0 {
		log.Println("No tenants found in registry - creating default tenant")
		if err := tenant.RegisterTenant("default"); err != nil {
			return fmt.Errorf("failed to register default tenant: %w", err)
		}
		registry, err = tenant.LoadTenantRegistry()
		if err != nil {
			return fmt.Errorf("failed to reload registry: %w", err)
		}
	}

	log.Printf("Found %d tenants in registry", len(registry.Tenants))

	// Step 4: Pre-activate inactive tenants only
	log.Println("Starting tenant pre-activation...")
	if err := tenantManager.PreActivateAllTenants(); err != nil {
		return fmt.Errorf("tenant pre-activation failed: %w", err)
	}

	// Step 5: Validate tenant activation
	log.Println("Validating tenant activation...")
	if err := tenantManager.ValidatePreActivation(); err != nil {
		return fmt.Errorf("tenant validation failed: %w", err)
	}

	// Step 6: Verify active tenant connections
	log.Println("Verifying active tenant database connections...")
	activeCount, err := tenantManager.GetActiveTenantCount()
	if err != nil {
		return fmt.Errorf("failed to get active tenant count: %w", err)
	}
	log.Printf("✓ %d active tenant connections verified", activeCount)

	// Step 7: Initialize cache system
	log.Println("Initializing cache system...")
	cacheManager := tenantManager.GetCacheManager()

	registry, err = tenant.LoadTenantRegistry()
	if err != nil {
		return fmt.Errorf("failed to reload registry after activation: %w", err)
	}
	for tenantID, tenantInfo := range registry.Tenants {
		if tenantInfo.Status == "active" {
			log.Printf("✓ Initializing cache for tenant: %s", tenantID)
			cacheManager.InitializeTenant(tenantID)
		}
	}

	// Step 8: Create dependency injection container
	log.Println("Initializing dependency injection container...")
	appContainer := container.NewContainer(tenantManager, cacheManager, logger)
	log.Println("✓ Dependency injection container created with singleton services.")

	logger.Startup().Info("Container initialization complete - switching to channeled logging")

	// Step 9: Start background cleanup worker
	logger.Startup().Info("Starting background cleanup worker...")
	cleanupConfig := cleanup.NewConfig()
	cleanupWorker := cleanup.NewWorker(cacheManager, appContainer.Coalescer, appContainer.Cooldown, cleanupConfig)
	go cleanupWorker.Start(ctx)

	// Step 10: Start archival lifecycle scheduler
	logger.Startup().Info("Starting archival lifecycle scheduler...")
	go appContainer.ArchivalService.Start(ctx, func() ([]services.ArchiveEnv, error) {
		return archiveEnvs(tenantManager)
	})

	// Step 11: Start dashboard broadcaster
	go appContainer.Broadcaster.Run()

	// Step 12: Start HTTP server
	logger.Startup().Info("Starting HTTP server...")
	port := config.Port
	httpServer := server.New(port, appContainer)

	// Step 13: Setup graceful shutdown
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.System().Info("Starting HTTP server", "address", ":"+port)
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}()

	totalStartupTime := time.Since(start)
	logger.Startup().Info("Application startup complete",
		"totalDuration", totalStartupTime,
		"activeTenants", activeCount,
		"port", port)

	// Wait for shutdown signal
	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")

	shutdownStart := time.Now()

	// Cancel background tasks
	cancelBackgroundTasks()

	// Stop server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Shutdown().Info("Stopping HTTP server...")
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	// Close tenant manager
	logger.Shutdown().Info("Closing tenant manager...")
	if err := tenantManager.Close(); err != nil {
		logger.Shutdown().Error("Error closing tenant manager", "error", err.Error())
	} else {
		logger.Shutdown().Info("Tenant manager closed successfully")
	}

	elapsed := time.Since(start)
	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", elapsed,
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

// archiveEnvs builds one archival environment per active tenant. Contexts are
// cached by the tenant manager, so repeated enumeration reuses connections.
func archiveEnvs(tenantManager *tenant.Manager) ([]services.ArchiveEnv, error) {
	registry, err := tenant.LoadTenantRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant registry: %w", err)
	}

	envs := make([]services.ArchiveEnv, 0, len(registry.Tenants))
	for tenantID, info := range registry.Tenants {
		if info.Status != "active" {
			continue
		}
		tenantCtx, err := tenantManager.NewContextFromID(tenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to create context for tenant %s: %w", tenantID, err)
		}
		envs = append(envs, services.ArchiveEnv{
			TenantID: tenantID,
			Archive:  tenantCtx.ArchiveRepo(),
			Cache:    tenantCtx.CacheManager,
		})
	}
	return envs, nil
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
