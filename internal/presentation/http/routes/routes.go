// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/AtRiskMedia/adstack-go/internal/application/container"
	"github.com/AtRiskMedia/adstack-go/internal/presentation/http/handlers"
	"github.com/AtRiskMedia/adstack-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.CORSMiddleware())

	// Serve static SysOp dashboard files from the /sysop URL.
	r.Static("/sysop", "web/sysop")
	r.StaticFile("/favicon.ico", "web/sysop/favicon.ico")

	// Initialize handlers
	metricsHandlers := handlers.NewMetricsHandlers(container.ResolverService, container.RefreshService, container.Logger)
	sysopHandlers := handlers.NewSysOpHandlers(container)
	healthHandlers := handlers.NewHealthHandlers(container)

	// Prometheus scrape endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/health", healthHandlers.GetHealth)

	// API routes with tenant middleware
	api := r.Group("/api/v1")
	api.Use(middleware.TenantMiddleware(container.TenantManager))
	{
		api.GET("/health", healthHandlers.GetTenantHealth)
		api.GET("/db/status", sysopHandlers.GetDatabaseStatus)

		metricsGroup := api.Group("/metrics")
		{
			metricsGroup.GET("/resolve", metricsHandlers.GetResolve)
			metricsGroup.POST("/refresh", middleware.OperatorAuthMiddleware(), metricsHandlers.PostRefresh)
		}
	}

	// SysOp API endpoints; login is tenant-scoped but unauthenticated.
	sysopAPI := r.Group("/api/sysop")
	sysopAPI.Use(middleware.TenantMiddleware(container.TenantManager))
	{
		sysopAPI.POST("/login", sysopHandlers.Login)

		// SysOp authenticated endpoints
		authed := sysopAPI.Group("")
		authed.Use(middleware.OperatorAuthMiddleware())
		{
			authed.GET("/tenants", sysopHandlers.GetTenants)
			authed.GET("/cache", sysopHandlers.GetCacheStatus)
			authed.GET("/db/status", sysopHandlers.GetDatabaseStatus)
			authed.POST("/archival/monthly", sysopHandlers.PostArchivalMonthly)
			authed.POST("/archival/weekly", sysopHandlers.PostArchivalWeekly)
			authed.POST("/archival/retention", sysopHandlers.PostRetentionPrune)
			authed.GET("/logs/levels", sysopHandlers.GetLogLevels)
			authed.POST("/logs/levels", sysopHandlers.SetLogLevel)
			authed.GET("/ws", sysopHandlers.HandleWebSocket)
		}
	}

	return r
}
