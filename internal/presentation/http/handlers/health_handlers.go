package handlers

import (
	"net/http"

	"github.com/AtRiskMedia/adstack-go/internal/application/container"
	"github.com/AtRiskMedia/adstack-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	container *container.Container
}

// NewHealthHandlers creates new health handlers.
func NewHealthHandlers(container *container.Container) *HealthHandlers {
	return &HealthHandlers{container: container}
}

// GetHealth reports process liveness plus a cache snapshot.
func (h *HealthHandlers) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"cache":  h.container.CacheManager.Health(),
	})
}

// GetTenantHealth reports readiness for the request tenant, including its
// database connection.
func (h *HealthHandlers) GetTenantHealth(c *gin.Context) {
	tenantCtx, ok := middleware.GetTenantContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not available"})
		return
	}

	dbStatus := "ok"
	status := http.StatusOK
	if err := tenantCtx.Database.Conn.Ping(); err != nil {
		dbStatus = err.Error()
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"tenantId": tenantCtx.TenantID,
		"status":   tenantCtx.Status,
		"database": dbStatus,
	})
}
