// Package handlers provides HTTP handlers for the presentation layer.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/application/services"
	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
	"github.com/AtRiskMedia/adstack-go/internal/domain/periods"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/adstack-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// MetricsHandlers serves the resolution and refresh endpoints.
type MetricsHandlers struct {
	resolverService *services.ResolverService
	refreshService  *services.RefreshService
	logger          *logging.ChanneledLogger
}

// NewMetricsHandlers creates new metrics handlers.
func NewMetricsHandlers(resolverService *services.ResolverService, refreshService *services.RefreshService, logger *logging.ChanneledLogger) *MetricsHandlers {
	return &MetricsHandlers{
		resolverService: resolverService,
		refreshService:  refreshService,
		logger:          logger,
	}
}

// parsePlatform maps the query value onto a supported platform.
func parsePlatform(value string) (metrics.Platform, bool) {
	switch metrics.Platform(value) {
	case metrics.PlatformMeta:
		return metrics.PlatformMeta, true
	case metrics.PlatformGoogleAds:
		return metrics.PlatformGoogleAds, true
	}
	return "", false
}

// parseRange builds a date range from from/to values.
func parseRange(from, to string) (periods.DateRange, error) {
	start, err := time.ParseInLocation(dateLayout, from, time.UTC)
	if err != nil {
		return periods.DateRange{}, err
	}
	end, err := time.ParseInLocation(dateLayout, to, time.UTC)
	if err != nil {
		return periods.DateRange{}, err
	}
	return periods.NewDateRange(start, end), nil
}

// GetResolve handles GET /api/v1/metrics/resolve.
func (h *MetricsHandlers) GetResolve(c *gin.Context) {
	tenantCtx, ok := middleware.GetTenantContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not available"})
		return
	}

	clientID := c.Query("clientId")
	if clientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "clientId query parameter is required"})
		return
	}

	platform, ok := parsePlatform(c.Query("platform"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "platform must be 'meta' or 'google'"})
		return
	}

	dateRange, err := parseRange(c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to must be YYYY-MM-DD"})
		return
	}

	env, err := services.EnvFromTenant(tenantCtx, platform)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.resolverService.Resolve(c.Request.Context(), env, clientID, dateRange)
	if err != nil {
		h.respondResolutionError(c, tenantCtx.TenantID, report, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// PostRefresh handles POST /api/v1/metrics/refresh. With async=true the
// refresh detaches and the response reports whether it was admitted past the
// cooldown.
func (h *MetricsHandlers) PostRefresh(c *gin.Context) {
	tenantCtx, ok := middleware.GetTenantContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not available"})
		return
	}

	var req struct {
		ClientID string `json:"clientId" binding:"required"`
		Platform string `json:"platform" binding:"required"`
		From     string `json:"from" binding:"required"`
		To       string `json:"to" binding:"required"`
		Async    bool   `json:"async"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "clientId, platform, from and to are required"})
		return
	}

	platform, ok := parsePlatform(req.Platform)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "platform must be 'meta' or 'google'"})
		return
	}

	dateRange, err := parseRange(req.From, req.To)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to must be YYYY-MM-DD"})
		return
	}

	env, err := services.EnvFromTenant(tenantCtx, platform)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Async {
		admitted := h.refreshService.RefreshAsync(env, req.ClientID, dateRange)
		status := http.StatusAccepted
		if !admitted {
			status = http.StatusTooManyRequests
		}
		c.JSON(status, gin.H{"admitted": admitted})
		return
	}

	report, err := h.refreshService.Refresh(c.Request.Context(), env, req.ClientID, dateRange)
	if err != nil {
		h.respondResolutionError(c, tenantCtx.TenantID, report, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// respondResolutionError maps the error taxonomy onto HTTP statuses. A report
// accompanies the error whenever a tier produced one, so dashboards can still
// render the degraded state.
func (h *MetricsHandlers) respondResolutionError(c *gin.Context, tenantID string, report *metrics.ResolvedReport, err error) {
	if h.logger != nil {
		h.logger.LogError(logging.ChannelResolver, "resolution request", err, tenantID)
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, metrics.ErrAmbiguousRange):
		status = http.StatusBadRequest
	case errors.Is(err, metrics.ErrUpstreamAuthInvalid):
		status = http.StatusBadGateway
	case errors.Is(err, metrics.ErrUpstreamUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, metrics.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, metrics.ErrNoData):
		status = http.StatusNotFound
	}

	body := gin.H{"error": err.Error()}
	if report != nil {
		body["report"] = report
	}
	c.JSON(status, body)
}
