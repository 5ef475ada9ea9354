package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/application/container"
	"github.com/AtRiskMedia/adstack-go/internal/application/services"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/tenant"
	"github.com/AtRiskMedia/adstack-go/internal/presentation/http/middleware"
	"github.com/AtRiskMedia/adstack-go/pkg/config"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SysOpHandlers serves the operator dashboard endpoints.
type SysOpHandlers struct {
	container *container.Container
}

// NewSysOpHandlers creates new SysOp handlers.
func NewSysOpHandlers(container *container.Container) *SysOpHandlers {
	return &SysOpHandlers{
		container: container,
	}
}

// Login handles operator authentication for one tenant.
func (h *SysOpHandlers) Login(c *gin.Context) {
	tenantCtx, ok := middleware.GetTenantContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not available"})
		return
	}

	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	token, err := h.container.AuthService.Login(tenantCtx, req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "token": token})
}

// GetTenants returns the tenant IDs known to the registry.
func (h *SysOpHandlers) GetTenants(c *gin.Context) {
	registry := h.container.TenantManager.GetDetector().GetRegistry()
	if registry == nil || registry.Tenants == nil {
		c.JSON(http.StatusOK, gin.H{"tenants": []string{}})
		return
	}

	tenants := make([]string, 0, len(registry.Tenants))
	for tenantID := range registry.Tenants {
		tenants = append(tenants, tenantID)
	}

	c.JSON(http.StatusOK, gin.H{"tenants": tenants})
}

// GetCacheStatus returns the hot cache snapshot for the request tenant.
func (h *SysOpHandlers) GetCacheStatus(c *gin.Context) {
	tenantCtx, ok := middleware.GetTenantContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not available"})
		return
	}

	summary := h.container.CacheManager.GetCacheSummary(tenantCtx.TenantID)
	summary["pendingFlights"] = h.container.Coalescer.Pending()
	c.JSON(http.StatusOK, summary)
}

// GetDatabaseStatus returns connection pool details for monitoring.
func (h *SysOpHandlers) GetDatabaseStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"pools": tenant.GetConnectionPoolInfo(),
		"stats": tenant.GetPoolStats(),
	})
}

// archiveEnv builds the archival environment for the request tenant.
func archiveEnv(tenantCtx *tenant.Context) services.ArchiveEnv {
	return services.ArchiveEnv{
		TenantID: tenantCtx.TenantID,
		Archive:  tenantCtx.ArchiveRepo(),
		Cache:    tenantCtx.CacheManager,
	}
}

// PostArchivalMonthly triggers the monthly archival sweep on demand.
func (h *SysOpHandlers) PostArchivalMonthly(c *gin.Context) {
	tenantCtx, ok := middleware.GetTenantContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not available"})
		return
	}

	archived, err := h.container.ArchivalService.RunMonthlyArchival(archiveEnv(tenantCtx))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "archived": archived})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "archived": archived})
}

// PostArchivalWeekly triggers the weekly archival sweep on demand.
func (h *SysOpHandlers) PostArchivalWeekly(c *gin.Context) {
	tenantCtx, ok := middleware.GetTenantContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not available"})
		return
	}

	archived, err := h.container.ArchivalService.RunWeeklyArchival(archiveEnv(tenantCtx))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "archived": archived})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "archived": archived})
}

// PostRetentionPrune triggers a retention prune on demand.
func (h *SysOpHandlers) PostRetentionPrune(c *gin.Context) {
	tenantCtx, ok := middleware.GetTenantContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not available"})
		return
	}

	var req struct {
		Months int `json:"months"`
		Weeks  int `json:"weeks"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		req.Months = config.RetentionMonths
		req.Weeks = config.RetentionWeeks
	}
	if req.Months == 0 {
		req.Months = config.RetentionMonths
	}
	if req.Weeks == 0 {
		req.Weeks = config.RetentionWeeks
	}

	pruned, err := h.container.ArchivalService.PruneRetention(archiveEnv(tenantCtx), req.Months, req.Weeks)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "pruned": pruned})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "pruned": pruned})
}

// GetLogLevels returns the current level for every log channel.
func (h *SysOpHandlers) GetLogLevels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"levels": h.container.Logger.GetChannelLevels()})
}

// SetLogLevel adjusts one log channel's level at runtime.
func (h *SysOpHandlers) SetLogLevel(c *gin.Context) {
	var req struct {
		Channel string `json:"channel" binding:"required"`
		Level   string `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel and level are required"})
		return
	}

	var level slog.Level
	switch req.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "level must be debug, info, warn or error"})
		return
	}

	if err := h.container.Logger.SetChannelLevel(logging.Channel(req.Channel), level); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HandleWebSocket upgrades a dashboard connection and registers it with the
// broadcaster for the periodic cache-state pushes.
func (h *SysOpHandlers) HandleWebSocket(c *gin.Context) {
	tenantCtx, ok := middleware.GetTenantContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not available"})
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.container.Logger.System().Error("WebSocket upgrade failed", "error", err, "tenantId", tenantCtx.TenantID)
		return
	}

	client := &messaging.SysOpClient{
		Conn:     conn,
		TenantID: tenantCtx.TenantID,
		Send:     make(chan []byte, 8),
	}
	h.container.Broadcaster.Register(client)

	go h.writePump(client)
	go h.readPump(client)
}

// writePump drains the client's send channel and keeps the connection alive
// with periodic pings.
func (h *SysOpHandlers) writePump(client *messaging.SysOpClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames and unregisters the client on close.
func (h *SysOpHandlers) readPump(client *messaging.SysOpClient) {
	defer func() {
		h.container.Broadcaster.Unregister(client)
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(512)
	client.Conn.SetReadDeadline(time.Now().Add(wsPongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
