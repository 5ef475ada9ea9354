// Package messaging provides real-time dashboard communication.
package messaging

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/caching"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/caching/manager"
	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/tenant"
	"github.com/gorilla/websocket"
)

// SysOpClient represents a single connected sysop dashboard client.
type SysOpClient struct {
	Conn     *websocket.Conn
	TenantID string
	Send     chan []byte
}

// CacheStatePayload is the data structure sent to the dashboard on each tick.
type CacheStatePayload struct {
	TenantID       string `json:"tenantId"`
	HotPeriods     int    `json:"hotPeriods"`
	StaleCount     int    `json:"staleCount"`
	PendingFlights int    `json:"pendingFlights"`
	LastUpdated    string `json:"lastUpdated"`
	PoolTotal      int    `json:"poolTotal"`
	PoolActive     int    `json:"poolActive"`
}

// SysOpBroadcaster manages all connected sysop clients and broadcasts data.
type SysOpBroadcaster struct {
	tenantClients map[string]map[*SysOpClient]bool
	register      chan *SysOpClient
	unregister    chan *SysOpClient
	cacheManager  *manager.Manager
	coalescer     *caching.RequestCoalescer
	mu            sync.RWMutex
}

// NewSysOpBroadcaster creates a new broadcaster instance.
func NewSysOpBroadcaster(cm *manager.Manager, coalescer *caching.RequestCoalescer) *SysOpBroadcaster {
	return &SysOpBroadcaster{
		tenantClients: make(map[string]map[*SysOpClient]bool),
		register:      make(chan *SysOpClient),
		unregister:    make(chan *SysOpClient),
		cacheManager:  cm,
		coalescer:     coalescer,
	}
}

// Run starts the broadcaster's main loop. This should be run as a goroutine.
func (b *SysOpBroadcaster) Run() {
	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case client := <-b.register:
			b.mu.Lock()
			if _, ok := b.tenantClients[client.TenantID]; !ok {
				b.tenantClients[client.TenantID] = make(map[*SysOpClient]bool)
			}
			b.tenantClients[client.TenantID][client] = true
			log.Printf("SysOp client registered for tenant: %s", client.TenantID)
			b.mu.Unlock()

		case client := <-b.unregister:
			b.mu.Lock()
			if clients, ok := b.tenantClients[client.TenantID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(b.tenantClients, client.TenantID)
					}
				}
			}
			log.Printf("SysOp client unregistered for tenant: %s", client.TenantID)
			b.mu.Unlock()

		case <-ticker.C:
			b.broadcastCacheState()
		}
	}
}

// Register queues a client for registration.
func (b *SysOpBroadcaster) Register(client *SysOpClient) {
	b.register <- client
}

// Unregister queues a client for unregistration.
func (b *SysOpBroadcaster) Unregister(client *SysOpClient) {
	b.unregister <- client
}

// broadcastCacheState gathers and sends cache state for all tenants with active clients.
func (b *SysOpBroadcaster) broadcastCacheState() {
	b.mu.RLock()
	tenantIDs := make([]string, 0, len(b.tenantClients))
	for tenantID := range b.tenantClients {
		tenantIDs = append(tenantIDs, tenantID)
	}
	b.mu.RUnlock()

	for _, tenantID := range tenantIDs {
		payload := b.buildPayload(tenantID)

		message, err := json.Marshal(payload)
		if err != nil {
			log.Printf("Error marshaling cache state for tenant %s: %v", tenantID, err)
			continue
		}

		b.mu.RLock()
		if clients, ok := b.tenantClients[tenantID]; ok {
			for client := range clients {
				select {
				case client.Send <- message:
				default:
				}
			}
		}
		b.mu.RUnlock()
	}
}

// buildPayload assembles one tenant's dashboard snapshot.
func (b *SysOpBroadcaster) buildPayload(tenantID string) CacheStatePayload {
	payload := CacheStatePayload{
		TenantID:       tenantID,
		PendingFlights: b.coalescer.Pending(),
	}

	summary := b.cacheManager.GetCacheSummary(tenantID)
	if hotPeriods, ok := summary["hotPeriods"].(int); ok {
		payload.HotPeriods = hotPeriods
	}
	if staleCount, ok := summary["staleCount"].(int); ok {
		payload.StaleCount = staleCount
	}
	if lastUpdated, ok := summary["lastUpdated"].(time.Time); ok && !lastUpdated.IsZero() {
		payload.LastUpdated = lastUpdated.UTC().Format(time.RFC3339)
	}

	poolStats := tenant.GetPoolStats()
	payload.PoolTotal = poolStats["total"]
	payload.PoolActive = poolStats["active"]

	return payload
}
