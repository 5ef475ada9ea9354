package caching

import (
	"sync"
	"time"
)

// RefreshCooldown prevents refresh storms when many readers hit the same
// stale hot entry at once. It is tracked independently of the request
// coalescer: a background refresh for a key may be suppressed even while a
// foreground resolution for the same key is in flight.
type RefreshCooldown struct {
	mu       sync.Mutex
	lastRun  map[string]time.Time
	cooldown time.Duration
}

// NewRefreshCooldown creates a cooldown guard with the given window.
func NewRefreshCooldown(cooldown time.Duration) *RefreshCooldown {
	return &RefreshCooldown{
		lastRun:  make(map[string]time.Time),
		cooldown: cooldown,
	}
}

// TryAcquire reports whether a refresh may run for the key now, and records
// the attempt when it may. This operation is non-blocking.
func (rc *RefreshCooldown) TryAcquire(key string) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if last, ok := rc.lastRun[key]; ok && time.Since(last) < rc.cooldown {
		return false
	}
	rc.lastRun[key] = time.Now().UTC()
	return true
}

// Sweep drops entries older than the cooldown window to bound memory.
func (rc *RefreshCooldown) Sweep() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	swept := 0
	for key, last := range rc.lastRun {
		if time.Since(last) >= rc.cooldown {
			delete(rc.lastRun, key)
			swept++
		}
	}
	return swept
}
