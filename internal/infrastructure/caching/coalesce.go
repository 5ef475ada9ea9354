// Package caching provides application-wide caching and related utilities.
package caching

import (
	"sync"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
)

// Flight is one in-flight resolution shared by every concurrent caller of the
// same key. The leader fulfills it exactly once; followers block on Done.
type Flight struct {
	Done      chan struct{}
	StartedAt time.Time

	report *metrics.ResolvedReport
	err    error
}

// Result returns the fulfilled outcome. Only valid after Done is closed.
func (f *Flight) Result() (*metrics.ResolvedReport, error) {
	return f.report, f.err
}

// RequestCoalescer guarantees at most one in-flight resolution per
// (tenant, client, platform, range) key. It is an injectable component, not a
// process-wide singleton, so tests can instantiate isolated instances.
type RequestCoalescer struct {
	mu      sync.Mutex
	flights map[string]*Flight
	ceiling time.Duration
}

// NewRequestCoalescer creates a coalescer whose entries expire after the
// given ceiling. An expired entry is treated as a dead leader and replaced.
func NewRequestCoalescer(ceiling time.Duration) *RequestCoalescer {
	return &RequestCoalescer{
		flights: make(map[string]*Flight),
		ceiling: ceiling,
	}
}

// Acquire returns the flight for a key and whether the caller is the leader.
// The leader must eventually call Complete; followers await flight.Done and
// read flight.Result.
func (rc *RequestCoalescer) Acquire(key string) (*Flight, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if existing, ok := rc.flights[key]; ok {
		if time.Since(existing.StartedAt) < rc.ceiling {
			return existing, false
		}
		// Dead leader: nothing fulfilled the flight within the ceiling.
		delete(rc.flights, key)
	}

	flight := &Flight{
		Done:      make(chan struct{}),
		StartedAt: time.Now().UTC(),
	}
	rc.flights[key] = flight
	return flight, true
}

// Complete fulfills a flight (success or failure), releases every follower,
// and removes the map entry so later requests start a fresh resolution.
func (rc *RequestCoalescer) Complete(key string, flight *Flight, report *metrics.ResolvedReport, err error) {
	rc.mu.Lock()
	if rc.flights[key] == flight {
		delete(rc.flights, key)
	}
	rc.mu.Unlock()

	flight.report = report
	flight.err = err
	close(flight.Done)
}

// Sweep removes entries older than the ceiling to bound memory when a leader
// died without completing.
func (rc *RequestCoalescer) Sweep() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	swept := 0
	for key, flight := range rc.flights {
		if time.Since(flight.StartedAt) >= rc.ceiling {
			delete(rc.flights, key)
			swept++
		}
	}
	return swept
}

// Pending returns the number of in-flight resolutions.
func (rc *RequestCoalescer) Pending() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.flights)
}
