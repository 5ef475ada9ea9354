package caching

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoalescerSingleLeaderAmongManyCallers(t *testing.T) {
	rc := NewRequestCoalescer(30 * time.Second)

	const callers = 50
	var leaders int32
	var wg sync.WaitGroup
	results := make([]*metrics.ResolvedReport, callers)

	expected := &metrics.ResolvedReport{Success: true, SourceUsed: metrics.SourceLiveFetch}

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			flight, leader := rc.Acquire("t1:c1:meta:2024-03-01..2024-03-31")
			if leader {
				atomic.AddInt32(&leaders, 1)
				time.Sleep(20 * time.Millisecond) // simulate the upstream call
				rc.Complete("t1:c1:meta:2024-03-01..2024-03-31", flight, expected, nil)
			}
			<-flight.Done
			report, err := flight.Result()
			require.NoError(t, err)
			results[idx] = report
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), leaders, "exactly one caller leads the flight")
	for _, report := range results {
		assert.Same(t, expected, report, "every caller observes the leader's result")
	}
	assert.Zero(t, rc.Pending(), "completed flights leave the map")
}

func TestCoalescerErrorPropagatesToFollowers(t *testing.T) {
	rc := NewRequestCoalescer(30 * time.Second)

	flight, leader := rc.Acquire("k")
	require.True(t, leader)

	follower, isLeader := rc.Acquire("k")
	require.False(t, isLeader)
	assert.Same(t, flight, follower)

	rc.Complete("k", flight, nil, metrics.ErrUpstreamUnavailable)

	<-follower.Done
	_, err := follower.Result()
	assert.ErrorIs(t, err, metrics.ErrUpstreamUnavailable)
}

func TestCoalescerReplacesDeadLeader(t *testing.T) {
	rc := NewRequestCoalescer(10 * time.Millisecond)

	first, leader := rc.Acquire("k")
	require.True(t, leader)

	time.Sleep(20 * time.Millisecond)

	second, leaderAgain := rc.Acquire("k")
	assert.True(t, leaderAgain, "an expired flight is treated as a dead leader")
	assert.NotSame(t, first, second)
}

func TestCoalescerSweep(t *testing.T) {
	rc := NewRequestCoalescer(10 * time.Millisecond)

	rc.Acquire("a")
	rc.Acquire("b")
	require.Equal(t, 2, rc.Pending())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, rc.Sweep())
	assert.Zero(t, rc.Pending())
}

func TestRefreshCooldownWindow(t *testing.T) {
	rc := NewRefreshCooldown(30 * time.Millisecond)

	assert.True(t, rc.TryAcquire("k"))
	assert.False(t, rc.TryAcquire("k"), "second attempt inside the window is suppressed")
	assert.True(t, rc.TryAcquire("other"), "keys are independent")

	time.Sleep(40 * time.Millisecond)
	assert.True(t, rc.TryAcquire("k"))
}

func TestRefreshCooldownSweep(t *testing.T) {
	rc := NewRefreshCooldown(10 * time.Millisecond)

	rc.TryAcquire("a")
	rc.TryAcquire("b")

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, rc.Sweep())
}
