package throttle

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestShouldCapture_RequiresDanger(t *testing.T) {
	th := New(3 * time.Second)
	assert.False(t, th.ShouldCapture(base, false))
	assert.True(t, th.ShouldCapture(base, true))
}

func TestShouldCapture_StrictBoundary(t *testing.T) {
	th := New(3 * time.Second)
	require.True(t, th.Reserve(base, true))
	th.RecordCapture(base)

	assert.False(t, th.ShouldCapture(base.Add(time.Second), true))
	assert.False(t, th.ShouldCapture(base.Add(3*time.Second), true), "exactly at the boundary must not qualify")
	assert.True(t, th.ShouldCapture(base.Add(3*time.Second+time.Nanosecond), true))
}

func TestShouldCapture_DoesNotReserve(t *testing.T) {
	th := New(time.Second)
	assert.True(t, th.ShouldCapture(base, true))
	assert.True(t, th.ShouldCapture(base, true))
	assert.True(t, th.LastCapture().IsZero())
}

// reserveAsync runs Reserve in the background and reports its result.
func reserveAsync(th *Throttle, now time.Time) <-chan bool {
	done := make(chan bool, 1)
	go func() { done <- th.Reserve(now, true) }()
	return done
}

func TestReserve_WaitsForPendingReservation(t *testing.T) {
	th := New(time.Second)
	require.True(t, th.Reserve(base, true))

	second := reserveAsync(th, base.Add(time.Hour))
	select {
	case <-second:
		t.Fatal("Reserve must wait while another reservation is pending")
	case <-time.After(50 * time.Millisecond):
	}

	th.Release()
	select {
	case ok := <-second:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("Reserve did not resume after Release")
	}
}

func TestReserve_FailedPersistHandsWindowToWaiter(t *testing.T) {
	th := New(3 * time.Second)
	require.True(t, th.Reserve(base, true))

	waiter := reserveAsync(th, base.Add(500*time.Millisecond))
	assert.True(t, th.ShouldCapture(base.Add(500*time.Millisecond), true),
		"a pending reservation does not change eligibility")

	th.Release()
	require.True(t, <-waiter, "the waiting frame must get the window the failed write left open")
	th.RecordCapture(base.Add(500 * time.Millisecond))

	assert.Equal(t, base.Add(500*time.Millisecond), th.LastCapture())
}

func TestReserve_WaiterLosesAfterCommit(t *testing.T) {
	th := New(3 * time.Second)
	require.True(t, th.Reserve(base, true))

	waiter := reserveAsync(th, base.Add(500*time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	th.RecordCapture(base)

	select {
	case ok := <-waiter:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("Reserve did not resume after RecordCapture")
	}
}

func TestReserve_NoDangerNeverWaits(t *testing.T) {
	th := New(time.Second)
	require.True(t, th.Reserve(base, true))
	defer th.Release()

	assert.False(t, th.Reserve(base.Add(time.Hour), false))
}

func TestRelease_DoesNotAdvanceCooldown(t *testing.T) {
	th := New(3 * time.Second)
	require.True(t, th.Reserve(base, true))
	th.Release()

	assert.True(t, th.LastCapture().IsZero())
	assert.True(t, th.ShouldCapture(base.Add(500*time.Millisecond), true),
		"a failed persist must leave the window open")
}

func TestRecordCapture_UsesDecisionTime(t *testing.T) {
	th := New(3 * time.Second)
	require.True(t, th.Reserve(base, true))
	th.RecordCapture(base)

	assert.Equal(t, base, th.LastCapture())
}

func TestZeroCooldown(t *testing.T) {
	th := New(0)
	require.True(t, th.Reserve(base, true))
	th.RecordCapture(base)

	assert.False(t, th.ShouldCapture(base, true))
	assert.True(t, th.ShouldCapture(base.Add(time.Nanosecond), true))
}

func TestReserve_ConcurrentSingleWinner(t *testing.T) {
	th := New(3 * time.Second)

	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if th.Reserve(base, true) {
				wins.Add(1)
				th.RecordCapture(base)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestCooldownInvariant_SequenceOfAttempts(t *testing.T) {
	th := New(3 * time.Second)
	var captured []time.Time

	for ms := 0; ms <= 20000; ms += 250 {
		now := base.Add(time.Duration(ms) * time.Millisecond)
		if th.Reserve(now, true) {
			th.RecordCapture(now)
			captured = append(captured, now)
		}
	}

	require.NotEmpty(t, captured)
	for i := 1; i < len(captured); i++ {
		assert.Greater(t, captured[i].Sub(captured[i-1]), 3*time.Second)
	}
}
