// Package throttle gates how often evidence is persisted.
package throttle

import (
	"sync"
	"time"
)

// Throttle is the process-wide capture cooldown. One instance is shared by
// every relay session; all access goes through its mutex.
//
// A capture decision is a two-step protocol: Reserve marks a capture as
// pending, then exactly one of RecordCapture (the write succeeded) or
// Release (the write failed) resolves it. While a reservation is pending
// other callers wait in Reserve and decide once it resolves, so two sessions
// cannot both persist inside one cooldown window and a failed write leaves
// the window to the next eligible caller.
type Throttle struct {
	mu       sync.Mutex
	resolved *sync.Cond
	cooldown time.Duration
	last     time.Time
	pending  bool
}

// New creates a throttle that has never captured.
func New(cooldown time.Duration) *Throttle {
	t := &Throttle{cooldown: cooldown}
	t.resolved = sync.NewCond(&t.mu)
	return t
}

// Cooldown returns the configured interval.
func (t *Throttle) Cooldown() time.Duration {
	return t.cooldown
}

// ShouldCapture reports whether hasDangerous holds and strictly more than the
// cooldown has passed since the last committed capture. It ignores pending
// reservations and does not reserve.
func (t *Throttle) ShouldCapture(now time.Time, hasDangerous bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allowed(now, hasDangerous)
}

// Reserve marks a capture decided at now as pending when ShouldCapture
// allows it. If another reservation is pending it waits for that one to be
// resolved and checks again.
func (t *Throttle) Reserve(now time.Time, hasDangerous bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		if !t.allowed(now, hasDangerous) {
			return false
		}
		if !t.pending {
			t.pending = true
			return true
		}
		t.resolved.Wait()
	}
}

// RecordCapture commits a successful persist decided at now.
func (t *Throttle) RecordCapture(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = now
	t.pending = false
	t.resolved.Broadcast()
}

// Release drops a pending reservation without consuming the cooldown window.
func (t *Throttle) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = false
	t.resolved.Broadcast()
}

// LastCapture returns the decision time of the last committed capture, zero if none.
func (t *Throttle) LastCapture() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// allowed requires strictly more than cooldown since the last capture.
func (t *Throttle) allowed(now time.Time, hasDangerous bool) bool {
	if !hasDangerous {
		return false
	}
	if t.last.IsZero() {
		return true
	}
	return now.Sub(t.last) > t.cooldown
}
