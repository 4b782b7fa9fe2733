package observability

import (
	"sync"
	"time"
)

// Subsystem is a degraded-mode-tracked dependency.
type Subsystem string

const (
	SubsystemGEX      Subsystem = "gex"
	SubsystemContext  Subsystem = "context"
	SubsystemDatabase Subsystem = "database"
)

// DegradedModeTracker mirrors the teacher's CircuitBreaker trip/reset
// shape (risk/circuit_breaker.go): a mutex-guarded map of subsystem health,
// flipped to degraded after consecutive failures and reset on success.
type DegradedModeTracker struct {
	mu sync.RWMutex

	failureThreshold int
	recoveryWindow   time.Duration

	failures map[Subsystem]int
	degraded map[Subsystem]bool
	since    map[Subsystem]time.Time
}

// NewDegradedModeTracker builds a tracker that flips a subsystem degraded
// after failureThreshold consecutive failures, and allows it to be probed
// for recovery after recoveryWindow has elapsed.
func NewDegradedModeTracker(failureThreshold int, recoveryWindow time.Duration) *DegradedModeTracker {
	return &DegradedModeTracker{
		failureThreshold: failureThreshold,
		recoveryWindow:   recoveryWindow,
		failures:         make(map[Subsystem]int),
		degraded:         make(map[Subsystem]bool),
		since:            make(map[Subsystem]time.Time),
	}
}

// RecordSuccess clears a subsystem's failure count and un-degrades it.
func (t *DegradedModeTracker) RecordSuccess(s Subsystem) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[s] = 0
	t.degraded[s] = false
}

// RecordFailure increments a subsystem's failure count, tripping it into
// degraded mode once the threshold is reached.
func (t *DegradedModeTracker) RecordFailure(s Subsystem) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[s]++
	if t.failures[s] >= t.failureThreshold && !t.degraded[s] {
		t.degraded[s] = true
		t.since[s] = time.Now()
	}
}

// IsDegraded reports a subsystem's current state, auto-clearing it once
// the recovery window has elapsed since it tripped (the caller's next
// probe gets a chance to RecordSuccess and fully clear it).
func (t *DegradedModeTracker) IsDegraded(s Subsystem) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.degraded[s] {
		return false
	}
	return time.Since(t.since[s]) < t.recoveryWindow
}

// Snapshot returns the degraded state of every subsystem that has recorded
// a success or has tripped into degraded mode; a subsystem with only
// sub-threshold failures is not listed.
func (t *DegradedModeTracker) Snapshot() map[Subsystem]bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[Subsystem]bool, len(t.degraded))
	for s, d := range t.degraded {
		out[s] = d && time.Since(t.since[s]) < t.recoveryWindow
	}
	return out
}
