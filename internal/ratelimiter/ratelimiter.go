// Package ratelimiter is a per-provider token bucket, in the teacher's own
// mutex-guarded-struct idiom (cf. risk.RiskGate, risk.CircuitBreaker): a
// config block, a state block, and Check/Record-style methods.
package ratelimiter

import (
	"context"
	"sync"
	"time"
)

// Bucket is a single provider's token bucket: capacity tokens refilled at
// refillAmount per refillInterval, with FIFO release of waiters blocked on Wait.
type Bucket struct {
	mu sync.Mutex

	capacity       int
	refillAmount   int
	refillInterval time.Duration

	tokens     int
	lastRefill time.Time
	waiters    []chan struct{}

	allowed   int64
	throttled int64
}

// NewBucket builds a bucket starting full.
func NewBucket(capacity, refillAmount int, refillInterval time.Duration) *Bucket {
	return &Bucket{
		capacity:       capacity,
		refillAmount:   refillAmount,
		refillInterval: refillInterval,
		tokens:         capacity,
		lastRefill:     time.Now(),
	}
}

func (b *Bucket) refillLocked() {
	elapsed := time.Since(b.lastRefill)
	if elapsed < b.refillInterval {
		return
	}
	periods := int(elapsed / b.refillInterval)
	b.tokens += periods * b.refillAmount
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = b.lastRefill.Add(time.Duration(periods) * b.refillInterval)

	for b.tokens > 0 && len(b.waiters) > 0 {
		w := b.waiters[0]
		b.waiters = b.waiters[1:]
		b.tokens--
		close(w)
	}
}

// Allow attempts a non-blocking token take, recording a hit or a throttle.
func (b *Bucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	if b.tokens > 0 {
		b.tokens--
		b.allowed++
		return true
	}
	b.throttled++
	return false
}

// Wait blocks until a token is available or ctx is cancelled. A cancelled
// waiter is removed from the FIFO queue so it never silently consumes a
// token meant for the next caller.
func (b *Bucket) Wait(ctx context.Context) error {
	b.mu.Lock()
	b.refillLocked()
	if b.tokens > 0 {
		b.tokens--
		b.allowed++
		b.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	b.waiters = append(b.waiters, ch)
	b.throttled++
	b.mu.Unlock()

	for {
		select {
		case <-ch:
			return nil
		case <-time.After(b.refillInterval):
			b.mu.Lock()
			b.refillLocked()
			b.mu.Unlock()
		case <-ctx.Done():
			b.mu.Lock()
			for i, w := range b.waiters {
				if w == ch {
					b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
					break
				}
			}
			b.mu.Unlock()
			return ctx.Err()
		}
	}
}

// Stats reports the bucket's counters and current queue depth.
type Stats struct {
	Allowed     int64
	Throttled   int64
	QueueLength int
	Tokens      int
}

func (b *Bucket) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	return Stats{
		Allowed:     b.allowed,
		Throttled:   b.throttled,
		QueueLength: len(b.waiters),
		Tokens:      b.tokens,
	}
}

// Manager is a name-keyed registry of buckets, one per market-data provider.
type Manager struct {
	mu      sync.Mutex
	buckets map[string]*Bucket
}

// NewManager builds an empty manager.
func NewManager() *Manager {
	return &Manager{buckets: make(map[string]*Bucket)}
}

// Register creates (or replaces) the bucket for name.
func (m *Manager) Register(name string, capacity, refillAmount int, refillInterval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[name] = NewBucket(capacity, refillAmount, refillInterval)
}

// Get returns the bucket for name, or nil if unregistered.
func (m *Manager) Get(name string) *Bucket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buckets[name]
}

// Allow is a convenience wrapper: an unregistered provider is never throttled.
func (m *Manager) Allow(name string) bool {
	b := m.Get(name)
	if b == nil {
		return true
	}
	return b.Allow()
}

// AllStats snapshots every registered bucket's stats, keyed by name.
func (m *Manager) AllStats() map[string]Stats {
	m.mu.Lock()
	names := make([]string, 0, len(m.buckets))
	buckets := make([]*Bucket, 0, len(m.buckets))
	for name, b := range m.buckets {
		names = append(names, name)
		buckets = append(buckets, b)
	}
	m.mu.Unlock()

	out := make(map[string]Stats, len(names))
	for i, name := range names {
		out[name] = buckets[i].Stats()
	}
	return out
}
