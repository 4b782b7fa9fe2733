package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBucketAllowDrainsCapacity(t *testing.T) {
	b := NewBucket(2, 2, time.Hour)

	assert.True(t, b.Allow())
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())

	stats := b.Stats()
	assert.Equal(t, int64(2), stats.Allowed)
	assert.Equal(t, int64(1), stats.Throttled)
}

func TestBucketRefillsOverTime(t *testing.T) {
	b := NewBucket(1, 1, 10*time.Millisecond)
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())

	time.Sleep(25 * time.Millisecond)
	assert.True(t, b.Allow())
}

func TestBucketWaitUnblocksOnRefill(t *testing.T) {
	b := NewBucket(1, 1, 10*time.Millisecond)
	assert.True(t, b.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := b.Wait(ctx)
	assert.NoError(t, err)
}

func TestBucketWaitCancelledRemovesWaiter(t *testing.T) {
	b := NewBucket(1, 1, time.Hour)
	assert.True(t, b.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := b.Wait(ctx)
	assert.Error(t, err)

	stats := b.Stats()
	assert.Equal(t, 0, stats.QueueLength)
}

func TestManagerUnregisteredProviderNeverThrottled(t *testing.T) {
	m := NewManager()
	for i := 0; i < 100; i++ {
		assert.True(t, m.Allow("unknown"))
	}
}

func TestManagerRegisterAndAllStats(t *testing.T) {
	m := NewManager()
	m.Register("polygon", 5, 5, time.Minute)

	assert.True(t, m.Allow("polygon"))

	stats := m.AllStats()
	if assert.Contains(t, stats, "polygon") {
		assert.Equal(t, int64(1), stats["polygon"].Allowed)
	}
}
