package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthCheckServiceAllHealthy(t *testing.T) {
	tr := NewDegradedModeTracker(3, time.Minute)
	h := NewHealthCheckService(tr, func() error { return nil })

	status := h.Check()
	assert.True(t, status.Healthy)
	assert.Equal(t, "ok", status.Subsystem["gex"])
	assert.Equal(t, "ok", status.Subsystem["database"])
}

func TestHealthCheckServiceDegradedSubsystemFailsOverall(t *testing.T) {
	tr := NewDegradedModeTracker(1, time.Minute)
	tr.RecordFailure(SubsystemGEX)
	h := NewHealthCheckService(tr, func() error { return nil })

	status := h.Check()
	assert.False(t, status.Healthy)
	assert.Equal(t, "degraded", status.Subsystem["gex"])
}

func TestHealthCheckServiceDatabasePingFailureFailsOverall(t *testing.T) {
	tr := NewDegradedModeTracker(3, time.Minute)
	h := NewHealthCheckService(tr, func() error { return errors.New("connection refused") })

	status := h.Check()
	assert.False(t, status.Healthy)
	assert.Contains(t, status.Subsystem["database"], "unavailable")
}

func TestCheckOneReturnsOnlyRequestedSubsystem(t *testing.T) {
	tr := NewDegradedModeTracker(3, time.Minute)
	h := NewHealthCheckService(tr, func() error { return nil })

	status := h.CheckOne(SubsystemContext)
	assert.True(t, status.Healthy)
	assert.Len(t, status.Subsystem, 1)
	assert.Contains(t, status.Subsystem, "context")
}
