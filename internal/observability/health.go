package observability

// HealthStatus is the vendor-neutral result of a health probe.
type HealthStatus struct {
	Healthy   bool              `json:"healthy"`
	Subsystem map[string]string `json:"subsystems"`
}

// HealthCheckService maps the degraded-mode tracker plus a database ping
// into the 200/503 surface GET /health and its per-subsystem routes need.
// subsystem-scoped variants.
type HealthCheckService struct {
	degraded *DegradedModeTracker
	pingDB   func() error
}

// NewHealthCheckService wires a tracker and a database ping function
// (cmd/signalengine/main.go passes a read of the active PAPER risk limits).
func NewHealthCheckService(degraded *DegradedModeTracker, pingDB func() error) *HealthCheckService {
	return &HealthCheckService{degraded: degraded, pingDB: pingDB}
}

// Check runs every subsystem probe and reports overall health. A subsystem
// is unhealthy if it is in degraded mode (GEX, CONTEXT) or if the database
// ping fails (DATABASE is probed live, not just via recorded failures,
// since a correct /health endpoint must reflect the instant it's called).
func (h *HealthCheckService) Check() HealthStatus {
	status := HealthStatus{Healthy: true, Subsystem: map[string]string{}}

	for _, s := range []Subsystem{SubsystemGEX, SubsystemContext} {
		if h.degraded.IsDegraded(s) {
			status.Subsystem[string(s)] = "degraded"
			status.Healthy = false
		} else {
			status.Subsystem[string(s)] = "ok"
		}
	}

	if err := h.pingDB(); err != nil {
		status.Subsystem[string(SubsystemDatabase)] = "unavailable: " + err.Error()
		status.Healthy = false
	} else {
		status.Subsystem[string(SubsystemDatabase)] = "ok"
	}

	return status
}

// CheckOne runs the full Check and reports only the given subsystem's
// status, for the /health/<subsystem> routes.
func (h *HealthCheckService) CheckOne(s Subsystem) HealthStatus {
	full := h.Check()
	return HealthStatus{
		Healthy:   full.Subsystem[string(s)] == "ok",
		Subsystem: map[string]string{string(s): full.Subsystem[string(s)]},
	}
}
