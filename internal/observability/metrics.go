// Package observability holds the process-wide health/metrics/audit
// singletons. MetricsService's registration style follows
// chidi150c-coinbase/metrics.go (prometheus.NewCounterVec/GaugeVec
// registered once at construction, updated from call sites).
package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsService counts signals/decisions/positions and tracks latency
// series for signal_processing, decision, and execution.
type MetricsService struct {
	signalsAccepted  prometheus.Counter
	signalsRejected  *prometheus.CounterVec
	ordersTotal      *prometheus.CounterVec
	positionsOpen    prometheus.Gauge
	totalExposure    prometheus.Gauge
	unrealizedPnL    prometheus.Gauge
	realizedPnL      prometheus.Gauge

	mu      sync.Mutex
	latency map[string][]time.Duration
}

// NewMetricsService registers every metric against reg (pass
// prometheus.NewRegistry() in tests, prometheus.DefaultRegisterer in prod).
func NewMetricsService(reg prometheus.Registerer) *MetricsService {
	m := &MetricsService{
		signalsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalengine_signals_accepted_total",
			Help: "Signals that received an ENTER entry decision.",
		}),
		signalsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalengine_signals_rejected_total",
			Help: "Signals rejected, by reason.",
		}, []string{"reason"}),
		ordersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalengine_orders_total",
			Help: "Orders created, by side and mode.",
		}, []string{"side", "mode"}),
		positionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalengine_positions_open",
			Help: "Currently open positions.",
		}),
		totalExposure: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalengine_total_exposure_usd",
			Help: "Sum of entry_price*quantity*100 across open positions.",
		}),
		unrealizedPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalengine_unrealized_pnl_usd",
			Help: "Sum of unrealized P&L across open positions.",
		}),
		realizedPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalengine_realized_pnl_usd",
			Help: "Cumulative realized P&L across closed positions.",
		}),
		latency: make(map[string][]time.Duration),
	}
	reg.MustRegister(m.signalsAccepted, m.signalsRejected, m.ordersTotal, m.positionsOpen, m.totalExposure, m.unrealizedPnL, m.realizedPnL)
	return m
}

func (m *MetricsService) RecordSignalAccepted() { m.signalsAccepted.Inc() }

func (m *MetricsService) RecordSignalRejected(reason string) {
	m.signalsRejected.WithLabelValues(reason).Inc()
}

func (m *MetricsService) RecordOrder(side, mode string) {
	m.ordersTotal.WithLabelValues(side, mode).Inc()
}

// SetOpenPositionAggregates overwrites the open-position gauges. Callers
// compute these fresh every tick from the full open-position set, so an
// absolute Set is correct here, unlike realized P&L below.
func (m *MetricsService) SetOpenPositionAggregates(openCount int, totalExposure, unrealized float64) {
	m.positionsOpen.Set(float64(openCount))
	m.totalExposure.Set(totalExposure)
	m.unrealizedPnL.Set(unrealized)
}

// AddRealizedPnL accumulates delta into the cumulative realized P&L gauge.
// Each position close contributes its own delta; the gauge is never reset.
func (m *MetricsService) AddRealizedPnL(delta float64) {
	m.realizedPnL.Add(delta)
}

// RecordLatency appends a sample to a named series (signal_processing,
// decision, execution), trimmed to the most recent 1000 samples.
func (m *MetricsService) RecordLatency(series string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	samples := append(m.latency[series], d)
	if len(samples) > 1000 {
		samples = samples[len(samples)-1000:]
	}
	m.latency[series] = samples
}

// LatencyStats is the avg/min/max/p50/p95/p99 summary for one series.
type LatencyStats struct {
	Avg, Min, Max, P50, P95, P99 time.Duration
	Count                        int
}

// LatencyStatsFor computes the summary for series from its current samples.
func (m *MetricsService) LatencyStatsFor(series string) LatencyStats {
	m.mu.Lock()
	samples := append([]time.Duration(nil), m.latency[series]...)
	m.mu.Unlock()

	if len(samples) == 0 {
		return LatencyStats{}
	}
	sorted := append([]time.Duration(nil), samples...)
	insertionSort(sorted)

	var sum time.Duration
	for _, s := range sorted {
		sum += s
	}
	pct := func(p float64) time.Duration {
		idx := int(p * float64(len(sorted)-1))
		return sorted[idx]
	}
	return LatencyStats{
		Avg:   sum / time.Duration(len(sorted)),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		P50:   pct(0.50),
		P95:   pct(0.95),
		P99:   pct(0.99),
		Count: len(sorted),
	}
}

func insertionSort(d []time.Duration) {
	for i := 1; i < len(d); i++ {
		for j := i; j > 0 && d[j-1] > d[j]; j-- {
			d[j-1], d[j] = d[j], d[j-1]
		}
	}
}
