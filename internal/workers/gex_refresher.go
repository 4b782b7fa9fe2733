package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/optionpulse/signalengine/internal/marketdata"
	"github.com/optionpulse/signalengine/internal/observability"
	"github.com/optionpulse/signalengine/internal/store"
)

// GEXRefresher periodically pulls a gamma-exposure summary for each
// configured symbol, but only while the market is open.
// The provider itself is a Provider the same shape as a marketdata.Provider
// (a resty-backed HTTP call or, lacking a real GEX vendor, the same demo
// fallback idiom).
type GEXRefresher struct {
	store      *store.Store
	marketdata *marketdata.Service
	provider   GEXProvider
	symbols    []string
	degraded   *observability.DegradedModeTracker
}

// GEXProvider fetches a gamma-exposure summary for one symbol.
type GEXProvider interface {
	FetchGEX(ctx context.Context, symbol string) (GEXSummary, error)
}

// GEXSummary is the normalized result a GEXProvider returns, shaped to
// match types.GEXSignal's columns one-to-one.
type GEXSummary struct {
	NetGEX         float64
	Strength       float64
	Direction      string
	DealerPosition string
	ZeroGammaLevel float64
	MaxPainStrike  float64
	PutCallRatio   float64
	WallSupport    float64
	WallResistance float64
	Conviction     string
	Timeframe      string
}

func NewGEXRefresher(st *store.Store, md *marketdata.Service, provider GEXProvider, symbols []string, degraded *observability.DegradedModeTracker) *GEXRefresher {
	return &GEXRefresher{store: st, marketdata: md, provider: provider, symbols: symbols, degraded: degraded}
}

func (w *GEXRefresher) Run(ctx context.Context) {
	runLoop(ctx, "gex_refresher", 15*time.Minute, w.tick)
}

func (w *GEXRefresher) tick(ctx context.Context) {
	if !w.marketdata.IsMarketOpen(time.Now()) {
		return
	}
	for _, symbol := range w.symbols {
		w.refresh(ctx, symbol)
	}
}

func (w *GEXRefresher) refresh(ctx context.Context, symbol string) {
	summary, err := w.provider.FetchGEX(ctx, symbol)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("gex_refresher: fetch failed")
		if w.degraded != nil {
			w.degraded.RecordFailure(observability.SubsystemGEX)
		}
		return
	}
	if w.degraded != nil {
		w.degraded.RecordSuccess(observability.SubsystemGEX)
	}
	sig := summaryToGEXSignal(symbol, summary)
	if err := w.store.UpsertGEXSignal(ctx, &sig); err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("gex_refresher: failed to persist GEX signal")
	}
}
