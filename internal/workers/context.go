package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/optionpulse/signalengine/internal/observability"
	"github.com/optionpulse/signalengine/internal/orchestrator"
	"github.com/optionpulse/signalengine/internal/parsers"
	"github.com/optionpulse/signalengine/internal/store"
	"github.com/optionpulse/signalengine/internal/types"
)

// BuildMarketContext assembles an orchestrator.MarketContext from the most
// recent ContextSnapshot and the symbol's most recent GEXSignal, the join
// the teacher's core.Engine.buildDecisionContext performs across its
// indicator caches before calling into risk.RiskGate. timeframe selects the
// provisional expiration (weekly vs monthly) used to estimate DTE ahead of
// the order creator's own derivation.
func BuildMarketContext(ctx context.Context, st *store.Store, symbol, timeframe string, degraded *observability.DegradedModeTracker) orchestrator.MarketContext {
	mctx := orchestrator.MarketContext{DTE: provisionalDTE(timeframe)}

	snap, err := st.LatestContextSnapshot(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("build_market_context: no context snapshot available")
		if degraded != nil {
			degraded.RecordFailure(observability.SubsystemContext)
		}
	} else {
		if degraded != nil {
			degraded.RecordSuccess(observability.SubsystemContext)
		}
		mctx.VIX = snap.VIX
		mctx.Regime = snap.Regime
		mctx.RegimeConfidence = snap.Confidence
		if snap.Bias != "" {
			mctx.OverallGEXBias = types.Direction(snap.Bias)
		}
	}

	gex, err := st.LatestGEXSignal(ctx, symbol)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("build_market_context: no GEX signal available")
		if degraded != nil {
			degraded.RecordFailure(observability.SubsystemGEX)
		}
		return mctx
	}
	if degraded != nil {
		degraded.RecordSuccess(observability.SubsystemGEX)
	}

	if gex.Direction != "" {
		mctx.OverallGEXBias = types.Direction(gex.Direction)
	}
	mctx.DealerShortGamma = gex.DealerPosition == "SHORT_GAMMA"
	mctx.MaxPainAligned = gex.Direction != "" && types.Direction(gex.Direction) == mctx.OverallGEXBias
	mctx.MaxPainStrong = gex.Conviction == "HIGH"
	mctx.WallProximity = gex.WallSupport.IsPositive() || gex.WallResistance.IsPositive()
	mctx.WallAligned = gex.Strength.GreaterThan(decimal.NewFromFloat(0.5))
	mctx.PutCallExtreme = gex.PutCallRatio.GreaterThan(decimal.NewFromFloat(1.5)) || gex.PutCallRatio.LessThan(decimal.NewFromFloat(0.5))
	mctx.PutCallContrarianAligned = gex.PutCallRatio.GreaterThan(decimal.NewFromFloat(1.5))

	return mctx
}

func provisionalDTE(timeframe string) int {
	now := time.Now()
	var expiration time.Time
	if timeframe == "weekly" {
		expiration = parsers.NextWeeklyFriday(now)
	} else {
		expiration = parsers.NextMonthlyThirdFriday(now)
	}
	dte := int(expiration.Sub(now).Hours() / 24)
	if dte < 0 {
		dte = 0
	}
	return dte
}
