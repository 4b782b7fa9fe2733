package orchestrator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/optionpulse/signalengine/internal/types"
)

const holdConfidenceBase = 70

// PositionContext is the open position plus its mark-to-market and market
// context state, the input to hold and exit evaluation.
type PositionContext struct {
	Position      *types.Position
	CurrentPrice  decimal.Decimal
	HighWaterMark decimal.Decimal
	ProfitPct     decimal.Decimal // (current-entry)/entry, no multiplier
	DTE           int
	Now           time.Time
	RegimeAgainst          bool
	RegimeConfidence       int
	DealerFlippedShortGamma bool
	ZeroGammaCrossAgainst  bool
	WallProximityAdverse   bool
	WallProximitySeverity  int // 5 or 10
	PutCallContrarianAgainst bool
	MaxPainPullAdverse     bool
	GEXFlipAgainst         bool
	ThetaDecayDailyPct     decimal.Decimal
}

// HoldResult is the exit monitor's per-cycle decision for an open position
// that hasn't hit a hard exit-priority rule yet.
type HoldResult struct {
	Confidence int
	Action     types.ExitAction
	Warnings   []string
	Reasoning  []string
}

// EvaluateHold runs the hold-evaluation adjustments
// and selects an action from the resulting confidence and warning count.
func EvaluateHold(pc PositionContext, exitCfg ExitRuleConfig) HoldResult {
	confidence := holdConfidenceBase
	var warnings, reasoning []string
	highWarnings := 0

	add := func(delta int, reason string) {
		confidence += delta
		reasoning = append(reasoning, reason)
	}
	warn := func(kind string, high bool) {
		warnings = append(warnings, kind)
		if high {
			highWarnings++
		}
	}

	if pc.RegimeAgainst {
		add(-25, "regime change against position")
		warn("REGIME_CHANGE", pc.RegimeConfidence >= 70)
	}

	if pc.DealerFlippedShortGamma && pc.ProfitPct.GreaterThan(decimal.NewFromFloat(0.10)) {
		reasoning = append(reasoning, "dealer flip to short-gamma with >10% unrealized profit")
		return HoldResult{Confidence: clampConfidence(confidence), Action: types.ExitActionPartial, Warnings: warnings, Reasoning: reasoning}
	}

	if pc.ZeroGammaCrossAgainst {
		add(-20, "zero-gamma crossover against position")
	}

	if pc.WallProximityAdverse {
		delta := -pc.WallProximitySeverity
		if delta == 0 {
			delta = -5
		}
		add(delta, "wall proximity adverse")
	}

	if pc.PutCallContrarianAgainst {
		add(-10, "put/call contrarian against position")
	}

	if pc.MaxPainPullAdverse {
		add(-8, "max-pain pull adverse")
	}

	if pc.ProfitPct.GreaterThanOrEqual(decimal.NewFromFloat(0.50)) {
		warn("PROFIT_TARGET", false)
	}

	dwell := pc.Now.Sub(pc.Position.EntryTime)
	if dwell >= 72*time.Hour && pc.ProfitPct.LessThan(decimal.NewFromFloat(0.10)) {
		warn("TIME_DECAY", false)
	}

	confidence = clampConfidence(confidence)

	switch {
	case confidence < 30:
		return HoldResult{Confidence: confidence, Action: types.ExitActionCloseFull, Warnings: warnings, Reasoning: reasoning}
	case confidence < 50 && pc.ProfitPct.GreaterThan(decimal.NewFromFloat(0.20)):
		return HoldResult{Confidence: confidence, Action: types.ExitActionPartial, Warnings: warnings, Reasoning: reasoning}
	case len(warnings) >= 3:
		reasoning = append(reasoning, "three or more warnings: tighten stop to current_price*0.9")
		return HoldResult{Confidence: confidence, Action: types.ExitActionTightenStop, Warnings: warnings, Reasoning: reasoning}
	default:
		return HoldResult{Confidence: confidence, Action: types.ExitActionHold, Warnings: warnings, Reasoning: reasoning}
	}
}

// ExitDecision is the outcome of the priority-ordered exit-rule evaluation:
// first match wins, nothing after it is evaluated.
type ExitDecision struct {
	Action  types.ExitAction
	Urgency types.Urgency
	Reason  string
}

// EvaluateExit walks the ten priority-ordered exit rules and returns
// on the first match, or HOLD if none fire.
func EvaluateExit(pc PositionContext, exitCfg ExitRuleConfig) ExitDecision {
	entry := pc.Position.EntryPrice

	// 1. Stop-loss hit.
	stopPrice := entry.Mul(decimal.NewFromInt(1).Sub(exitCfg.StopLossPct))
	if pc.CurrentPrice.LessThanOrEqual(stopPrice) {
		return ExitDecision{types.ExitActionCloseFull, types.UrgencyImmediate, "stop-loss hit"}
	}

	// 2. Target-2 hit.
	target2Price := entry.Mul(decimal.NewFromInt(1).Add(exitCfg.ProfitTargetPct))
	if pc.CurrentPrice.GreaterThanOrEqual(target2Price) {
		return ExitDecision{types.ExitActionCloseFull, types.UrgencyImmediate, "target-2 hit"}
	}

	// 3. Target-1 hit and no prior partial.
	target1Pct := exitCfg.ProfitTargetPct.Div(decimal.NewFromInt(2))
	target1Price := entry.Mul(decimal.NewFromInt(1).Add(target1Pct))
	if pc.CurrentPrice.GreaterThanOrEqual(target1Price) && !pc.Position.PartialExitDone {
		return ExitDecision{types.ExitActionClosePartial, types.UrgencySoon, "target-1 hit, no prior partial"}
	}

	// 4. Trailing stop.
	if pc.HighWaterMark.IsPositive() {
		trailingFloor := pc.HighWaterMark.Mul(decimal.NewFromInt(1).Sub(exitCfg.TrailingStopPct))
		if pc.CurrentPrice.LessThan(trailingFloor) && pc.ProfitPct.IsPositive() {
			return ExitDecision{types.ExitActionCloseFull, types.UrgencyImmediate, "trailing stop hit with positive P&L"}
		}
	}

	// 5. GEX flip against position with >10% profit.
	if pc.GEXFlipAgainst && pc.ProfitPct.GreaterThan(decimal.NewFromFloat(0.10)) {
		return ExitDecision{types.ExitActionCloseFull, types.UrgencySoon, "GEX flip against position with >10% profit"}
	}

	// 6. Zero-gamma high-conviction breakout against.
	if pc.ZeroGammaCrossAgainst {
		return ExitDecision{types.ExitActionCloseFull, types.UrgencyImmediate, "zero-gamma high-conviction breakout against position"}
	}

	// 7. Regime change >=70% confidence against.
	if pc.RegimeAgainst && pc.RegimeConfidence >= 70 {
		return ExitDecision{types.ExitActionCloseFull, types.UrgencySoon, "regime change >=70% confidence against position"}
	}

	// 8. DTE <= 1.
	if pc.DTE <= 1 {
		return ExitDecision{types.ExitActionCloseFull, types.UrgencyImmediate, "DTE<=1"}
	}

	// 9. Age >= 168h (7 days) and gain <10%.
	if pc.Now.Sub(pc.Position.EntryTime) >= oldTradeThreshold && pc.ProfitPct.LessThan(decimal.NewFromFloat(0.10)) {
		return ExitDecision{types.ExitActionCloseFull, types.UrgencyOptional, "old trade (>=168h) with gain <10%"}
	}

	// 10. Theta decay >5% daily.
	if pc.ThetaDecayDailyPct.GreaterThan(decimal.NewFromFloat(0.05)) {
		return ExitDecision{types.ExitActionCloseFull, types.UrgencySoon, "theta decay >5% daily"}
	}

	return ExitDecision{types.ExitActionHold, types.UrgencyOptional, "no exit rule fired"}
}
