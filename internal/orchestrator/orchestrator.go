// Package orchestrator implements the entry/hold/exit decision functions
// that share a single confidence model. The rule-stack structure —
// an ordered list of adjustments, each logging its own reason, evaluated
// against running state — follows the teacher's risk.RiskGate.CanEnter
// (hard-block checks, then size adjustments, then a score) and
// risk.TPSLManager.CheckExit (first-match-wins priority list).
package orchestrator

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/optionpulse/signalengine/internal/types"
)

const (
	baseConfidence         = 50
	minConfidenceThreshold = 35

	contextAdjustmentCap    = 20
	positioningAdjustmentCap = 15
	gexAdjustmentCap        = 15
)

// MarketContext is the snapshot of regime state the entry/hold/exit rules
// read; it is assembled by the pipeline/workers from ContextSnapshot and
// GEXSignal rows.
type MarketContext struct {
	VIX              decimal.Decimal
	Regime           string
	RegimeConfidence int
	OverallGEXBias   types.Direction
	GEXFlipped       bool
	GEXFlipDirection types.Direction
	ZeroGammaBreakout bool
	ZeroGammaConviction string // "HIGH", "MEDIUM", "LOW"
	ZeroGammaAligned bool
	MaxPainAligned   bool
	MaxPainStrong    bool
	DTE              int
	PutCallExtreme   bool
	PutCallContrarianAligned bool
	WallProximity    bool
	WallAligned      bool
	DealerShortGamma bool
}

// RiskConfig is the active risk-limits row relevant to orchestration.
type RiskConfig struct {
	MaxVixForEntry           decimal.Decimal
	VixHardReject            bool
	VixPositionSizeReduction decimal.Decimal
	MinSize                  int
	MaxSize                  int
	BaseQuantity             int
}

// EntryResult is the orchestrator's verdict for a Signal.
type EntryResult struct {
	Verdict      types.DecisionVerdict
	Confidence   int
	PositionSize int
	Reasoning    []string
	Calculations types.JSONMap
	ConflictFlag bool
	TradePlan    *TradePlan
}

// TradePlan is attached to an ENTER verdict.
type TradePlan struct {
	StopLossPct     decimal.Decimal
	Target1Pct      decimal.Decimal
	Target2Pct      decimal.Decimal
	TrailingStopPct decimal.Decimal
	MaxHoldHours    int
}

// EvaluateEntry runs the ordered entry rule stack against a signal's
// direction and the current market context.
func EvaluateEntry(dir types.Direction, ctx MarketContext, risk RiskConfig, exitCfg ExitRuleConfig) EntryResult {
	confidence := baseConfidence
	qtyMultiplier := 1.0
	wideStops := false
	conflict := false
	var reasoning []string

	add := func(delta int, reason string) {
		confidence += delta
		reasoning = append(reasoning, fmt.Sprintf("%s (%+d)", reason, delta))
	}

	// 1. Direction/bias alignment with GEX overall bias: ±20.
	if ctx.OverallGEXBias != "" {
		if ctx.OverallGEXBias == dir {
			add(20, "direction aligned with GEX overall bias")
		} else {
			add(-20, "direction opposed to GEX overall bias")
		}
	}

	// 2. GEX flip detection matching direction: ±15, qty multiplier ±25%.
	if ctx.GEXFlipped {
		if ctx.GEXFlipDirection == dir {
			add(15, "GEX flip matches direction")
			qtyMultiplier *= 1.25
		} else {
			add(-15, "GEX flip opposes direction")
			qtyMultiplier *= 0.75
		}
	}

	// 3. Zero-gamma breakout alignment with HIGH conviction: +18/-12.
	if ctx.ZeroGammaBreakout && ctx.ZeroGammaConviction == "HIGH" {
		if ctx.ZeroGammaAligned {
			add(18, "zero-gamma breakout aligned, high conviction")
		} else {
			add(-12, "zero-gamma breakout opposed, high conviction")
		}
	}

	// 4. Max-pain magnet: +12/-15; strong magnet with DTE<=3 forces conflict.
	if ctx.MaxPainAligned {
		add(12, "max-pain magnet aligned")
	} else {
		add(-15, "max-pain magnet opposed")
	}
	if ctx.MaxPainStrong && ctx.DTE <= 3 {
		conflict = true
		reasoning = append(reasoning, "conflict: strong max-pain magnet with DTE<=3")
	}

	// 5. P/C-ratio extreme contrarian signal: ±10.
	if ctx.PutCallExtreme {
		if ctx.PutCallContrarianAligned {
			add(10, "put/call extreme contrarian aligned")
		} else {
			add(-10, "put/call extreme contrarian opposed")
		}
	}

	// 6. Market-regime alignment: ±(15*regimeConfidence/100); high-confidence
	// opposing regime is an immediate reject.
	regimeAligned := regimeMatchesDirection(ctx.Regime, dir)
	regimeDelta := int(math.Round(15.0 * float64(ctx.RegimeConfidence) / 100.0))
	if regimeAligned {
		add(regimeDelta, "market regime aligned")
	} else {
		add(-regimeDelta, "market regime opposed")
		if ctx.RegimeConfidence >= 70 {
			reasoning = append(reasoning, "immediate reject: high-confidence opposing regime")
			return EntryResult{
				Verdict:    types.DecisionReject,
				Confidence: clampConfidence(confidence),
				Reasoning:  reasoning,
			}
		}
	}

	// 7. GEX-wall proximity with direction polarity: ±10/±8.
	if ctx.WallProximity {
		if ctx.WallAligned {
			add(10, "near supportive GEX wall")
		} else {
			add(-8, "near adverse GEX wall")
		}
	}

	// 8. Dealer-position short-gamma: qty multiplier x0.75, wider stops.
	if ctx.DealerShortGamma {
		qtyMultiplier *= 0.75
		wideStops = true
		reasoning = append(reasoning, "dealer short-gamma: reduced size, wider stops")
	}

	confidence = clampConfidence(confidence)
	if confidence < minConfidenceThreshold {
		return EntryResult{
			Verdict:    types.DecisionReject,
			Confidence: confidence,
			Reasoning:  append(reasoning, fmt.Sprintf("confidence %d below threshold %d", confidence, minConfidenceThreshold)),
		}
	}

	// VIX gate.
	if risk.MaxVixForEntry.IsPositive() && ctx.VIX.GreaterThan(risk.MaxVixForEntry) {
		if risk.VixHardReject {
			return EntryResult{
				Verdict:    types.DecisionReject,
				Confidence: confidence,
				Reasoning:  append(reasoning, "reject: VIX above max-for-entry with hard-reject configured"),
			}
		}
		reduction := risk.VixPositionSizeReduction
		if reduction.IsZero() {
			reduction = decimal.NewFromFloat(0.5)
		}
		qtyMultiplier *= (1 - reduction.InexactFloat64())
		reasoning = append(reasoning, "VIX above max-for-entry: position size reduced")
	}

	base := risk.BaseQuantity
	if base <= 0 {
		base = 1
	}
	quantity := int(math.Round(float64(base) * qtyMultiplier))
	quantity = clampInt(quantity, maxInt(risk.MinSize, 1), maxInt(risk.MaxSize, maxInt(risk.MinSize, 1)))

	stopMul := decimal.NewFromFloat(1.0)
	if wideStops {
		stopMul = decimal.NewFromFloat(1.2)
	}

	return EntryResult{
		Verdict:      types.DecisionEnter,
		Confidence:   confidence,
		PositionSize: quantity,
		Reasoning:    reasoning,
		ConflictFlag: conflict,
		Calculations: types.JSONMap{
			"qty_multiplier": qtyMultiplier,
			"wide_stops":     wideStops,
		},
		TradePlan: &TradePlan{
			StopLossPct:     exitCfg.StopLossPct.Mul(stopMul),
			Target1Pct:      exitCfg.ProfitTargetPct.Div(decimal.NewFromInt(2)),
			Target2Pct:      exitCfg.ProfitTargetPct,
			TrailingStopPct: exitCfg.TrailingStopPct.Mul(stopMul),
			MaxHoldHours:    exitCfg.MaxDaysInTrade * 24,
		},
	}
}

func regimeMatchesDirection(regime string, dir types.Direction) bool {
	switch regime {
	case "BULLISH":
		return dir == types.DirectionCall
	case "BEARISH":
		return dir == types.DirectionPut
	default:
		return false
	}
}

func clampConfidence(c int) int { return clampInt(c, 0, 100) }

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ExitRuleConfig mirrors the fields of internal/config.ExitRuleConfig as a
// separate type; internal/workers copies the active ExitRules row into this shape.
type ExitRuleConfig struct {
	ProfitTargetPct     decimal.Decimal
	StopLossPct         decimal.Decimal
	TrailingStopPct     decimal.Decimal
	MinDaysToExpiration int
	MaxDaysInTrade      int
}

// oldTradeThreshold is the "old trade" cutoff used by exit rule 9,
// resolved to 168h (7 days) per the binding Open Question decision.
const oldTradeThreshold = 168 * time.Hour
