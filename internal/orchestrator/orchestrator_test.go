package orchestrator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/optionpulse/signalengine/internal/types"
)

func neutralRisk() RiskConfig {
	return RiskConfig{MinSize: 1, MaxSize: 10, BaseQuantity: 1}
}

func sampleExit() ExitRuleConfig {
	return ExitRuleConfig{
		ProfitTargetPct: decimal.NewFromFloat(0.5),
		StopLossPct:     decimal.NewFromFloat(0.3),
		TrailingStopPct: decimal.NewFromFloat(0.15),
		MaxDaysInTrade:  5,
	}
}

func TestEvaluateEntryAlignedBiasEnters(t *testing.T) {
	ctx := MarketContext{
		OverallGEXBias:   types.DirectionCall,
		Regime:           "BULLISH",
		RegimeConfidence: 80,
	}
	result := EvaluateEntry(types.DirectionCall, ctx, neutralRisk(), sampleExit())

	assert.Equal(t, types.DecisionEnter, result.Verdict)
	assert.Greater(t, result.Confidence, baseConfidence)
	assert.NotNil(t, result.TradePlan)
	assert.Equal(t, 1, result.PositionSize)
}

func TestEvaluateEntryHighConfidenceOpposingRegimeRejects(t *testing.T) {
	ctx := MarketContext{
		Regime:           "BEARISH",
		RegimeConfidence: 90,
	}
	result := EvaluateEntry(types.DirectionCall, ctx, neutralRisk(), sampleExit())

	assert.Equal(t, types.DecisionReject, result.Verdict)
	assert.Nil(t, result.TradePlan)
}

func TestEvaluateEntryLowConfidenceRejects(t *testing.T) {
	ctx := MarketContext{
		OverallGEXBias: types.DirectionPut,
		Regime:         "BEARISH",
	}
	result := EvaluateEntry(types.DirectionCall, ctx, neutralRisk(), sampleExit())

	assert.Equal(t, types.DecisionReject, result.Verdict)
	assert.Less(t, result.Confidence, minConfidenceThreshold+1)
}

func TestEvaluateEntryStrongMaxPainWithLowDTEFlagsConflict(t *testing.T) {
	ctx := MarketContext{
		OverallGEXBias:   types.DirectionCall,
		Regime:           "BULLISH",
		RegimeConfidence: 80,
		MaxPainAligned:   true,
		MaxPainStrong:    true,
		DTE:              2,
	}
	result := EvaluateEntry(types.DirectionCall, ctx, neutralRisk(), sampleExit())

	assert.True(t, result.ConflictFlag)
}

func TestEvaluateEntryVixHardRejectBlocksEntry(t *testing.T) {
	ctx := MarketContext{
		OverallGEXBias:   types.DirectionCall,
		Regime:           "BULLISH",
		RegimeConfidence: 80,
		VIX:              decimal.NewFromInt(40),
	}
	risk := neutralRisk()
	risk.MaxVixForEntry = decimal.NewFromInt(30)
	risk.VixHardReject = true

	result := EvaluateEntry(types.DirectionCall, ctx, risk, sampleExit())

	assert.Equal(t, types.DecisionReject, result.Verdict)
}

func TestEvaluateEntryVixSoftRejectReducesSize(t *testing.T) {
	ctx := MarketContext{
		OverallGEXBias:   types.DirectionCall,
		Regime:           "BULLISH",
		RegimeConfidence: 80,
		VIX:              decimal.NewFromInt(40),
	}
	risk := neutralRisk()
	risk.BaseQuantity = 10
	risk.MaxSize = 10
	risk.MaxVixForEntry = decimal.NewFromInt(30)
	risk.VixPositionSizeReduction = decimal.NewFromFloat(0.5)

	result := EvaluateEntry(types.DirectionCall, ctx, risk, sampleExit())

	assert.Equal(t, types.DecisionEnter, result.Verdict)
	assert.Less(t, result.PositionSize, 10)
}

func TestEvaluateEntryDealerShortGammaWidensStops(t *testing.T) {
	ctx := MarketContext{
		OverallGEXBias:   types.DirectionCall,
		Regime:           "BULLISH",
		RegimeConfidence: 80,
		DealerShortGamma: true,
	}
	result := EvaluateEntry(types.DirectionCall, ctx, neutralRisk(), sampleExit())

	assert.Equal(t, types.DecisionEnter, result.Verdict)
	assert.True(t, result.TradePlan.StopLossPct.GreaterThan(sampleExit().StopLossPct))
}

func TestRegimeMatchesDirection(t *testing.T) {
	assert.True(t, regimeMatchesDirection("BULLISH", types.DirectionCall))
	assert.True(t, regimeMatchesDirection("BEARISH", types.DirectionPut))
	assert.False(t, regimeMatchesDirection("BULLISH", types.DirectionPut))
	assert.False(t, regimeMatchesDirection("CHOPPY", types.DirectionCall))
}

func TestClampInt(t *testing.T) {
	assert.Equal(t, 5, clampInt(5, 0, 10))
	assert.Equal(t, 0, clampInt(-5, 0, 10))
	assert.Equal(t, 10, clampInt(50, 0, 10))
}
