package workers

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/optionpulse/signalengine/internal/config"
	"github.com/optionpulse/signalengine/internal/types"
)

func TestOptionSymbolEncodesExpirationStrikeAndType(t *testing.T) {
	exp := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	sym := optionSymbol("SPY", exp, types.OptionCall, decimal.NewFromFloat(450.5))

	assert.Equal(t, "SPY260821C00450500", sym)
}

func TestOptionSymbolUsesPForPut(t *testing.T) {
	exp := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	sym := optionSymbol("SPY", exp, types.OptionPut, decimal.NewFromFloat(450))

	assert.Contains(t, sym, "P")
}

func TestPadStrikePadsToEightDigits(t *testing.T) {
	assert.Equal(t, "00450500", padStrike(450500))
	assert.Equal(t, "00000100", padStrike(100))
}

func TestDecimalMetadataParsesFloatAndString(t *testing.T) {
	meta := types.JSONMap{"underlying_price": 123.45, "as_string": "67.89", "bad": true}

	v, ok := decimalMetadata(meta, "underlying_price")
	assert.True(t, ok)
	assert.True(t, v.Equal(decimal.NewFromFloat(123.45)))

	v, ok = decimalMetadata(meta, "as_string")
	assert.True(t, ok)
	assert.True(t, v.Equal(decimal.NewFromFloat(67.89)))

	_, ok = decimalMetadata(meta, "bad")
	assert.False(t, ok)

	_, ok = decimalMetadata(meta, "missing")
	assert.False(t, ok)
}

func TestDirectionFromOptionType(t *testing.T) {
	assert.Equal(t, types.DirectionCall, directionFromOptionType(types.OptionCall))
	assert.Equal(t, types.DirectionPut, directionFromOptionType(types.OptionPut))
}

func TestSummaryToGEXSignalConvertsFloatsToDecimal(t *testing.T) {
	summary := GEXSummary{
		NetGEX:     1_000_000,
		Strength:   0.75,
		Direction:  "CALL",
		Conviction: "HIGH",
		Timeframe:  "0DTE",
	}

	sig := summaryToGEXSignal("SPY", summary)
	assert.Equal(t, "SPY", sig.Symbol)
	assert.True(t, sig.NetGEX.Equal(decimal.NewFromFloat(1_000_000)))
	assert.Equal(t, "CALL", sig.Direction)
}

func TestConvictionIsDeterministicByModulo(t *testing.T) {
	assert.Equal(t, "HIGH", conviction(0))
	assert.Equal(t, "HIGH", conviction(3))
	assert.Equal(t, "MEDIUM", conviction(1))
	assert.Equal(t, "LOW", conviction(2))
}

func TestDemoGEXProviderIsDeterministicPerSymbol(t *testing.T) {
	p := NewDemoGEXProvider()

	a, err := p.FetchGEX(context.Background(), "SPY")
	assert.NoError(t, err)
	b, err := p.FetchGEX(context.Background(), "SPY")
	assert.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestDemoGEXProviderDiffersAcrossSymbols(t *testing.T) {
	p := NewDemoGEXProvider()

	spy, _ := p.FetchGEX(context.Background(), "SPY")
	qqq, _ := p.FetchGEX(context.Background(), "QQQ")

	assert.NotEqual(t, spy.NetGEX, qqq.NetGEX)
}

func TestToOrchestratorRiskCopiesVixFields(t *testing.T) {
	r := &types.RiskLimits{
		MaxVixForEntry:           decimal.NewFromInt(30),
		VixHardReject:            true,
		VixPositionSizeReduction: decimal.NewFromFloat(0.5),
	}

	out := toOrchestratorRisk(r)
	assert.True(t, out.MaxVixForEntry.Equal(decimal.NewFromInt(30)))
	assert.True(t, out.VixHardReject)
	assert.Equal(t, 1, out.MinSize)
	assert.Equal(t, 10, out.MaxSize)
}

func TestToOrchestratorExitCopiesThresholds(t *testing.T) {
	e := &types.ExitRules{
		ProfitTargetPct:     decimal.NewFromFloat(0.5),
		StopLossPct:         decimal.NewFromFloat(0.3),
		MinDaysToExpiration: 2,
		MaxDaysInTrade:      21,
	}

	out := toOrchestratorExit(e)
	assert.True(t, out.ProfitTargetPct.Equal(decimal.NewFromFloat(0.5)))
	assert.Equal(t, 2, out.MinDaysToExpiration)
	assert.Equal(t, 21, out.MaxDaysInTrade)
}

func TestConfigRiskToTypesSetsModeAndActive(t *testing.T) {
	cfg := config.RiskConfig{MaxOpenPositions: 5, VixHardReject: true}

	out := ConfigRiskToTypes(types.ModePaper, cfg)
	assert.Equal(t, types.ModePaper, out.Mode)
	assert.Equal(t, 5, out.MaxOpenPositions)
	assert.True(t, out.Active)
}

func TestConfigExitToTypesSetsModeAndActive(t *testing.T) {
	cfg := config.ExitRuleConfig{MaxDaysInTrade: 14}

	out := ConfigExitToTypes(types.ModeLive, cfg)
	assert.Equal(t, types.ModeLive, out.Mode)
	assert.Equal(t, 14, out.MaxDaysInTrade)
	assert.True(t, out.Active)
}

func TestProvisionalDTEIsNonNegative(t *testing.T) {
	assert.GreaterOrEqual(t, provisionalDTE("weekly"), 0)
	assert.GreaterOrEqual(t, provisionalDTE("monthly"), 0)
}
