package parsers

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/optionpulse/signalengine/internal/types"
)

func TestRegistryDetectsUltimateOptionDialect(t *testing.T) {
	r := NewRegistry()
	payload := map[string]any{"oscillator": 72.0, "signal": "CE"}

	assert.Equal(t, DialectUltimateOption, r.DetectIndicatorSource(payload))
}

func TestRegistryFallsBackToGeneric(t *testing.T) {
	r := NewRegistry()
	payload := map[string]any{"foo": "bar"}

	assert.Equal(t, DialectGeneric, r.DetectIndicatorSource(payload))
}

func TestRegistryParseUltimateOptionCallSignal(t *testing.T) {
	r := NewRegistry()
	raw := []byte(`{"ticker":"SPY","oscillator":72,"signal":"CE","price":450.25}`)

	result := r.Parse(raw)

	assert.Empty(t, result.Errors)
	assert.NotNil(t, result.Signal)
	assert.Equal(t, "SPY", result.Signal.Symbol)
	assert.Equal(t, types.DirectionCall, result.Signal.Direction)
	assert.Equal(t, DialectUltimateOption, result.Signal.Source)
}

func TestRegistryParseMalformedJSON(t *testing.T) {
	r := NewRegistry()
	raw := []byte(`not json`)

	result := r.Parse(raw)

	assert.Nil(t, result.Signal)
	if assert.Len(t, result.Errors, 1) {
		assert.Equal(t, RejectInvalidJSON, result.Errors[0].Kind)
	}
}

func TestRegistryParseFallsThroughToGenericWhenNoDialectMatches(t *testing.T) {
	r := NewRegistry()
	payload := map[string]any{"ticker": "SPY", "oscillator": 72.0, "signal": "NEUTRAL"}

	assert.Equal(t, DialectGeneric, r.DetectIndicatorSource(payload), "NEUTRAL isn't CE/PE, so ultimate-option's strict match fails")

	raw := []byte(`{"ticker":"SPY","direction":"bullish","price":450.25}`)
	result := r.Parse(raw)

	assert.Empty(t, result.Errors)
	if assert.NotNil(t, result.Signal) {
		assert.Equal(t, DialectGeneric, result.Signal.Source)
	}
}

func TestRegistryParseGenericTestPingIsNotActionable(t *testing.T) {
	r := NewRegistry()
	raw := []byte(`{"ticker":"SPY","direction":"test"}`)

	result := r.Parse(raw)

	assert.Nil(t, result.Signal)
	assert.True(t, result.IsTest)
}

func TestRoundToStrikeIncrement(t *testing.T) {
	cases := []struct {
		price    float64
		expected float64
	}{
		{23.4, 22.5},
		{150.0, 150.0},
		{153.0, 150.0},
		{455.0, 450.0},
	}
	for _, c := range cases {
		got := RoundToStrikeIncrement(decimal.NewFromFloat(c.price))
		assert.True(t, got.Equal(decimal.NewFromFloat(c.expected)), "price=%v got=%v want=%v", c.price, got, c.expected)
	}
}

func TestNextWeeklyFridayRollsOverOnFriday(t *testing.T) {
	friday := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Friday, friday.Weekday())

	next := NextWeeklyFriday(friday)
	assert.Equal(t, time.Friday, next.Weekday())
	assert.True(t, next.After(friday))
}

func TestNextMonthlyThirdFridayIsAFriday(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	third := NextMonthlyThirdFriday(from)

	assert.Equal(t, time.Friday, third.Weekday())
	assert.True(t, third.Day() >= 15 && third.Day() <= 21)
}

func TestDeriveQuantityClampsToRange(t *testing.T) {
	assert.Equal(t, 1, DeriveQuantity(0, 0, 0.01))
	assert.Equal(t, 10, DeriveQuantity(100, 5, 1))
}

func TestDirectionFromString(t *testing.T) {
	dir, ok := directionFromString("bullish")
	assert.True(t, ok)
	assert.Equal(t, types.DirectionCall, dir)

	_, ok = directionFromString("sideways")
	assert.False(t, ok)
}
