package parsers

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/optionpulse/signalengine/internal/types"
)

// ultimateOptionParser recognizes the "Ultimate Option" oscillator dialect:
// a top-level "oscillator" block plus an explicit "signal" of CE/PE.
type ultimateOptionParser struct{}

func (p *ultimateOptionParser) Dialect() string { return DialectUltimateOption }

func (p *ultimateOptionParser) Matches(payload map[string]any) bool {
	_, hasOsc := payload["oscillator"]
	sig, hasSig := stringField(payload, "signal")
	if !hasOsc || !hasSig {
		return false
	}
	sig = strings.ToUpper(sig)
	return sig == "CE" || sig == "PE"
}

func (p *ultimateOptionParser) Parse(raw []byte, payload map[string]any) ParseResult {
	symbol, ok := stringField(payload, "ticker", "symbol")
	if !ok {
		return malformed(raw, "missing ticker/symbol")
	}
	sigStr, _ := stringField(payload, "signal")
	var dir types.Direction
	switch strings.ToUpper(sigStr) {
	case "CE":
		dir = types.DirectionCall
	case "PE":
		dir = types.DirectionPut
	default:
		return nonActionable(raw, "signal is neither CE nor PE")
	}
	price, hasPrice := floatField(payload, "price", "close")
	if !hasPrice {
		return malformed(raw, "missing price/close")
	}
	confidence, _ := floatField(payload, "oscillator", "confidence")
	if confidence == 0 {
		confidence = 60
	}

	sig := newSignal(DialectUltimateOption, symbol, dir, "15m", types.JSONMap{
		"confidence":      confidence,
		"price":           price,
		"derived_strike":  RoundToStrikeIncrement(decimal.NewFromFloat(price)).String(),
		"derived_quantity": DeriveQuantity(confidence, 1, 0.08),
		"uses_monthly_expiration": true,
	})
	return ParseResult{Signal: sig, RawPayload: string(raw)}
}

// satyPhaseParser recognizes Saty's "Phase Oscillator" payloads: a "phase"
// field naming a numbered market phase.
type satyPhaseParser struct{}

func (p *satyPhaseParser) Dialect() string { return DialectSatyPhase }

func (p *satyPhaseParser) Matches(payload map[string]any) bool {
	phase, ok := stringField(payload, "phase")
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(phase), "phase")
}

func (p *satyPhaseParser) Parse(raw []byte, payload map[string]any) ParseResult {
	symbol, ok := stringField(payload, "ticker", "symbol")
	if !ok {
		return malformed(raw, "missing ticker/symbol")
	}
	phase, _ := stringField(payload, "phase")
	lower := strings.ToLower(phase)
	var dir types.Direction
	switch {
	case strings.Contains(lower, "bullish") || strings.Contains(lower, "expansion up"):
		dir = types.DirectionCall
	case strings.Contains(lower, "bearish") || strings.Contains(lower, "expansion down"):
		dir = types.DirectionPut
	default:
		return nonActionable(raw, "phase does not imply a directional trade: "+phase)
	}
	price, hasPrice := floatField(payload, "price", "close")
	if !hasPrice {
		return malformed(raw, "missing price/close")
	}
	confidence, _ := floatField(payload, "confidence")
	if confidence == 0 {
		confidence = 55
	}

	sig := newSignal(DialectSatyPhase, symbol, dir, "1h", types.JSONMap{
		"phase":            phase,
		"confidence":       confidence,
		"price":            price,
		"derived_strike":   RoundToStrikeIncrement(decimal.NewFromFloat(price)).String(),
		"derived_quantity": DeriveQuantity(confidence, 1, 0.07),
		"uses_monthly_expiration": true,
	})
	return ParseResult{Signal: sig, RawPayload: string(raw)}
}

// mtfTrendDotsParser recognizes the multi-timeframe trend-dot indicator: a
// "dots" array of per-timeframe bias entries.
type mtfTrendDotsParser struct{}

func (p *mtfTrendDotsParser) Dialect() string { return DialectMTFTrendDots }

func (p *mtfTrendDotsParser) Matches(payload map[string]any) bool {
	_, ok := payload["dots"]
	return ok
}

func (p *mtfTrendDotsParser) Parse(raw []byte, payload map[string]any) ParseResult {
	symbol, ok := stringField(payload, "ticker", "symbol")
	if !ok {
		return malformed(raw, "missing ticker/symbol")
	}
	dotsRaw, ok := payload["dots"]
	if !ok {
		return malformed(raw, "missing dots")
	}
	dots, ok := dotsRaw.([]any)
	if !ok || len(dots) == 0 {
		return malformed(raw, "dots is not a non-empty array")
	}
	bullish, bearish := 0, 0
	for _, d := range dots {
		s, ok := d.(string)
		if !ok {
			continue
		}
		if dir, ok := directionFromString(s); ok {
			if dir == types.DirectionCall {
				bullish++
			} else {
				bearish++
			}
		}
	}
	if bullish == bearish {
		return nonActionable(raw, "mixed timeframe dots, no majority bias")
	}
	dir := types.DirectionPut
	agreeing := bearish
	if bullish > bearish {
		dir = types.DirectionCall
		agreeing = bullish
	}
	price, hasPrice := floatField(payload, "price", "close")
	if !hasPrice {
		return malformed(raw, "missing price/close")
	}
	confidence := 50.0 + float64(agreeing)*10.0

	sig := newSignal(DialectMTFTrendDots, symbol, dir, "4h", types.JSONMap{
		"agreeing_timeframes": agreeing,
		"confidence":          confidence,
		"price":               price,
		"derived_strike":      RoundToStrikeIncrement(decimal.NewFromFloat(price)).String(),
		"derived_quantity":    DeriveQuantity(confidence, 1, 0.06),
		"uses_monthly_expiration": true,
	})
	return ParseResult{Signal: sig, RawPayload: string(raw)}
}

// orbBHCHParser recognizes opening-range-breakout payloads carrying
// "orb_high"/"orb_low" (bhch = "break high / close high").
type orbBHCHParser struct{}

func (p *orbBHCHParser) Dialect() string { return DialectORBBHCH }

func (p *orbBHCHParser) Matches(payload map[string]any) bool {
	_, hasHigh := payload["orb_high"]
	_, hasLow := payload["orb_low"]
	return hasHigh && hasLow
}

func (p *orbBHCHParser) Parse(raw []byte, payload map[string]any) ParseResult {
	symbol, ok := stringField(payload, "ticker", "symbol")
	if !ok {
		return malformed(raw, "missing ticker/symbol")
	}
	price, hasPrice := floatField(payload, "price", "close")
	if !hasPrice {
		return malformed(raw, "missing price/close")
	}
	orbHigh, _ := floatField(payload, "orb_high")
	orbLow, _ := floatField(payload, "orb_low")

	var dir types.Direction
	switch {
	case price > orbHigh:
		dir = types.DirectionCall
	case price < orbLow:
		dir = types.DirectionPut
	default:
		return nonActionable(raw, "price is inside the opening range, no breakout")
	}
	confidence, _ := floatField(payload, "confidence")
	if confidence == 0 {
		confidence = 50
	}

	sig := newSignal(DialectORBBHCH, symbol, dir, "5m", types.JSONMap{
		"orb_high":         orbHigh,
		"orb_low":          orbLow,
		"confidence":       confidence,
		"price":            price,
		"derived_strike":   RoundToStrikeIncrement(decimal.NewFromFloat(price)).String(),
		"derived_quantity": DeriveQuantity(confidence, 1, 0.05),
		"uses_monthly_expiration": false,
	})
	return ParseResult{Signal: sig, RawPayload: string(raw)}
}

// stratEngineParser recognizes "The Strat" candle-pattern engine: a "strat"
// field naming a numeric candle code (1, 2u, 2d, 3).
type stratEngineParser struct{}

func (p *stratEngineParser) Dialect() string { return DialectStratEngine }

func (p *stratEngineParser) Matches(payload map[string]any) bool {
	_, ok := stringField(payload, "strat", "candle_code")
	return ok
}

func (p *stratEngineParser) Parse(raw []byte, payload map[string]any) ParseResult {
	symbol, ok := stringField(payload, "ticker", "symbol")
	if !ok {
		return malformed(raw, "missing ticker/symbol")
	}
	code, _ := stringField(payload, "strat", "candle_code")
	lower := strings.ToLower(code)
	var dir types.Direction
	switch {
	case strings.Contains(lower, "2u") || strings.Contains(lower, "3"):
		dir = types.DirectionCall
	case strings.Contains(lower, "2d"):
		dir = types.DirectionPut
	default:
		return nonActionable(raw, "candle code does not imply a directional trade: "+code)
	}
	price, hasPrice := floatField(payload, "price", "close")
	if !hasPrice {
		return malformed(raw, "missing price/close")
	}
	confidence, _ := floatField(payload, "confidence")
	if confidence == 0 {
		confidence = 50
	}

	sig := newSignal(DialectStratEngine, symbol, dir, "1d", types.JSONMap{
		"candle_code":      code,
		"confidence":       confidence,
		"price":            price,
		"derived_strike":   RoundToStrikeIncrement(decimal.NewFromFloat(price)).String(),
		"derived_quantity": DeriveQuantity(confidence, 1, 0.05),
		"uses_monthly_expiration": true,
	})
	return ParseResult{Signal: sig, RawPayload: string(raw)}
}

// genericParser is the fallback: it requires a symbol, a direction-like field
// and a price (current_price/price/close), accepting the widest range of
// unknown payload shapes.
type genericParser struct{}

func (p *genericParser) Dialect() string { return DialectGeneric }

func (p *genericParser) Matches(map[string]any) bool { return true }

func (p *genericParser) Parse(raw []byte, payload map[string]any) ParseResult {
	symbol, ok := stringField(payload, "ticker", "symbol")
	if !ok {
		return malformed(raw, "missing ticker/symbol")
	}
	dirStr, ok := stringField(payload, "trend", "direction", "action", "side")
	if !ok {
		return malformed(raw, "missing trend/direction/action/side")
	}
	if strings.EqualFold(dirStr, "test") || strings.EqualFold(dirStr, "ping") {
		return ParseResult{RawPayload: string(raw), IsTest: true}
	}
	dir, ok := directionFromString(dirStr)
	if !ok {
		return nonActionable(raw, "unrecognized direction value: "+dirStr)
	}
	price, hasPrice := floatField(payload, "current_price", "price", "close")
	if !hasPrice {
		return malformed(raw, "missing current_price/price/close")
	}
	confidence, _ := floatField(payload, "score", "confidence")
	if confidence == 0 {
		confidence = 50
	}

	sig := newSignal(DialectGeneric, symbol, dir, "generic", types.JSONMap{
		"confidence":       confidence,
		"price":            price,
		"derived_strike":   RoundToStrikeIncrement(decimal.NewFromFloat(price)).String(),
		"derived_quantity": DeriveQuantity(confidence, 1, 0.05),
		"uses_monthly_expiration": true,
	})
	return ParseResult{Signal: sig, RawPayload: string(raw)}
}

func malformed(raw []byte, reason string) ParseResult {
	return ParseResult{
		Errors:     []Rejection{{Kind: RejectMalformed, Reason: reason}},
		RawPayload: string(raw),
	}
}

func nonActionable(raw []byte, reason string) ParseResult {
	return ParseResult{
		Errors:     []Rejection{{Kind: RejectNonActionable, Reason: reason}},
		RawPayload: string(raw),
	}
}
