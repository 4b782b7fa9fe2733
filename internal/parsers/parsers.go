// Package parsers turns raw webhook payloads into normalized Signals. The
// Parser interface and fluent construction of the output mirror the
// teacher's strategy.Strategy plug-in shape (Name/OnTick/Enabled/Config)
// and feeds.signals.go's SignalBuilder, retargeted from "tick in, signal
// out" to "payload in, signal out".
package parsers

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/optionpulse/signalengine/internal/types"
)

// Dialect tags, most specific detection first.
const (
	DialectUltimateOption = "ultimate-option"
	DialectSatyPhase      = "saty-phase"
	DialectMTFTrendDots   = "mtf-trend-dots"
	DialectORBBHCH        = "orb-bhch"
	DialectStratEngine    = "strat-engine"
	DialectGeneric        = "generic"
)

// RejectionKind classifies why a parser declined to produce a signal.
type RejectionKind string

const (
	// RejectInvalidJSON means raw itself isn't a JSON object — the only
	// rejection kind that should ever produce a 400 at the webhook layer.
	RejectInvalidJSON   RejectionKind = "invalid_json"
	RejectMalformed     RejectionKind = "malformed"
	RejectNonActionable RejectionKind = "non_actionable"
	RejectValidation    RejectionKind = "validation_failure"
)

// Rejection carries the reason a payload did not become a Signal.
type Rejection struct {
	Kind   RejectionKind
	Reason string
}

func (r Rejection) Error() string { return fmt.Sprintf("%s: %s", r.Kind, r.Reason) }

// ParseResult is the parser's output: a signal, or errors, plus the
// raw payload and a test-ping flag.
type ParseResult struct {
	Signal     *types.Signal
	Errors     []Rejection
	RawPayload string
	IsTest     bool
}

// Parser recognizes and normalizes one dialect's webhook body.
type Parser interface {
	Dialect() string
	// Matches inspects shape markers and reports whether this parser owns
	// the payload.
	Matches(payload map[string]any) bool
	// Parse normalizes a payload this parser has already matched.
	Parse(raw []byte, payload map[string]any) ParseResult
}

// Registry holds every configured dialect parser plus the generic fallback,
// tried in declared (most-specific-first) order.
type Registry struct {
	parsers []Parser
	generic Parser
}

// NewRegistry builds the registry with the five named dialects plus generic,
// in detection-priority order.
func NewRegistry() *Registry {
	return &Registry{
		parsers: []Parser{
			&ultimateOptionParser{},
			&satyPhaseParser{},
			&mtfTrendDotsParser{},
			&orbBHCHParser{},
			&stratEngineParser{},
		},
		generic: &genericParser{},
	}
}

// DetectIndicatorSource inspects the payload's shape markers and returns the
// matching dialect tag, or "generic" if nothing more specific claims it.
func (r *Registry) DetectIndicatorSource(payload map[string]any) string {
	for _, p := range r.parsers {
		if p.Matches(payload) {
			return p.Dialect()
		}
	}
	return DialectGeneric
}

// Parse detects the dialect and parses the payload, producing a ParseResult
// or an invalid_json rejection if raw does not decode into a JSON object.
func (r *Registry) Parse(raw []byte) ParseResult {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ParseResult{
			Errors:     []Rejection{{Kind: RejectInvalidJSON, Reason: "payload is not a JSON object: " + err.Error()}},
			RawPayload: string(raw),
		}
	}

	for _, p := range r.parsers {
		if p.Matches(payload) {
			return p.Parse(raw, payload)
		}
	}
	return r.generic.Parse(raw, payload)
}

// --- shared derivation helpers, used by every dialect parser ---

// RoundToStrikeIncrement rounds price down to the next standard option
// strike increment: 2.5 below $25, 5 below $200, 10 above. Shared
// with internal/workers so the order creator derives the same strike from a
// Signal's metadata.
func RoundToStrikeIncrement(price decimal.Decimal) decimal.Decimal {
	var increment decimal.Decimal
	switch {
	case price.LessThan(decimal.NewFromInt(25)):
		increment = decimal.NewFromFloat(2.5)
	case price.LessThan(decimal.NewFromInt(200)):
		increment = decimal.NewFromInt(5)
	default:
		increment = decimal.NewFromInt(10)
	}
	units := price.Div(increment).Floor()
	return units.Mul(increment)
}

// NextMonthlyThirdFriday returns the third Friday of the month containing
// from, rolling to next month if that Friday has already passed.
func NextMonthlyThirdFriday(from time.Time) time.Time {
	candidate := thirdFridayOf(from.Year(), from.Month())
	if candidate.Before(from) {
		y, m := from.Year(), from.Month()+1
		if m > 12 {
			m = 1
			y++
		}
		candidate = thirdFridayOf(y, m)
	}
	return candidate
}

func thirdFridayOf(year int, month time.Month) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(time.Friday) - int(first.Weekday()) + 7) % 7
	firstFriday := first.AddDate(0, 0, offset)
	return firstFriday.AddDate(0, 0, 14)
}

// NextWeeklyFriday returns the upcoming Friday, rolling to next week if
// today already is Friday.
func NextWeeklyFriday(from time.Time) time.Time {
	daysAhead := (int(time.Friday) - int(from.Weekday()) + 7) % 7
	if daysAhead == 0 {
		daysAhead = 7
	}
	return time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location()).AddDate(0, 0, daysAhead)
}

// DeriveQuantity scales linearly from confidence (0-100) using a per-dialect
// base+scale formula, clamped to [1, 10].
func DeriveQuantity(confidence, base, scale float64) int {
	q := base + scale*confidence
	if q < 1 {
		q = 1
	}
	if q > 10 {
		q = 10
	}
	return int(q + 0.5)
}

func directionFromString(s string) (types.Direction, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CALL", "BULLISH", "UP", "LONG", "BUY":
		return types.DirectionCall, true
	case "PUT", "BEARISH", "DOWN", "SHORT", "SELL":
		return types.DirectionPut, true
	default:
		return "", false
	}
}

func stringField(payload map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := payload[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func floatField(payload map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := payload[k]; ok {
			switch n := v.(type) {
			case float64:
				return n, true
			case json.Number:
				f, err := n.Float64()
				if err == nil {
					return f, true
				}
			}
		}
	}
	return 0, false
}

func newSignal(dialect string, symbol string, dir types.Direction, timeframe string, metadata types.JSONMap) *types.Signal {
	return &types.Signal{
		Source:    dialect,
		Symbol:    strings.ToUpper(symbol),
		Direction: dir,
		Timeframe: timeframe,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}
