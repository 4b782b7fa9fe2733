// Package types holds the shared domain model: signals, decisions, orders,
// specification: the entities every other package reads and writes through
// internal/store. Nothing here owns another entity's fields directly —
// relationships are by identifier reference only.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the directional opinion carried by a Signal.
type Direction string

const (
	DirectionCall Direction = "CALL"
	DirectionPut  Direction = "PUT"
)

// DecisionType distinguishes an orchestrator verdict on a Signal (entry) from
// one on a Position (exit).
type DecisionType string

const (
	DecisionTypeEntry DecisionType = "ENTRY"
	DecisionTypeExit  DecisionType = "EXIT"
)

// DecisionVerdict is the orchestrator's outcome.
type DecisionVerdict string

const (
	DecisionEnter  DecisionVerdict = "ENTER"
	DecisionReject DecisionVerdict = "REJECT"
	DecisionExit   DecisionVerdict = "EXIT"
	DecisionHold   DecisionVerdict = "HOLD"
)

// OrderSide is BUY or SELL.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType is MARKET or LIMIT.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// TimeInForce is the order's duration instruction.
type TimeInForce string

const (
	TIFDay TimeInForce = "DAY"
	TIFGTC TimeInForce = "GTC"
	TIFIOC TimeInForce = "IOC"
	TIFFOK TimeInForce = "FOK"
)

// OrderMode distinguishes simulated from broker-routed orders.
type OrderMode string

const (
	ModePaper OrderMode = "PAPER"
	ModeLive  OrderMode = "LIVE"
)

// OrderStatus is the order state machine. Transitions are
// monotonic: once in a terminal state an order never reverts.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderSubmitted OrderStatus = "SUBMITTED"
	OrderPartial   OrderStatus = "PARTIAL"
	OrderFilled    OrderStatus = "FILLED"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderRejected  OrderStatus = "REJECTED"
	OrderExpired   OrderStatus = "EXPIRED"
)

// Terminal reports whether the status can never change again.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderFilled, OrderCancelled, OrderRejected, OrderExpired:
		return true
	default:
		return false
	}
}

// OptionType is CALL or PUT on the option contract itself.
type OptionType string

const (
	OptionCall OptionType = "CALL"
	OptionPut  OptionType = "PUT"
)

// PositionStatus is OPEN or CLOSED.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// ExitAction is the recommended exit action carried on an EXIT Decision.
type ExitAction string

const (
	ExitActionHold        ExitAction = "HOLD"
	ExitActionCloseFull   ExitAction = "CLOSE_FULL"
	ExitActionClosePartial ExitAction = "CLOSE_PARTIAL"
	ExitActionTightenStop ExitAction = "TIGHTEN_STOP"
	ExitActionPartial     ExitAction = "PARTIAL_EXIT"
)

// Urgency maps to order type on an exit.
type Urgency string

const (
	UrgencyImmediate Urgency = "IMMEDIATE"
	UrgencySoon      Urgency = "SOON"
	UrgencyOptional  Urgency = "OPTIONAL"
)

// ValidationResult is attached to a Signal exactly once by the signal
// processor and never mutated thereafter.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
	Stage  string `json:"stage,omitempty"`
}

// Signal is an external opinion, normalized by a dialect parser.
type Signal struct {
	ID               string             `gorm:"primaryKey"`
	Source           string             `gorm:"index"`
	Symbol           string             `gorm:"index"`
	Direction        Direction          `gorm:""`
	Timeframe        string             `gorm:""`
	Timestamp        time.Time          `gorm:"index"`
	Metadata         JSONMap            `gorm:"type:text"`
	ValidationResult *ValidationResultJSON `gorm:"type:text"`
	CorrelationID    string             `gorm:"index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ValidationResultJSON is the gorm-serializable wrapper for ValidationResult.
type ValidationResultJSON = JSONValue[ValidationResult]

// Decision is an orchestrator verdict for a Signal (entry) or a Position (exit).
type Decision struct {
	ID           uint         `gorm:"primaryKey;autoIncrement"`
	SignalID     string       `gorm:"index"`
	PositionID   string       `gorm:"index"`
	DecisionType DecisionType `gorm:"index"`
	Decision     DecisionVerdict
	Confidence   int
	PositionSize int
	Reasoning    JSONList
	Calculations JSONMap
	ContextSnap  JSONMap
	GEXSnap      JSONMap
	CreatedAt    time.Time
}

// Order is an intent to trade one option contract series.
type Order struct {
	ID                   uint `gorm:"primaryKey;autoIncrement"`
	SignalID             string `gorm:"index"`
	ClientOrderID        string `gorm:"uniqueIndex"`
	BrokerOrderID        string `gorm:"index"`
	Underlying           string `gorm:"index"`
	OptionSymbol         string
	Strike               decimal.Decimal `gorm:"type:decimal(18,4)"`
	Expiration           time.Time
	OptionType           OptionType
	Side                 OrderSide
	Quantity             int
	OrderType            OrderType
	LimitPrice           *decimal.Decimal `gorm:"type:decimal(18,6)"`
	TimeInForce          TimeInForce
	Mode                 OrderMode
	Status               OrderStatus `gorm:"index"`
	FilledQuantity       int
	AvgFillPrice         *decimal.Decimal `gorm:"type:decimal(18,6)"`
	ExitAction           string
	ExitQuantity         *int
	RefactoredPositionID string `gorm:"index"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Trade is a broker-confirmed (or simulated) fill event. Immutable after insert.
type Trade struct {
	ID             uint `gorm:"primaryKey;autoIncrement"`
	OrderID        uint `gorm:"index"`
	ExecutionPrice decimal.Decimal `gorm:"type:decimal(18,6)"`
	Quantity       int
	Commission     decimal.Decimal `gorm:"type:decimal(18,6)"`
	Fees           decimal.Decimal `gorm:"type:decimal(18,6)"`
	TotalCost      decimal.Decimal `gorm:"type:decimal(18,6)"`
	ExecutedAt     time.Time
	CreatedAt      time.Time
}

// Position is the net exposure resulting from an entry Trade.
type Position struct {
	ID              string `gorm:"primaryKey"`
	SignalID        string `gorm:"uniqueIndex:idx_signal_open,where:status = 'OPEN'"`
	Symbol          string `gorm:"index"`
	Direction       Direction
	Quantity        int
	EntryPrice      decimal.Decimal `gorm:"type:decimal(18,6)"`
	EntryTime       time.Time
	CurrentPrice    *decimal.Decimal `gorm:"type:decimal(18,6)"`
	UnrealizedPnL   *decimal.Decimal `gorm:"type:decimal(18,6)"`
	ExitPrice       *decimal.Decimal `gorm:"type:decimal(18,6)"`
	ExitTime        *time.Time
	RealizedPnL     *decimal.Decimal `gorm:"type:decimal(18,6)"`
	Status          PositionStatus `gorm:"index"`
	HighWaterMark   *decimal.Decimal `gorm:"type:decimal(18,6)"`
	EntryIV         *decimal.Decimal `gorm:"type:decimal(10,6)"`
	PartialExitDone bool
	Strike          decimal.Decimal `gorm:"type:decimal(18,4)"`
	Expiration      time.Time
	OptionType      OptionType
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ContextSnapshot is time-stamped market regime data.
type ContextSnapshot struct {
	ID         uint `gorm:"primaryKey;autoIncrement"`
	VIX        decimal.Decimal `gorm:"type:decimal(10,4)"`
	Trend      string
	Bias       string
	Regime     string
	Confidence int
	Timestamp  time.Time `gorm:"index"`
	CreatedAt  time.Time
}

// GEXSignal is a gamma-exposure summary for a (symbol, timeframe) pair.
type GEXSignal struct {
	ID               uint `gorm:"primaryKey;autoIncrement"`
	Symbol           string `gorm:"index"`
	Timeframe        string
	NetGEX           decimal.Decimal `gorm:"type:decimal(20,4)"`
	Strength         decimal.Decimal `gorm:"type:decimal(6,4)"`
	Direction        string
	DealerPosition   string
	ZeroGammaLevel   decimal.Decimal `gorm:"type:decimal(18,4)"`
	MaxPainStrike    decimal.Decimal `gorm:"type:decimal(18,4)"`
	PutCallRatio     decimal.Decimal `gorm:"type:decimal(10,4)"`
	WallSupport      decimal.Decimal `gorm:"type:decimal(18,4)"`
	WallResistance   decimal.Decimal `gorm:"type:decimal(18,4)"`
	Conviction       string
	Timestamp        time.Time `gorm:"index"`
	CreatedAt        time.Time
}

// Age returns the freshness of the GEX summary relative to now.
func (g GEXSignal) Age(now time.Time) time.Duration {
	return now.Sub(g.Timestamp)
}

// RiskLimits is the current-mode risk configuration. The most recent row per
// mode is authoritative.
type RiskLimits struct {
	ID                    uint `gorm:"primaryKey;autoIncrement"`
	Mode                  OrderMode `gorm:"index"`
	MaxOpenPositions      int
	MaxDailyLoss          decimal.Decimal `gorm:"type:decimal(18,2)"`
	MaxVixForEntry        decimal.Decimal `gorm:"type:decimal(10,2)"`
	VixHardReject         bool
	VixPositionSizeReduction decimal.Decimal `gorm:"type:decimal(6,4)"`
	MaxDeltaExposure      decimal.Decimal `gorm:"type:decimal(18,4)"`
	MaxGammaExposure      decimal.Decimal `gorm:"type:decimal(18,4)"`
	MTFGatingEnabled      bool
	AutoCloseEnabled      bool
	Active                bool `gorm:"index"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// ExitRules is the active exit thresholds for a mode.
type ExitRules struct {
	ID                  uint `gorm:"primaryKey;autoIncrement"`
	Mode                OrderMode `gorm:"index"`
	ProfitTargetPct     decimal.Decimal `gorm:"type:decimal(8,4)"`
	StopLossPct         decimal.Decimal `gorm:"type:decimal(8,4)"`
	TrailingStopPct     decimal.Decimal `gorm:"type:decimal(8,4)"`
	MinDaysToExpiration int
	MaxDaysInTrade      int
	Active              bool `gorm:"index"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// AuditEventType names the four event kinds recorded to the audit log.
type AuditEventType string

const (
	AuditSignalReceived AuditEventType = "signal_received"
	AuditDecisionMade   AuditEventType = "decision_made"
	AuditTradeOpened    AuditEventType = "trade_opened"
	AuditTradeClosed    AuditEventType = "trade_closed"
)

// AuditLogEntry is an append-only record of a pipeline event.
type AuditLogEntry struct {
	ID            uint `gorm:"primaryKey;autoIncrement"`
	EventType     AuditEventType `gorm:"index"`
	SignalID      string `gorm:"index"`
	PositionID    string `gorm:"index"`
	Symbol        string `gorm:"index"`
	DecisionType  DecisionType
	Decision      DecisionVerdict
	CorrelationID string `gorm:"index"`
	Details       JSONMap
	Timestamp     time.Time `gorm:"index"`
}

// PipelineFailure is one row per pipeline rejection, tagged with the failing stage.
type PipelineFailure struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	Stage         string `gorm:"index"`
	Reason        string
	Source        string
	Symbol        string
	CorrelationID string `gorm:"index"`
	RawPayload    string `gorm:"type:text"`
	Timestamp     time.Time `gorm:"index"`
}
