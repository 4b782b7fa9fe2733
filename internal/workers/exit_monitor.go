package workers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/optionpulse/signalengine/internal/observability"
	"github.com/optionpulse/signalengine/internal/orchestrator"
	"github.com/optionpulse/signalengine/internal/store"
	"github.com/optionpulse/signalengine/internal/types"
)

// ExitMonitor runs the priority-ordered exit rules, then the hold
// adjustments, against every open position.
type ExitMonitor struct {
	store   *store.Store
	mode    types.OrderMode
	audit   *observability.AuditLogger
	metrics *observability.MetricsService
}

func NewExitMonitor(st *store.Store, mode types.OrderMode, audit *observability.AuditLogger, metrics *observability.MetricsService) *ExitMonitor {
	return &ExitMonitor{store: st, mode: mode, audit: audit, metrics: metrics}
}

func (w *ExitMonitor) Run(ctx context.Context) {
	runLoop(ctx, "exit_monitor", 60*time.Second, w.tick)
}

func (w *ExitMonitor) tick(ctx context.Context) {
	exitRules, err := w.store.ActiveExitRules(ctx, w.mode)
	if err != nil {
		log.Error().Err(err).Msg("exit_monitor: no active exit rules")
		return
	}
	exitCfg := toOrchestratorExit(exitRules)

	positions, err := w.store.ListOpenPositions(ctx, 0)
	if err != nil {
		log.Error().Err(err).Msg("exit_monitor: list open positions failed")
		return
	}

	for _, p := range positions {
		w.evaluate(ctx, p, exitCfg)
	}
}

func (w *ExitMonitor) evaluate(ctx context.Context, p types.Position, exitCfg orchestrator.ExitRuleConfig) {
	if p.CurrentPrice == nil {
		return
	}
	now := time.Now()
	dte := int(p.Expiration.Sub(now).Hours() / 24)
	hwm := decimal.Zero
	if p.HighWaterMark != nil {
		hwm = *p.HighWaterMark
	}
	profitPct := decimal.Zero
	if p.EntryPrice.IsPositive() {
		profitPct = p.CurrentPrice.Sub(p.EntryPrice).Div(p.EntryPrice)
	}

	pc := orchestrator.PositionContext{
		Position:      &p,
		CurrentPrice:  *p.CurrentPrice,
		HighWaterMark: hwm,
		ProfitPct:     profitPct,
		DTE:           dte,
		Now:           now,
	}

	decision := orchestrator.EvaluateExit(pc, exitCfg)
	if decision.Action == types.ExitActionHold {
		hold := orchestrator.EvaluateHold(pc, exitCfg)
		w.recordDecision(ctx, p, types.DecisionHold, hold.Reasoning, hold.Confidence)
		return
	}

	w.recordDecision(ctx, p, types.DecisionExit, []string{decision.Reason}, 0)
	w.createExitOrder(ctx, p, decision)
}

func (w *ExitMonitor) recordDecision(ctx context.Context, p types.Position, verdict types.DecisionVerdict, reasoning []string, confidence int) {
	d := &types.Decision{
		PositionID:   p.ID,
		SignalID:     p.SignalID,
		DecisionType: types.DecisionTypeExit,
		Decision:     verdict,
		Confidence:   confidence,
		Reasoning:    types.JSONList(reasoning),
	}
	if err := w.store.CreateDecision(ctx, d); err != nil {
		log.Error().Err(err).Str("position_id", p.ID).Msg("exit_monitor: failed to record decision")
	}
	if w.audit != nil {
		w.audit.DecisionMade(ctx, p.SignalID, p.Symbol, types.DecisionTypeExit, verdict, "", types.JSONMap{"position_id": p.ID})
	}
}

// createExitOrder inserts the PENDING SELL order that links back to p via
// RefactoredPositionID; the next paper-executor (or order-poller, in LIVE
// mode) cycle is what actually closes the position once the order fills.
// Urgency IMMEDIATE crosses the spread with a market order; anything else
// limits at the current mark.
func (w *ExitMonitor) createExitOrder(ctx context.Context, p types.Position, decision orchestrator.ExitDecision) {
	orderType := types.OrderTypeLimit
	var limitPrice *decimal.Decimal
	if decision.Urgency == types.UrgencyImmediate {
		orderType = types.OrderTypeMarket
	} else if p.CurrentPrice != nil {
		lp := *p.CurrentPrice
		limitPrice = &lp
	}

	order := &types.Order{
		SignalID:             p.SignalID,
		ClientOrderID:        uuid.NewString(),
		Underlying:           p.Symbol,
		OptionSymbol:         optionSymbol(p.Symbol, p.Expiration, p.OptionType, p.Strike),
		Strike:               p.Strike,
		Expiration:           p.Expiration,
		OptionType:           p.OptionType,
		Side:                 types.OrderSideSell,
		Quantity:             p.Quantity,
		OrderType:            orderType,
		LimitPrice:           limitPrice,
		TimeInForce:          types.TIFDay,
		Mode:                 w.mode,
		Status:               types.OrderPending,
		ExitAction:           string(decision.Action),
		RefactoredPositionID: p.ID,
	}
	if err := w.store.CreateOrder(ctx, order); err != nil {
		log.Error().Err(err).Str("position_id", p.ID).Msg("exit_monitor: failed to create exit order")
	}
}
