package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/optionpulse/signalengine/internal/config"
	"github.com/optionpulse/signalengine/internal/observability"
	"github.com/optionpulse/signalengine/internal/orchestrator"
	"github.com/optionpulse/signalengine/internal/store"
	"github.com/optionpulse/signalengine/internal/types"
)

// SignalProcessor fetches pending-validation signals and runs entry
// orchestration against the latest market context.
type SignalProcessor struct {
	store    *store.Store
	mode     types.OrderMode
	audit    *observability.AuditLogger
	metrics  *observability.MetricsService
	degraded *observability.DegradedModeTracker
	batch    int
}

// NewSignalProcessor builds the worker. mode selects which RiskLimits/
// ExitRules rows are active (PAPER vs LIVE).
func NewSignalProcessor(st *store.Store, mode types.OrderMode, audit *observability.AuditLogger, metrics *observability.MetricsService, degraded *observability.DegradedModeTracker) *SignalProcessor {
	return &SignalProcessor{store: st, mode: mode, audit: audit, metrics: metrics, degraded: degraded, batch: 100}
}

// Run starts the 30s periodic loop, blocking until ctx is cancelled.
func (w *SignalProcessor) Run(ctx context.Context) {
	runLoop(ctx, "signal_processor", 30*time.Second, w.tick)
}

func (w *SignalProcessor) tick(ctx context.Context) {
	signals, err := w.store.ListPendingValidationSignals(ctx, w.batch)
	if err != nil {
		log.Error().Err(err).Msg("signal_processor: list pending failed")
		return
	}
	for _, sig := range signals {
		w.process(ctx, sig)
	}
}

func (w *SignalProcessor) process(ctx context.Context, sig types.Signal) {
	start := time.Now()
	defer func() {
		if w.metrics != nil {
			w.metrics.RecordLatency("decision", time.Since(start))
		}
	}()

	risk, err := w.store.ActiveRiskLimits(ctx, w.mode)
	if err != nil {
		log.Error().Err(err).Str("signal_id", sig.ID).Msg("signal_processor: no active risk limits")
		return
	}
	exitRules, err := w.store.ActiveExitRules(ctx, w.mode)
	if err != nil {
		log.Error().Err(err).Str("signal_id", sig.ID).Msg("signal_processor: no active exit rules")
		return
	}

	mctx := BuildMarketContext(ctx, w.store, sig.Symbol, sig.Timeframe, w.degraded)
	result := orchestrator.EvaluateEntry(sig.Direction, mctx, toOrchestratorRisk(risk), toOrchestratorExit(exitRules))

	decision := &types.Decision{
		SignalID:     sig.ID,
		DecisionType: types.DecisionTypeEntry,
		Decision:     result.Verdict,
		Confidence:   result.Confidence,
		PositionSize: result.PositionSize,
		Reasoning:    types.JSONList{},
		Calculations: result.Calculations,
	}
	for _, r := range result.Reasoning {
		decision.Reasoning = append(decision.Reasoning, r)
	}

	valid := types.ValidationResult{Valid: true}
	if result.Verdict == types.DecisionReject {
		valid = types.ValidationResult{Valid: false, Reason: "rejected by entry orchestration", Stage: "DECISION"}
	}

	err = w.store.WithTransaction(ctx, func(tx *store.Store) error {
		if err := tx.CreateDecision(ctx, decision); err != nil {
			return err
		}
		return tx.UpdateSignalValidation(ctx, sig.ID, types.ValidationResultJSON{Val: valid})
	})
	if err != nil {
		log.Error().Err(err).Str("signal_id", sig.ID).Msg("signal_processor: failed to persist decision")
		return
	}

	if w.audit != nil {
		w.audit.DecisionMade(ctx, sig.ID, sig.Symbol, types.DecisionTypeEntry, result.Verdict, sig.CorrelationID, types.JSONMap{"confidence": result.Confidence})
	}
	if w.metrics != nil {
		if result.Verdict == types.DecisionEnter {
			w.metrics.RecordSignalAccepted()
		} else {
			w.metrics.RecordSignalRejected("entry_orchestration")
		}
	}
}

func toOrchestratorRisk(r *types.RiskLimits) orchestrator.RiskConfig {
	return orchestrator.RiskConfig{
		MaxVixForEntry:           r.MaxVixForEntry,
		VixHardReject:            r.VixHardReject,
		VixPositionSizeReduction: r.VixPositionSizeReduction,
		MinSize:                  1,
		MaxSize:                  10,
		BaseQuantity:             1,
	}
}

func toOrchestratorExit(e *types.ExitRules) orchestrator.ExitRuleConfig {
	return orchestrator.ExitRuleConfig{
		ProfitTargetPct:     e.ProfitTargetPct,
		StopLossPct:         e.StopLossPct,
		TrailingStopPct:     e.TrailingStopPct,
		MinDaysToExpiration: e.MinDaysToExpiration,
		MaxDaysInTrade:      e.MaxDaysInTrade,
	}
}

// ConfigRiskToTypes converts the boot-time risk defaults into a RiskLimits
// row for seeding, shared by cmd/signalengine's startup seeding step.
func ConfigRiskToTypes(mode types.OrderMode, r config.RiskConfig) types.RiskLimits {
	return types.RiskLimits{
		Mode:                     mode,
		MaxOpenPositions:         r.MaxOpenPositions,
		MaxDailyLoss:             r.MaxDailyLoss,
		MaxVixForEntry:           r.MaxVixForEntry,
		VixHardReject:            r.VixHardReject,
		VixPositionSizeReduction: r.VixPositionSizeReduction,
		MTFGatingEnabled:         r.MTFGatingEnabled,
		AutoCloseEnabled:         r.AutoCloseEnabled,
		Active:                   true,
	}
}

// ConfigExitToTypes converts the boot-time exit defaults into an ExitRules
// row for seeding.
func ConfigExitToTypes(mode types.OrderMode, e config.ExitRuleConfig) types.ExitRules {
	return types.ExitRules{
		Mode:                mode,
		ProfitTargetPct:     e.ProfitTargetPct,
		StopLossPct:         e.StopLossPct,
		TrailingStopPct:     e.TrailingStopPct,
		MinDaysToExpiration: e.MinDaysToExpiration,
		MaxDaysInTrade:      e.MaxDaysInTrade,
		Active:              true,
	}
}
