// Package pipeline runs a webhook payload through the five ordered stages in
// the pipeline stages: NORMALIZATION -> VALIDATION -> DEDUPLICATION -> DECISION ->
// PERSISTENCE. Stage sequencing is grounded on the teacher's
// core.Engine.processTick/executeSignal (route -> validate via risk -> size
// -> execute), generalized from a single risk check to five named stages,
// each able to reject with its own stage tag.
package pipeline

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/optionpulse/signalengine/internal/cache"
	"github.com/optionpulse/signalengine/internal/parsers"
	"github.com/optionpulse/signalengine/internal/store"
	"github.com/optionpulse/signalengine/internal/types"
)

// Stage names attached to PipelineFailure rows.
const (
	StageNormalization  = "NORMALIZATION"
	StageValidation     = "VALIDATION"
	StageDeduplication  = "DEDUPLICATION"
	StageDecision       = "DECISION"
	StagePersistence    = "PERSISTENCE"
)

// Config holds the pipeline's tunables, copied from internal/config.Config
// at construction.
type Config struct {
	MaxSignalAge             time.Duration
	DeduplicationTTL         time.Duration
	DeduplicationGranularity time.Duration
}

// Pipeline wires the registry, store, and dedup cache together.
type Pipeline struct {
	registry *parsers.Registry
	store    *store.Store
	dedup    *cache.TTLCache[bool]
	cfg      Config
}

// New builds a Pipeline with its own dedup cache sized by cfg.
func New(registry *parsers.Registry, st *store.Store, cfg Config) *Pipeline {
	return &Pipeline{
		registry: registry,
		store:    st,
		dedup:    cache.New[bool](time.Minute),
		cfg:      cfg,
	}
}

// AcceptResult is returned synchronously to the webhook handler: the
// response never blocks on anything past normalization.
type AcceptResult struct {
	CorrelationID string
	Accepted      bool
	Rejection     *parsers.Rejection
}

// Accept runs NORMALIZATION only and returns immediately; the remaining
// stages run in ProcessAsync on a background goroutine so the HTTP response
// never blocks on store or orchestrator I/O.
func (p *Pipeline) Accept(raw []byte) AcceptResult {
	correlationID := uuid.NewString()
	result := p.registry.Parse(raw)
	if result.Signal == nil {
		var rej *parsers.Rejection
		if len(result.Errors) > 0 {
			rej = &result.Errors[0]
		}
		return AcceptResult{CorrelationID: correlationID, Accepted: false, Rejection: rej}
	}
	result.Signal.CorrelationID = correlationID
	return AcceptResult{CorrelationID: correlationID, Accepted: true}
}

// ProcessAsync runs VALIDATION -> DEDUPLICATION -> PERSISTENCE for a
// normalized signal. DECISION (the orchestrator's entry call) happens later
// in the signal-processor worker cycle, once the signal is durable —
// keeping the webhook handler's background task cheap and synchronous-free
// of orchestrator I/O.
func (p *Pipeline) ProcessAsync(ctx context.Context, raw []byte) {
	result := p.registry.Parse(raw)
	correlationID := uuid.NewString()
	if result.Signal != nil {
		correlationID = result.Signal.CorrelationID
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
	}

	logger := log.With().Str("correlation_id", correlationID).Logger()

	if result.Signal == nil {
		if result.IsTest {
			logger.Debug().Msg("pipeline: test ping, no signal produced")
			return
		}
		reason := "unknown"
		stage := StageNormalization
		if len(result.Errors) > 0 {
			reason = result.Errors[0].Reason
		}
		p.recordFailure(ctx, stage, reason, result.RawPayload, correlationID)
		return
	}

	sig := result.Signal
	sig.CorrelationID = correlationID

	if rej := p.validate(sig); rej != nil {
		logger.Warn().Str("reason", rej.Reason).Msg("pipeline: signal rejected at validation")
		p.recordFailure(ctx, StageValidation, rej.Reason, result.RawPayload, correlationID)
		return
	}

	if p.isDuplicate(sig) {
		logger.Info().Msg("pipeline: duplicate signal dropped")
		p.recordFailure(ctx, StageDeduplication, "duplicate within dedup TTL window", result.RawPayload, correlationID)
		return
	}

	if err := p.persistSignal(ctx, sig); err != nil {
		logger.Error().Err(err).Msg("pipeline: failed to persist signal")
		p.recordFailure(ctx, StagePersistence, err.Error(), result.RawPayload, correlationID)
		return
	}

	logger.Info().Str("symbol", sig.Symbol).Str("source", sig.Source).Msg("pipeline: signal accepted and persisted")
}

// validate rejects if symbol is missing, the timestamp is too old, the
// direction is outside {CALL, PUT}, or required metadata is absent.
func (p *Pipeline) validate(sig *types.Signal) *parsers.Rejection {
	if sig.Symbol == "" {
		return &parsers.Rejection{Kind: parsers.RejectValidation, Reason: "symbol missing"}
	}
	if sig.Direction != types.DirectionCall && sig.Direction != types.DirectionPut {
		return &parsers.Rejection{Kind: parsers.RejectValidation, Reason: "direction outside {CALL, PUT}"}
	}
	if p.cfg.MaxSignalAge > 0 && time.Since(sig.Timestamp) > p.cfg.MaxSignalAge {
		return &parsers.Rejection{Kind: parsers.RejectValidation, Reason: fmt.Sprintf("timestamp older than max signal age %s", p.cfg.MaxSignalAge)}
	}
	if len(sig.Metadata) == 0 {
		return &parsers.Rejection{Kind: parsers.RejectValidation, Reason: "required metadata absent"}
	}
	return nil
}

// isDuplicate hashes (source, symbol, direction, timeframe,
// floor(timestamp/granularity)) and checks the TTL-bounded dedup cache.
func (p *Pipeline) isDuplicate(sig *types.Signal) bool {
	key := dedupKey(sig, p.cfg.DeduplicationGranularity)
	if _, ok := p.dedup.Get(key); ok {
		return true
	}
	ttl := p.cfg.DeduplicationTTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	p.dedup.Set(key, true, ttl)
	return false
}

func dedupKey(sig *types.Signal, granularity time.Duration) string {
	if granularity <= 0 {
		granularity = time.Minute
	}
	bucket := sig.Timestamp.Unix() / int64(granularity.Seconds())
	raw := fmt.Sprintf("%s|%s|%s|%s|%d", sig.Source, sig.Symbol, sig.Direction, sig.Timeframe, bucket)
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// persistSignal writes the Signal row on its own. The entry Decision and the
// Signal's validation_result are written later by
// internal/workers.SignalProcessor in one transaction of their own, and its
// audit entry is written after that transaction; the three writes do not
// share a transaction with this one.
func (p *Pipeline) persistSignal(ctx context.Context, sig *types.Signal) error {
	sig.ID = uuid.NewString()
	return p.store.CreateSignal(ctx, sig)
}

func (p *Pipeline) recordFailure(ctx context.Context, stage, reason, rawPayload, correlationID string) {
	f := &types.PipelineFailure{
		Stage:         stage,
		Reason:        reason,
		CorrelationID: correlationID,
		RawPayload:    rawPayload,
		Timestamp:     time.Now(),
	}
	if err := p.store.RecordPipelineFailure(ctx, f); err != nil {
		log.Error().Err(err).Str("correlation_id", correlationID).Msg("pipeline: failed to record pipeline failure")
	}
}
