package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/optionpulse/signalengine/internal/store"
	"github.com/optionpulse/signalengine/internal/types"
)

// AuditSink receives a copy of every audit entry as it's written, for
// out-of-band notification (e.g. the Telegram sink in internal/notify).
// A nil-safe no-op sink is used when nothing is configured.
type AuditSink interface {
	Notify(e types.AuditLogEntry)
}

type noopSink struct{}

func (noopSink) Notify(types.AuditLogEntry) {}

// AuditLogger writes the four audit event kinds to the store and fans
// them out to an optional AuditSink.
type AuditLogger struct {
	store *store.Store
	sink  AuditSink
}

// NewAuditLogger builds a logger; pass a nil sink to disable fan-out.
func NewAuditLogger(st *store.Store, sink AuditSink) *AuditLogger {
	if sink == nil {
		sink = noopSink{}
	}
	return &AuditLogger{store: st, sink: sink}
}

func (a *AuditLogger) write(ctx context.Context, e types.AuditLogEntry) {
	e.Timestamp = time.Now()
	if err := a.store.CreateAuditEntry(ctx, &e); err != nil {
		log.Error().Err(err).Str("event_type", string(e.EventType)).Msg("failed to write audit entry")
		return
	}
	a.sink.Notify(e)
}

func (a *AuditLogger) SignalReceived(ctx context.Context, signalID, symbol, correlationID string, details types.JSONMap) {
	a.write(ctx, types.AuditLogEntry{
		EventType:     types.AuditSignalReceived,
		SignalID:      signalID,
		Symbol:        symbol,
		CorrelationID: correlationID,
		Details:       details,
	})
}

func (a *AuditLogger) DecisionMade(ctx context.Context, signalID, symbol string, decisionType types.DecisionType, verdict types.DecisionVerdict, correlationID string, details types.JSONMap) {
	a.write(ctx, types.AuditLogEntry{
		EventType:     types.AuditDecisionMade,
		SignalID:      signalID,
		Symbol:        symbol,
		DecisionType:  decisionType,
		Decision:      verdict,
		CorrelationID: correlationID,
		Details:       details,
	})
}

func (a *AuditLogger) TradeOpened(ctx context.Context, positionID, symbol, correlationID string, details types.JSONMap) {
	a.write(ctx, types.AuditLogEntry{
		EventType:     types.AuditTradeOpened,
		PositionID:    positionID,
		Symbol:        symbol,
		CorrelationID: correlationID,
		Details:       details,
	})
}

func (a *AuditLogger) TradeClosed(ctx context.Context, positionID, symbol, correlationID string, details types.JSONMap) {
	a.write(ctx, types.AuditLogEntry{
		EventType:     types.AuditTradeClosed,
		PositionID:    positionID,
		Symbol:        symbol,
		CorrelationID: correlationID,
		Details:       details,
	})
}

// AuditQueryService serves the filtered/paginated audit read path behind
// GET /audit (date range, symbol, signal id, decision type/verdict).
type AuditQueryService struct {
	store *store.Store
}

func NewAuditQueryService(st *store.Store) *AuditQueryService {
	return &AuditQueryService{store: st}
}

// AuditQuery is the filter set accepted from query parameters: date range,
// symbol, signal id, decision type, decision verdict, plus offset/limit
// pagination.
type AuditQuery struct {
	EventType       types.AuditEventType
	Symbol          string
	SignalID        string
	DecisionType    types.DecisionType
	DecisionVerdict types.DecisionVerdict
	From            time.Time
	To              time.Time
	Limit           int
	Offset          int
}

// Query runs a filtered, descending-by-timestamp, limit-bounded read.
// Store already orders by timestamp desc; this wraps it so the HTTP
// layer depends on observability, not store, for the query shape.
func (q *AuditQueryService) Query(ctx context.Context, filter AuditQuery) ([]types.AuditLogEntry, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return q.store.QueryAuditEntries(ctx, store.AuditQueryFilter{
		EventType:       filter.EventType,
		Symbol:          filter.Symbol,
		SignalID:        filter.SignalID,
		DecisionType:    filter.DecisionType,
		DecisionVerdict: filter.DecisionVerdict,
		From:            filter.From,
		To:              filter.To,
		Limit:           limit,
		Offset:          filter.Offset,
	})
}
