package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optionpulse/signalengine/internal/store"
	"github.com/optionpulse/signalengine/internal/types"
)

type recordingSink struct {
	entries []types.AuditLogEntry
}

func (r *recordingSink) Notify(e types.AuditLogEntry) { r.entries = append(r.entries, e) }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestAuditLoggerSignalReceivedWritesAndNotifies(t *testing.T) {
	st := newTestStore(t)
	sink := &recordingSink{}
	logger := NewAuditLogger(st, sink)

	logger.SignalReceived(context.Background(), "sig-1", "SPY", "corr-1", types.JSONMap{"source": "generic"})

	require.Len(t, sink.entries, 1)
	assert.Equal(t, types.AuditSignalReceived, sink.entries[0].EventType)
	assert.Equal(t, "SPY", sink.entries[0].Symbol)
}

func TestAuditLoggerWithNilSinkDoesNotPanic(t *testing.T) {
	st := newTestStore(t)
	logger := NewAuditLogger(st, nil)

	assert.NotPanics(t, func() {
		logger.TradeOpened(context.Background(), "pos-1", "SPY", "corr-1", types.JSONMap{})
	})
}

func TestAuditQueryServiceClampsOversizedLimit(t *testing.T) {
	st := newTestStore(t)
	logger := NewAuditLogger(st, nil)
	logger.DecisionMade(context.Background(), "sig-1", "SPY", types.DecisionTypeEntry, types.DecisionEnter, "corr-1", types.JSONMap{})

	q := NewAuditQueryService(st)
	out, err := q.Query(context.Background(), AuditQuery{Limit: 10000})

	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestAuditQueryServiceFiltersByEventType(t *testing.T) {
	st := newTestStore(t)
	logger := NewAuditLogger(st, nil)
	logger.SignalReceived(context.Background(), "sig-1", "SPY", "corr-1", types.JSONMap{})
	logger.TradeClosed(context.Background(), "pos-1", "SPY", "corr-2", types.JSONMap{})

	q := NewAuditQueryService(st)
	out, err := q.Query(context.Background(), AuditQuery{EventType: types.AuditTradeClosed})

	require.NoError(t, err)
	if assert.Len(t, out, 1) {
		assert.Equal(t, types.AuditTradeClosed, out[0].EventType)
	}
}
