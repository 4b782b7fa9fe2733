package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optionpulse/signalengine/internal/types"
)

func TestNewTelegramSinkWithoutTokenIsNoop(t *testing.T) {
	sink, err := NewTelegramSink("", 0)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		sink.Notify(types.AuditLogEntry{EventType: types.AuditSignalReceived, Symbol: "SPY"})
	})
}

func TestNewTelegramSinkWithoutChatIDIsNoop(t *testing.T) {
	sink, err := NewTelegramSink("some-token", 0)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		sink.Notify(types.AuditLogEntry{EventType: types.AuditTradeOpened, Symbol: "SPY"})
	})
}

func TestFormatSignalReceived(t *testing.T) {
	msg := format(types.AuditLogEntry{EventType: types.AuditSignalReceived, Symbol: "SPY", SignalID: "sig-1"})
	assert.Contains(t, msg, "SPY")
	assert.Contains(t, msg, "sig-1")
}

func TestFormatDecisionMade(t *testing.T) {
	msg := format(types.AuditLogEntry{
		EventType:    types.AuditDecisionMade,
		Symbol:       "QQQ",
		SignalID:     "sig-2",
		DecisionType: types.DecisionTypeEntry,
		Decision:     types.DecisionEnter,
	})
	assert.Contains(t, msg, "ENTER")
	assert.Contains(t, msg, "QQQ")
}

func TestFormatTradeOpenedAndClosed(t *testing.T) {
	opened := format(types.AuditLogEntry{EventType: types.AuditTradeOpened, Symbol: "SPY", PositionID: "pos-1"})
	assert.Contains(t, opened, "opened")
	assert.Contains(t, opened, "pos-1")

	closed := format(types.AuditLogEntry{EventType: types.AuditTradeClosed, Symbol: "SPY", PositionID: "pos-1"})
	assert.Contains(t, closed, "closed")
}

func TestFormatUnknownEventTypeFallsBackToGeneric(t *testing.T) {
	msg := format(types.AuditLogEntry{EventType: types.AuditEventType("CUSTOM"), Symbol: "SPY"})
	assert.Contains(t, msg, "CUSTOM")
	assert.Contains(t, msg, "SPY")
}
