package workers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optionpulse/signalengine/internal/broker"
	"github.com/optionpulse/signalengine/internal/marketdata"
	"github.com/optionpulse/signalengine/internal/observability"
	"github.com/optionpulse/signalengine/internal/store"
	"github.com/optionpulse/signalengine/internal/types"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newDemoMarketdata() *marketdata.Service {
	return marketdata.NewService(nil, nil, nil)
}

func TestOrderCreatorCreatesOrderFromApprovedSignal(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	sig := &types.Signal{
		ID:        uuid.NewString(),
		Source:    "generic",
		Symbol:    "SPY",
		Direction: types.DirectionCall,
		Timeframe: "weekly",
		Timestamp: time.Now(),
		Metadata:  types.JSONMap{"underlying_price": 450.0},
	}
	require.NoError(t, st.CreateSignal(ctx, sig))
	require.NoError(t, st.CreateDecision(ctx, &types.Decision{
		SignalID:     sig.ID,
		DecisionType: types.DecisionTypeEntry,
		Decision:     types.DecisionEnter,
		PositionSize: 2,
	}))

	w := NewOrderCreator(st, types.ModePaper)
	w.tick(ctx)

	orders, err := st.ListOrdersByStatus(ctx, types.OrderPending, 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "SPY", orders[0].Underlying)
	assert.Equal(t, 2, orders[0].Quantity)
	assert.Equal(t, types.OptionCall, orders[0].OptionType)
}

func TestOrderCreatorSkipsSignalMissingUnderlyingPrice(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	sig := &types.Signal{
		ID:        uuid.NewString(),
		Source:    "generic",
		Symbol:    "SPY",
		Direction: types.DirectionCall,
		Timestamp: time.Now(),
		Metadata:  types.JSONMap{},
	}
	require.NoError(t, st.CreateSignal(ctx, sig))
	require.NoError(t, st.CreateDecision(ctx, &types.Decision{
		SignalID:     sig.ID,
		DecisionType: types.DecisionTypeEntry,
		Decision:     types.DecisionEnter,
	}))

	w := NewOrderCreator(st, types.ModePaper)
	w.tick(ctx)

	orders, err := st.ListOrdersByStatus(ctx, types.OrderPending, 10)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPaperExecutorFillsPendingOrderAndOpensPosition(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	md := newDemoMarketdata()

	order := &types.Order{
		SignalID:      uuid.NewString(),
		ClientOrderID: uuid.NewString(),
		Underlying:    "SPY",
		Strike:        decimal.NewFromInt(100),
		Expiration:    time.Now().Add(10 * 24 * time.Hour),
		OptionType:    types.OptionCall,
		Side:          types.OrderSideBuy,
		Quantity:      1,
		Mode:          types.ModePaper,
		Status:        types.OrderPending,
	}
	require.NoError(t, st.CreateOrder(ctx, order))

	w := NewPaperExecutor(st, md, broker.NewPaperAdapter(), nil, nil)
	w.tick(ctx)

	got, err := st.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderFilled, got.Status)
	assert.Equal(t, 1, got.FilledQuantity)

	positions, err := st.ListOpenPositions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "SPY", positions[0].Symbol)
	assert.Equal(t, types.DirectionCall, positions[0].Direction)
}

func TestPaperExecutorSkipsNonPaperModeOrders(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	md := newDemoMarketdata()

	order := &types.Order{
		SignalID:      uuid.NewString(),
		ClientOrderID: uuid.NewString(),
		Underlying:    "SPY",
		Strike:        decimal.NewFromInt(100),
		Expiration:    time.Now().Add(10 * 24 * time.Hour),
		OptionType:    types.OptionCall,
		Side:          types.OrderSideBuy,
		Quantity:      1,
		Mode:          types.ModeLive,
		Status:        types.OrderPending,
	}
	require.NoError(t, st.CreateOrder(ctx, order))

	w := NewPaperExecutor(st, md, broker.NewPaperAdapter(), nil, nil)
	w.tick(ctx)

	got, err := st.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderPending, got.Status)
}

func TestPositionRefresherUpdatesMarksAndHighWaterMark(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	md := newDemoMarketdata()

	entry := decimal.NewFromInt(1)
	pos := &types.Position{
		ID:         uuid.NewString(),
		SignalID:   uuid.NewString(),
		Symbol:     "SPY",
		Direction:  types.DirectionCall,
		Quantity:   1,
		EntryPrice: entry,
		EntryTime:  time.Now(),
		Status:     types.PositionOpen,
	}
	require.NoError(t, st.CreatePosition(ctx, pos))

	w := NewPositionRefresher(st, md, nil)
	w.tick(ctx)

	got, err := st.GetPosition(ctx, pos.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentPrice)
	require.NotNil(t, got.HighWaterMark)
}

type fakeBroker struct {
	status types.OrderStatus
}

func (f *fakeBroker) Name() string { return "fake" }
func (f *fakeBroker) Submit(ctx context.Context, order *types.Order) (string, error) {
	return "broker-1", nil
}
func (f *fakeBroker) Poll(ctx context.Context, brokerOrderID string) (broker.BrokerStatus, error) {
	return broker.BrokerStatus{BrokerOrderID: brokerOrderID, Status: f.status, FilledQuantity: 1}, nil
}
func (f *fakeBroker) Cancel(ctx context.Context, brokerOrderID string) error { return nil }

func TestOrderPollerAdvancesStatusOnChange(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	order := &types.Order{
		SignalID:      uuid.NewString(),
		ClientOrderID: uuid.NewString(),
		Underlying:    "SPY",
		BrokerOrderID: "broker-1",
		Mode:          types.ModeLive,
		Status:        types.OrderSubmitted,
	}
	require.NoError(t, st.CreateOrder(ctx, order))

	w := NewOrderPoller(st, &fakeBroker{status: types.OrderFilled})
	w.tick(ctx)

	got, err := st.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderFilled, got.Status)
}

func TestOrderPollerSkipsOrderWithoutBrokerID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	order := &types.Order{
		SignalID:      uuid.NewString(),
		ClientOrderID: uuid.NewString(),
		Underlying:    "SPY",
		Mode:          types.ModeLive,
		Status:        types.OrderSubmitted,
	}
	require.NoError(t, st.CreateOrder(ctx, order))

	w := NewOrderPoller(st, &fakeBroker{status: types.OrderFilled})
	w.poll(ctx, *order)

	got, err := st.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderSubmitted, got.Status)
}

type fakeGEXProvider struct {
	summary GEXSummary
}

func (f *fakeGEXProvider) FetchGEX(ctx context.Context, symbol string) (GEXSummary, error) {
	return f.summary, nil
}

func TestGEXRefresherPersistsFetchedSummary(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	md := newDemoMarketdata()

	w := NewGEXRefresher(st, md, &fakeGEXProvider{summary: GEXSummary{
		Direction:      "CALL",
		DealerPosition: "LONG_GAMMA",
		Conviction:     "HIGH",
		NetGEX:         2_000_000,
	}}, []string{"SPY"}, observability.NewDegradedModeTracker(3, time.Minute))

	w.refresh(ctx, "SPY")

	gex, err := st.LatestGEXSignal(ctx, "SPY")
	require.NoError(t, err)
	assert.Equal(t, "CALL", gex.Direction)
}

func TestExitMonitorClosesPositionOnStopLoss(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveExitRules(ctx, &types.ExitRules{
		Mode:                types.ModePaper,
		StopLossPct:         decimal.NewFromFloat(0.5),
		ProfitTargetPct:     decimal.NewFromFloat(1.0),
		MinDaysToExpiration: 0,
		MaxDaysInTrade:      365,
		Active:              true,
	}))

	current := decimal.NewFromFloat(0.4)
	hwm := decimal.NewFromFloat(1.0)
	pos := &types.Position{
		ID:            uuid.NewString(),
		SignalID:      uuid.NewString(),
		Symbol:        "SPY",
		Direction:     types.DirectionCall,
		Quantity:      1,
		EntryPrice:    decimal.NewFromFloat(1.0),
		EntryTime:     time.Now(),
		CurrentPrice:  &current,
		HighWaterMark: &hwm,
		Status:        types.PositionOpen,
		Expiration:    time.Now().Add(10 * 24 * time.Hour),
	}
	require.NoError(t, st.CreatePosition(ctx, pos))

	w := NewExitMonitor(st, types.ModePaper, nil, nil)
	w.tick(ctx)

	got, err := st.GetPosition(ctx, pos.ID)
	require.NoError(t, err)
	assert.Equal(t, types.PositionOpen, got.Status, "position stays open until the linked exit order fills")

	orders, err := st.ListOrdersByStatus(ctx, types.OrderPending, 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, types.OrderSideSell, orders[0].Side)
	assert.Equal(t, pos.ID, orders[0].RefactoredPositionID)
}

func TestExitMonitorHoldsPositionWithinRange(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveExitRules(ctx, &types.ExitRules{
		Mode:                types.ModePaper,
		StopLossPct:         decimal.NewFromFloat(0.5),
		ProfitTargetPct:     decimal.NewFromFloat(2.0),
		MinDaysToExpiration: 0,
		MaxDaysInTrade:      365,
		Active:              true,
	}))

	current := decimal.NewFromFloat(1.05)
	pos := &types.Position{
		ID:           uuid.NewString(),
		SignalID:     uuid.NewString(),
		Symbol:       "SPY",
		Direction:    types.DirectionCall,
		Quantity:     1,
		EntryPrice:   decimal.NewFromFloat(1.0),
		EntryTime:    time.Now(),
		CurrentPrice: &current,
		Status:       types.PositionOpen,
		Expiration:   time.Now().Add(10 * 24 * time.Hour),
	}
	require.NoError(t, st.CreatePosition(ctx, pos))

	w := NewExitMonitor(st, types.ModePaper, nil, nil)
	w.tick(ctx)

	got, err := st.GetPosition(ctx, pos.ID)
	require.NoError(t, err)
	assert.Equal(t, types.PositionOpen, got.Status)
}

func TestSignalProcessorEntersDecisionForWellAlignedSignal(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveRiskLimits(ctx, &types.RiskLimits{
		Mode:             types.ModePaper,
		MaxOpenPositions: 5,
		MaxVixForEntry:   decimal.NewFromInt(30),
		Active:           true,
	}))
	require.NoError(t, st.SaveExitRules(ctx, &types.ExitRules{
		Mode:   types.ModePaper,
		Active: true,
	}))

	sig := &types.Signal{
		ID:        uuid.NewString(),
		Source:    "generic",
		Symbol:    "SPY",
		Direction: types.DirectionCall,
		Timeframe: "weekly",
		Timestamp: time.Now(),
		Metadata:  types.JSONMap{"confidence": 80.0},
	}
	require.NoError(t, st.CreateSignal(ctx, sig))

	w := NewSignalProcessor(st, types.ModePaper, nil, nil, nil)
	w.process(ctx, *sig)

	decisions, err := st.ListDecisionsBySignal(ctx, sig.ID)
	require.NoError(t, err)
	require.Len(t, decisions, 1)

	got, err := st.GetSignal(ctx, sig.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ValidationResult)
	assert.Equal(t, decisions[0].Decision == types.DecisionEnter, got.ValidationResult.Val.Valid)
}
