package workers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/optionpulse/signalengine/internal/broker"
	"github.com/optionpulse/signalengine/internal/marketdata"
	"github.com/optionpulse/signalengine/internal/observability"
	"github.com/optionpulse/signalengine/internal/store"
	"github.com/optionpulse/signalengine/internal/types"
)

const slippageBps = 10

// PaperExecutor submits and immediately fills PENDING paper-mode orders
// using the linear option pricing stub.
type PaperExecutor struct {
	store      *store.Store
	marketdata *marketdata.Service
	paperBroker broker.Adapter
	audit      *observability.AuditLogger
	metrics    *observability.MetricsService
	batch      int
}

func NewPaperExecutor(st *store.Store, md *marketdata.Service, paperBroker broker.Adapter, audit *observability.AuditLogger, metrics *observability.MetricsService) *PaperExecutor {
	return &PaperExecutor{store: st, marketdata: md, paperBroker: paperBroker, audit: audit, metrics: metrics, batch: 50}
}

func (w *PaperExecutor) Run(ctx context.Context) {
	runLoop(ctx, "paper_executor", 10*time.Second, w.tick)
}

func (w *PaperExecutor) tick(ctx context.Context) {
	orders, err := w.store.ListOrdersByStatus(ctx, types.OrderPending, w.batch)
	if err != nil {
		log.Error().Err(err).Msg("paper_executor: list pending failed")
		return
	}
	for _, o := range orders {
		if o.Mode != types.ModePaper {
			continue
		}
		w.execute(ctx, o)
	}
}

func (w *PaperExecutor) execute(ctx context.Context, order types.Order) {
	start := time.Now()
	defer func() {
		if w.metrics != nil {
			w.metrics.RecordLatency("execution", time.Since(start))
		}
	}()

	brokerOrderID, err := w.paperBroker.Submit(ctx, &order)
	if err != nil {
		log.Error().Err(err).Uint("order_id", order.ID).Msg("paper_executor: submit failed")
		return
	}

	quote, err := w.marketdata.GetStockPrice(ctx, order.Underlying)
	if err != nil {
		log.Error().Err(err).Uint("order_id", order.ID).Msg("paper_executor: quote fetch failed")
		return
	}

	dte := int(time.Until(order.Expiration).Hours() / 24)
	fillPrice := broker.PriceOption(quote.Price, order.Strike, order.OptionType, dte)
	fillPrice = broker.ApplySlippage(fillPrice, order.Side, slippageBps)

	if order.Side == types.OrderSideSell {
		w.fillSell(ctx, order, brokerOrderID, fillPrice)
		return
	}
	w.fillBuy(ctx, order, brokerOrderID, fillPrice)
}

// fillBuy writes Order.FILLED, the Trade, and the new OPEN Position in one
// transaction, opening the exposure a BUY order represents.
func (w *PaperExecutor) fillBuy(ctx context.Context, order types.Order, brokerOrderID string, fillPrice decimal.Decimal) {
	now := time.Now()
	position := &types.Position{
		ID:            uuid.NewString(),
		SignalID:      order.SignalID,
		Symbol:        order.Underlying,
		Direction:     directionFromOptionType(order.OptionType),
		Quantity:      order.Quantity,
		EntryPrice:    fillPrice,
		EntryTime:     now,
		CurrentPrice:  &fillPrice,
		Status:        types.PositionOpen,
		HighWaterMark: &fillPrice,
		Strike:        order.Strike,
		Expiration:    order.Expiration,
		OptionType:    order.OptionType,
	}
	trade := &types.Trade{
		OrderID:        order.ID,
		ExecutionPrice: fillPrice,
		Quantity:       order.Quantity,
		ExecutedAt:     now,
	}

	err := w.store.WithTransaction(ctx, func(tx *store.Store) error {
		if _, err := tx.UpdateOrderWhereStatus(ctx, order.ID, types.OrderPending, map[string]any{
			"broker_order_id": brokerOrderID,
			"status":          types.OrderFilled,
			"filled_quantity": order.Quantity,
			"avg_fill_price":  fillPrice,
		}); err != nil {
			return err
		}
		if err := tx.CreateTrade(ctx, trade); err != nil {
			return err
		}
		return tx.CreatePosition(ctx, position)
	})
	if err != nil {
		log.Warn().Err(err).Uint("order_id", order.ID).Msg("paper_executor: buy fill failed or order already transitioned")
		return
	}

	if w.audit != nil {
		w.audit.TradeOpened(ctx, position.ID, position.Symbol, "", types.JSONMap{"order_id": order.ID, "fill_price": fillPrice.String()})
	}
	if w.metrics != nil {
		w.metrics.RecordOrder(string(order.Side), string(order.Mode))
	}
}

// fillSell closes the OPEN Position linked by order.RefactoredPositionID,
// writing Order.FILLED, the Trade, and the Position close in one
// transaction and accumulating the realized P&L the close produced.
func (w *PaperExecutor) fillSell(ctx context.Context, order types.Order, brokerOrderID string, fillPrice decimal.Decimal) {
	position, err := w.store.GetPosition(ctx, order.RefactoredPositionID)
	if err != nil {
		log.Error().Err(err).Uint("order_id", order.ID).Str("refactored_position_id", order.RefactoredPositionID).Msg("paper_executor: exit order has no linked open position")
		return
	}

	now := time.Now()
	realized := fillPrice.Sub(position.EntryPrice).Mul(decimal.NewFromInt(int64(position.Quantity))).Mul(decimal.NewFromInt(optionMultiplier))
	closeUpdates := map[string]any{
		"exit_price":   fillPrice,
		"exit_time":    now,
		"realized_pnl": realized,
	}
	if order.ExitAction == string(types.ExitActionClosePartial) || order.ExitAction == string(types.ExitActionPartial) {
		closeUpdates["partial_exit_done"] = true
	}
	trade := &types.Trade{
		OrderID:        order.ID,
		ExecutionPrice: fillPrice,
		Quantity:       order.Quantity,
		ExecutedAt:     now,
	}

	err = w.store.WithTransaction(ctx, func(tx *store.Store) error {
		if _, err := tx.UpdateOrderWhereStatus(ctx, order.ID, types.OrderPending, map[string]any{
			"broker_order_id": brokerOrderID,
			"status":          types.OrderFilled,
			"filled_quantity": order.Quantity,
			"avg_fill_price":  fillPrice,
		}); err != nil {
			return err
		}
		if err := tx.CreateTrade(ctx, trade); err != nil {
			return err
		}
		_, err := tx.CloseOpenPosition(ctx, position.ID, closeUpdates)
		return err
	})
	if err != nil {
		log.Warn().Err(err).Uint("order_id", order.ID).Msg("paper_executor: sell fill failed, order already transitioned, or position already closed")
		return
	}

	if w.audit != nil {
		w.audit.TradeClosed(ctx, position.ID, position.Symbol, "", types.JSONMap{"order_id": order.ID, "realized_pnl": realized.String()})
	}
	if w.metrics != nil {
		w.metrics.RecordOrder(string(order.Side), string(order.Mode))
		w.metrics.AddRealizedPnL(realized.InexactFloat64())
	}
}

func directionFromOptionType(t types.OptionType) types.Direction {
	if t == types.OptionPut {
		return types.DirectionPut
	}
	return types.DirectionCall
}
