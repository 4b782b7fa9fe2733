package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/optionpulse/signalengine/internal/broker"
	"github.com/optionpulse/signalengine/internal/store"
	"github.com/optionpulse/signalengine/internal/types"
)

// OrderPoller polls the live broker for fill status on every LIVE order
// still in a non-terminal state. Only constructed when
// LIVE_TRADING_ENABLED is set; paper orders settle synchronously in
// PaperExecutor instead.
type OrderPoller struct {
	store  *store.Store
	broker broker.Adapter
	batch  int
}

func NewOrderPoller(st *store.Store, b broker.Adapter) *OrderPoller {
	return &OrderPoller{store: st, broker: b, batch: 100}
}

func (w *OrderPoller) Run(ctx context.Context) {
	runLoop(ctx, "order_poller", 30*time.Second, w.tick)
}

func (w *OrderPoller) tick(ctx context.Context) {
	orders, err := w.store.ListLiveOrdersPolling(ctx, w.batch)
	if err != nil {
		log.Error().Err(err).Msg("order_poller: list live orders failed")
		return
	}
	for _, o := range orders {
		w.poll(ctx, o)
	}
}

func (w *OrderPoller) poll(ctx context.Context, o types.Order) {
	if o.BrokerOrderID == "" {
		return
	}
	status, err := w.broker.Poll(ctx, o.BrokerOrderID)
	if err != nil {
		log.Warn().Err(err).Uint("order_id", o.ID).Msg("order_poller: poll failed")
		return
	}
	if status.Status == o.Status {
		return
	}

	updates := map[string]any{
		"status":          status.Status,
		"filled_quantity": status.FilledQuantity,
	}
	if status.AvgFillPrice != nil {
		updates["avg_fill_price"] = *status.AvgFillPrice
	}

	if _, err := w.store.UpdateOrderWhereStatus(ctx, o.ID, o.Status, updates); err != nil {
		log.Warn().Err(err).Uint("order_id", o.ID).Msg("order_poller: status already moved on, skipping")
	}
}
