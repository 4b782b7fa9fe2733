package workers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/optionpulse/signalengine/internal/parsers"
	"github.com/optionpulse/signalengine/internal/store"
	"github.com/optionpulse/signalengine/internal/types"
)

// OrderCreator turns ENTER-decision signals lacking an Order into a
// PENDING Order, deriving strike/expiration the same way the dialect
// parsers do and taking the quantity from the entry decision's position size.
type OrderCreator struct {
	store *store.Store
	mode  types.OrderMode
	batch int
}

func NewOrderCreator(st *store.Store, mode types.OrderMode) *OrderCreator {
	return &OrderCreator{store: st, mode: mode, batch: 100}
}

func (w *OrderCreator) Run(ctx context.Context) {
	runLoop(ctx, "order_creator", 30*time.Second, w.tick)
}

func (w *OrderCreator) tick(ctx context.Context) {
	signals, err := w.store.ListApprovedSignalsWithoutOrder(ctx, w.batch)
	if err != nil {
		log.Error().Err(err).Msg("order_creator: list approved failed")
		return
	}
	for _, sig := range signals {
		w.create(ctx, sig)
	}
}

func (w *OrderCreator) create(ctx context.Context, sig types.Signal) {
	decisions, err := w.store.ListDecisionsBySignal(ctx, sig.ID)
	if err != nil || len(decisions) == 0 {
		log.Error().Err(err).Str("signal_id", sig.ID).Msg("order_creator: no decision found for approved signal")
		return
	}
	decision := decisions[len(decisions)-1]

	underlyingPrice, ok := decimalMetadata(sig.Metadata, "underlying_price")
	if !ok {
		underlyingPrice, ok = decimalMetadata(sig.Metadata, "price")
	}
	if !ok {
		log.Warn().Str("signal_id", sig.ID).Msg("order_creator: signal metadata missing underlying_price/price")
		return
	}

	optType := types.OptionCall
	if sig.Direction == types.DirectionPut {
		optType = types.OptionPut
	}

	strike := parsers.RoundToStrikeIncrement(underlyingPrice)
	var expiration time.Time
	if sig.Timeframe == "weekly" || sig.Metadata["uses_monthly_expiration"] == false {
		expiration = parsers.NextWeeklyFriday(time.Now())
	} else {
		expiration = parsers.NextMonthlyThirdFriday(time.Now())
	}

	quantity := decision.PositionSize
	if quantity <= 0 {
		quantity = 1
	}

	order := &types.Order{
		SignalID:      sig.ID,
		ClientOrderID: uuid.NewString(),
		Underlying:    sig.Symbol,
		OptionSymbol:  optionSymbol(sig.Symbol, expiration, optType, strike),
		Strike:        strike,
		Expiration:    expiration,
		OptionType:    optType,
		Side:          types.OrderSideBuy,
		Quantity:      quantity,
		OrderType:     types.OrderTypeMarket,
		TimeInForce:   types.TIFDay,
		Mode:          w.mode,
		Status:        types.OrderPending,
	}
	if err := w.store.CreateOrder(ctx, order); err != nil {
		log.Error().Err(err).Str("signal_id", sig.ID).Msg("order_creator: failed to create order")
	}
}

func decimalMetadata(meta types.JSONMap, key string) (decimal.Decimal, bool) {
	v, ok := meta[key]
	if !ok {
		return decimal.Zero, false
	}
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), true
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

func optionSymbol(underlying string, expiration time.Time, optType types.OptionType, strike decimal.Decimal) string {
	typeCode := "C"
	if optType == types.OptionPut {
		typeCode = "P"
	}
	strikeMilli := strike.Mul(decimal.NewFromInt(1000)).IntPart()
	return underlying + expiration.Format("060102") + typeCode + padStrike(strikeMilli)
}

func padStrike(milli int64) string {
	s := decimal.NewFromInt(milli).String()
	for len(s) < 8 {
		s = "0" + s
	}
	return s
}
