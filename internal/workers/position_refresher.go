package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/optionpulse/signalengine/internal/marketdata"
	"github.com/optionpulse/signalengine/internal/observability"
	"github.com/optionpulse/signalengine/internal/store"
)

const optionMultiplier = 100

// PositionRefresher marks every open position to the latest underlying
// quote and updates unrealized P&L and the high-water mark.
type PositionRefresher struct {
	store      *store.Store
	marketdata *marketdata.Service
	metrics    *observability.MetricsService
}

func NewPositionRefresher(st *store.Store, md *marketdata.Service, metrics *observability.MetricsService) *PositionRefresher {
	return &PositionRefresher{store: st, marketdata: md, metrics: metrics}
}

func (w *PositionRefresher) Run(ctx context.Context) {
	runLoop(ctx, "position_refresher", 60*time.Second, w.tick)
}

func (w *PositionRefresher) tick(ctx context.Context) {
	positions, err := w.store.ListOpenPositions(ctx, 0)
	if err != nil {
		log.Error().Err(err).Msg("position_refresher: list open positions failed")
		return
	}

	var totalExposure, totalUnrealized decimal.Decimal
	for _, p := range positions {
		quote, err := w.marketdata.GetStockPrice(ctx, p.Symbol)
		if err != nil {
			log.Warn().Err(err).Str("position_id", p.ID).Msg("position_refresher: quote fetch failed, skipping")
			continue
		}

		unrealized := quote.Price.Sub(p.EntryPrice).Mul(decimal.NewFromInt(int64(p.Quantity))).Mul(decimal.NewFromInt(optionMultiplier))
		hwm := quote.Price
		if p.HighWaterMark != nil && p.HighWaterMark.GreaterThan(hwm) {
			hwm = *p.HighWaterMark
		}

		if err := w.store.UpdatePositionMarks(ctx, p.ID, quote.Price, unrealized, hwm); err != nil {
			log.Error().Err(err).Str("position_id", p.ID).Msg("position_refresher: failed to write marks")
			continue
		}

		totalExposure = totalExposure.Add(p.EntryPrice.Mul(decimal.NewFromInt(int64(p.Quantity))).Mul(decimal.NewFromInt(optionMultiplier)))
		totalUnrealized = totalUnrealized.Add(unrealized)
	}

	if w.metrics != nil {
		w.metrics.SetOpenPositionAggregates(len(positions), totalExposure.InexactFloat64(), totalUnrealized.InexactFloat64())
	}
}
