package workers

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/optionpulse/signalengine/internal/types"
)

func summaryToGEXSignal(symbol string, s GEXSummary) types.GEXSignal {
	return types.GEXSignal{
		Symbol:         symbol,
		Timeframe:      s.Timeframe,
		NetGEX:         decimal.NewFromFloat(s.NetGEX),
		Strength:       decimal.NewFromFloat(s.Strength),
		Direction:      s.Direction,
		DealerPosition: s.DealerPosition,
		ZeroGammaLevel: decimal.NewFromFloat(s.ZeroGammaLevel),
		MaxPainStrike:  decimal.NewFromFloat(s.MaxPainStrike),
		PutCallRatio:   decimal.NewFromFloat(s.PutCallRatio),
		WallSupport:    decimal.NewFromFloat(s.WallSupport),
		WallResistance: decimal.NewFromFloat(s.WallResistance),
		Conviction:     s.Conviction,
		Timestamp:      time.Now(),
	}
}
