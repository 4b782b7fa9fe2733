package httpapi

import (
	"github.com/shopspring/decimal"

	"github.com/optionpulse/signalengine/internal/types"
)

func riskLimitsFromUpdate(in riskLimitsUpdate) types.RiskLimits {
	return types.RiskLimits{
		Mode:                     in.Mode,
		MaxOpenPositions:         in.MaxOpenPositions,
		MaxDailyLoss:             decimal.NewFromFloat(in.MaxDailyLoss),
		MaxVixForEntry:           decimal.NewFromFloat(in.MaxVixForEntry),
		VixHardReject:            in.VixHardReject,
		VixPositionSizeReduction: decimal.NewFromFloat(in.VixPositionSizeReduction),
		MTFGatingEnabled:         in.MTFGatingEnabled,
		AutoCloseEnabled:         in.AutoCloseEnabled,
		Active:                   true,
	}
}
