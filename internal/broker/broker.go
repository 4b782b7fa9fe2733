// Package broker abstracts order submission/polling/cancellation behind
// the Adapter interface. The paper variant is grounded on the
// teacher's execution.Executor.simulateFill (ack delay, slippage-adjusted
// fill price); tradier/alpaca reimplement the teacher's exec.Client
// HTTP-with-retries shape over resty.
package broker

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/optionpulse/signalengine/internal/types"
)

// BrokerStatus is the vendor-neutral status an Adapter.Poll returns.
type BrokerStatus struct {
	BrokerOrderID  string
	Status         types.OrderStatus
	FilledQuantity int
	AvgFillPrice   *decimal.Decimal
}

// Adapter is the capability set every broker variant implements.
type Adapter interface {
	Name() string
	Submit(ctx context.Context, order *types.Order) (brokerOrderID string, err error)
	Poll(ctx context.Context, brokerOrderID string) (BrokerStatus, error)
	Cancel(ctx context.Context, brokerOrderID string) error
}

// PriceOption computes the linear intrinsic+time stub used by
// PaperExecutor row: intrinsic + DTE*0.10, floored at 0.05.
func PriceOption(underlyingPrice, strike decimal.Decimal, optType types.OptionType, dte int) decimal.Decimal {
	var intrinsic decimal.Decimal
	switch optType {
	case types.OptionCall:
		intrinsic = decimal.Max(decimal.Zero, underlyingPrice.Sub(strike))
	case types.OptionPut:
		intrinsic = decimal.Max(decimal.Zero, strike.Sub(underlyingPrice))
	}
	timeValue := decimal.NewFromInt(int64(dte)).Mul(decimal.NewFromFloat(0.10))
	price := intrinsic.Add(timeValue)
	floor := decimal.NewFromFloat(0.05)
	if price.LessThan(floor) {
		return floor
	}
	return price
}

// ApplySlippage adjusts a price by up to the given bps, in the direction
// that disadvantages the side placing the order (buyer pays more, seller
// receives less), mirroring the teacher's executor.simulateFill slippage.
func ApplySlippage(price decimal.Decimal, side types.OrderSide, slippageBps int64) decimal.Decimal {
	factor := decimal.NewFromInt(slippageBps).Div(decimal.NewFromInt(10000))
	if side == types.OrderSideBuy {
		return price.Mul(decimal.NewFromInt(1).Add(factor))
	}
	return price.Mul(decimal.NewFromInt(1).Sub(factor))
}

// VendorStatusMap is a table mapping a broker's native status strings to the
// internal OrderStatus enum; status mapping is vendor-specific.
type VendorStatusMap map[string]types.OrderStatus

var tradierStatusMap = VendorStatusMap{
	"open":             types.OrderSubmitted,
	"pending":          types.OrderPending,
	"partially_filled": types.OrderPartial,
	"filled":           types.OrderFilled,
	"canceled":         types.OrderCancelled,
	"rejected":         types.OrderRejected,
	"expired":          types.OrderExpired,
}

var alpacaStatusMap = VendorStatusMap{
	"new":              types.OrderSubmitted,
	"accepted":         types.OrderSubmitted,
	"pending_new":      types.OrderPending,
	"partially_filled": types.OrderPartial,
	"filled":           types.OrderFilled,
	"canceled":         types.OrderCancelled,
	"rejected":         types.OrderRejected,
	"expired":          types.OrderExpired,
}

// Resolve looks up a vendor status string, defaulting to PENDING for
// unrecognized values rather than silently dropping the order.
func (m VendorStatusMap) Resolve(vendorStatus string) types.OrderStatus {
	if s, ok := m[vendorStatus]; ok {
		return s
	}
	return types.OrderPending
}

// ackDelay is the simulated broker acknowledgement latency the paper
// adapter sleeps for before considering an order submitted, matching the
// teacher's simulateFill's deliberate ack delay.
const ackDelay = 50 * time.Millisecond
