package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/optionpulse/signalengine/internal/types"
)

// PaperAdapter never touches the network: Submit immediately "acknowledges"
// after a simulated ack delay, and Poll always reports FILLED, since the
// PaperExecutor worker is the one that actually prices and fills an order.
type PaperAdapter struct{}

// NewPaperAdapter builds the paper (simulated) broker adapter.
func NewPaperAdapter() *PaperAdapter { return &PaperAdapter{} }

func (a *PaperAdapter) Name() string { return "paper" }

func (a *PaperAdapter) Submit(ctx context.Context, order *types.Order) (string, error) {
	select {
	case <-time.After(ackDelay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return fmt.Sprintf("paper-%s", uuid.NewString()), nil
}

func (a *PaperAdapter) Poll(ctx context.Context, brokerOrderID string) (BrokerStatus, error) {
	return BrokerStatus{BrokerOrderID: brokerOrderID, Status: types.OrderFilled}, nil
}

func (a *PaperAdapter) Cancel(ctx context.Context, brokerOrderID string) error {
	return nil
}
