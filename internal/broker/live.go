package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/optionpulse/signalengine/internal/types"
)

// httpAdapter is the shared resty-with-retries shape for the tradier and
// alpaca variants, generalizing the teacher's exec.Client HTTP pattern
// (single client, fixed timeout, retry on submit).
type httpAdapter struct {
	name       string
	client     *resty.Client
	statusMap  VendorStatusMap
	maxRetries int
}

func newHTTPAdapter(name, baseURL, apiKey string, statusMap VendorStatusMap) *httpAdapter {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Authorization", "Bearer "+apiKey).
		SetRetryCount(3).
		SetRetryWaitTime(200 * time.Millisecond)
	return &httpAdapter{name: name, client: client, statusMap: statusMap, maxRetries: 3}
}

func (a *httpAdapter) Name() string { return a.name }

type submitResponse struct {
	OrderID string `json:"order_id"`
}

func (a *httpAdapter) Submit(ctx context.Context, order *types.Order) (string, error) {
	var out submitResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"client_order_id": order.ClientOrderID,
			"symbol":          order.OptionSymbol,
			"side":            string(order.Side),
			"quantity":        order.Quantity,
			"type":            string(order.OrderType),
			"time_in_force":   string(order.TimeInForce),
		}).
		SetResult(&out).
		Post("/orders")
	if err != nil {
		return "", fmt.Errorf("broker(%s): submit: %w", a.name, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("broker(%s): submit returned status %d", a.name, resp.StatusCode())
	}
	return out.OrderID, nil
}

type pollResponse struct {
	Status         string  `json:"status"`
	FilledQuantity int     `json:"filled_quantity"`
	AvgFillPrice   float64 `json:"avg_fill_price"`
}

func (a *httpAdapter) Poll(ctx context.Context, brokerOrderID string) (BrokerStatus, error) {
	var out pollResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/orders/" + brokerOrderID)
	if err != nil {
		return BrokerStatus{}, fmt.Errorf("broker(%s): poll: %w", a.name, err)
	}
	if resp.IsError() {
		return BrokerStatus{}, fmt.Errorf("broker(%s): poll returned status %d", a.name, resp.StatusCode())
	}
	var avgFillPrice *decimal.Decimal
	if out.FilledQuantity > 0 {
		d := decimal.NewFromFloat(out.AvgFillPrice)
		avgFillPrice = &d
	}
	return BrokerStatus{
		BrokerOrderID:  brokerOrderID,
		Status:         a.statusMap.Resolve(out.Status),
		FilledQuantity: out.FilledQuantity,
		AvgFillPrice:   avgFillPrice,
	}, nil
}

func (a *httpAdapter) Cancel(ctx context.Context, brokerOrderID string) error {
	resp, err := a.client.R().SetContext(ctx).Delete("/orders/" + brokerOrderID)
	if err != nil {
		return fmt.Errorf("broker(%s): cancel: %w", a.name, err)
	}
	if resp.IsError() {
		return fmt.Errorf("broker(%s): cancel returned status %d", a.name, resp.StatusCode())
	}
	return nil
}

// NewTradierAdapter builds the Tradier live/sandbox adapter.
func NewTradierAdapter(baseURL, apiKey string) Adapter {
	return newHTTPAdapter("tradier", baseURL, apiKey, tradierStatusMap)
}

// NewAlpacaAdapter builds the Alpaca paper/live trading adapter. Despite the
// name this is the real Alpaca HTTP API — "paper" here refers to Alpaca's
// own paper-trading environment URL, not our PaperAdapter.
func NewAlpacaAdapter(baseURL, apiKey, apiSecret string) Adapter {
	a := newHTTPAdapter("alpaca", baseURL, apiKey, alpacaStatusMap)
	a.client.SetHeader("Authorization", "").
		SetHeader("APCA-API-KEY-ID", apiKey).
		SetHeader("APCA-API-SECRET-KEY", apiSecret)
	return a
}
