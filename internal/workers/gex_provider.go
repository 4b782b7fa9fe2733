package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPGEXProvider calls a configured gamma-exposure vendor endpoint.
type HTTPGEXProvider struct {
	client *resty.Client
}

func NewHTTPGEXProvider(baseURL, apiKey string) *HTTPGEXProvider {
	client := resty.New().SetTimeout(10 * time.Second).SetBaseURL(baseURL).SetQueryParam("apikey", apiKey)
	return &HTTPGEXProvider{client: client}
}

type gexResponse struct {
	NetGEX         float64 `json:"net_gex"`
	Strength       float64 `json:"strength"`
	Direction      string  `json:"direction"`
	DealerPosition string  `json:"dealer_position"`
	ZeroGammaLevel float64 `json:"zero_gamma_level"`
	MaxPainStrike  float64 `json:"max_pain_strike"`
	PutCallRatio   float64 `json:"put_call_ratio"`
	WallSupport    float64 `json:"wall_support"`
	WallResistance float64 `json:"wall_resistance"`
	Conviction     string  `json:"conviction"`
}

func (p *HTTPGEXProvider) FetchGEX(ctx context.Context, symbol string) (GEXSummary, error) {
	var out gexResponse
	resp, err := p.client.R().SetContext(ctx).SetQueryParam("symbol", symbol).SetResult(&out).Get("/gex")
	if err != nil {
		return GEXSummary{}, fmt.Errorf("gex_refresher: fetch %s: %w", symbol, err)
	}
	if resp.IsError() {
		return GEXSummary{}, fmt.Errorf("gex_refresher: %s returned status %d", symbol, resp.StatusCode())
	}
	return GEXSummary{
		NetGEX:         out.NetGEX,
		Strength:       out.Strength,
		Direction:      out.Direction,
		DealerPosition: out.DealerPosition,
		ZeroGammaLevel: out.ZeroGammaLevel,
		MaxPainStrike:  out.MaxPainStrike,
		PutCallRatio:   out.PutCallRatio,
		WallSupport:    out.WallSupport,
		WallResistance: out.WallResistance,
		Conviction:     out.Conviction,
		Timeframe:      "0DTE",
	}, nil
}

// DemoGEXProvider synthesizes a deterministic GEX summary from the symbol
// name alone, with no math/rand (the same approach as
// marketdata.DemoProvider), for deployments without a configured GEX vendor.
type DemoGEXProvider struct{}

func NewDemoGEXProvider() *DemoGEXProvider { return &DemoGEXProvider{} }

func (p *DemoGEXProvider) FetchGEX(_ context.Context, symbol string) (GEXSummary, error) {
	var sum int
	for _, r := range symbol {
		sum += int(r)
	}
	bullish := sum%2 == 0
	direction := "PUT"
	dealer := "SHORT_GAMMA"
	if bullish {
		direction = "CALL"
		dealer = "LONG_GAMMA"
	}
	return GEXSummary{
		NetGEX:         float64(sum) * 1_000_000,
		Strength:       float64(sum%100) / 100.0,
		Direction:      direction,
		DealerPosition: dealer,
		ZeroGammaLevel: 500.0,
		MaxPainStrike:  500.0,
		PutCallRatio:   0.8 + float64(sum%50)/100.0,
		WallSupport:    490.0,
		WallResistance: 510.0,
		Conviction:     conviction(sum),
		Timeframe:      "0DTE",
	}, nil
}

func conviction(sum int) string {
	switch {
	case sum%3 == 0:
		return "HIGH"
	case sum%3 == 1:
		return "MEDIUM"
	default:
		return "LOW"
	}
}
