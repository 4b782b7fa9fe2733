// Package marketdata fans out stock/VIX quote requests across configured
// providers with failover to a deterministic demo quote, the way the
// teacher's exec.Client wraps a single HTTP API but generalized to several
// ranked providers plus singleflight coalescing and errgroup fan-out.
package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/optionpulse/signalengine/internal/cache"
	"github.com/optionpulse/signalengine/internal/ratelimiter"
)

// Quote is one provider's answer for a symbol at a point in time.
type Quote struct {
	Symbol    string
	Price     decimal.Decimal
	Open      *decimal.Decimal
	High      *decimal.Decimal
	Low       *decimal.Decimal
	Volume    *decimal.Decimal
	Bid       *decimal.Decimal
	Ask       *decimal.Decimal
	Timestamp time.Time
	Provider  string
}

// Provider fetches a single quote. Each configured HTTP provider and the
// demo fallback implement this.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (Quote, error)
}

// HTTPProvider calls a REST quote endpoint via resty.
type HTTPProvider struct {
	name    string
	client  *resty.Client
	baseURL string
	apiKey  string
}

// NewHTTPProvider builds a resty-backed provider.
func NewHTTPProvider(name, baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	client := resty.New().SetTimeout(timeout).SetBaseURL(baseURL)
	return &HTTPProvider{name: name, client: client, baseURL: baseURL, apiKey: apiKey}
}

func (p *HTTPProvider) Name() string { return p.name }

type quoteResponse struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Volume float64 `json:"volume"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
}

func (p *HTTPProvider) Fetch(ctx context.Context, symbol string) (Quote, error) {
	var out quoteResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetQueryParam("apikey", p.apiKey).
		SetResult(&out).
		Get("/quote")
	if err != nil {
		return Quote{}, fmt.Errorf("marketdata: %s fetch %s: %w", p.name, symbol, err)
	}
	if resp.IsError() {
		return Quote{}, fmt.Errorf("marketdata: %s returned status %d for %s", p.name, resp.StatusCode(), symbol)
	}
	open := decimal.NewFromFloat(out.Open)
	high := decimal.NewFromFloat(out.High)
	low := decimal.NewFromFloat(out.Low)
	vol := decimal.NewFromFloat(out.Volume)
	bid := decimal.NewFromFloat(out.Bid)
	ask := decimal.NewFromFloat(out.Ask)
	return Quote{
		Symbol:    symbol,
		Price:     decimal.NewFromFloat(out.Price),
		Open:      &open,
		High:      &high,
		Low:       &low,
		Volume:    &vol,
		Bid:       &bid,
		Ask:       &ask,
		Timestamp: time.Now(),
		Provider:  p.name,
	}, nil
}

// DemoProvider returns a deterministic quote around a seeded table, jittered
// ±0.5%, tagged provider=demo. It never fails.
type DemoProvider struct {
	seed map[string]decimal.Decimal
}

// NewDemoProvider builds the fallback with a small table of recognizable
// symbols plus a generic default for anything unseeded.
func NewDemoProvider() *DemoProvider {
	return &DemoProvider{
		seed: map[string]decimal.Decimal{
			"SPY": decimal.NewFromFloat(500.00),
			"QQQ": decimal.NewFromFloat(430.00),
			"IWM": decimal.NewFromFloat(200.00),
		},
	}
}

func (d *DemoProvider) Name() string { return "demo" }

func (d *DemoProvider) Fetch(_ context.Context, symbol string) (Quote, error) {
	base, ok := d.seed[strings.ToUpper(symbol)]
	if !ok {
		base = decimal.NewFromFloat(100.00)
	}
	jitter := deterministicJitter(symbol)
	price := base.Add(base.Mul(jitter))
	return Quote{
		Symbol:    symbol,
		Price:     price,
		Timestamp: time.Now(),
		Provider:  "demo",
	}, nil
}

// deterministicJitter derives a stable ±0.5% offset from the symbol name so
// the same symbol always gets the same demo quote within a process run
// without reaching for math/rand (which would break reproducibility here).
func deterministicJitter(symbol string) decimal.Decimal {
	var sum int
	for _, r := range symbol {
		sum += int(r)
	}
	frac := float64(sum%100) / 100.0 // 0.0 .. 0.99
	pct := (frac - 0.5) * 0.01       // -0.5% .. +0.5%
	return decimal.NewFromFloat(pct)
}

// Service is the process-wide MarketData singleton: ranked providers, a
// quote cache, a market-hours cache, and request coalescing.
type Service struct {
	primary   Provider
	fallbacks []Provider
	demo      *DemoProvider
	limiter   *ratelimiter.Manager

	quoteCache       *cache.TTLCache[Quote]
	marketHoursCache *cache.TTLCache[bool]

	group singleflight.Group
}

// NewService wires a primary provider, ordered fallbacks, the demo provider,
// and the rate limiter manager used to gate the primary and each fallback
// before it is tried.
func NewService(primary Provider, fallbacks []Provider, limiter *ratelimiter.Manager) *Service {
	return &Service{
		primary:          primary,
		fallbacks:        fallbacks,
		demo:             NewDemoProvider(),
		limiter:          limiter,
		quoteCache:       cache.New[Quote](time.Minute),
		marketHoursCache: cache.New[bool](5 * time.Minute),
	}
}

// GetStockPrice resolves a quote following the provider-selection rule:
// cache hit, then the rate-limited primary, then each rate-limited fallback in order,
// then the demo quote. Concurrent callers for the same symbol coalesce onto
// one in-flight fetch via singleflight.
func (s *Service) GetStockPrice(ctx context.Context, symbol string) (Quote, error) {
	symbol = strings.ToUpper(symbol)
	if q, ok := s.quoteCache.Get(symbol); ok {
		return q, nil
	}

	v, err, _ := s.group.Do(symbol, func() (any, error) {
		return s.fetchChain(ctx, symbol)
	})
	if err != nil {
		return Quote{}, err
	}
	q := v.(Quote)
	s.quoteCache.Set(symbol, q, 30*time.Second)
	return q, nil
}

func (s *Service) fetchChain(ctx context.Context, symbol string) (Quote, error) {
	if s.primary != nil {
		if s.limiter == nil || s.limiter.Allow(s.primary.Name()) {
			if q, err := s.primary.Fetch(ctx, symbol); err == nil {
				return q, nil
			} else {
				log.Warn().Err(err).Str("provider", s.primary.Name()).Str("symbol", symbol).Msg("primary market data provider failed")
			}
		}
	}
	for _, p := range s.fallbacks {
		if s.limiter != nil && !s.limiter.Allow(p.Name()) {
			continue
		}
		if q, err := p.Fetch(ctx, symbol); err == nil {
			return q, nil
		} else {
			log.Warn().Err(err).Str("provider", p.Name()).Str("symbol", symbol).Msg("fallback market data provider failed")
		}
	}
	return s.demo.Fetch(ctx, symbol)
}

// GetStockPrices fetches every symbol in parallel, each failure independent
// of the others — a bad symbol never aborts the batch.
func (s *Service) GetStockPrices(ctx context.Context, symbols []string) map[string]Quote {
	out := make(map[string]Quote, len(symbols))
	results := make(chan struct {
		symbol string
		quote  Quote
	}, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	for _, sym := range symbols {
		sym := sym
		g.Go(func() error {
			q, err := s.GetStockPrice(gctx, sym)
			if err != nil {
				log.Warn().Err(err).Str("symbol", sym).Msg("getStockPrices: symbol failed, skipping")
				return nil
			}
			results <- struct {
				symbol string
				quote  Quote
			}{sym, q}
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	for r := range results {
		out[r.symbol] = r.quote
	}
	return out
}

// GetVIX fetches the VIX level as a quote on the "VIX" symbol.
func (s *Service) GetVIX(ctx context.Context) (decimal.Decimal, error) {
	q, err := s.GetStockPrice(ctx, "VIX")
	if err != nil {
		return decimal.Zero, err
	}
	return q.Price, nil
}

// GetSPYPrice is a thin named wrapper used by the orchestrator's context
// snapshot construction.
func (s *Service) GetSPYPrice(ctx context.Context) (decimal.Decimal, error) {
	q, err := s.GetStockPrice(ctx, "SPY")
	if err != nil {
		return decimal.Zero, err
	}
	return q.Price, nil
}

// MarketHours is the result of the Eastern-time weekday 09:30-16:00 check.
type MarketHours struct {
	Open  time.Time
	Close time.Time
	IsOpen bool
}

// IsMarketOpen reports whether regular trading hours are active right now,
// cached for 300s.
func (s *Service) IsMarketOpen(now time.Time) bool {
	cacheKey := "market_open"
	if v, ok := s.marketHoursCache.Get(cacheKey); ok {
		return v
	}
	open := isMarketOpen(now)
	s.marketHoursCache.Set(cacheKey, open, 300*time.Second)
	return open
}

// GetMarketHours computes today's open/close instants in Eastern time and
// whether the market is currently open.
func (s *Service) GetMarketHours(now time.Time) MarketHours {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	et := now.In(loc)
	open := time.Date(et.Year(), et.Month(), et.Day(), 9, 30, 0, 0, loc)
	close := time.Date(et.Year(), et.Month(), et.Day(), 16, 0, 0, 0, loc)
	return MarketHours{
		Open:   open,
		Close:  close,
		IsOpen: isMarketOpen(now),
	}
}

func isMarketOpen(now time.Time) bool {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	et := now.In(loc)
	if et.Weekday() == time.Saturday || et.Weekday() == time.Sunday {
		return false
	}
	open := time.Date(et.Year(), et.Month(), et.Day(), 9, 30, 0, 0, loc)
	close := time.Date(et.Year(), et.Month(), et.Day(), 16, 0, 0, 0, loc)
	return !et.Before(open) && et.Before(close)
}

