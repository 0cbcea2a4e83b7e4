package quotes

import (
	"context"
	"sync"

	"paper-trading-lab/internal/storage"
)

// Provider supplies the current price for a symbol. Implementations
// report ok=false when no quote is available; callers treat a missing
// quote as "skip this symbol", never as an error.
type Provider interface {
	Price(ctx context.Context, symbol string) (float64, bool)
}

// Static serves prices from a fixed map. Used for tests and replay runs.
type Static struct {
	mu     sync.RWMutex
	prices map[string]float64
}

// NewStatic creates a Static provider seeded with the given prices.
// The map may be nil.
func NewStatic(prices map[string]float64) *Static {
	s := &Static{prices: make(map[string]float64)}
	for sym, p := range prices {
		s.prices[sym] = p
	}
	return s
}

// Compile-time interface check.
var _ Provider = (*Static)(nil)

// Price returns the configured price for symbol.
func (s *Static) Price(_ context.Context, symbol string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[symbol]
	return p, ok && p > 0
}

// Set updates the price for a symbol.
func (s *Static) Set(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = price
}

// Chain queries providers in order and returns the first available quote.
type Chain struct {
	providers []Provider
}

// NewChain creates a fallback chain over the given providers.
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// Compile-time interface check.
var _ Provider = (*Chain)(nil)

// Price returns the first quote any provider in the chain can serve.
func (c *Chain) Price(ctx context.Context, symbol string) (float64, bool) {
	for _, p := range c.providers {
		if price, ok := p.Price(ctx, symbol); ok {
			return price, true
		}
	}
	return 0, false
}

// CandleSource serves the latest stored daily close as the price.
// Sits at the end of a fallback chain so evaluation can still mark
// positions when the live feed has no quote.
type CandleSource struct {
	candles storage.CandleStore
}

// NewCandleSource creates a CandleSource over a candle store.
func NewCandleSource(candles storage.CandleStore) *CandleSource {
	return &CandleSource{candles: candles}
}

// Compile-time interface check.
var _ Provider = (*CandleSource)(nil)

// Price returns the most recent daily close for symbol.
func (c *CandleSource) Price(ctx context.Context, symbol string) (float64, bool) {
	close, err := c.candles.LatestClose(ctx, symbol)
	if err != nil {
		return 0, false
	}
	return close, close > 0
}
