package domain

import "time"

// Candle is one daily OHLCV bar. Candles back the quote-provider fallback
// chain: when no live quote is available the latest close is used.
type Candle struct {
	Symbol string
	Date   time.Time // calendar date (UTC midnight)
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}
