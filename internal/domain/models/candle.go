package models

import "time"

// Candle represents one OHLCV bar of a symbol's price history.
type Candle struct {
	OpenTime time.Time
	Symbol   string
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}
