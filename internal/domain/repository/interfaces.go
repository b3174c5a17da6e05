package repository

import (
	"context"

	"SigPulse/internal/domain/models"
)

// MarketStream provides live candle updates over a websocket. Updates for a
// still-open bar repeat its open time; the store refreshes that bar in place.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Candle, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// CandleFeed fetches recent candle history from the exchange REST API.
type CandleFeed interface {
	RecentCandles(ctx context.Context, symbol string, limit int) ([]models.Candle, error)
}

// CandleStore keeps a bounded window of recent candles per symbol.
// Append merges bars by open time and returns how many were accepted.
type CandleStore interface {
	Append(ctx context.Context, candles ...models.Candle) int
	Latest(ctx context.Context, symbol string, n int) []models.Candle
	Symbols(ctx context.Context) []string
	Len(ctx context.Context, symbol string) int
}

// AlertPublisher emits alerted assessments to the message bus.
type AlertPublisher interface {
	Publish(ctx context.Context, assessment *models.SignalAssessment) error
	Close() error
}

// Metrics records operational measurements.
type Metrics interface {
	RecordAnalysis(symbol, kind string)
	RecordAlert(channel, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
