package usecase

import (
	"context"
	"fmt"

	"SigPulse/internal/domain/models"
	domrepo "SigPulse/internal/domain/repository"
	mid "SigPulse/internal/middleware"
)

// StoreSink forwards pipeline output into the candle store.
type StoreSink struct {
	store domrepo.CandleStore
}

func NewStoreSink(store domrepo.CandleStore) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Process(ctx context.Context, c *models.Candle) error {
	s.store.Append(ctx, *c)
	return nil
}

var _ mid.Proc = (*StoreSink)(nil)

// CandleCollector pumps exchange bars from the market stream into the store.
type CandleCollector struct {
	stream  domrepo.MarketStream
	sink    *StoreSink
	metrics domrepo.Metrics
	pipe    *mid.RealtimePipeline
}

// NewCandleCollector wires the exchange stream to its sink. A nil pipe
// bypasses the rate-limit and dedup middleware.
func NewCandleCollector(stream domrepo.MarketStream, sink *StoreSink, metrics domrepo.Metrics, pipe *mid.RealtimePipeline) *CandleCollector {
	return &CandleCollector{stream: stream, sink: sink, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the market stream is connected.
func (c *CandleCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *CandleCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return fmt.Errorf("connect market stream: %w", err)
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return fmt.Errorf("subscribe market stream: %w", err)
	}
	if p := c.pipe; p != nil {
		p.Start(ctx)
	}

	caCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, caCh, errCh)
	return nil
}

func (c *CandleCollector) consume(ctx context.Context, caCh <-chan *models.Candle, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok || err != nil {
				if err != nil {
					c.metrics.RecordError("stream")
				}
				// Reconnect paces itself with the configured delay; on
				// failure the closed channel brings us back here.
				if rerr := c.stream.Reconnect(ctx); rerr != nil {
					continue
				}
				caCh, errCh = c.stream.Read(ctx)
			}
		case ca := <-caCh:
			if ca == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, ca)
			} else {
				_ = c.sink.Process(ctx, ca)
			}
			c.metrics.RecordLastPrice(ca.Symbol, ca.Close)
		}
	}
}

func (c *CandleCollector) Stop() error { return c.stream.Close() }

// Shutdown stops the pipeline and closes the stream.
func (c *CandleCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
