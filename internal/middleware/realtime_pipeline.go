package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SigPulse/internal/domain/models"
	domrepo "SigPulse/internal/domain/repository"
)

// Proc is the minimal downstream interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, c *models.Candle) error
}

// RealtimePipeline sits between the exchange stream and the candle
// store. It validates incoming bars, throttles per-symbol update
// bursts, and buffers bars while downstream is unavailable.
type RealtimePipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	maxRPS  int
	bufSize int
	bufCh   chan *models.Candle
	stopCh  chan struct{}
	started bool

	mu       sync.Mutex
	lastSeen map[string]time.Time // per-symbol last accepted time

	transform func(*models.Candle) *models.Candle
}

type PipelineOption func(*RealtimePipeline)

// WithMaxRPS caps accepted bar updates per second per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets how many bars are held while downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform sets a hook to rewrite bars before forwarding.
func WithTransform(fn func(*models.Candle) *models.Candle) PipelineOption {
	return func(p *RealtimePipeline) { p.transform = fn }
}

// NewRealtimePipeline wires the stream-side middleware in front of proc.
func NewRealtimePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		maxRPS:   2, // kline streams refresh a bar a few times per second at most
		bufSize:  1000,
		proc:     proc,
		metrics:  metrics,
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.Candle, p.bufSize)
	return p
}

// Start launches background flushing of buffered bars.
func (p *RealtimePipeline) Start(ctx context.Context) {
	if !p.flipStarted(true) {
		return
	}
	go p.flush(ctx)
}

func (p *RealtimePipeline) flush(ctx context.Context) {
	backoff := 50 * time.Millisecond
	for {
		select {
		case <-p.stopCh:
			return
		case c := <-p.bufCh:
			if c == nil {
				continue
			}
			if err := p.proc.Process(ctx, c); err == nil {
				backoff = 50 * time.Millisecond
				continue
			}
			if backoff < 2*time.Second {
				backoff *= 2
			}
			p.metrics.RecordError("pipeline_flush")
			// requeue if space; drop otherwise
			select {
			case p.bufCh <- c:
			default:
				p.metrics.RecordError("pipeline_buffer_drop")
			}
			select {
			case <-p.stopCh:
				return
			case <-time.After(backoff):
			}
		}
	}
}

// Stop stops the background flushing.
func (p *RealtimePipeline) Stop() {
	if !p.flipStarted(false) {
		return
	}
	close(p.stopCh)
}

// flipStarted moves the started flag to want and reports whether this
// call made the transition.
func (p *RealtimePipeline) flipStarted(want bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started == want {
		return false
	}
	p.started = want
	return true
}

// Process validates, throttles, and forwards a bar downstream,
// buffering it when downstream errors.
func (p *RealtimePipeline) Process(ctx context.Context, c *models.Candle) error {
	start := time.Now()
	if err := validateCandle(c); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		c = p.transform(c)
		if err := validateCandle(c); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	if !p.allow(c.Symbol, start) {
		// over the per-symbol rate; drop silently
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, c); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- c:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateCandle(c *models.Candle) error {
	if c == nil {
		return fmt.Errorf("candle nil")
	}
	if c.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if c.OpenTime.IsZero() {
		return fmt.Errorf("open time invalid")
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return fmt.Errorf("non-positive price")
	}
	if c.High < c.Low {
		return fmt.Errorf("high below low")
	}
	if c.Volume < 0 {
		return fmt.Errorf("negative volume")
	}
	return nil
}

func (p *RealtimePipeline) allow(symbol string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[symbol]
	if !last.IsZero() && now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[symbol] = now
	return true
}
