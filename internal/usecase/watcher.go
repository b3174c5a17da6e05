package usecase

import (
	"context"
	"sync"
	"time"

	applogger "SigPulse/pkg/logger"
)

// Watcher drives the periodic market scan across configured symbols.
type Watcher struct {
	analyzer *Analyzer
	symbols  []string
	interval time.Duration
	logger   *applogger.Logger

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	done    chan struct{}

	scanMu   sync.Mutex
	lastScan time.Time
	scans    int
}

func NewWatcher(analyzer *Analyzer, symbols []string, interval time.Duration, logger *applogger.Logger) *Watcher {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Watcher{
		analyzer: analyzer,
		symbols:  symbols,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the scan loop. The first scan runs immediately, the rest
// follow the configured interval.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	go func() {
		defer close(w.done)
		w.Scan(ctx)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-ticker.C:
				w.Scan(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight scan to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	w.mu.Unlock()
	close(w.stopCh)
	<-w.done
}

// Scan runs one full pass over the watched symbols.
func (w *Watcher) Scan(ctx context.Context) AnalyzeRunResult {
	start := time.Now()
	run := w.analyzer.AnalyzeMany(ctx, w.symbols)

	w.scanMu.Lock()
	w.lastScan = start
	w.scans++
	w.scanMu.Unlock()

	if w.logger == nil {
		return run
	}
	alerts := 0
	for _, r := range run.Symbols {
		if r.Verdict.AlertSent {
			alerts++
		}
	}
	for symbol, reason := range run.Errors {
		w.logger.Error("symbol scan failed",
			applogger.String("symbol", symbol),
			applogger.String("reason", reason),
		)
	}
	w.logger.Info("scan complete",
		applogger.Int("symbols", len(w.symbols)),
		applogger.Int("alerts", alerts),
		applogger.Int("errors", len(run.Errors)),
		applogger.Duration("took", time.Since(start)),
	)
	return run
}

// Running reports whether the loop is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}

// Symbols returns the watched symbol list.
func (w *Watcher) Symbols() []string {
	out := make([]string, len(w.symbols))
	copy(out, w.symbols)
	return out
}

// Interval returns the scan cadence.
func (w *Watcher) Interval() time.Duration { return w.interval }

// LastScan reports when the previous pass started and how many ran so far.
func (w *Watcher) LastScan() (time.Time, int) {
	w.scanMu.Lock()
	defer w.scanMu.Unlock()
	return w.lastScan, w.scans
}
