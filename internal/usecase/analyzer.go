package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SigPulse/internal/domain/models"
	domrepo "SigPulse/internal/domain/repository"
	domsvc "SigPulse/internal/domain/service"
	"SigPulse/internal/services/analytics"
	applogger "SigPulse/pkg/logger"
)

// AnalyzerOptions tunes how much history one analysis consumes.
// Zero values fall back to defaults.
type AnalyzerOptions struct {
	CandleLimit int
	MinBars     int
}

// AnalyzeSymbolResult pairs the market assessment with the alert decision.
type AnalyzeSymbolResult struct {
	Assessment models.SignalAssessment `json:"assessment"`
	Verdict    models.AlertVerdict     `json:"verdict"`
}

// AnalyzeRunResult collects per-symbol outcomes of one scan.
type AnalyzeRunResult struct {
	Symbols map[string]AnalyzeSymbolResult `json:"symbols"`
	Errors  map[string]string              `json:"errors,omitempty"`
}

// Analyzer runs the full per-symbol cycle: load candles, top up from the
// exchange feed when the store is short, validate the series, score it and
// hand the assessment to the alert tracker.
type Analyzer struct {
	store   domrepo.CandleStore
	feed    domrepo.CandleFeed
	engine  domsvc.MarketAnalyzer
	tracker *AlertTracker
	logger  *applogger.Logger
	metrics domrepo.Metrics

	candleLimit int
	minBars     int
}

func NewAnalyzer(store domrepo.CandleStore, feed domrepo.CandleFeed, engine domsvc.MarketAnalyzer, tracker *AlertTracker, logger *applogger.Logger, metrics domrepo.Metrics, opts AnalyzerOptions) *Analyzer {
	if opts.CandleLimit <= 0 {
		opts.CandleLimit = 100
	}
	if opts.MinBars <= 0 {
		opts.MinBars = 50
	}
	return &Analyzer{
		store:       store,
		feed:        feed,
		engine:      engine,
		tracker:     tracker,
		logger:      logger,
		metrics:     metrics,
		candleLimit: opts.CandleLimit,
		minBars:     opts.MinBars,
	}
}

// AnalyzeSymbol runs one analysis cycle for a single symbol.
func (a *Analyzer) AnalyzeSymbol(ctx context.Context, symbol string) (AnalyzeSymbolResult, error) {
	if symbol == "" {
		return AnalyzeSymbolResult{}, fmt.Errorf("symbol required")
	}
	start := time.Now()

	candles, err := a.loadCandles(ctx, symbol)
	if err != nil {
		return AnalyzeSymbolResult{}, err
	}
	if err := validateSeries(symbol, candles, a.minBars); err != nil {
		a.recordError("series_validate")
		return AnalyzeSymbolResult{}, err
	}

	assessment, err := a.engine.Analyze(symbol, candles)
	if err != nil {
		a.recordError("analysis")
		return AnalyzeSymbolResult{}, fmt.Errorf("analyze %s: %w", symbol, err)
	}
	if a.metrics != nil {
		a.metrics.RecordAnalysis(symbol, string(assessment.Kind))
		a.metrics.RecordLastPrice(symbol, assessment.Price)
		a.metrics.RecordLatency("analyze_symbol", time.Since(start).Seconds())
	}

	verdict := a.tracker.Process(ctx, symbol, &assessment)
	if a.logger != nil {
		a.logger.Info("symbol analyzed",
			applogger.String("symbol", symbol),
			applogger.String("signal", string(assessment.Kind)),
			applogger.Float64("strength", assessment.Strength),
			applogger.String("outcome", verdict.Reason),
			applogger.Bool("alert_sent", verdict.AlertSent),
		)
	}
	return AnalyzeSymbolResult{Assessment: assessment, Verdict: verdict}, nil
}

// AnalyzeMany fans one analysis cycle out across symbols. A failing or
// panicking symbol never takes down the rest of the scan.
func (a *Analyzer) AnalyzeMany(ctx context.Context, symbols []string) AnalyzeRunResult {
	type outcome struct {
		symbol string
		result AnalyzeSymbolResult
		err    error
	}

	out := AnalyzeRunResult{Symbols: make(map[string]AnalyzeSymbolResult, len(symbols))}
	ch := make(chan outcome, len(symbols))
	var wg sync.WaitGroup
	for _, s := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					ch <- outcome{symbol: symbol, err: fmt.Errorf("analysis panicked: %v", r)}
				}
			}()
			res, err := a.AnalyzeSymbol(ctx, symbol)
			ch <- outcome{symbol: symbol, result: res, err: err}
		}(s)
	}
	wg.Wait()
	close(ch)

	for o := range ch {
		if o.err != nil {
			if out.Errors == nil {
				out.Errors = make(map[string]string)
			}
			out.Errors[o.symbol] = o.err.Error()
			continue
		}
		out.Symbols[o.symbol] = o.result
	}
	return out
}

func (a *Analyzer) loadCandles(ctx context.Context, symbol string) ([]models.Candle, error) {
	candles := a.store.Latest(ctx, symbol, a.candleLimit)
	if len(candles) >= a.minBars || a.feed == nil {
		return candles, nil
	}

	fetchStart := time.Now()
	fetched, err := a.feed.RecentCandles(ctx, symbol, a.candleLimit)
	if err != nil {
		a.recordError("market_fetch")
		if len(candles) == 0 {
			return nil, fmt.Errorf("fetch candles for %s: %w", symbol, err)
		}
		if a.logger != nil {
			a.logger.Warn("feed unavailable, using cached candles",
				applogger.String("symbol", symbol),
				applogger.Int("cached", len(candles)),
				applogger.Error(err),
			)
		}
		return candles, nil
	}
	if a.metrics != nil {
		a.metrics.RecordLatency("market_fetch", time.Since(fetchStart).Seconds())
	}
	a.store.Append(ctx, fetched...)
	return a.store.Latest(ctx, symbol, a.candleLimit), nil
}

func (a *Analyzer) recordError(kind string) {
	if a.metrics != nil {
		a.metrics.RecordError(kind)
	}
}

// validateSeries rejects series that are too short, unordered or carry
// impossible prices before any math runs on them.
func validateSeries(symbol string, candles []models.Candle, minBars int) error {
	if len(candles) < minBars {
		return fmt.Errorf("%s has %d candles, need %d: %w", symbol, len(candles), minBars, analytics.ErrInsufficientData)
	}
	for i, c := range candles {
		if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
			return fmt.Errorf("%s candle %d has non-positive price: %w", symbol, i, analytics.ErrInvalidInput)
		}
		if c.High < c.Low {
			return fmt.Errorf("%s candle %d has high below low: %w", symbol, i, analytics.ErrInvalidInput)
		}
		if c.Volume < 0 {
			return fmt.Errorf("%s candle %d has negative volume: %w", symbol, i, analytics.ErrInvalidInput)
		}
		if i > 0 && !candles[i-1].OpenTime.Before(c.OpenTime) {
			return fmt.Errorf("%s candles out of order at %d: %w", symbol, i, analytics.ErrInvalidInput)
		}
	}
	return nil
}
