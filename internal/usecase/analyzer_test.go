package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"SigPulse/internal/domain/models"
	"SigPulse/internal/services/analytics"
)

type fakeCandleStore struct {
	mu      sync.Mutex
	bySym   map[string][]models.Candle
	appends int
}

func (f *fakeCandleStore) Append(_ context.Context, candles ...models.Candle) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bySym == nil {
		f.bySym = make(map[string][]models.Candle)
	}
	for _, c := range candles {
		f.bySym[c.Symbol] = append(f.bySym[c.Symbol], c)
	}
	f.appends += len(candles)
	return len(candles)
}

func (f *fakeCandleStore) Latest(_ context.Context, symbol string, n int) []models.Candle {
	f.mu.Lock()
	defer f.mu.Unlock()
	candles := f.bySym[symbol]
	if n > 0 && len(candles) > n {
		candles = candles[len(candles)-n:]
	}
	out := make([]models.Candle, len(candles))
	copy(out, candles)
	return out
}

func (f *fakeCandleStore) Symbols(context.Context) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.bySym))
	for s := range f.bySym {
		out = append(out, s)
	}
	return out
}

func (f *fakeCandleStore) Len(_ context.Context, symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bySym[symbol])
}

type fakeFeed struct {
	candles []models.Candle
	err     error
	calls   int
}

func (f *fakeFeed) RecentCandles(_ context.Context, _ string, _ int) ([]models.Candle, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.candles, nil
}

type fakeEngine struct {
	mu       sync.Mutex
	result   models.SignalAssessment
	err      error
	panicMsg string
	calls    int
	gotBars  int
}

func (f *fakeEngine) Analyze(symbol string, candles []models.Candle) (models.SignalAssessment, error) {
	f.mu.Lock()
	f.calls++
	f.gotBars = len(candles)
	f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return models.SignalAssessment{}, f.err
	}
	res := f.result
	res.Symbol = symbol
	return res, nil
}

type fakeMetrics struct {
	mu       sync.Mutex
	analyses int
	errors   map[string]int
}

func (f *fakeMetrics) RecordAnalysis(string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyses++
}

func (f *fakeMetrics) RecordAlert(string, string) {}

func (f *fakeMetrics) RecordError(kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errors == nil {
		f.errors = make(map[string]int)
	}
	f.errors[kind]++
}

func (f *fakeMetrics) RecordLastPrice(string, float64) {}
func (f *fakeMetrics) RecordLatency(string, float64)   {}

func series(symbol string, n int) []models.Candle {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		price := 100.0 + float64(i)
		out[i] = models.Candle{
			OpenTime: start.Add(time.Duration(i) * 15 * time.Minute),
			Symbol:   symbol,
			Open:     price,
			High:     price + 1,
			Low:      price - 1,
			Close:    price + 0.5,
			Volume:   1000,
		}
	}
	return out
}

func confirmedResult() models.SignalAssessment {
	return models.SignalAssessment{
		Kind:          models.SignalConfirmed,
		Direction:     models.DirectionLong,
		Strength:      0.85,
		Confidence:    4,
		Price:         159.5,
		Timestamp:     time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC),
		Confirmations: 2,
	}
}

func TestAnalyzeSymbolRequiresSymbol(t *testing.T) {
	a := NewAnalyzer(&fakeCandleStore{}, nil, &fakeEngine{}, newTestTracker(&fakeDispatcher{}), nil, nil, AnalyzerOptions{})
	if _, err := a.AnalyzeSymbol(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty symbol")
	}
}

func TestAnalyzeSymbolUsesWarmStore(t *testing.T) {
	store := &fakeCandleStore{}
	store.Append(context.Background(), series("BTCUSDT", 60)...)
	feed := &fakeFeed{}
	engine := &fakeEngine{result: confirmedResult()}
	m := &fakeMetrics{}

	a := NewAnalyzer(store, feed, engine, newTestTracker(&fakeDispatcher{}), nil, m, AnalyzerOptions{MinBars: 50, CandleLimit: 100})
	res, err := a.AnalyzeSymbol(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if feed.calls != 0 {
		t.Fatalf("feed should not be hit when the store is warm, got %d calls", feed.calls)
	}
	if engine.gotBars != 60 {
		t.Fatalf("engine got %d bars, want 60", engine.gotBars)
	}
	if res.Assessment.Kind != models.SignalConfirmed || res.Assessment.Symbol != "BTCUSDT" {
		t.Fatalf("unexpected assessment %+v", res.Assessment)
	}
	if !res.Verdict.AlertSent || res.Verdict.Reason != models.ReasonNewSignal {
		t.Fatalf("unexpected verdict %+v", res.Verdict)
	}
	if m.analyses != 1 {
		t.Fatalf("expected one recorded analysis, got %d", m.analyses)
	}
}

func TestAnalyzeSymbolTopsUpFromFeed(t *testing.T) {
	store := &fakeCandleStore{}
	feed := &fakeFeed{candles: series("ETHUSDT", 80)}
	engine := &fakeEngine{result: confirmedResult()}

	a := NewAnalyzer(store, feed, engine, newTestTracker(&fakeDispatcher{}), nil, nil, AnalyzerOptions{MinBars: 50, CandleLimit: 100})
	if _, err := a.AnalyzeSymbol(context.Background(), "ETHUSDT"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if feed.calls != 1 {
		t.Fatalf("expected one feed call, got %d", feed.calls)
	}
	if store.appends != 80 {
		t.Fatalf("fetched candles should land in the store, appended %d", store.appends)
	}
	if engine.gotBars != 80 {
		t.Fatalf("engine got %d bars, want 80", engine.gotBars)
	}
}

func TestAnalyzeSymbolFeedErrorWithEmptyStore(t *testing.T) {
	feed := &fakeFeed{err: errors.New("binance down")}
	a := NewAnalyzer(&fakeCandleStore{}, feed, &fakeEngine{}, newTestTracker(&fakeDispatcher{}), nil, nil, AnalyzerOptions{})

	_, err := a.AnalyzeSymbol(context.Background(), "BTCUSDT")
	if err == nil || !strings.Contains(err.Error(), "fetch candles for BTCUSDT") {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}
	if !strings.Contains(err.Error(), "binance down") {
		t.Fatalf("cause missing from %v", err)
	}
}

func TestAnalyzeSymbolFeedErrorFallsBackToCached(t *testing.T) {
	store := &fakeCandleStore{}
	store.Append(context.Background(), series("BTCUSDT", 30)...)
	feed := &fakeFeed{err: errors.New("binance down")}
	m := &fakeMetrics{}

	a := NewAnalyzer(store, feed, &fakeEngine{}, newTestTracker(&fakeDispatcher{}), nil, m, AnalyzerOptions{MinBars: 50, CandleLimit: 100})
	_, err := a.AnalyzeSymbol(context.Background(), "BTCUSDT")
	if !errors.Is(err, analytics.ErrInsufficientData) {
		t.Fatalf("cached series below minimum should fail validation, got %v", err)
	}
	if feed.calls != 1 {
		t.Fatalf("expected one feed attempt, got %d", feed.calls)
	}
	if m.errors["market_fetch"] != 1 {
		t.Fatalf("expected market_fetch error recorded, got %+v", m.errors)
	}
}

func TestAnalyzeSymbolWrapsEngineError(t *testing.T) {
	store := &fakeCandleStore{}
	store.Append(context.Background(), series("BTCUSDT", 60)...)
	engine := &fakeEngine{err: errors.New("boom")}
	m := &fakeMetrics{}

	a := NewAnalyzer(store, nil, engine, newTestTracker(&fakeDispatcher{}), nil, m, AnalyzerOptions{MinBars: 50})
	_, err := a.AnalyzeSymbol(context.Background(), "BTCUSDT")
	if err == nil || !strings.Contains(err.Error(), "analyze BTCUSDT") {
		t.Fatalf("expected wrapped engine error, got %v", err)
	}
	if m.errors["analysis"] != 1 {
		t.Fatalf("expected analysis error recorded, got %+v", m.errors)
	}
}

func TestAnalyzeManyCollectsResultsAndErrors(t *testing.T) {
	store := &fakeCandleStore{}
	store.Append(context.Background(), series("BTCUSDT", 60)...)
	engine := &fakeEngine{result: confirmedResult()}

	a := NewAnalyzer(store, nil, engine, newTestTracker(&fakeDispatcher{}), nil, nil, AnalyzerOptions{MinBars: 50})
	run := a.AnalyzeMany(context.Background(), []string{"BTCUSDT", "ETHUSDT"})

	if len(run.Symbols) != 1 {
		t.Fatalf("expected one successful symbol, got %d", len(run.Symbols))
	}
	if _, ok := run.Symbols["BTCUSDT"]; !ok {
		t.Fatalf("missing BTCUSDT result: %+v", run.Symbols)
	}
	if _, ok := run.Errors["ETHUSDT"]; !ok {
		t.Fatalf("expected error for symbol with no candles: %+v", run.Errors)
	}
}

func TestAnalyzeManyRecoversPanic(t *testing.T) {
	store := &fakeCandleStore{}
	store.Append(context.Background(), series("BTCUSDT", 60)...)
	engine := &fakeEngine{panicMsg: "engine exploded"}

	a := NewAnalyzer(store, nil, engine, newTestTracker(&fakeDispatcher{}), nil, nil, AnalyzerOptions{MinBars: 50})
	run := a.AnalyzeMany(context.Background(), []string{"BTCUSDT"})

	msg, ok := run.Errors["BTCUSDT"]
	if !ok || !strings.Contains(msg, "analysis panicked") {
		t.Fatalf("expected recovered panic in errors, got %+v", run.Errors)
	}
}

func TestValidateSeries(t *testing.T) {
	good := series("BTCUSDT", 10)

	badPrice := series("BTCUSDT", 10)
	badPrice[4].Close = 0

	badRange := series("BTCUSDT", 10)
	badRange[2].High = badRange[2].Low - 1

	badVolume := series("BTCUSDT", 10)
	badVolume[7].Volume = -5

	unordered := series("BTCUSDT", 10)
	unordered[5].OpenTime = unordered[4].OpenTime

	cases := []struct {
		name    string
		candles []models.Candle
		minBars int
		want    error
	}{
		{"valid", good, 10, nil},
		{"too short", good, 11, analytics.ErrInsufficientData},
		{"zero price", badPrice, 10, analytics.ErrInvalidInput},
		{"high below low", badRange, 10, analytics.ErrInvalidInput},
		{"negative volume", badVolume, 10, analytics.ErrInvalidInput},
		{"duplicate open time", unordered, 10, analytics.ErrInvalidInput},
	}
	for _, tc := range cases {
		err := validateSeries("BTCUSDT", tc.candles, tc.minBars)
		if tc.want == nil {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tc.name, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestAnalyzeManyIsolatesSymbols(t *testing.T) {
	store := &fakeCandleStore{}
	for i := 0; i < 4; i++ {
		store.Append(context.Background(), series(fmt.Sprintf("SYM%dUSDT", i), 60)...)
	}
	engine := &fakeEngine{result: confirmedResult()}

	a := NewAnalyzer(store, nil, engine, newTestTracker(&fakeDispatcher{}), nil, nil, AnalyzerOptions{MinBars: 50})
	symbols := []string{"SYM0USDT", "SYM1USDT", "SYM2USDT", "SYM3USDT"}
	run := a.AnalyzeMany(context.Background(), symbols)

	if len(run.Symbols) != 4 || len(run.Errors) != 0 {
		t.Fatalf("expected all symbols to succeed: %+v / %+v", run.Symbols, run.Errors)
	}
	for _, s := range symbols {
		if run.Symbols[s].Assessment.Symbol != s {
			t.Fatalf("result for %s carries wrong symbol %q", s, run.Symbols[s].Assessment.Symbol)
		}
	}
}
