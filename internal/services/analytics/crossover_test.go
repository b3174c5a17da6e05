package analytics

import (
	"errors"
	"math"
	"testing"
	"time"

	"SigPulse/internal/domain/models"
)

func flatThen(flat float64, n int, last float64) []models.Candle {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, 0, n+1)
	for i := 0; i < n; i++ {
		out = append(out, models.Candle{
			OpenTime: base.Add(time.Duration(i) * 15 * time.Minute),
			Symbol:   "BTCUSDT",
			Open:     flat, High: flat, Low: flat, Close: flat,
			Volume: 100,
		})
	}
	out = append(out, models.Candle{
		OpenTime: base.Add(time.Duration(n) * 15 * time.Minute),
		Symbol:   "BTCUSDT",
		Open:     flat, High: last, Low: flat, Close: last,
		Volume: 100,
	})
	return out
}

func TestCrossoverBullish(t *testing.T) {
	d := NewEMACrossoverDetector(9, 20)
	// 30 flat bars keep both EMAs pinned at 100, the jump separates them.
	res, err := d.Detect(flatThen(100, 30, 110))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Detected || res.Direction != models.DirectionLong {
		t.Fatalf("expected bullish crossover, got %+v", res)
	}
	// fast = 102 (k=0.2), slow = 100 + 20/21, separation = 22/2120
	if math.Abs(res.Strength-22.0/2120.0) > 1e-9 {
		t.Fatalf("unexpected strength %v", res.Strength)
	}
	if res.FastEMA <= res.SlowEMA {
		t.Fatalf("expected fast above slow, got fast=%v slow=%v", res.FastEMA, res.SlowEMA)
	}
}

func TestCrossoverBearish(t *testing.T) {
	d := NewEMACrossoverDetector(9, 20)
	res, err := d.Detect(flatThen(100, 30, 90))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Detected || res.Direction != models.DirectionShort {
		t.Fatalf("expected bearish crossover, got %+v", res)
	}
	if res.Strength <= 0 || res.Strength > 1 {
		t.Fatalf("strength out of range: %v", res.Strength)
	}
}

func TestCrossoverNone(t *testing.T) {
	d := NewEMACrossoverDetector(9, 20)
	// A steady uptrend keeps the fast EMA above the slow one at the tail.
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, 0, 30)
	for i := 0; i < 30; i++ {
		c := 100 + float64(i)
		candles = append(candles, models.Candle{
			OpenTime: base.Add(time.Duration(i) * 15 * time.Minute),
			Symbol:   "BTCUSDT",
			Open:     c, High: c, Low: c, Close: c,
			Volume: 100,
		})
	}
	res, err := d.Detect(candles)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Detected {
		t.Fatalf("expected no crossover, got %+v", res)
	}
	if res.Direction != models.DirectionNone || res.Strength != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestCrossoverInsufficientData(t *testing.T) {
	d := NewEMACrossoverDetector(9, 20)
	res, err := d.Detect(flatThen(100, 5, 110))
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	if res.Detected {
		t.Fatalf("expected no detection on short series")
	}
}
