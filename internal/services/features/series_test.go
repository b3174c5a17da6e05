package features

import (
	"math"
	"testing"
)

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEMASeeding(t *testing.T) {
	out := EMA([]float64{1, 2, 3}, 3)
	if len(out) != 3 {
		t.Fatalf("expected 3 values, got %d", len(out))
	}
	// k = 2/(3+1) = 0.5
	if !almost(out[0], 1) || !almost(out[1], 1.5) || !almost(out[2], 2.25) {
		t.Fatalf("unexpected ema %v", out)
	}
}

func TestEMAEmpty(t *testing.T) {
	if EMA(nil, 9) != nil {
		t.Fatalf("expected nil for empty input")
	}
	if EMA([]float64{1, 2}, 0) != nil {
		t.Fatalf("expected nil for invalid period")
	}
}

func TestDiffs(t *testing.T) {
	out := Diffs([]float64{1, 3, 2, 6})
	want := []float64{2, -1, 4}
	if len(out) != len(want) {
		t.Fatalf("expected %d diffs, got %d", len(want), len(out))
	}
	for i := range want {
		if !almost(out[i], want[i]) {
			t.Fatalf("diff %d: got %v want %v", i, out[i], want[i])
		}
	}
	if Diffs([]float64{1}) != nil {
		t.Fatalf("expected nil for single value")
	}
}

func TestSMA(t *testing.T) {
	out := SMA([]float64{1, 2, 3, 4}, 2)
	want := []float64{1.5, 2.5, 3.5}
	if len(out) != len(want) {
		t.Fatalf("expected %d values, got %d", len(want), len(out))
	}
	for i := range want {
		if !almost(out[i], want[i]) {
			t.Fatalf("sma %d: got %v want %v", i, out[i], want[i])
		}
	}
	if SMA([]float64{1, 2}, 3) != nil {
		t.Fatalf("expected nil when window exceeds input")
	}
}

func TestExtremes(t *testing.T) {
	xs := []float64{3, 9, 1, 7}
	if !almost(Max(xs), 9) {
		t.Fatalf("unexpected max %v", Max(xs))
	}
	if !almost(Min(xs), 1) {
		t.Fatalf("unexpected min %v", Min(xs))
	}
	if Max(nil) != 0 || Min(nil) != 0 {
		t.Fatalf("expected 0 for empty input")
	}
}

func TestTailMean(t *testing.T) {
	xs := []float64{1, 2, 3, 4}
	if !almost(TailMean(xs, 2), 3.5) {
		t.Fatalf("unexpected tail mean %v", TailMean(xs, 2))
	}
	// n larger than the slice falls back to the full mean
	if !almost(TailMean(xs, 10), 2.5) {
		t.Fatalf("unexpected fallback mean %v", TailMean(xs, 10))
	}
	if TailMean(xs, 0) != 0 {
		t.Fatalf("expected 0 for n=0")
	}
}
