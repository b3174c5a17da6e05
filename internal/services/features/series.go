package features

import (
	"SigPulse/internal/domain/models"
)

// Closes extracts the close price series from candles.
func Closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Highs extracts the high price series from candles.
func Highs(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

// Lows extracts the low price series from candles.
func Lows(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

// Volumes extracts the volume series from candles.
func Volumes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// EMA computes an exponential moving average with smoothing k = 2/(period+1),
// seeded with the first value. The result is aligned with prices.
// Returns nil if prices is empty or period < 1.
func EMA(prices []float64, period int) []float64 {
	if len(prices) == 0 || period < 1 {
		return nil
	}
	k := 2.0 / (float64(period) + 1)
	out := make([]float64, len(prices))
	out[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		out[i] = prices[i]*k + out[i-1]*(1-k)
	}
	return out
}

// Diffs computes first differences d_t = x_t - x_{t-1}.
// It returns a slice of length len(xs)-1, or nil if insufficient data.
func Diffs(xs []float64) []float64 {
	if len(xs) < 2 {
		return nil
	}
	out := make([]float64, 0, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		out = append(out, xs[i]-xs[i-1])
	}
	return out
}

// SMA computes a simple moving average over a rolling window. Only full
// windows are emitted, so the result has length len(xs)-window+1.
// Returns nil if window < 1 or the input is shorter than the window.
func SMA(xs []float64, window int) []float64 {
	if window < 1 || len(xs) < window {
		return nil
	}
	out := make([]float64, 0, len(xs)-window+1)
	sum := 0.0
	for i, x := range xs {
		sum += x
		if i >= window {
			sum -= xs[i-window]
		}
		if i >= window-1 {
			out = append(out, sum/float64(window))
		}
	}
	return out
}

// Max returns the maximum of xs, or 0 for an empty slice.
func Max(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

// Min returns the minimum of xs, or 0 for an empty slice.
func Min(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// TailMean returns the mean of the last n values. When n exceeds the
// length it falls back to the mean of the whole slice.
func TailMean(xs []float64, n int) float64 {
	if n <= 0 || len(xs) == 0 {
		return 0
	}
	if n > len(xs) {
		n = len(xs)
	}
	return Mean(xs[len(xs)-n:])
}
