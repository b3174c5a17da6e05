package analytics

import (
	"fmt"
	"math"

	"SigPulse/internal/domain/models"
	domsvc "SigPulse/internal/domain/service"
	"SigPulse/internal/services/features"
)

// EMACrossoverDetector flags the fast EMA crossing the slow EMA on closes.
// A crossover is the trigger for every downstream signal.
type EMACrossoverDetector struct {
	fast int
	slow int
}

func NewEMACrossoverDetector(fast, slow int) *EMACrossoverDetector {
	return &EMACrossoverDetector{fast: fast, slow: slow}
}

// Detect compares the last two bars of both EMAs. The series must cover at
// least slow+2 bars so the previous bar has settled EMA values on each side.
// Strength is the relative separation of the EMAs, capped at 1.
func (d *EMACrossoverDetector) Detect(candles []models.Candle) (models.EMACrossover, error) {
	res := models.EMACrossover{Direction: models.DirectionNone}
	if len(candles) < d.slow+2 {
		return res, fmt.Errorf("crossover needs %d candles, got %d: %w", d.slow+2, len(candles), ErrInsufficientData)
	}

	closes := features.Closes(candles)
	fast := features.EMA(closes, d.fast)
	slow := features.EMA(closes, d.slow)

	curFast, prevFast := fast[len(fast)-1], fast[len(fast)-2]
	curSlow, prevSlow := slow[len(slow)-1], slow[len(slow)-2]
	res.FastEMA = curFast
	res.SlowEMA = curSlow

	switch {
	case prevFast <= prevSlow && curFast > curSlow:
		res.Detected = true
		res.Direction = models.DirectionLong
	case prevFast >= prevSlow && curFast < curSlow:
		res.Detected = true
		res.Direction = models.DirectionShort
	default:
		return res, nil
	}

	separation := math.Abs(curFast-curSlow) / curSlow
	res.Strength = math.Min(separation, 1.0)
	return res, nil
}

var _ domsvc.CrossoverDetector = (*EMACrossoverDetector)(nil)
