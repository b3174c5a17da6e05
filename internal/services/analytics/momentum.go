package analytics

import (
	"fmt"
	"math"

	"SigPulse/internal/domain/models"
	domsvc "SigPulse/internal/domain/service"
	"SigPulse/internal/services/features"
)

// momentumWindow smooths close-to-close momentum before the reversal check.
const momentumWindow = 5

// CHOCHDetector confirms a change of character: smoothed momentum flipping
// sign against its trailing average.
type CHOCHDetector struct {
	lookback        int
	volumeThreshold float64
}

func NewCHOCHDetector(lookback int, volumeThreshold float64) *CHOCHDetector {
	return &CHOCHDetector{lookback: lookback, volumeThreshold: volumeThreshold}
}

// Detect smooths close-to-close differences with a 5-bar SMA, then compares
// the latest value against the mean of the trailing lookback values. A long
// change of character needs positive momentum against a non-positive average,
// a short one the mirror image. A zero average yields zero strength.
func (d *CHOCHDetector) Detect(candles []models.Candle, direction models.Direction) (models.CharacterChange, error) {
	res := models.CharacterChange{Direction: models.DirectionNone}
	if len(candles) < d.lookback+10 {
		return res, fmt.Errorf("change of character needs %d candles, got %d: %w", d.lookback+10, len(candles), ErrInsufficientData)
	}

	momentum := features.SMA(features.Diffs(features.Closes(candles)), momentumWindow)
	recent := momentum[len(momentum)-d.lookback:]
	current := recent[len(recent)-1]
	avg := features.Mean(recent)
	res.Momentum = current
	res.AvgMomentum = avg

	switch direction {
	case models.DirectionLong:
		if current > 0 && avg <= 0 {
			res.Detected = true
			res.Direction = models.DirectionLong
			if avg != 0 {
				res.Strength = math.Min((current-avg)/math.Abs(avg), 1.0)
			}
		}
	case models.DirectionShort:
		if current < 0 && avg >= 0 {
			res.Detected = true
			res.Direction = models.DirectionShort
			if avg != 0 {
				res.Strength = math.Min((avg-current)/math.Abs(avg), 1.0)
			}
		}
	}

	if res.Detected {
		last := candles[len(candles)-1]
		avgVolume := features.TailMean(features.Volumes(candles), 20)
		res.VolumeConfirmed = last.Volume >= avgVolume*d.volumeThreshold
	}
	return res, nil
}

var _ domsvc.CharacterDetector = (*CHOCHDetector)(nil)
