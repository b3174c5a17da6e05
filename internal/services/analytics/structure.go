package analytics

import (
	"fmt"
	"math"

	"SigPulse/internal/domain/models"
	domsvc "SigPulse/internal/domain/service"
	"SigPulse/internal/services/features"
)

// BOSDetector confirms a break of structure: the latest close pushing beyond
// the rolling extreme of the bars before it.
type BOSDetector struct {
	lookback        int
	volumeThreshold float64
}

func NewBOSDetector(lookback int, volumeThreshold float64) *BOSDetector {
	return &BOSDetector{lookback: lookback, volumeThreshold: volumeThreshold}
}

// Detect checks whether the last close broke the prior rolling high (long)
// or the prior rolling low (short). The rolling window covers lookback bars
// ending at the second-to-last bar, so the breaking bar never raises its own
// level. Strength scales the relative break distance by 10, capped at 1.
func (d *BOSDetector) Detect(candles []models.Candle, direction models.Direction) (models.StructureBreak, error) {
	res := models.StructureBreak{Direction: models.DirectionNone}
	if len(candles) < d.lookback+5 {
		return res, fmt.Errorf("break of structure needs %d candles, got %d: %w", d.lookback+5, len(candles), ErrInsufficientData)
	}

	last := candles[len(candles)-1]
	window := candles[len(candles)-1-d.lookback : len(candles)-1]

	switch direction {
	case models.DirectionLong:
		resistance := features.Max(features.Highs(window))
		res.Level = resistance
		if last.Close > resistance {
			res.Detected = true
			res.Direction = models.DirectionLong
			res.Strength = math.Min((last.Close-resistance)/resistance*10, 1.0)
		}
	case models.DirectionShort:
		support := features.Min(features.Lows(window))
		res.Level = support
		if last.Close < support {
			res.Detected = true
			res.Direction = models.DirectionShort
			res.Strength = math.Min((support-last.Close)/support*10, 1.0)
		}
	}

	if res.Detected {
		avgVolume := features.TailMean(features.Volumes(candles), 20)
		if avgVolume > 0 {
			res.VolumeConfirmed = last.Volume >= avgVolume*d.volumeThreshold
		}
	}
	return res, nil
}

var _ domsvc.StructureDetector = (*BOSDetector)(nil)
