package analytics

import (
	"math"

	"SigPulse/internal/domain/models"
)

const (
	// confirmationWeight is the share each confirming detector adds.
	confirmationWeight = 0.3
	// volumeBonus scales a contribution when the breakout volume backs it.
	volumeBonus = 1.2
)

// Score combines the crossover base strength with weighted confirmation
// contributions and clamps the total to [0, 1]. Only detected confirmations
// contribute; volume-confirmed ones get a 20% bonus.
func Score(crossover models.EMACrossover, structure models.StructureBreak, character models.CharacterChange) float64 {
	total := crossover.Strength
	if structure.Detected {
		c := structure.Strength * confirmationWeight
		if structure.VolumeConfirmed {
			c *= volumeBonus
		}
		total += c
	}
	if character.Detected {
		c := character.Strength * confirmationWeight
		if character.VolumeConfirmed {
			c *= volumeBonus
		}
		total += c
	}
	return math.Min(math.Max(total, 0.0), 1.0)
}

// Confidence maps signal strength and confirmation count to a 1..5 level.
// Confirmations add at most 2 points and the level never exceeds 5.
func Confidence(strength float64, confirmations int) int {
	var base int
	switch {
	case strength >= 0.9:
		base = 5
	case strength >= 0.8:
		base = 4
	case strength >= 0.7:
		base = 3
	case strength >= 0.6:
		base = 2
	default:
		base = 1
	}
	bonus := confirmations
	if bonus > 2 {
		bonus = 2
	}
	if base+bonus > 5 {
		return 5
	}
	return base + bonus
}
