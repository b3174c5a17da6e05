package service

import (
	"SigPulse/internal/domain/models"
)

// CrossoverDetector flags fast/slow EMA crossovers on a candle series.
type CrossoverDetector interface {
	Detect(candles []models.Candle) (models.EMACrossover, error)
}

// StructureDetector confirms a break of structure in the given direction.
type StructureDetector interface {
	Detect(candles []models.Candle, direction models.Direction) (models.StructureBreak, error)
}

// CharacterDetector confirms a change of character in the given direction.
type CharacterDetector interface {
	Detect(candles []models.Candle, direction models.Direction) (models.CharacterChange, error)
}

// MarketAnalyzer produces a composite assessment for one symbol's series.
type MarketAnalyzer interface {
	Analyze(symbol string, candles []models.Candle) (models.SignalAssessment, error)
}
