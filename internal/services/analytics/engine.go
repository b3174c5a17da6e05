package analytics

import (
	"errors"
	"fmt"

	"SigPulse/internal/domain/models"
	domsvc "SigPulse/internal/domain/service"
)

// Engine runs the full detection pipeline for one symbol's candle series.
// The crossover detector is the trigger; BOS and CHOCH confirm it and the
// combined score decides the signal kind.
type Engine struct {
	crossover   domsvc.CrossoverDetector
	structure   domsvc.StructureDetector
	character   domsvc.CharacterDetector
	minStrength float64
}

func NewEngine(crossover domsvc.CrossoverDetector, structure domsvc.StructureDetector, character domsvc.CharacterDetector, minStrength float64) *Engine {
	return &Engine{crossover: crossover, structure: structure, character: character, minStrength: minStrength}
}

// Analyze assesses one symbol. A series too short for a detector downgrades
// that detector to a no-detection result; a missing crossover short-circuits
// to a no_signal assessment without consulting the confirmations.
func (e *Engine) Analyze(symbol string, candles []models.Candle) (models.SignalAssessment, error) {
	if len(candles) == 0 {
		return models.SignalAssessment{}, fmt.Errorf("empty series for %s: %w", symbol, ErrInvalidInput)
	}

	last := candles[len(candles)-1]
	assessment := models.SignalAssessment{
		Symbol:    symbol,
		Kind:      models.SignalNone,
		Direction: models.DirectionNone,
		Price:     last.Close,
		Timestamp: last.OpenTime,
	}

	crossover, err := e.crossover.Detect(candles)
	if err != nil && !errors.Is(err, ErrInsufficientData) {
		return assessment, fmt.Errorf("crossover: %w", err)
	}
	assessment.Crossover = crossover
	if !crossover.Detected {
		return assessment, nil
	}

	structure, err := e.structure.Detect(candles, crossover.Direction)
	if err != nil && !errors.Is(err, ErrInsufficientData) {
		return assessment, fmt.Errorf("structure: %w", err)
	}
	character, err := e.character.Detect(candles, crossover.Direction)
	if err != nil && !errors.Is(err, ErrInsufficientData) {
		return assessment, fmt.Errorf("character: %w", err)
	}
	assessment.Structure = structure
	assessment.Character = character

	confirmations := 0
	if structure.Detected {
		confirmations++
	}
	if character.Detected {
		confirmations++
	}

	strength := Score(crossover, structure, character)
	assessment.Direction = crossover.Direction
	assessment.Strength = strength
	assessment.Confidence = Confidence(strength, confirmations)
	assessment.Confirmations = confirmations

	if strength >= e.minStrength && confirmations >= 1 {
		assessment.Kind = models.SignalConfirmed
	} else {
		assessment.Kind = models.SignalBase
	}
	return assessment, nil
}

var _ domsvc.MarketAnalyzer = (*Engine)(nil)
