package analytics

import (
	"errors"
	"testing"

	"SigPulse/internal/domain/models"
)

type stubCrossover struct {
	res models.EMACrossover
	err error
}

func (s stubCrossover) Detect([]models.Candle) (models.EMACrossover, error) { return s.res, s.err }

type stubStructure struct {
	res   models.StructureBreak
	err   error
	calls int
}

func (s *stubStructure) Detect([]models.Candle, models.Direction) (models.StructureBreak, error) {
	s.calls++
	return s.res, s.err
}

type stubCharacter struct {
	res   models.CharacterChange
	err   error
	calls int
}

func (s *stubCharacter) Detect([]models.Candle, models.Direction) (models.CharacterChange, error) {
	s.calls++
	return s.res, s.err
}

func someCandles() []models.Candle {
	return candlesFrom([]float64{100, 101, 102, 103, 104}, 100)
}

func TestAnalyzeBaseSignal(t *testing.T) {
	e := NewEngine(
		stubCrossover{res: models.EMACrossover{Detected: true, Direction: models.DirectionLong, Strength: 0.65}},
		&stubStructure{},
		&stubCharacter{},
		0.7,
	)
	got, err := e.Analyze("BTCUSDT", someCandles())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != models.SignalBase {
		t.Fatalf("expected base_signal, got %s", got.Kind)
	}
	if got.Direction != models.DirectionLong || got.Confirmations != 0 {
		t.Fatalf("unexpected assessment: %+v", got)
	}
	if got.Confidence != 2 {
		t.Fatalf("expected confidence 2 for strength 0.65, got %d", got.Confidence)
	}
	if got.Price != 104 {
		t.Fatalf("expected last close as price, got %v", got.Price)
	}
}

func TestAnalyzeConfirmedSignal(t *testing.T) {
	e := NewEngine(
		stubCrossover{res: models.EMACrossover{Detected: true, Direction: models.DirectionLong, Strength: 0.62}},
		&stubStructure{res: models.StructureBreak{Detected: true, Direction: models.DirectionLong, Strength: 0.5, VolumeConfirmed: true}},
		&stubCharacter{},
		0.7,
	)
	got, err := e.Analyze("BTCUSDT", someCandles())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 0.62 + 0.5*0.3*1.2 = 0.80
	if got.Kind != models.SignalConfirmed {
		t.Fatalf("expected confirmed_signal, got %s (strength %v)", got.Kind, got.Strength)
	}
	if got.Confirmations != 1 {
		t.Fatalf("expected 1 confirmation, got %d", got.Confirmations)
	}
	if got.Confidence != 5 {
		t.Fatalf("expected confidence 5 for strength 0.8 with a confirmation, got %d", got.Confidence)
	}
}

func TestAnalyzeNoCrossoverShortCircuits(t *testing.T) {
	structure := &stubStructure{}
	character := &stubCharacter{}
	e := NewEngine(stubCrossover{}, structure, character, 0.7)

	got, err := e.Analyze("BTCUSDT", someCandles())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != models.SignalNone || got.Direction != models.DirectionNone {
		t.Fatalf("expected no_signal, got %+v", got)
	}
	if got.Strength != 0 || got.Confidence != 0 {
		t.Fatalf("no_signal must carry zero strength and confidence: %+v", got)
	}
	if structure.calls != 0 || character.calls != 0 {
		t.Fatalf("confirmations must not run without a crossover")
	}
}

func TestAnalyzeInsufficientDataDowngrades(t *testing.T) {
	e := NewEngine(
		stubCrossover{res: models.EMACrossover{Detected: true, Direction: models.DirectionShort, Strength: 0.75}},
		&stubStructure{err: ErrInsufficientData},
		&stubCharacter{err: ErrInsufficientData},
		0.7,
	)
	got, err := e.Analyze("BTCUSDT", someCandles())
	if err != nil {
		t.Fatalf("insufficient confirmation data must not fail the pass: %v", err)
	}
	if got.Kind != models.SignalBase {
		t.Fatalf("expected base_signal fallback, got %s", got.Kind)
	}
	if got.Confirmations != 0 {
		t.Fatalf("expected no confirmations, got %d", got.Confirmations)
	}
}

func TestAnalyzeEmptySeries(t *testing.T) {
	e := NewEngine(stubCrossover{}, &stubStructure{}, &stubCharacter{}, 0.7)
	_, err := e.Analyze("BTCUSDT", nil)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAnalyzeEndToEnd(t *testing.T) {
	// Real detectors against a flat series with a final jump: the crossover
	// fires long, but the tiny separation keeps it a base signal.
	e := NewEngine(
		NewEMACrossoverDetector(9, 20),
		NewBOSDetector(5, 1.5),
		NewCHOCHDetector(10, 1.5),
		0.7,
	)
	got, err := e.Analyze("BTCUSDT", flatThen(100, 40, 110))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Direction != models.DirectionLong {
		t.Fatalf("expected long assessment, got %+v", got)
	}
	if got.Kind == models.SignalNone {
		t.Fatalf("expected a signal, got no_signal")
	}
	if got.Strength < 0 || got.Strength > 1 {
		t.Fatalf("strength out of range: %v", got.Strength)
	}
	if got.Confidence < 1 || got.Confidence > 5 {
		t.Fatalf("confidence out of range: %d", got.Confidence)
	}
}
