package telegram

import (
	"strings"
	"testing"
	"time"

	"SigPulse/internal/domain/models"
)

func TestFormatConfirmedSignal(t *testing.T) {
	a := &models.SignalAssessment{
		Symbol:     "BTCUSDT",
		Kind:       models.SignalConfirmed,
		Direction:  models.DirectionLong,
		Strength:   0.84,
		Confidence: 5,
		Price:      50123.4567,
		Timestamp:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Crossover: models.EMACrossover{
			Detected: true,
			FastEMA:  50100,
			SlowEMA:  50000,
		},
		Structure: models.StructureBreak{
			Detected:        true,
			Level:           50050,
			VolumeConfirmed: true,
		},
		Confirmations: 1,
	}

	text, err := FormatSignal(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"🚀 LONG SIGNAL: BTCUSDT",
		"<b>Strength:</b> 84.0%",
		"<b>Confidence:</b> 5/5 🔥",
		"<b>Price:</b> $50123.4567",
		"<b>EMA 9:</b> $50100.0000",
		"<b>EMA 20:</b> $50000.0000",
		"<b>EMA Separation:</b> 0.20%",
		"✅ BOS (Volume Confirmed)",
		"ACTION: LONG - HIGH CONFIDENCE",
		"Generated: 2025-06-01 12:00:00 UTC",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("message missing %q:\n%s", want, text)
		}
	}
}

func TestFormatBaseSignalShort(t *testing.T) {
	a := &models.SignalAssessment{
		Symbol:     "ETHUSDT",
		Kind:       models.SignalBase,
		Direction:  models.DirectionShort,
		Strength:   0.71,
		Confidence: 2,
		Character: models.CharacterChange{
			Detected: true,
			Momentum: -1.2345,
		},
	}

	text, err := FormatSignal(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"⚠️ SHORT ALERT: ETHUSDT",
		"<b>Confidence:</b> 2/5 ⚡",
		"✅ CHOCH ⚠️ (No Volume)",
		"<b>Momentum Change:</b> -1.2345",
		"ACTION: SHORT - LOW CONFIDENCE",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("message missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Price:") {
		t.Fatalf("expected no price line for zero price:\n%s", text)
	}
}

func TestFormatRejectsNoSignal(t *testing.T) {
	a := &models.SignalAssessment{Symbol: "BTCUSDT", Kind: models.SignalNone}
	if _, err := FormatSignal(a); err == nil {
		t.Fatalf("expected no_signal to be rejected")
	}
	if _, err := FormatSignal(nil); err == nil {
		t.Fatalf("expected nil assessment to be rejected")
	}
}
