package models

import "time"

// Direction is the trade side a signal points at.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
	DirectionNone  Direction = "none"
)

// SignalKind classifies the outcome of one analysis pass.
type SignalKind string

const (
	SignalNone      SignalKind = "no_signal"
	SignalBase      SignalKind = "base_signal"      // crossover only
	SignalConfirmed SignalKind = "confirmed_signal" // crossover plus structure confirmation
)

// EMACrossover is the trigger detector output: fast EMA crossing the slow EMA.
type EMACrossover struct {
	Detected  bool      `json:"detected"`
	Direction Direction `json:"direction"`
	Strength  float64   `json:"strength"`
	FastEMA   float64   `json:"fast_ema"`
	SlowEMA   float64   `json:"slow_ema"`
}

// StructureBreak is the BOS confirmation output: close beyond the prior
// rolling extreme, optionally backed by elevated volume.
type StructureBreak struct {
	Detected        bool      `json:"detected"`
	Direction       Direction `json:"direction"`
	Strength        float64   `json:"strength"`
	Level           float64   `json:"level"` // resistance broken for long, support for short
	VolumeConfirmed bool      `json:"volume_confirmed"`
}

// CharacterChange is the CHOCH confirmation output: smoothed close-to-close
// momentum flipping sign against its trailing average.
type CharacterChange struct {
	Detected        bool      `json:"detected"`
	Direction       Direction `json:"direction"`
	Strength        float64   `json:"strength"`
	Momentum        float64   `json:"current_momentum"`
	AvgMomentum     float64   `json:"avg_momentum"`
	VolumeConfirmed bool      `json:"volume_confirmed"`
}

// SignalAssessment is the composite verdict for one symbol at one analysis pass.
type SignalAssessment struct {
	Symbol        string          `json:"symbol"`
	Kind          SignalKind      `json:"signal_type"`
	Direction     Direction       `json:"direction"`
	Strength      float64         `json:"strength"`
	Confidence    int             `json:"confidence"`
	Price         float64         `json:"price"`
	Timestamp     time.Time       `json:"timestamp"`
	Crossover     EMACrossover    `json:"ema_crossover"`
	Structure     StructureBreak  `json:"bos"`
	Character     CharacterChange `json:"choch"`
	Confirmations int             `json:"confirmations"`
}
