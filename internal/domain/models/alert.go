package models

import "time"

// Verdict reasons reported by the alert tracker.
const (
	ReasonInvalidSignal        = "invalid_signal_data"
	ReasonInsufficientStrength = "insufficient_strength"
	ReasonCooldown             = "cooldown"
	ReasonNoChange             = "no_change"
	ReasonNewSignal            = "new_signal"
	ReasonSignalUpdate         = "signal_update"
	ReasonDispatchFailed       = "dispatch_failed"
)

// AlertVerdict reports how the tracker disposed of one assessment.
type AlertVerdict struct {
	Processed         bool              `json:"processed"`
	AlertSent         bool              `json:"alert_sent"`
	Reason            string            `json:"reason,omitempty"`
	Assessment        *SignalAssessment `json:"signal_assessment,omitempty"`
	CooldownRemaining int               `json:"cooldown_remaining_seconds,omitempty"`
}

// ActiveSignal is the last alerted state for a symbol.
type ActiveSignal struct {
	Kind          SignalKind `json:"signal_type"`
	Direction     Direction  `json:"direction"`
	Strength      float64    `json:"strength"`
	Confidence    int        `json:"confidence"`
	Price         float64    `json:"price"`
	Confirmations int        `json:"confirmations"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CooldownEntry suppresses repeat alerts for a symbol until EndTime.
type CooldownEntry struct {
	EndTime         time.Time  `json:"end_time"`
	DurationMinutes int        `json:"duration_minutes"`
	Kind            SignalKind `json:"signal_type"`
}

// DeliveryResult is one channel's outcome for a dispatched alert.
type DeliveryResult struct {
	Sent   bool   `json:"sent"`
	Reason string `json:"reason,omitempty"`
}

// HistoryRecord is one archived assessment outcome.
type HistoryRecord struct {
	Timestamp     time.Time                 `json:"timestamp"`
	Symbol        string                    `json:"symbol"`
	Kind          SignalKind                `json:"signal_type"`
	Direction     Direction                 `json:"direction"`
	Strength      float64                   `json:"strength"`
	Confidence    int                       `json:"confidence"`
	Price         float64                   `json:"price"`
	Confirmations int                       `json:"confirmations"`
	Outcome       string                    `json:"outcome"`
	AlertSent     bool                      `json:"alert_sent"`
	Deliveries    map[string]DeliveryResult `json:"notification_results,omitempty"`
}

// AlertEvent is the bus form of a dispatched alert: a flat view of the
// assessment so downstream consumers do not track the internal layout.
type AlertEvent struct {
	Symbol        string     `json:"symbol"`
	Kind          SignalKind `json:"signal_type"`
	Direction     Direction  `json:"direction"`
	Strength      float64    `json:"strength"`
	Confidence    int        `json:"confidence"`
	Price         float64    `json:"price"`
	Confirmations int        `json:"confirmations"`
	Timestamp     time.Time  `json:"timestamp"`  // analysis time
	EmittedAt     time.Time  `json:"emitted_at"` // publish time
}

// NewAlertEvent flattens an assessment into its bus form.
func NewAlertEvent(a *SignalAssessment, emittedAt time.Time) AlertEvent {
	return AlertEvent{
		Symbol:        a.Symbol,
		Kind:          a.Kind,
		Direction:     a.Direction,
		Strength:      a.Strength,
		Confidence:    a.Confidence,
		Price:         a.Price,
		Confirmations: a.Confirmations,
		Timestamp:     a.Timestamp,
		EmittedAt:     emittedAt,
	}
}

// SymbolStatus is the tracker view for one symbol.
type SymbolStatus struct {
	Symbol     string         `json:"symbol"`
	Active     *ActiveSignal  `json:"active_signal"`
	Cooldown   *CooldownEntry `json:"cooldown"`
	InCooldown bool           `json:"in_cooldown"`
}

// TrackerStatus is the tracker view across all symbols.
type TrackerStatus struct {
	Active          map[string]ActiveSignal  `json:"active_signals"`
	Cooldowns       map[string]CooldownEntry `json:"cooldowns"`
	TotalActive     int                      `json:"total_active"`
	TotalInCooldown int                      `json:"total_in_cooldown"`
}
