package telegram

import (
	"fmt"
	"math"
	"strings"

	"SigPulse/internal/domain/models"
)

// FormatSignal renders an assessment as the HTML alert message. Only base
// and confirmed signals are sendable.
func FormatSignal(a *models.SignalAssessment) (string, error) {
	if a == nil {
		return "", fmt.Errorf("nil assessment")
	}

	var title, priorityEmoji string
	switch a.Kind {
	case models.SignalConfirmed:
		emoji := "🚀"
		if a.Direction == models.DirectionShort {
			emoji = "📉"
		}
		title = fmt.Sprintf("<b>%s %s SIGNAL: %s</b>", emoji, upperDirection(a.Direction), a.Symbol)
		priorityEmoji = "🔥"
	case models.SignalBase:
		title = fmt.Sprintf("<b>⚠️ %s ALERT: %s</b>", upperDirection(a.Direction), a.Symbol)
		priorityEmoji = "⚡"
	default:
		return "", fmt.Errorf("signal type %q is not alertable", a.Kind)
	}

	parts := []string{title}
	parts = append(parts, fmt.Sprintf("<b>Strength:</b> %.1f%%", a.Strength*100))
	parts = append(parts, fmt.Sprintf("<b>Confidence:</b> %d/5 %s", a.Confidence, priorityEmoji))
	if a.Price > 0 {
		parts = append(parts, fmt.Sprintf("<b>Price:</b> $%.4f", a.Price))
	}

	if a.Crossover.FastEMA > 0 && a.Crossover.SlowEMA > 0 {
		parts = append(parts, fmt.Sprintf("<b>EMA 9:</b> $%.4f", a.Crossover.FastEMA))
		parts = append(parts, fmt.Sprintf("<b>EMA 20:</b> $%.4f", a.Crossover.SlowEMA))
		sep := math.Abs(a.Crossover.FastEMA-a.Crossover.SlowEMA) / a.Crossover.SlowEMA * 100
		parts = append(parts, fmt.Sprintf("<b>EMA Separation:</b> %.2f%%", sep))
	}

	var confirmations []string
	if a.Structure.Detected {
		info := "✅ BOS"
		if a.Structure.VolumeConfirmed {
			info += " (Volume Confirmed)"
		} else {
			info += " ⚠️ (No Volume)"
		}
		confirmations = append(confirmations, info)
		if a.Structure.Level > 0 {
			parts = append(parts, fmt.Sprintf("<b>BOS Level:</b> $%.4f", a.Structure.Level))
		}
	}
	if a.Character.Detected {
		info := "✅ CHOCH"
		if a.Character.VolumeConfirmed {
			info += " (Volume Confirmed)"
		} else {
			info += " ⚠️ (No Volume)"
		}
		confirmations = append(confirmations, info)
		if a.Character.Momentum != 0 {
			parts = append(parts, fmt.Sprintf("<b>Momentum Change:</b> %.4f", a.Character.Momentum))
		}
	}
	if len(confirmations) > 0 {
		parts = append(parts, fmt.Sprintf("<b>Confirmations:</b> %s", strings.Join(confirmations, " | ")))
	}

	parts = append(parts, "")
	switch {
	case a.Confidence >= 4:
		parts = append(parts, fmt.Sprintf("💡 <b>ACTION: %s - HIGH CONFIDENCE</b> 🚀", upperDirection(a.Direction)))
	case a.Confidence >= 3:
		parts = append(parts, fmt.Sprintf("💡 <b>ACTION: %s - MEDIUM CONFIDENCE</b> ⚡", upperDirection(a.Direction)))
	default:
		parts = append(parts, fmt.Sprintf("💡 <b>ACTION: %s - LOW CONFIDENCE</b> ⚠️", upperDirection(a.Direction)))
	}

	if !a.Timestamp.IsZero() {
		parts = append(parts, fmt.Sprintf("<i>Generated: %s</i>", a.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC")))
	}

	return strings.Join(parts, "\n"), nil
}

func upperDirection(d models.Direction) string {
	return strings.ToUpper(string(d))
}
