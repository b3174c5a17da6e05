package service

import (
	"context"

	"SigPulse/internal/domain/models"
)

// AlertChannel delivers trading alerts to one destination.
type AlertChannel interface {
	Name() string
	SendSignal(ctx context.Context, assessment *models.SignalAssessment) error
	SendText(ctx context.Context, message string) error
	Health(ctx context.Context) error
}

// AlertDispatcher fans an assessment out to every notification channel.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, assessment *models.SignalAssessment) (map[string]models.DeliveryResult, error)
}
