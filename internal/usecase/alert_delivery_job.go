package usecase

import (
	"context"
	"fmt"

	"SigPulse/internal/domain/models"
	domsvc "SigPulse/internal/domain/service"
	applogger "SigPulse/pkg/logger"
	"SigPulse/pkg/queue"
)

// AlertDeliveryMsgType routes queued retry payloads to AlertDeliveryJob.
const AlertDeliveryMsgType = "alert_delivery"

// AlertDeliveryPayload carries one failed channel delivery for retry.
type AlertDeliveryPayload struct {
	Channel    string                  `json:"channel"`
	Assessment models.SignalAssessment `json:"assessment"`
}

// AlertDeliveryJob re-sends alerts that a channel rejected on the first
// attempt. The queue handles backoff and the dead letter fallback.
type AlertDeliveryJob struct {
	channels map[string]domsvc.AlertChannel
	logger   *applogger.Logger
}

func NewAlertDeliveryJob(channels []domsvc.AlertChannel, logger *applogger.Logger) *AlertDeliveryJob {
	byName := make(map[string]domsvc.AlertChannel, len(channels))
	for _, ch := range channels {
		byName[ch.Name()] = ch
	}
	return &AlertDeliveryJob{channels: byName, logger: logger}
}

func (j *AlertDeliveryJob) Name() string { return "alert-delivery" }

func (j *AlertDeliveryJob) Type() string { return AlertDeliveryMsgType }

func (j *AlertDeliveryJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[AlertDeliveryPayload](payload)
	if err != nil {
		return fmt.Errorf("parse delivery payload: %w", err)
	}

	ch, ok := j.channels[p.Channel]
	if !ok {
		return fmt.Errorf("unknown channel %q", p.Channel)
	}

	if err := ch.SendSignal(ctx, &p.Assessment); err != nil {
		return fmt.Errorf("redeliver %s alert for %s: %w", p.Channel, p.Assessment.Symbol, err)
	}

	if j.logger != nil {
		j.logger.Info("alert redelivered",
			applogger.String("channel", p.Channel),
			applogger.String("symbol", p.Assessment.Symbol),
		)
	}
	return nil
}

var _ queue.Job = (*AlertDeliveryJob)(nil)
