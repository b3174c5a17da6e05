package repository

import (
	"context"
	"time"

	"SigPulse/internal/domain/models"
	"SigPulse/internal/domain/repository"
	pkgkafka "SigPulse/pkg/kafka"
)

// KafkaAlertPublisher implements AlertPublisher for Kafka.
type KafkaAlertPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaAlertPublisher creates a Kafka alert publisher.
func NewKafkaAlertPublisher(producer *pkgkafka.Producer, topic string) repository.AlertPublisher {
	return &KafkaAlertPublisher{producer: producer, topic: topic}
}

// Publish ships the assessment to the alerts topic in its bus form,
// keyed by symbol so one symbol's alerts stay ordered.
func (p *KafkaAlertPublisher) Publish(ctx context.Context, a *models.SignalAssessment) error {
	event := models.NewAlertEvent(a, time.Now().UTC())
	return p.producer.Publish(ctx, p.topic, []byte(a.Symbol), event)
}

func (p *KafkaAlertPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
