package repository

import (
	"context"

	pkgkafka "SigPulse/pkg/kafka"
	applogger "SigPulse/pkg/logger"
)

// KafkaLogPublisher adapts the Kafka producer to the log collector sink.
type KafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

// NewKafkaLogPublisher creates a log publisher backed by Kafka.
func NewKafkaLogPublisher(producer *pkgkafka.Producer) *KafkaLogPublisher {
	return &KafkaLogPublisher{producer: producer}
}

// PublishMessage sends an aggregated log batch to the given topic.
func (p *KafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

var _ applogger.Publisher = (*KafkaLogPublisher)(nil)
