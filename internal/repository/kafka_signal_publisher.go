package repository

import (
	"context"
	"fmt"

	"VolStack/internal/domain/models"
	pkgkafka "VolStack/pkg/kafka"
)

// KafkaSignalPublisher fans persisted predictions out to a Kafka topic.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

// Publish sends one prediction record keyed by its signal label so
// consumers can partition by signal type.
func (p *KafkaSignalPublisher) Publish(ctx context.Context, rec *models.PredictionRecord) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(rec.Signal), rec); err != nil {
		return fmt.Errorf("publish signal: %w", err)
	}
	return nil
}

func (p *KafkaSignalPublisher) Close() error {
	return p.producer.Close()
}

// NopSignalPublisher is used when Kafka fan-out is disabled.
type NopSignalPublisher struct{}

func (NopSignalPublisher) Publish(context.Context, *models.PredictionRecord) error { return nil }
func (NopSignalPublisher) Close() error                                            { return nil }
