package events

import (
	"context"
	"fmt"

	"barberline/pkg/kafka"
	kafka_config "barberline/pkg/kafka/config"
	kafka_middleware "barberline/pkg/kafka/middleware"
	"barberline/pkg/logger"
)

type KafkaPublisher struct {
	producer *kafka.Producer
	source   string
}

func NewKafkaPublisher(cfg *kafka_config.Config, source string, log *logger.Logger) (*KafkaPublisher, error) {
	producer, err := kafka.NewProducer(cfg, cfg.EventsTopic, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create events producer: %w", err)
	}
	if cfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(log))
		producer.Use(kafka_middleware.MetricsProducerMiddleware())
	}
	return &KafkaPublisher{producer: producer, source: source}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	key := evt.Key
	if key == "" {
		key = evt.CallID
	}

	msg, err := kafka.NewMessage().
		WithKey(key).
		WithValue(evt.Payload).
		WithEventID("").
		WithEventType(evt.Type).
		WithCallID(evt.CallID).
		WithSource(p.source).
		WithTimestamp(evt.OccurredAt).
		Build()
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
