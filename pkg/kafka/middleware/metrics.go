package kafka_middleware

import (
	"context"
	"time"

	"barberline/pkg/kafka"
	"barberline/pkg/metrics"
)

const (
	directionPublish = "publish"
	directionConsume = "consume"
)

func MetricsProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		return observe(directionPublish, ctx, msg, next)
	}
}

func MetricsConsumerMiddleware() kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		return observe(directionConsume, ctx, msg, next)
	}
}

func observe(direction string, ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
	start := time.Now()
	err := next(ctx, msg)

	metrics.KafkaDuration.WithLabelValues(direction, msg.Topic).Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.KafkaMessages.WithLabelValues(direction, msg.Topic, outcome).Inc()
	return err
}
