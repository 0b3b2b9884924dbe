// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/z5labs/orderflow/kafka"

// publishMetrics holds OTel instruments for tracking order event publishing.
type publishMetrics struct {
	published      metric.Int64Counter
	failures       metric.Int64Counter
	deadLettered   metric.Int64Counter
	fallbackWrites metric.Int64Counter
}

func newPublishMetrics() (*publishMetrics, error) {
	meter := otel.GetMeterProvider().Meter(meterName)

	published, err := meter.Int64Counter(
		"kafka.producer.orders.published",
		metric.WithDescription("Total number of order events acknowledged by the broker"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"kafka.producer.publish.failures",
		metric.WithDescription("Total number of order event publish failures by kind"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	deadLettered, err := meter.Int64Counter(
		"kafka.producer.orders.dead_lettered",
		metric.WithDescription("Total number of order events routed to the dead letter topic"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	fallbackWrites, err := meter.Int64Counter(
		"kafka.producer.orders.fallback_writes",
		metric.WithDescription("Total number of order events appended to the fallback file"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return &publishMetrics{
		published:      published,
		failures:       failures,
		deadLettered:   deadLettered,
		fallbackWrites: fallbackWrites,
	}, nil
}

func (m *publishMetrics) recordPublished(ctx context.Context, topic string) {
	m.published.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

func (m *publishMetrics) recordFailure(ctx context.Context, topic string, kind FailureKind) {
	m.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("kind", kind.String()),
	))
}

func (m *publishMetrics) recordDeadLettered(ctx context.Context, topic string) {
	m.deadLettered.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

func (m *publishMetrics) recordFallbackWrite(ctx context.Context, kind FailureKind) {
	m.fallbackWrites.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind.String())))
}

// consumeMetrics holds OTel instruments for tracking order event consumption.
type consumeMetrics struct {
	processed    metric.Int64Counter
	committed    metric.Int64Counter
	retries      metric.Int64Counter
	deadLettered metric.Int64Counter
	failures     metric.Int64Counter
}

func newConsumeMetrics() (*consumeMetrics, error) {
	meter := otel.GetMeterProvider().Meter(meterName)

	processed, err := meter.Int64Counter(
		"kafka.consumer.messages.processed",
		metric.WithDescription("Total number of Kafka messages processed"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	committed, err := meter.Int64Counter(
		"kafka.consumer.messages.committed",
		metric.WithDescription("Total number of Kafka messages committed"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	retries, err := meter.Int64Counter(
		"kafka.consumer.processing.retries",
		metric.WithDescription("Total number of Kafka message processing retries"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	deadLettered, err := meter.Int64Counter(
		"kafka.consumer.messages.dead_lettered",
		metric.WithDescription("Total number of Kafka messages routed to the dead letter topic"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"kafka.consumer.processing.failures",
		metric.WithDescription("Total number of Kafka message processing failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	return &consumeMetrics{
		processed:    processed,
		committed:    committed,
		retries:      retries,
		deadLettered: deadLettered,
		failures:     failures,
	}, nil
}

func partitionAttrs(topic string, partition int32) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.Int("partition", int(partition)),
	)
}

func (m *consumeMetrics) recordProcessed(ctx context.Context, topic string, partition int32) {
	m.processed.Add(ctx, 1, partitionAttrs(topic, partition))
}

func (m *consumeMetrics) recordCommitted(ctx context.Context, topic string, partition int32) {
	m.committed.Add(ctx, 1, partitionAttrs(topic, partition))
}

func (m *consumeMetrics) recordRetry(ctx context.Context, topic string, partition int32) {
	m.retries.Add(ctx, 1, partitionAttrs(topic, partition))
}

func (m *consumeMetrics) recordDeadLettered(ctx context.Context, topic string, partition int32) {
	m.deadLettered.Add(ctx, 1, partitionAttrs(topic, partition))
}

func (m *consumeMetrics) recordFailure(ctx context.Context, topic string, partition int32) {
	m.failures.Add(ctx, 1, partitionAttrs(topic, partition))
}
