// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package kafka implements the Kafka transport for order events.
//
// It provides a synchronous publisher with circuit breaking and dead letter
// handling, an at-least-once consumer engine with bounded retries, and a
// broker connectivity monitor which gates readiness and the consumer
// lifecycle.
package kafka

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/z5labs/orderflow"
	"github.com/z5labs/orderflow/config"
)

// Header represents a Kafka message header.
type Header struct {
	Key   string
	Value []byte
}

// Message represents a consumed Kafka message.
type Message struct {
	Key       []byte
	Value     []byte
	Headers   []Header
	Timestamp time.Time
	Topic     string
	Partition int32
	Offset    int64
}

// BrokersFromEnv reads Kafka broker addresses from the KAFKA_BROKERS
// environment variable. Brokers should be comma-separated
// (e.g. "localhost:9092,localhost:9093").
func BrokersFromEnv() config.Reader[[]string] {
	return config.Map(
		config.Env("KAFKA_BROKERS"),
		func(ctx context.Context, s string) ([]string, error) {
			return strings.Split(s, ","), nil
		},
	)
}

// GroupIDFromEnv reads the Kafka consumer group ID from the KAFKA_GROUP_ID
// environment variable.
func GroupIDFromEnv() config.Reader[string] {
	return config.Env("KAFKA_GROUP_ID")
}

// TopicFromEnv reads the orders topic name from the ORDERS_TOPIC
// environment variable, defaulting to "orders".
func TopicFromEnv() config.Reader[string] {
	return config.Or(config.Env("ORDERS_TOPIC"), config.ReaderOf("orders"))
}

// DLTTopicFromEnv reads the dead letter topic name from the ORDERS_DLT_TOPIC
// environment variable, defaulting to "orders.dlt".
func DLTTopicFromEnv() config.Reader[string] {
	return config.Or(config.Env("ORDERS_DLT_TOPIC"), config.ReaderOf("orders.dlt"))
}

// SessionTimeoutFromEnv reads the Kafka session timeout from the
// KAFKA_SESSION_TIMEOUT environment variable. The value should be a
// duration string (e.g. "45s", "1m30s").
func SessionTimeoutFromEnv() config.Reader[time.Duration] {
	return config.DurationFromString(config.Env("KAFKA_SESSION_TIMEOUT"))
}

// RebalanceTimeoutFromEnv reads the Kafka rebalance timeout from the
// KAFKA_REBALANCE_TIMEOUT environment variable. The value should be a
// duration string (e.g. "30s", "1m").
func RebalanceTimeoutFromEnv() config.Reader[time.Duration] {
	return config.DurationFromString(config.Env("KAFKA_REBALANCE_TIMEOUT"))
}

// ProduceRequestTimeoutFromEnv reads the per-request produce timeout from
// the KAFKA_PRODUCE_REQUEST_TIMEOUT environment variable, defaulting to 3s.
func ProduceRequestTimeoutFromEnv() config.Reader[time.Duration] {
	return config.DurationFromString(config.Env("KAFKA_PRODUCE_REQUEST_TIMEOUT"))
}

// RecordDeliveryTimeoutFromEnv reads the total record delivery timeout,
// covering all produce retries, from the KAFKA_RECORD_DELIVERY_TIMEOUT
// environment variable, defaulting to 8s.
func RecordDeliveryTimeoutFromEnv() config.Reader[time.Duration] {
	return config.DurationFromString(config.Env("KAFKA_RECORD_DELIVERY_TIMEOUT"))
}

// PublishTimeoutFromEnv reads the synchronous publish deadline from the
// ORDERS_PUBLISH_TIMEOUT environment variable, defaulting to 10s. It bounds
// the caller's entire wait, including any dead letter attempt.
func PublishTimeoutFromEnv() config.Reader[time.Duration] {
	return config.DurationFromString(config.Env("ORDERS_PUBLISH_TIMEOUT"))
}

// ProcessMaxRetriesFromEnv reads how many times a failed record is
// reprocessed before dead lettering from the ORDERS_PROCESS_MAX_RETRIES
// environment variable, defaulting to 3.
func ProcessMaxRetriesFromEnv() config.Reader[int] {
	return config.IntFromString(config.Env("ORDERS_PROCESS_MAX_RETRIES"))
}

// ProcessBackoffInitialFromEnv reads the initial processing retry backoff
// from the ORDERS_PROCESS_BACKOFF_INITIAL environment variable, defaulting
// to 1s.
func ProcessBackoffInitialFromEnv() config.Reader[time.Duration] {
	return config.DurationFromString(config.Env("ORDERS_PROCESS_BACKOFF_INITIAL"))
}

// ProcessBackoffMaxFromEnv reads the processing retry backoff cap from the
// ORDERS_PROCESS_BACKOFF_MAX environment variable, defaulting to 10s.
func ProcessBackoffMaxFromEnv() config.Reader[time.Duration] {
	return config.DurationFromString(config.Env("ORDERS_PROCESS_BACKOFF_MAX"))
}

// ProbeTimeoutFromEnv reads the broker metadata probe deadline from the
// KAFKA_PROBE_TIMEOUT environment variable, defaulting to 3s.
func ProbeTimeoutFromEnv() config.Reader[time.Duration] {
	return config.DurationFromString(config.Env("KAFKA_PROBE_TIMEOUT"))
}

// ProbeIntervalFromEnv reads the cadence between broker probes while
// healthy from the KAFKA_PROBE_INTERVAL environment variable, defaulting
// to 30s.
func ProbeIntervalFromEnv() config.Reader[time.Duration] {
	return config.DurationFromString(config.Env("KAFKA_PROBE_INTERVAL"))
}

func logger() *slog.Logger {
	return orderflow.Logger("github.com/z5labs/orderflow/kafka")
}

// GroupIDAttr returns a slog attribute for the Kafka consumer group ID.
func GroupIDAttr(groupID string) slog.Attr {
	return slog.String("messaging.consumer.group.name", groupID)
}

// TopicAttr returns a slog attribute for the Kafka topic.
func TopicAttr(topic string) slog.Attr {
	return slog.String("messaging.destination.name", topic)
}

// PartitionAttr returns a slog attribute for the Kafka partition.
func PartitionAttr(partition int32) slog.Attr {
	return slog.Int64("messaging.destination.partition.id", int64(partition))
}

// OffsetAttr returns a slog attribute for the Kafka offset.
func OffsetAttr(offset int64) slog.Attr {
	return slog.Int64("messaging.kafka.offset", offset)
}

// KeyAttr returns a slog attribute for the Kafka message key.
func KeyAttr(key []byte) slog.Attr {
	return slog.String("messaging.kafka.message.key", string(key))
}
