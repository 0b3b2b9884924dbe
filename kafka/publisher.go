// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/z5labs/orderflow/config"
	"github.com/z5labs/orderflow/order"

	"github.com/sony/gobreaker"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"github.com/twmb/franz-go/plugin/kslog"
	"github.com/z5labs/orderflow"
	"go.opentelemetry.io/otel"
)

// Default timeout budget. The ordering per-request < delivery < publish is
// what makes a publish failure definitive: by the time the caller's wait
// expires, the client has already given up delivering the record.
const (
	// defaultProduceRequestTimeout bounds a single produce request round
	// trip.
	defaultProduceRequestTimeout = 3 * time.Second

	// defaultRecordDeliveryTimeout bounds a record's total time in the
	// producer, including retries across produce requests.
	defaultRecordDeliveryTimeout = 8 * time.Second

	// defaultPublishTimeout bounds the entire Publish call, including the
	// dead letter attempt after a primary failure.
	defaultPublishTimeout = 10 * time.Second
)

// PublishError reports a failed publish along with how the event was
// preserved for later recovery.
type PublishError struct {
	// Kind categorizes the underlying failure.
	Kind FailureKind

	// DeadLettered is true when the event was written to the dead
	// letter topic.
	DeadLettered bool

	// FellBack is true when the event was appended to the fallback file.
	FellBack bool

	err error
}

// Error implements the [error] interface.
func (e *PublishError) Error() string {
	return fmt.Sprintf("kafka: failed to publish order event (%s): %s", e.Kind, e.err)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e *PublishError) Unwrap() error {
	return e.err
}

type syncProducer interface {
	ProduceSync(context.Context, ...*kgo.Record) kgo.ProduceResults
}

// PublisherConfig holds configuration readers for a [Publisher].
type PublisherConfig struct {
	Brokers      config.Reader[[]string]
	Topic        config.Reader[string]
	DLTTopic     config.Reader[string]
	FallbackPath config.Reader[string]

	ProduceRequestTimeout config.Reader[time.Duration]
	RecordDeliveryTimeout config.Reader[time.Duration]
	PublishTimeout        config.Reader[time.Duration]
}

// Publisher synchronously publishes order events to Kafka.
//
// Every publish waits for acknowledgment from all in-sync replicas with at
// most one in-flight request per broker, so broker side ordering matches
// publish order. Failed publishes are routed to the dead letter topic and,
// failing that, to the fallback file, so no accepted order event is ever
// silently dropped.
type Publisher struct {
	log      *slog.Logger
	client   syncProducer
	breaker  *gobreaker.CircuitBreaker
	fallback *FallbackWriter
	topic    string
	dltTopic string
	metrics  *publishMetrics

	publishTimeout  time.Duration
	deliveryTimeout time.Duration

	close func()
}

// NewPublisher initializes a [Publisher] from the given configuration.
func NewPublisher(ctx context.Context, cfg PublisherConfig) (*Publisher, error) {
	brokers := config.Must(ctx, cfg.Brokers)
	topic := config.MustOr(ctx, "orders", cfg.Topic)
	dltTopic := config.MustOr(ctx, "orders.dlt", cfg.DLTTopic)
	fallbackPath := config.MustOr(ctx, "orders-failed.log", cfg.FallbackPath)
	produceRequestTimeout := config.MustOr(ctx, defaultProduceRequestTimeout, cfg.ProduceRequestTimeout)
	recordDeliveryTimeout := config.MustOr(ctx, defaultRecordDeliveryTimeout, cfg.RecordDeliveryTimeout)
	publishTimeout := config.MustOr(ctx, defaultPublishTimeout, cfg.PublishTimeout)

	client, err := kgo.NewClient(
		kgo.WithLogger(kslog.New(orderflow.Logger("github.com/twmb/franz-go/pkg/kgo"))),
		kgo.WithHooks(
			kotel.NewTracer(
				kotel.TracerProvider(otel.GetTracerProvider()),
				kotel.TracerPropagator(otel.GetTextMapPropagator()),
				kotel.LinkSpans(),
			),
			kotel.NewMeter(
				kotel.MeterProvider(otel.GetMeterProvider()),
				kotel.WithMergedConnectsMeter(),
			),
		),
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.MaxProduceRequestsInflightPerBroker(1),
		kgo.ProduceRequestTimeout(produceRequestTimeout),
		kgo.RecordDeliveryTimeout(recordDeliveryTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka: failed to create producer client: %w", err)
	}

	fallback, err := NewFallbackWriter(fallbackPath)
	if err != nil {
		client.Close()
		return nil, err
	}

	metrics, err := newPublishMetrics()
	if err != nil {
		client.Close()
		return nil, err
	}

	log := logger().With(TopicAttr(topic))
	return &Publisher{
		log:             log,
		client:          client,
		breaker:         newPublishBreaker("orders-publish", log),
		fallback:        fallback,
		topic:           topic,
		dltTopic:        dltTopic,
		metrics:         metrics,
		publishTimeout:  publishTimeout,
		deliveryTimeout: recordDeliveryTimeout,
		close:           client.Close,
	}, nil
}

// Publish writes the order event to the orders topic and waits for broker
// acknowledgment.
//
// A nil return guarantees the event is durably stored on the broker. On
// failure the event is routed to the dead letter topic, or appended to the
// fallback file if the dead letter publish also fails, and a [*PublishError]
// describing the outcome is returned. A [FailureCircuitOpen] failure never
// attempts the dead letter topic since the broker is already known to be
// unreachable.
func (p *Publisher) Publish(ctx context.Context, o order.Order) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return &PublishError{Kind: FailureUnexpected, err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(o.ID),
		Value: payload,
	}

	_, err = p.breaker.Execute(func() (any, error) {
		return nil, p.client.ProduceSync(ctx, record).FirstErr()
	})
	if err == nil {
		p.metrics.recordPublished(ctx, p.topic)
		p.log.InfoContext(
			ctx,
			"published order event",
			KeyAttr(record.Key),
			slog.String("order.status", string(o.Status)),
		)
		return nil
	}

	kind := Classify(err)
	p.metrics.recordFailure(ctx, p.topic, kind)
	p.log.ErrorContext(
		ctx,
		"failed to publish order event",
		KeyAttr(record.Key),
		slog.String("failure.kind", kind.String()),
		slog.Any("error", err),
	)

	pubErr := &PublishError{Kind: kind, err: err}
	if kind == FailureCircuitOpen {
		// The breaker rejected the call locally so the dead letter
		// topic is just as unreachable as the orders topic.
		p.writeFallback(ctx, kind, o.ID, payload)
		pubErr.FellBack = true
		return pubErr
	}

	dltErr := p.deadLetter(ctx, record, kind, err)
	if dltErr == nil {
		pubErr.DeadLettered = true
		return pubErr
	}

	p.log.ErrorContext(
		ctx,
		"failed to publish order event to dead letter topic",
		TopicAttr(p.dltTopic),
		KeyAttr(record.Key),
		slog.Any("error", dltErr),
	)
	p.writeFallback(ctx, kind, o.ID, payload)
	pubErr.FellBack = true
	return pubErr
}

func (p *Publisher) deadLetter(ctx context.Context, record *kgo.Record, kind FailureKind, cause error) error {
	// The dead letter attempt spends whatever is left of the caller's
	// synchronous publish budget; it never extends the caller's wait.
	ctx, cancel := context.WithTimeout(ctx, p.deliveryTimeout)
	defer cancel()

	headers := []kgo.RecordHeader{
		{Key: HeaderOriginalTopic, Value: []byte(record.Topic)},
	}
	headers = append(headers, failureHeaders(kind.String(), cause, time.Now())...)

	dltRecord := &kgo.Record{
		Topic:   p.dltTopic,
		Key:     record.Key,
		Value:   record.Value,
		Headers: headers,
	}

	err := p.client.ProduceSync(ctx, dltRecord).FirstErr()
	if err != nil {
		return err
	}

	p.metrics.recordDeadLettered(ctx, p.dltTopic)
	return nil
}

func (p *Publisher) writeFallback(ctx context.Context, kind FailureKind, orderID string, payload []byte) {
	err := p.fallback.Write(kind, orderID, payload)
	if err != nil {
		p.log.ErrorContext(
			ctx,
			"failed to append order event to fallback file",
			slog.String("order.id", orderID),
			slog.Any("error", err),
		)
		return
	}
	p.metrics.recordFallbackWrite(ctx, kind)
}

// Close releases the underlying Kafka client and fallback file.
func (p *Publisher) Close() error {
	if p.close != nil {
		p.close()
	}
	return p.fallback.Close()
}
