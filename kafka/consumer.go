// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/z5labs/orderflow"
	"github.com/z5labs/orderflow/config"
	"github.com/z5labs/orderflow/queue"

	"github.com/cenkalti/backoff/v4"
	"github.com/sourcegraph/conc/pool"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"github.com/twmb/franz-go/plugin/kslog"
	"go.opentelemetry.io/otel"
)

const (
	// defaultProcessMaxRetries bounds how many times a failed record is
	// reprocessed before it is dead lettered.
	defaultProcessMaxRetries = 3

	defaultProcessBackoffInitial = 1 * time.Second
	defaultProcessBackoffMax     = 10 * time.Second
)

// Dead letter exception classes written by the consumer engine.
const (
	// processingFailedClass marks records which kept failing after
	// every retry was exhausted.
	processingFailedClass = "PROCESSING_FAILED"

	// unprocessableClass marks records which can never succeed, such
	// as malformed payloads.
	unprocessableClass = "UNPROCESSABLE"
)

type unretryableError struct {
	err error
}

// Unretryable marks err as a permanent processing failure. The consumer
// engine dead letters the record immediately instead of retrying it.
func Unretryable(err error) error {
	if err == nil {
		return nil
	}
	return unretryableError{err: err}
}

// Error implements the [error] interface.
func (e unretryableError) Error() string {
	return e.err.Error()
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e unretryableError) Unwrap() error {
	return e.err
}

// IsUnretryable reports whether err was marked with [Unretryable].
func IsUnretryable(err error) bool {
	var ue unretryableError
	return errors.As(err, &ue)
}

// recordClient is the subset of [kgo.Client] the consumer engine relies on
// for committing offsets and dead lettering records.
type recordClient interface {
	CommitRecords(context.Context, ...*kgo.Record) error
	ProduceSync(context.Context, ...*kgo.Record) kgo.ProduceResults
}

// EngineConfig holds configuration readers for an [Engine].
type EngineConfig struct {
	Brokers          config.Reader[[]string]
	GroupID          config.Reader[string]
	Topic            config.Reader[string]
	DLTTopic         config.Reader[string]
	SessionTimeout   config.Reader[time.Duration]
	RebalanceTimeout config.Reader[time.Duration]

	ProcessMaxRetries     config.Reader[int]
	ProcessBackoffInitial config.Reader[time.Duration]
	ProcessBackoffMax     config.Reader[time.Duration]
}

type engineState int

const (
	stateStopped engineState = iota
	stateRunning
	stateStopping
)

// Engine consumes order events from the orders topic with at-least-once
// semantics.
//
// Offsets are committed manually, one record at a time, and only after the
// processor reports a definitive outcome: the event was applied, it was
// deliberately skipped, or it was dead lettered. Records on the same
// partition are processed strictly in offset order; separate partitions
// are processed concurrently.
//
// Engine implements [Listener] so a [ConnectivityMonitor] can own its
// lifecycle: the poll loop starts when the broker becomes reachable and
// stops when it does not.
type Engine struct {
	log       *slog.Logger
	brokers   []string
	groupID   string
	topic     string
	dltTopic  string
	processor queue.Processor[Message]

	sessionTimeout   time.Duration
	rebalanceTimeout time.Duration

	tracer     *kotel.Tracer
	metrics    *consumeMetrics
	maxRetries uint64
	newBackoff func() backoff.BackOff

	mu     sync.Mutex
	state  engineState
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine initializes an [Engine] from the given configuration.
func NewEngine(ctx context.Context, cfg EngineConfig, processor queue.Processor[Message]) (*Engine, error) {
	brokers := config.Must(ctx, cfg.Brokers)
	groupID := config.Must(ctx, cfg.GroupID)
	topic := config.MustOr(ctx, "orders", cfg.Topic)
	dltTopic := config.MustOr(ctx, "orders.dlt", cfg.DLTTopic)
	sessionTimeout := config.MustOr(ctx, 45*time.Second, cfg.SessionTimeout)
	rebalanceTimeout := config.MustOr(ctx, 30*time.Second, cfg.RebalanceTimeout)
	maxRetries := config.MustOr(ctx, defaultProcessMaxRetries, cfg.ProcessMaxRetries)
	backoffInitial := config.MustOr(ctx, defaultProcessBackoffInitial, cfg.ProcessBackoffInitial)
	backoffMax := config.MustOr(ctx, defaultProcessBackoffMax, cfg.ProcessBackoffMax)

	metrics, err := newConsumeMetrics()
	if err != nil {
		return nil, err
	}

	return &Engine{
		log:       logger().With(GroupIDAttr(groupID), TopicAttr(topic)),
		brokers:   brokers,
		groupID:   groupID,
		topic:     topic,
		dltTopic:  dltTopic,
		processor: processor,
		tracer: kotel.NewTracer(
			kotel.TracerProvider(otel.GetTracerProvider()),
			kotel.TracerPropagator(otel.GetTextMapPropagator()),
			kotel.LinkSpans(),
			kotel.ConsumerGroup(groupID),
		),
		sessionTimeout:   sessionTimeout,
		rebalanceTimeout: rebalanceTimeout,
		metrics:          metrics,
		maxRetries:       uint64(maxRetries),
		newBackoff: func() backoff.BackOff {
			return newProcessBackoff(backoffInitial, backoffMax)
		},
	}, nil
}

func newProcessBackoff(initial, max time.Duration) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initial
	bo.Multiplier = 2
	bo.MaxInterval = max
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	return bo
}

// OnConnected implements the [Listener] interface.
func (e *Engine) OnConnected(ctx context.Context) {
	e.Start(ctx)
}

// OnDisconnected implements the [Listener] interface.
func (e *Engine) OnDisconnected(ctx context.Context) {
	e.Stop()
}

// Start launches the poll loop if it is not already running.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != stateStopped {
		return
	}
	e.state = stateRunning

	// The poll loop must outlive the caller's context so it keeps
	// consuming after the notifying probe returns.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel

	done := make(chan struct{})
	e.done = done

	go func() {
		defer close(done)

		err := e.consume(runCtx)
		if err != nil {
			e.log.ErrorContext(runCtx, "consumer engine exited", slog.Any("error", err))
		}

		e.mu.Lock()
		if e.state == stateRunning {
			e.state = stateStopped
		}
		e.mu.Unlock()
	}()

	e.log.InfoContext(ctx, "consumer engine started")
}

// Stop cancels the poll loop and blocks until in-flight records reach a
// definitive outcome or abandon processing.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state != stateRunning {
		e.mu.Unlock()
		return
	}
	e.state = stateStopping
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()

	cancel()
	<-done

	e.mu.Lock()
	e.state = stateStopped
	e.mu.Unlock()

	e.log.Info("consumer engine stopped")
}

type topicPartition struct {
	topic     string
	partition int32
}

// partitionSet tracks the record channel feeding each assigned partition's
// worker. Rebalance callbacks run concurrently with the fetch loop, so
// access is serialized.
type partitionSet struct {
	mu       sync.Mutex
	channels map[topicPartition]chan []*kgo.Record
}

func newPartitionSet() *partitionSet {
	return &partitionSet{
		channels: make(map[topicPartition]chan []*kgo.Record),
	}
}

func (s *partitionSet) get(tp topicPartition) (chan []*kgo.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, exists := s.channels[tp]
	return ch, exists
}

func (s *partitionSet) add(tp topicPartition) chan []*kgo.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan []*kgo.Record, 1)
	s.channels[tp] = ch
	return ch
}

func (s *partitionSet) remove(tp topicPartition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, exists := s.channels[tp]
	if !exists {
		return
	}
	close(ch)
	delete(s.channels, tp)
}

func (s *partitionSet) removeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for tp, ch := range s.channels {
		close(ch)
		delete(s.channels, tp)
	}
}

func (e *Engine) consume(ctx context.Context) error {
	partitions := newPartitionSet()

	onRevoked := func(_ context.Context, _ *kgo.Client, revoked map[string][]int32) {
		for topic, parts := range revoked {
			for _, partition := range parts {
				partitions.remove(topicPartition{topic: topic, partition: partition})
			}
		}
	}

	client, err := kgo.NewClient(
		kgo.WithLogger(kslog.New(orderflow.Logger("github.com/twmb/franz-go/pkg/kgo"))),
		kgo.WithHooks(
			e.tracer,
			kotel.NewMeter(
				kotel.MeterProvider(otel.GetMeterProvider()),
				kotel.WithMergedConnectsMeter(),
			),
		),
		kgo.SeedBrokers(e.brokers...),
		kgo.ConsumerGroup(e.groupID),
		kgo.ConsumeTopics(e.topic),
		kgo.Balancers(kgo.CooperativeStickyBalancer()),
		kgo.SessionTimeout(e.sessionTimeout),
		kgo.RebalanceTimeout(e.rebalanceTimeout),
		kgo.DisableAutoCommit(),
		kgo.OnPartitionsRevoked(onRevoked),
		kgo.OnPartitionsLost(onRevoked),
	)
	if err != nil {
		return fmt.Errorf("kafka: failed to create consumer client: %w", err)
	}
	defer client.Close()

	p := pool.New().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		defer partitions.removeAll()

		return e.pollLoop(ctx, client, partitions, p)
	})
	return p.Wait()
}

func (e *Engine) pollLoop(ctx context.Context, client *kgo.Client, partitions *partitionSet, workers *pool.ContextPool) error {
	for {
		select {
		case <-ctx.Done():
			e.log.InfoContext(ctx, "stopped polling", slog.Any("error", ctx.Err()))
			return nil
		default:
		}

		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			e.log.ErrorContext(
				ctx,
				"fetch error",
				TopicAttr(topic),
				PartitionAttr(partition),
				slog.Any("error", err),
			)
		})

		var dispatchErr error
		fetches.EachPartition(func(ftp kgo.FetchTopicPartition) {
			if dispatchErr != nil || len(ftp.Records) == 0 {
				return
			}
			dispatchErr = e.dispatch(ctx, client, partitions, workers, ftp)
		})
		if dispatchErr != nil {
			return dispatchErr
		}
	}
}

func (e *Engine) dispatch(ctx context.Context, client recordClient, partitions *partitionSet, workers *pool.ContextPool, ftp kgo.FetchTopicPartition) error {
	tp := topicPartition{topic: ftp.Topic, partition: ftp.Partition}

	ch, exists := partitions.get(tp)
	if !exists {
		ch = partitions.add(tp)
		workers.Go(e.partitionWorker(tp, ch, client))
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case ch <- ftp.Records:
		return nil
	}
}

func (e *Engine) partitionWorker(tp topicPartition, records <-chan []*kgo.Record, client recordClient) func(context.Context) error {
	return func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case batch, ok := <-records:
				if !ok {
					return nil
				}
				for _, record := range batch {
					select {
					case <-ctx.Done():
						return nil
					default:
					}
					err := e.handleRecord(ctx, record, client)
					if err != nil {
						// The record reached no definitive outcome.
						// Committing any later offset on this
						// partition would implicitly commit it, so
						// the worker must not advance past it.
						return nil
					}
				}
			}
		}
	}
}

// handleRecord drives a single record to a definitive outcome: applied,
// deliberately skipped, or durably dead lettered. Only then is the offset
// committed.
//
// Retryable processing failures are retried with exponential backoff up to
// the configured retry budget. Exhausted and unretryable records are dead
// lettered; a failing dead letter publish is itself retried with backoff
// until it succeeds or the engine shuts down. A non-nil return means no
// outcome was reached and the offset stays uncommitted so the record is
// redelivered.
func (e *Engine) handleRecord(ctx context.Context, record *kgo.Record, client recordClient) error {
	if record.Context == nil {
		record.Context = ctx
	}

	spanCtx, span := e.tracer.WithProcessSpan(record)
	defer span.End()

	msg := messageFromRecord(record)

	bo := e.newBackoff()

	processErr := backoff.Retry(
		func() error {
			err := e.processor.Process(spanCtx, msg)
			if err == nil {
				return nil
			}
			if IsUnretryable(err) {
				return backoff.Permanent(err)
			}

			e.metrics.recordRetry(spanCtx, record.Topic, record.Partition)
			e.log.WarnContext(
				spanCtx,
				"failed to process order event, retrying",
				PartitionAttr(record.Partition),
				OffsetAttr(record.Offset),
				slog.Any("error", err),
			)
			return err
		},
		backoff.WithContext(backoff.WithMaxRetries(bo, e.maxRetries), spanCtx),
	)
	if processErr == nil {
		e.metrics.recordProcessed(spanCtx, record.Topic, record.Partition)
		e.commit(spanCtx, record, client)
		return nil
	}
	if ctx.Err() != nil || spanCtx.Err() != nil {
		// Shutting down mid-record.
		return processErr
	}

	e.metrics.recordFailure(spanCtx, record.Topic, record.Partition)
	e.log.ErrorContext(
		spanCtx,
		"failed to process order event, dead lettering",
		PartitionAttr(record.Partition),
		OffsetAttr(record.Offset),
		slog.Any("error", processErr),
	)

	dltErr := backoff.Retry(
		func() error {
			err := e.deadLetter(ctx, client, record, processErr)
			if err == nil {
				return nil
			}
			e.log.WarnContext(
				spanCtx,
				"failed to dead letter order event, retrying",
				PartitionAttr(record.Partition),
				OffsetAttr(record.Offset),
				slog.Any("error", err),
			)
			return err
		},
		backoff.WithContext(e.newBackoff(), ctx),
	)
	if dltErr != nil {
		e.log.ErrorContext(
			spanCtx,
			"abandoning order event without commit for redelivery",
			PartitionAttr(record.Partition),
			OffsetAttr(record.Offset),
			slog.Any("error", dltErr),
		)
		return dltErr
	}

	e.metrics.recordDeadLettered(spanCtx, record.Topic, record.Partition)
	e.commit(spanCtx, record, client)
	return nil
}

// deadLetter copies the record to the dead letter topic. The consumer
// group client doubles as the dead letter producer. Each attempt is
// bounded so a downed broker surfaces as an error instead of a stalled
// produce.
func (e *Engine) deadLetter(ctx context.Context, client recordClient, record *kgo.Record, cause error) error {
	ctx, cancel := context.WithTimeout(ctx, defaultRecordDeliveryTimeout)
	defer cancel()

	class := processingFailedClass
	if IsUnretryable(cause) {
		class = unprocessableClass
	}

	headers := originHeaders(record.Topic, record.Partition, record.Offset, record.Timestamp)
	headers = append(headers, failureHeaders(class, cause, time.Now())...)

	dltRecord := &kgo.Record{
		Topic:   e.dltTopic,
		Key:     record.Key,
		Value:   record.Value,
		Headers: headers,
	}
	return client.ProduceSync(ctx, dltRecord).FirstErr()
}

func (e *Engine) commit(ctx context.Context, record *kgo.Record, client recordClient) {
	err := client.CommitRecords(ctx, record)
	if err != nil {
		e.log.ErrorContext(
			ctx,
			"failed to commit offset",
			PartitionAttr(record.Partition),
			OffsetAttr(record.Offset),
			slog.Any("error", err),
		)
		return
	}
	e.metrics.recordCommitted(ctx, record.Topic, record.Partition)
}

func messageFromRecord(record *kgo.Record) Message {
	headers := make([]Header, len(record.Headers))
	for i, hdr := range record.Headers {
		headers[i] = Header{
			Key:   hdr.Key,
			Value: hdr.Value,
		}
	}
	return Message{
		Key:       record.Key,
		Value:     record.Value,
		Headers:   headers,
		Timestamp: record.Timestamp,
		Topic:     record.Topic,
		Partition: record.Partition,
		Offset:    record.Offset,
	}
}
