// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/z5labs/orderflow"
	"github.com/z5labs/orderflow/kafka"
	"github.com/z5labs/orderflow/order"
)

// Processor applies order events from the orders topic to the
// materialized view.
//
// Process returns nil for every definitive outcome, including deliberate
// skips, so the consumer engine commits the offset. Only transient
// failures are returned as retryable errors; malformed events are marked
// unretryable so the engine dead letters them instead of retrying.
//
// Two idempotency layers make redelivery safe. The offset index
// recognizes records which were already processed but whose commit was
// lost. The status equality check recognizes semantic duplicates arriving
// at a different offset, such as a producer retry of the same transition.
type Processor struct {
	log   *slog.Logger
	store *Store
	index *OffsetIndex
}

// NewProcessor initializes a [Processor].
func NewProcessor(store *Store, index *OffsetIndex) *Processor {
	return &Processor{
		log:   orderflow.Logger("github.com/z5labs/orderflow/orders"),
		store: store,
		index: index,
	}
}

// Process implements the [queue.Processor] interface.
func (p *Processor) Process(ctx context.Context, msg kafka.Message) error {
	var o order.Order
	err := json.Unmarshal(msg.Value, &o)
	if err != nil {
		return kafka.Unretryable(fmt.Errorf("orders: malformed event payload: %w", err))
	}

	id, err := order.NormalizeID(o.ID)
	if err != nil {
		return kafka.Unretryable(fmt.Errorf("orders: malformed order id %q: %w", o.ID, err))
	}
	o.ID = id

	status, known := order.ParseStatus(string(o.Status))
	if !known {
		return kafka.Unretryable(fmt.Errorf("orders: unknown order status %q", o.Status))
	}
	o.Status = status

	if key := string(msg.Key); key != "" && key != id {
		// The event is still keyed consistently enough to process, the
		// producer just normalized after partitioning.
		p.log.WarnContext(
			ctx,
			"event key does not match order id",
			kafka.KeyAttr(msg.Key),
			slog.String("order.id", id),
		)
	}

	if p.index.Seen(msg.Topic, msg.Partition, msg.Offset) {
		p.log.DebugContext(
			ctx,
			"skipping already processed offset",
			kafka.PartitionAttr(msg.Partition),
			kafka.OffsetAttr(msg.Offset),
		)
		return nil
	}

	existing, exists := p.store.Get(id)
	if exists && existing.Status == status {
		p.log.DebugContext(
			ctx,
			"skipping duplicate status event",
			slog.String("order.id", id),
			slog.String("order.status", string(status)),
		)
		p.index.Record(msg.Topic, msg.Partition, msg.Offset)
		return nil
	}

	var current *order.Status
	if exists {
		current = &existing.Status
	}
	if !order.ValidTransition(current, status) {
		p.log.WarnContext(
			ctx,
			"skipping event with invalid status transition",
			slog.String("order.id", id),
			slog.String("order.status", string(status)),
			kafka.PartitionAttr(msg.Partition),
			kafka.OffsetAttr(msg.Offset),
		)
		p.index.Record(msg.Topic, msg.Partition, msg.Offset)
		return nil
	}

	p.store.Put(ProcessedOrder{
		Order:        o,
		ShippingCost: order.ShippingCost(o.TotalAmount),
	})
	p.index.Record(msg.Topic, msg.Partition, msg.Offset)

	p.log.InfoContext(
		ctx,
		"processed order event",
		slog.String("order.id", id),
		slog.String("order.status", string(status)),
		kafka.PartitionAttr(msg.Partition),
		kafka.OffsetAttr(msg.Offset),
	)
	return nil
}
