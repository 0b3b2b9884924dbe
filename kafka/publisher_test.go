// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/z5labs/orderflow/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

func newTestPublisher(t *testing.T, client syncProducer) (*Publisher, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "orders-failed.log")
	fallback, err := NewFallbackWriter(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		fallback.Close()
	})

	metrics, err := newPublishMetrics()
	require.NoError(t, err)

	log := logger()
	return &Publisher{
		log:             log,
		client:          client,
		breaker:         newPublishBreaker("orders-publish-test", log),
		fallback:        fallback,
		topic:           "orders",
		dltTopic:        "orders.dlt",
		metrics:         metrics,
		publishTimeout:  defaultPublishTimeout,
		deliveryTimeout: defaultRecordDeliveryTimeout,
	}, path
}

func brokerDownErr() error {
	return &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}
}

func TestPublisher_Publish(t *testing.T) {
	t.Run("will publish the order event", func(t *testing.T) {
		t.Run("if the broker acknowledges the record", func(t *testing.T) {
			client := &fakeRecordClient{}
			p, _ := newTestPublisher(t, client)

			o := order.Order{
				ID:          "ORD-00A1",
				CustomerID:  "cust-1",
				Status:      order.StatusNew,
				TotalAmount: 100,
			}

			err := p.Publish(context.Background(), o)
			require.NoError(t, err)

			require.Len(t, client.produced, 1)
			record := client.produced[0]
			assert.Equal(t, "orders", record.Topic)
			assert.Equal(t, []byte("ORD-00A1"), record.Key)

			var published order.Order
			require.NoError(t, json.Unmarshal(record.Value, &published))
			assert.Equal(t, o, published)
		})
	})

	t.Run("will dead letter the event", func(t *testing.T) {
		t.Run("if the broker cannot be reached", func(t *testing.T) {
			client := &fakeRecordClient{
				produceErr: map[string]error{"orders": brokerDownErr()},
			}
			p, _ := newTestPublisher(t, client)

			err := p.Publish(context.Background(), order.Order{ID: "ORD-00A1", Status: order.StatusNew})
			require.Error(t, err)

			var pubErr *PublishError
			require.ErrorAs(t, err, &pubErr)
			assert.Equal(t, FailureBrokerDown, pubErr.Kind)
			assert.True(t, pubErr.DeadLettered)
			assert.False(t, pubErr.FellBack)

			require.Len(t, client.produced, 1)
			dlt := client.produced[0]
			assert.Equal(t, "orders.dlt", dlt.Topic)

			byKey := make(map[string]string, len(dlt.Headers))
			for _, h := range dlt.Headers {
				byKey[h.Key] = string(h.Value)
			}
			assert.Equal(t, "BROKER_DOWN", byKey[HeaderExceptionClass])
			assert.Equal(t, "orders", byKey[HeaderOriginalTopic])
		})
	})

	t.Run("will bound the dead letter attempt", func(t *testing.T) {
		t.Run("if the caller's publish budget is nearly exhausted", func(t *testing.T) {
			client := &fakeRecordClient{
				produceErr: map[string]error{"orders": brokerDownErr()},
			}

			var dltDeadline time.Time
			client.onProduce = func(ctx context.Context, record *kgo.Record, _ error) {
				if record.Topic != "orders.dlt" {
					return
				}
				deadline, ok := ctx.Deadline()
				require.True(t, ok)
				dltDeadline = deadline
			}
			p, _ := newTestPublisher(t, client)

			parent, cancel := context.WithDeadline(context.Background(), time.Now().Add(100*time.Millisecond))
			defer cancel()

			err := p.Publish(parent, order.Order{ID: "ORD-00A1", Status: order.StatusNew})
			require.Error(t, err)

			var pubErr *PublishError
			require.ErrorAs(t, err, &pubErr)
			assert.True(t, pubErr.DeadLettered)

			// the dead letter publish must never extend the caller's
			// synchronous wait
			parentDeadline, ok := parent.Deadline()
			require.True(t, ok)
			assert.False(t, dltDeadline.After(parentDeadline))
		})
	})

	t.Run("will fall back to the failure file", func(t *testing.T) {
		t.Run("if the dead letter publish also fails", func(t *testing.T) {
			client := &fakeRecordClient{
				produceErr: map[string]error{
					"orders":     brokerDownErr(),
					"orders.dlt": brokerDownErr(),
				},
			}
			p, path := newTestPublisher(t, client)

			err := p.Publish(context.Background(), order.Order{ID: "ORD-00A1", Status: order.StatusNew})
			require.Error(t, err)

			var pubErr *PublishError
			require.ErrorAs(t, err, &pubErr)
			assert.False(t, pubErr.DeadLettered)
			assert.True(t, pubErr.FellBack)

			b, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Contains(t, string(b), "orderId=ORD-00A1")
			assert.Contains(t, string(b), "kind=BROKER_DOWN")
		})
	})

	t.Run("will reject publishes locally", func(t *testing.T) {
		t.Run("if repeated failures open the circuit breaker", func(t *testing.T) {
			client := &fakeRecordClient{
				produceErr: map[string]error{
					"orders":     brokerDownErr(),
					"orders.dlt": brokerDownErr(),
				},
			}
			p, path := newTestPublisher(t, client)

			for range breakerMinRequests {
				err := p.Publish(context.Background(), order.Order{ID: "ORD-00A1", Status: order.StatusNew})
				require.Error(t, err)
			}

			err := p.Publish(context.Background(), order.Order{ID: "ORD-00A2", Status: order.StatusNew})
			require.Error(t, err)

			var pubErr *PublishError
			require.ErrorAs(t, err, &pubErr)
			assert.Equal(t, FailureCircuitOpen, pubErr.Kind)

			// circuit open publishes skip the dead letter topic entirely
			assert.False(t, pubErr.DeadLettered)
			assert.True(t, pubErr.FellBack)

			b, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Contains(t, string(b), "orderId=ORD-00A2")
			assert.Contains(t, string(b), "kind=CIRCUIT_OPEN")
		})
	})
}
