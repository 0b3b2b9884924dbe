// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/z5labs/orderflow/order"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingPublisher struct {
	published []order.Order
	err       error
}

func (p *capturingPublisher) Publish(_ context.Context, o order.Order) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, o)
	return nil
}

func TestService_CreateOrder(t *testing.T) {
	t.Run("will create the order", func(t *testing.T) {
		t.Run("if the request is valid and the publish succeeds", func(t *testing.T) {
			publisher := &capturingPublisher{}
			svc := NewService(NewStore(), publisher)

			o, err := svc.CreateOrder(context.Background(), CreateOrderParams{
				OrderID:     "a1",
				CustomerID:  "cust-1",
				TotalAmount: 100,
			})
			require.NoError(t, err)

			assert.Equal(t, "ORD-00A1", o.ID)
			assert.Equal(t, order.StatusNew, o.Status)
			assert.Equal(t, "USD", o.Currency)
			assert.WithinDuration(t, time.Now().UTC(), o.OrderDate, time.Minute)

			stored, err := svc.GetOrder("ORD-00A1")
			require.NoError(t, err)
			assert.Equal(t, o, stored)

			require.Len(t, publisher.published, 1)
			assert.Equal(t, o, publisher.published[0])
		})

		t.Run("if no order id was supplied", func(t *testing.T) {
			publisher := &capturingPublisher{}
			svc := NewService(NewStore(), publisher)

			first, err := svc.CreateOrder(context.Background(), CreateOrderParams{
				CustomerID:  "cust-1",
				TotalAmount: 10,
			})
			require.NoError(t, err)

			second, err := svc.CreateOrder(context.Background(), CreateOrderParams{
				CustomerID:  "cust-2",
				TotalAmount: 20,
			})
			require.NoError(t, err)

			assert.Equal(t, "ORD-0001", first.ID)
			assert.Equal(t, "ORD-0002", second.ID)
		})

		t.Run("if no customer id was supplied", func(t *testing.T) {
			publisher := &capturingPublisher{}
			svc := NewService(NewStore(), publisher)

			o, err := svc.CreateOrder(context.Background(), CreateOrderParams{
				OrderID:     "a1",
				TotalAmount: 10,
			})
			require.NoError(t, err)

			require.NoError(t, uuid.Validate(o.CustomerID))

			require.Len(t, publisher.published, 1)
			assert.Equal(t, o.CustomerID, publisher.published[0].CustomerID)
		})

		t.Run("if a currency was supplied", func(t *testing.T) {
			svc := NewService(NewStore(), &capturingPublisher{})

			o, err := svc.CreateOrder(context.Background(), CreateOrderParams{
				OrderID:     "a1",
				CustomerID:  "cust-1",
				Currency:    "EUR",
				TotalAmount: 10,
			})
			require.NoError(t, err)

			assert.Equal(t, "EUR", o.Currency)
		})
	})

	t.Run("will reject the request", func(t *testing.T) {
		t.Run("if the total amount is negative", func(t *testing.T) {
			svc := NewService(NewStore(), &capturingPublisher{})

			_, err := svc.CreateOrder(context.Background(), CreateOrderParams{
				CustomerID:  "cust-1",
				TotalAmount: -1,
			})

			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "totalAmount", verr.Field)
		})

		t.Run("if an item quantity is not positive", func(t *testing.T) {
			svc := NewService(NewStore(), &capturingPublisher{})

			_, err := svc.CreateOrder(context.Background(), CreateOrderParams{
				CustomerID: "cust-1",
				Items:      []order.Item{{ProductID: "p1", Quantity: 0}},
			})

			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "items", verr.Field)
		})

		t.Run("if the order id already exists", func(t *testing.T) {
			publisher := &capturingPublisher{}
			svc := NewService(NewStore(), publisher)

			_, err := svc.CreateOrder(context.Background(), CreateOrderParams{
				OrderID:    "a1",
				CustomerID: "cust-1",
			})
			require.NoError(t, err)

			_, err = svc.CreateOrder(context.Background(), CreateOrderParams{
				OrderID:    "ORD-00A1",
				CustomerID: "cust-2",
			})

			var dupErr DuplicateOrderError
			require.ErrorAs(t, err, &dupErr)
			assert.Equal(t, "ORD-00A1", dupErr.ID)
		})
	})

	t.Run("will roll back the local write", func(t *testing.T) {
		t.Run("if the publish fails", func(t *testing.T) {
			publisher := &capturingPublisher{err: errors.New("broker down")}
			store := NewStore()
			svc := NewService(store, publisher)

			_, err := svc.CreateOrder(context.Background(), CreateOrderParams{
				OrderID:    "a1",
				CustomerID: "cust-1",
			})
			require.Error(t, err)

			_, exists := store.Get("ORD-00A1")
			assert.False(t, exists)
		})
	})
}

func TestService_UpdateOrder(t *testing.T) {
	newServiceWithOrder := func(t *testing.T, status order.Status) (*Service, *Store, *capturingPublisher) {
		t.Helper()

		publisher := &capturingPublisher{}
		store := NewStore()
		svc := NewService(store, publisher)

		_, err := svc.CreateOrder(context.Background(), CreateOrderParams{
			OrderID:     "a1",
			CustomerID:  "cust-1",
			TotalAmount: 100,
		})
		require.NoError(t, err)

		if status != order.StatusNew {
			_, _, err := store.UpdateTentative("ORD-00A1", status)
			require.NoError(t, err)
		}
		return svc, store, publisher
	}

	t.Run("will apply the transition", func(t *testing.T) {
		t.Run("if the status advances by one rank", func(t *testing.T) {
			svc, store, publisher := newServiceWithOrder(t, order.StatusNew)

			updated, err := svc.UpdateOrder(context.Background(), "ORD-00A1", "confirmed")
			require.NoError(t, err)

			assert.Equal(t, order.StatusConfirmed, updated.Status)

			stored, _ := store.Get("ORD-00A1")
			assert.Equal(t, order.StatusConfirmed, stored.Status)

			require.Len(t, publisher.published, 2)
			assert.Equal(t, order.StatusConfirmed, publisher.published[1].Status)
		})

		t.Run("if a non-terminal order is canceled with the british spelling", func(t *testing.T) {
			svc, _, _ := newServiceWithOrder(t, order.StatusDispatched)

			updated, err := svc.UpdateOrder(context.Background(), "ORD-00A1", "CANCELLED")
			require.NoError(t, err)

			assert.Equal(t, order.StatusCanceled, updated.Status)
		})
	})

	t.Run("will reject the transition", func(t *testing.T) {
		t.Run("if the order does not exist", func(t *testing.T) {
			svc := NewService(NewStore(), &capturingPublisher{})

			_, err := svc.UpdateOrder(context.Background(), "ORD-0FFF", "confirmed")

			var notFound OrderNotFoundError
			require.ErrorAs(t, err, &notFound)
		})

		t.Run("if the order already has the requested status", func(t *testing.T) {
			svc, _, _ := newServiceWithOrder(t, order.StatusConfirmed)

			_, err := svc.UpdateOrder(context.Background(), "ORD-00A1", "confirmed")

			var conflict StatusConflictError
			require.ErrorAs(t, err, &conflict)
		})

		t.Run("if the status would skip a rank", func(t *testing.T) {
			svc, _, _ := newServiceWithOrder(t, order.StatusNew)

			_, err := svc.UpdateOrder(context.Background(), "ORD-00A1", "completed")

			var invalid InvalidTransitionError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, order.StatusNew, invalid.From)
			assert.Equal(t, order.StatusCompleted, invalid.To)
		})

		t.Run("if the status is unknown", func(t *testing.T) {
			svc, _, _ := newServiceWithOrder(t, order.StatusNew)

			_, err := svc.UpdateOrder(context.Background(), "ORD-00A1", "shipped")

			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "status", verr.Field)
		})
	})

	t.Run("will roll back the local write", func(t *testing.T) {
		t.Run("if the publish fails", func(t *testing.T) {
			svc, store, publisher := newServiceWithOrder(t, order.StatusNew)

			publisher.err = errors.New("broker down")

			_, err := svc.UpdateOrder(context.Background(), "ORD-00A1", "confirmed")
			require.Error(t, err)

			stored, _ := store.Get("ORD-00A1")
			assert.Equal(t, order.StatusNew, stored.Status)
		})
	})
}
