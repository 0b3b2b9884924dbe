// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cart

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/z5labs/orderflow"
	"github.com/z5labs/orderflow/order"

	"github.com/google/uuid"
)

// defaultCurrency is assumed when a create request carries no currency.
const defaultCurrency = "USD"

// ValidationError reports a request which can never be accepted as-is.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the [error] interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("cart: invalid %s: %s", e.Field, e.Reason)
}

// DuplicateOrderError reports a create for an order id which already exists.
type DuplicateOrderError struct {
	ID string
}

// Error implements the [error] interface.
func (e DuplicateOrderError) Error() string {
	return fmt.Sprintf("cart: order %s already exists", e.ID)
}

// OrderNotFoundError reports an update for an order id which does not exist.
type OrderNotFoundError struct {
	ID string
}

// Error implements the [error] interface.
func (e OrderNotFoundError) Error() string {
	return fmt.Sprintf("cart: order %s not found", e.ID)
}

// StatusConflictError reports an update to the status the order already has.
type StatusConflictError struct {
	ID     string
	Status order.Status
}

// Error implements the [error] interface.
func (e StatusConflictError) Error() string {
	return fmt.Sprintf("cart: order %s is already %s", e.ID, e.Status)
}

// InvalidTransitionError reports an update which would violate the order
// lifecycle.
type InvalidTransitionError struct {
	ID   string
	From order.Status
	To   order.Status
}

// Error implements the [error] interface.
func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("cart: order %s cannot move from %s to %s", e.ID, e.From, e.To)
}

// Publisher publishes order events to the orders topic.
type Publisher interface {
	Publish(context.Context, order.Order) error
}

// Service implements the cart business logic.
//
// All writes follow the same sequence under a per-order lock: validate,
// apply the change locally as a tentative write, publish the event, and
// either confirm the write or roll it back when the publish fails. A
// client therefore never observes local state the broker has not, or will
// not, see.
type Service struct {
	log       *slog.Logger
	store     *Store
	publisher Publisher

	nextID atomic.Uint64
}

// NewService initializes a [Service].
func NewService(store *Store, publisher Publisher) *Service {
	return &Service{
		log:       orderflow.Logger("github.com/z5labs/orderflow/cart"),
		store:     store,
		publisher: publisher,
	}
}

// CreateOrderParams carries the caller supplied fields for a new order.
type CreateOrderParams struct {
	// OrderID is optional. When empty an id is assigned.
	OrderID string

	// CustomerID is optional. When empty an id is generated.
	CustomerID string

	// Currency is optional and defaults to USD.
	Currency string

	Items       []order.Item
	TotalAmount float64
}

// CreateOrder validates and records a new order, publishing the NEW event
// before the order becomes visible as final.
func (s *Service) CreateOrder(ctx context.Context, params CreateOrderParams) (order.Order, error) {
	if params.TotalAmount < 0 {
		return order.Order{}, ValidationError{Field: "totalAmount", Reason: "must not be negative"}
	}
	for _, item := range params.Items {
		if item.Quantity <= 0 {
			return order.Order{}, ValidationError{Field: "items", Reason: "quantity must be positive"}
		}
		if item.Price < 0 {
			return order.Order{}, ValidationError{Field: "items", Reason: "price must not be negative"}
		}
	}

	id, err := s.resolveID(params.OrderID)
	if err != nil {
		return order.Order{}, ValidationError{Field: "orderId", Reason: "must be a hexadecimal order number"}
	}

	customerID := params.CustomerID
	if customerID == "" {
		customerID = uuid.NewString()
	}
	currency := params.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	o := order.Order{
		ID:          id,
		CustomerID:  customerID,
		OrderDate:   time.Now().UTC(),
		Status:      order.StatusNew,
		Items:       params.Items,
		TotalAmount: params.TotalAmount,
		Currency:    currency,
	}

	unlock := s.store.LockKey(id)
	defer unlock()

	rollback, err := s.store.CreateTentative(o)
	if err != nil {
		return order.Order{}, DuplicateOrderError{ID: id}
	}

	err = s.publisher.Publish(ctx, o)
	if err != nil {
		rollback()
		s.log.ErrorContext(
			ctx,
			"rolled back order create after publish failure",
			slog.String("order.id", id),
			slog.Any("error", err),
		)
		return order.Order{}, err
	}

	return o, nil
}

// UpdateOrder validates and applies a status transition, publishing the
// event before the transition becomes visible as final.
func (s *Service) UpdateOrder(ctx context.Context, rawID, rawStatus string) (order.Order, error) {
	id, err := order.NormalizeID(rawID)
	if err != nil {
		return order.Order{}, ValidationError{Field: "orderId", Reason: "must be a hexadecimal order number"}
	}

	next, known := order.ParseStatus(rawStatus)
	if !known {
		return order.Order{}, ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", rawStatus)}
	}

	unlock := s.store.LockKey(id)
	defer unlock()

	current, exists := s.store.Get(id)
	if !exists {
		return order.Order{}, OrderNotFoundError{ID: id}
	}
	if current.Status == next {
		return order.Order{}, StatusConflictError{ID: id, Status: next}
	}
	if !order.ValidTransition(&current.Status, next) {
		return order.Order{}, InvalidTransitionError{ID: id, From: current.Status, To: next}
	}

	updated, rollback, err := s.store.UpdateTentative(id, next)
	if err != nil {
		return order.Order{}, OrderNotFoundError{ID: id}
	}

	err = s.publisher.Publish(ctx, updated)
	if err != nil {
		rollback()
		s.log.ErrorContext(
			ctx,
			"rolled back order update after publish failure",
			slog.String("order.id", id),
			slog.String("order.status", string(next)),
			slog.Any("error", err),
		)
		return order.Order{}, err
	}

	return updated, nil
}

// GetOrder returns the cart's local view of the order.
func (s *Service) GetOrder(id string) (order.Order, error) {
	normalized, err := order.NormalizeID(id)
	if err != nil {
		return order.Order{}, ValidationError{Field: "orderId", Reason: "must be a hexadecimal order number"}
	}

	o, exists := s.store.Get(normalized)
	if !exists {
		return order.Order{}, OrderNotFoundError{ID: normalized}
	}
	return o, nil
}

func (s *Service) resolveID(raw string) (string, error) {
	if raw != "" {
		return order.NormalizeID(raw)
	}
	return order.NormalizeID(strconv.FormatUint(s.nextID.Add(1), 16))
}
