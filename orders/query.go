// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package orders

import (
	"fmt"

	"github.com/z5labs/orderflow/order"
)

// InvalidOrderIDError reports a query with an id which can never match.
type InvalidOrderIDError struct {
	Raw string
}

// Error implements the [error] interface.
func (e InvalidOrderIDError) Error() string {
	return fmt.Sprintf("orders: invalid order id %q", e.Raw)
}

// OrderNotFoundError reports a query for an order which has not been
// processed.
type OrderNotFoundError struct {
	ID string
}

// Error implements the [error] interface.
func (e OrderNotFoundError) Error() string {
	return fmt.Sprintf("orders: order %s not found", e.ID)
}

// Query exposes read access to the materialized orders view.
type Query struct {
	store *Store
}

// NewQuery initializes a [Query].
func NewQuery(store *Store) *Query {
	return &Query{store: store}
}

// OrderDetails returns the processed order with the given id. The id is
// normalized before lookup so clients may use any accepted spelling.
func (q *Query) OrderDetails(rawID string) (ProcessedOrder, error) {
	id, err := order.NormalizeID(rawID)
	if err != nil {
		return ProcessedOrder{}, InvalidOrderIDError{Raw: rawID}
	}

	o, exists := q.store.Get(id)
	if !exists {
		return ProcessedOrder{}, OrderNotFoundError{ID: id}
	}
	return o, nil
}

// ListOrders returns every processed order sorted by id.
func (q *Query) ListOrders() []ProcessedOrder {
	return q.store.List()
}
