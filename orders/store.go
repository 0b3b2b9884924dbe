// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package orders implements the consumer side of the order pipeline:
// events from the orders topic are validated against the order lifecycle,
// enriched with shipping cost, and materialized into a queryable view.
package orders

import (
	"sort"
	"sync"

	"github.com/z5labs/orderflow/order"
)

// ProcessedOrder is the consumer's materialized view of an order after
// enrichment.
type ProcessedOrder struct {
	order.Order

	ShippingCost float64 `json:"shippingCost"`
}

// Store holds the materialized orders view.
type Store struct {
	mu     sync.RWMutex
	orders map[string]ProcessedOrder
}

// NewStore initializes a [Store].
func NewStore() *Store {
	return &Store{
		orders: make(map[string]ProcessedOrder),
	}
}

// Put records the latest view of the order.
func (s *Store) Put(o ProcessedOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[o.ID] = o
}

// Get returns the order with the given id.
func (s *Store) Get(id string) (ProcessedOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.orders[id]
	return o, exists
}

// List returns all orders sorted by id.
func (s *Store) List() []ProcessedOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]ProcessedOrder, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].ID < orders[j].ID
	})
	return orders
}
