// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package cart implements the producer side of the order pipeline: orders
// are accepted over HTTP, recorded locally, and published to Kafka before
// the local write is considered final.
package cart

import (
	"errors"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/z5labs/orderflow/order"
)

// ErrOrderExists is returned when creating an order whose id is already taken.
var ErrOrderExists = errors.New("cart: order already exists")

// ErrOrderNotFound is returned when the referenced order does not exist.
var ErrOrderNotFound = errors.New("cart: order not found")

const lockStripes = 64

// Store holds the cart service's local view of orders.
//
// Writes are tentative: each mutating method returns a rollback function
// which restores the previous state, so callers can undo the local write
// when the matching event fails to publish. Per-key striped locks let
// callers serialize the write-then-publish sequence for one order id
// without blocking unrelated orders.
type Store struct {
	mu     sync.RWMutex
	orders map[string]order.Order

	locks [lockStripes]sync.Mutex
}

// NewStore initializes a [Store].
func NewStore() *Store {
	return &Store{
		orders: make(map[string]order.Order),
	}
}

// LockKey acquires the stripe lock covering the given order id and returns
// the matching unlock function.
func (s *Store) LockKey(id string) func() {
	h := fnv.New32a()
	h.Write([]byte(id))
	lock := &s.locks[h.Sum32()%lockStripes]

	lock.Lock()
	return lock.Unlock
}

// Get returns the order with the given id.
func (s *Store) Get(id string) (order.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.orders[id]
	return o, exists
}

// List returns all orders sorted by id.
func (s *Store) List() []order.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].ID < orders[j].ID
	})
	return orders
}

// CreateTentative records a new order and returns a rollback function
// which removes it again. [ErrOrderExists] is returned when the id is
// already taken.
func (s *Store) CreateTentative(o order.Order) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.orders[o.ID]
	if exists {
		return nil, ErrOrderExists
	}
	s.orders[o.ID] = o

	rollback := func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		delete(s.orders, o.ID)
	}
	return rollback, nil
}

// UpdateTentative moves the order to the given status and returns the
// updated order along with a rollback function restoring the previous
// status. [ErrOrderNotFound] is returned when the id does not exist.
func (s *Store) UpdateTentative(id string, next order.Status) (order.Order, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.orders[id]
	if !exists {
		return order.Order{}, nil, ErrOrderNotFound
	}

	updated := prev.WithStatus(next)
	s.orders[id] = updated

	rollback := func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.orders[id] = prev
	}
	return updated, rollback, nil
}
