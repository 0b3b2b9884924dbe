// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package order defines the order wire model along with its
// lifecycle and pricing rules.
package order

import "time"

// Item is a single line item within an [Order].
type Item struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Order is the event payload exchanged between the cart and order services.
// Timestamps are serialized as ISO-8601 UTC.
type Order struct {
	ID          string    `json:"orderId"`
	CustomerID  string    `json:"customerId"`
	OrderDate   time.Time `json:"orderDate"`
	Status      Status    `json:"status"`
	Items       []Item    `json:"items,omitempty"`
	TotalAmount float64   `json:"totalAmount"`
	Currency    string    `json:"currency"`
}

// WithStatus returns a copy of o with its status set to s.
func (o Order) WithStatus(s Status) Order {
	o.Status = s
	return o
}
