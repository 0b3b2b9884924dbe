// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package order

// ShippingRate is the fraction of an order's total amount charged
// for shipping.
const ShippingRate = 0.02

// ShippingCost computes the shipping cost for the given order total.
func ShippingCost(totalAmount float64) float64 {
	return ShippingRate * totalAmount
}
