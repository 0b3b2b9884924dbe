// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package order

import (
	"errors"
	"strconv"
	"strings"
)

// IDPrefix is prepended to every normalized order id.
const IDPrefix = "ORD-"

// ErrInvalidID is returned by [NormalizeID] when the raw id cannot
// be interpreted as an order number.
var ErrInvalidID = errors.New("order: invalid order id")

// NormalizeID canonicalizes a raw order id into the form "ORD-" followed
// by the uppercase hexadecimal order number, left padded with zeros to a
// minimum width of 4.
//
// An already normalized id passes through unchanged, so normalization
// is idempotent.
func NormalizeID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(strings.ToUpper(s), IDPrefix)
	if s == "" {
		return "", ErrInvalidID
	}

	n, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return "", ErrInvalidID
	}

	hex := strconv.FormatUint(n, 16)
	hex = strings.ToUpper(hex)
	if len(hex) < 4 {
		hex = strings.Repeat("0", 4-len(hex)) + hex
	}
	return IDPrefix + hex, nil
}
