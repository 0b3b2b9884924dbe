// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package order

import "strings"

// Status represents the lifecycle state of an [Order].
type Status string

const (
	// StatusNew indicates the order was just created.
	StatusNew Status = "NEW"
	// StatusConfirmed indicates the order was accepted for fulfillment.
	StatusConfirmed Status = "CONFIRMED"
	// StatusDispatched indicates the order left the warehouse.
	StatusDispatched Status = "DISPATCHED"
	// StatusCompleted indicates the order was delivered. Terminal.
	StatusCompleted Status = "COMPLETED"
	// StatusCanceled indicates the order was canceled. Terminal.
	StatusCanceled Status = "CANCELED"
)

var statusRanks = map[Status]int{
	StatusNew:        0,
	StatusConfirmed:  1,
	StatusDispatched: 2,
	StatusCompleted:  3,
	StatusCanceled:   4,
}

// ParseStatus parses s case-insensitively into a [Status].
// The British spelling "CANCELLED" is accepted and canonicalized
// to [StatusCanceled].
func ParseStatus(s string) (Status, bool) {
	status := Status(strings.ToUpper(strings.TrimSpace(s)))
	if status == "CANCELLED" {
		status = StatusCanceled
	}

	_, known := statusRanks[status]
	return status, known
}

// Rank returns the numeric rank of s, or -1 if s is unknown.
func (s Status) Rank() int {
	r, known := statusRanks[s]
	if !known {
		return -1
	}
	return r
}

// Terminal reports whether no further transitions are permitted from s.
func (s Status) Terminal() bool {
	return s.Rank() >= statusRanks[StatusCompleted]
}

// ValidTransition reports whether an order may move from current to next.
//
// A nil current represents the first write for an order id and accepts any
// known status. Otherwise transitions must advance the rank by exactly one,
// with a single exception: any non-terminal status may move to
// [StatusCanceled]. Rank-equal transitions are rejected so callers can treat
// them as duplicates. Unknown statuses are always rejected.
func ValidTransition(current *Status, next Status) bool {
	nextRank := next.Rank()
	if nextRank < 0 {
		return false
	}

	if current == nil {
		return true
	}

	curRank := current.Rank()
	if curRank < 0 {
		return false
	}
	if current.Terminal() {
		return false
	}
	if nextRank == curRank {
		return false
	}
	if next == StatusCanceled {
		return true
	}
	return nextRank == curRank+1
}
