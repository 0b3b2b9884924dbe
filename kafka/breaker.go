// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

const (
	breakerMinRequests  = 10
	breakerFailureRate  = 0.5
	breakerOpenDuration = 30 * time.Second
	breakerProbeBudget  = 3
)

// newPublishBreaker builds the circuit breaker guarding broker produce calls.
//
// The breaker opens once at least breakerMinRequests calls have been
// observed and at least half of them failed. While open, publishes are
// rejected locally with [gobreaker.ErrOpenState]. After breakerOpenDuration
// the breaker moves to half-open and admits up to breakerProbeBudget probe
// publishes; a single probe failure reopens it.
func newPublishBreaker(name string, log *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: breakerProbeBudget,
		Timeout:     breakerOpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < breakerMinRequests {
				return false
			}
			failureRate := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRate >= breakerFailureRate
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn(
				"publish circuit breaker changed state",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
}
