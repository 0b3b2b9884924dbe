// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"context"
	"errors"
	"net"

	"github.com/sony/gobreaker"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// FailureKind categorizes publish failures so callers and dead letter
// headers can distinguish transient broker conditions from caller mistakes.
type FailureKind int

const (
	// FailureUnexpected covers anything the other kinds do not.
	FailureUnexpected FailureKind = iota

	// FailureInterrupted indicates the publish was canceled before
	// the broker acknowledged it.
	FailureInterrupted

	// FailureTimeout indicates the broker did not acknowledge the
	// record within the delivery deadline.
	FailureTimeout

	// FailureBrokerDown indicates the broker could not be reached.
	FailureBrokerDown

	// FailureTopicNotFound indicates the target topic does not exist.
	FailureTopicNotFound

	// FailureCircuitOpen indicates the publish was rejected locally
	// by the circuit breaker without contacting the broker.
	FailureCircuitOpen
)

// String implements the [fmt.Stringer] interface.
func (k FailureKind) String() string {
	switch k {
	case FailureInterrupted:
		return "INTERRUPTED"
	case FailureTimeout:
		return "TIMEOUT"
	case FailureBrokerDown:
		return "BROKER_DOWN"
	case FailureTopicNotFound:
		return "TOPIC_NOT_FOUND"
	case FailureCircuitOpen:
		return "CIRCUIT_OPEN"
	default:
		return "UNEXPECTED"
	}
}

// Classify maps a publish error to its [FailureKind].
//
// Transport level conditions are checked before Kafka protocol errors
// since a single failure frequently wraps both. For example, a produce
// against a stopped broker surfaces a connection error wrapping a
// protocol retry error and must classify as [FailureBrokerDown] rather
// than [FailureUnexpected].
func Classify(err error) FailureKind {
	if err == nil {
		return FailureUnexpected
	}

	switch {
	case errors.Is(err, context.Canceled):
		return FailureInterrupted
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return FailureCircuitOpen
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, kgo.ErrRecordTimeout), errors.Is(err, kerr.RequestTimedOut):
		return FailureTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return FailureBrokerDown
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return FailureBrokerDown
	}

	switch {
	case errors.Is(err, kgo.ErrClientClosed),
		errors.Is(err, kerr.BrokerNotAvailable),
		errors.Is(err, kerr.LeaderNotAvailable),
		errors.Is(err, kerr.NotLeaderForPartition):
		return FailureBrokerDown
	case errors.Is(err, kerr.UnknownTopicOrPartition):
		return FailureTopicNotFound
	}

	return FailureUnexpected
}
