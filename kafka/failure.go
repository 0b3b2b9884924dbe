// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/z5labs/orderflow/config"
)

// Dead letter header keys. These mirror the metadata most Kafka dead
// letter tooling expects so failed records can be replayed or inspected
// without consulting the service's logs.
const (
	HeaderOriginalTopic     = "original-topic"
	HeaderOriginalPartition = "original-partition"
	HeaderOriginalOffset    = "original-offset"
	HeaderOriginalTimestamp = "original-timestamp"
	HeaderExceptionClass    = "exception-class"
	HeaderExceptionMessage  = "exception-message"
	HeaderExceptionStack    = "exception-stacktrace"
	HeaderFailedAt          = "failed-at"
)

// failureHeaders describes why a record is being dead lettered. class is
// a publish [FailureKind] on the producer side and a processing outcome
// label on the consumer side.
func failureHeaders(class string, cause error, at time.Time) []kgo.RecordHeader {
	return []kgo.RecordHeader{
		{Key: HeaderExceptionClass, Value: []byte(class)},
		{Key: HeaderExceptionMessage, Value: []byte(cause.Error())},
		{Key: HeaderExceptionStack, Value: debug.Stack()},
		{Key: HeaderFailedAt, Value: []byte(at.UTC().Format(time.RFC3339Nano))},
	}
}

// originHeaders records where a consumed record came from before it was
// dead lettered. Producer side dead letters never reached the broker and
// carry only the topic they were destined for.
func originHeaders(topic string, partition int32, offset int64, ts time.Time) []kgo.RecordHeader {
	return []kgo.RecordHeader{
		{Key: HeaderOriginalTopic, Value: []byte(topic)},
		{Key: HeaderOriginalPartition, Value: []byte(strconv.FormatInt(int64(partition), 10))},
		{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(offset, 10))},
		{Key: HeaderOriginalTimestamp, Value: []byte(ts.UTC().Format(time.RFC3339Nano))},
	}
}

// FallbackPathFromEnv reads the fallback file path from the
// ORDERS_FALLBACK_FILE environment variable, defaulting to
// "orders-failed.log" in the working directory.
func FallbackPathFromEnv() config.Reader[string] {
	return config.Or(config.Env("ORDERS_FALLBACK_FILE"), config.ReaderOf("orders-failed.log"))
}

// FallbackWriter is the last resort sink for order events which could be
// published neither to their topic nor to the dead letter topic. Events
// are appended as single lines so they can be replayed by an operator.
type FallbackWriter struct {
	mu sync.Mutex
	f  *os.File
}

// NewFallbackWriter opens, creating if necessary, the fallback file at path.
func NewFallbackWriter(path string) (*FallbackWriter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("kafka: failed to open fallback file: %w", err)
	}
	return &FallbackWriter{f: f}, nil
}

// Write appends a failed event to the fallback file.
//
// Writes are serialized so concurrent publish failures never interleave
// within a line.
func (w *FallbackWriter) Write(kind FailureKind, orderID string, payload []byte) error {
	line := fmt.Sprintf("FAILED | kind=%s | orderId=%s | payload=%s\n", kind, orderID, payload)

	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := w.f.WriteString(line)
	if err != nil {
		return fmt.Errorf("kafka: failed to append to fallback file: %w", err)
	}
	return w.f.Sync()
}

// Close implements the [io.Closer] interface.
func (w *FallbackWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.f.Close()
}
