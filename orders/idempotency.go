// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package orders

import "sync"

type topicPartition struct {
	topic     string
	partition int32
}

// OffsetIndex remembers the highest offset which reached a definitive
// outcome on each partition.
//
// Offsets on a partition are processed in order, so a single high-water
// mark per partition suffices to recognize redelivered records after a
// consumer restart or rebalance.
type OffsetIndex struct {
	mu   sync.Mutex
	high map[topicPartition]int64
}

// NewOffsetIndex initializes an [OffsetIndex].
func NewOffsetIndex() *OffsetIndex {
	return &OffsetIndex{
		high: make(map[topicPartition]int64),
	}
}

// Seen reports whether the offset was already processed.
func (i *OffsetIndex) Seen(topic string, partition int32, offset int64) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	high, exists := i.high[topicPartition{topic: topic, partition: partition}]
	return exists && offset <= high
}

// Record marks the offset as processed. The high-water mark never moves
// backwards.
func (i *OffsetIndex) Record(topic string, partition int32, offset int64) {
	i.mu.Lock()
	defer i.mu.Unlock()

	tp := topicPartition{topic: topic, partition: partition}
	high, exists := i.high[tp]
	if exists && offset <= high {
		return
	}
	i.high[tp] = offset
}
