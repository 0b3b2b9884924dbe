// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/z5labs/orderflow"
	"github.com/z5labs/orderflow/config"

	"github.com/cenkalti/backoff/v4"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kslog"
)

const (
	// defaultProbeTimeout bounds a single metadata probe round trip.
	defaultProbeTimeout = 3 * time.Second

	// defaultProbeInterval is the cadence between probes while the
	// broker is reachable.
	defaultProbeInterval = 30 * time.Second

	probeBackoffInitial = 100 * time.Millisecond
	probeBackoffMax     = 5 * time.Second
)

// errPartitionLeaderless is returned by a probe when the topic exists but
// one of its partitions has no elected leader.
var errPartitionLeaderless = errors.New("kafka: partition has no leader")

// Listener is notified by a [ConnectivityMonitor] when broker reachability
// changes. Notifications are edge triggered.
type Listener interface {
	OnConnected(context.Context)
	OnDisconnected(context.Context)
}

// Prober checks whether the broker and topic are usable.
type Prober interface {
	Probe(context.Context) error
}

type adminProber struct {
	admin   *kadm.Client
	topic   string
	timeout time.Duration
}

func (p adminProber) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	meta, err := p.admin.Metadata(ctx, p.topic)
	if err != nil {
		return err
	}

	detail, exists := meta.Topics[p.topic]
	if !exists {
		return kerr.UnknownTopicOrPartition
	}
	if detail.Err != nil {
		return detail.Err
	}
	for _, partition := range detail.Partitions {
		if partition.Err != nil {
			return partition.Err
		}
		if partition.Leader < 0 {
			return errPartitionLeaderless
		}
	}
	return nil
}

// MonitorConfig holds configuration readers for a [ConnectivityMonitor].
type MonitorConfig struct {
	Brokers      config.Reader[[]string]
	Topic        config.Reader[string]
	Interval     config.Reader[time.Duration]
	ProbeTimeout config.Reader[time.Duration]
}

// ConnectivityMonitor periodically probes broker metadata and tracks
// whether the broker and orders topic are usable.
//
// It implements health monitoring for readiness endpoints and drives the
// lifecycle of its registered [Listener]s: listeners are started when the
// broker becomes reachable and stopped when it becomes unreachable. A
// missing topic degrades the monitor but does not mark the service
// unready, since the broker itself is accepting connections.
type ConnectivityMonitor struct {
	log      *slog.Logger
	prober   Prober
	interval time.Duration

	connected  atomic.Bool
	topicReady atomic.Bool

	listeners []Listener

	close func()
}

// NewMonitor initializes a [ConnectivityMonitor] from the given configuration.
func NewMonitor(ctx context.Context, cfg MonitorConfig, listeners ...Listener) (*ConnectivityMonitor, error) {
	brokers := config.Must(ctx, cfg.Brokers)
	topic := config.MustOr(ctx, "orders", cfg.Topic)
	interval := config.MustOr(ctx, defaultProbeInterval, cfg.Interval)
	probeTimeout := config.MustOr(ctx, defaultProbeTimeout, cfg.ProbeTimeout)

	client, err := kgo.NewClient(
		kgo.WithLogger(kslog.New(orderflow.Logger("github.com/twmb/franz-go/pkg/kgo"))),
		kgo.SeedBrokers(brokers...),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka: failed to create monitor client: %w", err)
	}

	m := NewMonitorWithProber(
		adminProber{admin: kadm.NewClient(client), topic: topic, timeout: probeTimeout},
		interval,
		listeners...,
	)
	m.close = client.Close
	return m, nil
}

// NewMonitorWithProber initializes a [ConnectivityMonitor] around a custom
// [Prober].
func NewMonitorWithProber(prober Prober, interval time.Duration, listeners ...Listener) *ConnectivityMonitor {
	return &ConnectivityMonitor{
		log:       logger(),
		prober:    prober,
		interval:  interval,
		listeners: listeners,
	}
}

// PingNow probes the broker immediately and updates connectivity state.
// It reports whether the broker is reachable.
func (m *ConnectivityMonitor) PingNow(ctx context.Context) bool {
	err := m.prober.Probe(ctx)
	switch {
	case err == nil:
		m.connected.Store(true)
		m.topicReady.Store(true)
	case errors.Is(err, kerr.UnknownTopicOrPartition):
		// Metadata came back so the broker is up, the topic just
		// hasn't been created yet.
		m.connected.Store(true)
		m.topicReady.Store(false)
	default:
		m.connected.Store(false)
		m.topicReady.Store(false)
	}
	return m.connected.Load()
}

// Connected reports the broker reachability observed by the last probe.
func (m *ConnectivityMonitor) Connected() bool {
	return m.connected.Load()
}

// TopicReady reports whether the last probe found the topic with leaders
// elected for every partition.
func (m *ConnectivityMonitor) TopicReady() bool {
	return m.topicReady.Load()
}

// Healthy implements the [health.Monitor] interface.
//
// Each call probes the broker fresh so orchestrators always observe
// current reachability rather than a cached result.
func (m *ConnectivityMonitor) Healthy(ctx context.Context) (bool, error) {
	return m.PingNow(ctx), nil
}

// Run probes the broker until ctx is canceled.
//
// While reachable, probes run at the configured interval. After a failed
// probe the monitor retries with exponential backoff until the broker
// recovers. Reachability transitions are forwarded to the registered
// listeners.
func (m *ConnectivityMonitor) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = probeBackoffInitial
	bo.Multiplier = 2
	bo.MaxInterval = probeBackoffMax
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	wasConnected := false
	for {
		connected := m.PingNow(ctx)
		if connected != wasConnected {
			m.notify(ctx, connected)
			wasConnected = connected
		}

		var wait time.Duration
		if connected {
			bo.Reset()
			wait = m.interval
		} else {
			wait = bo.NextBackOff()
		}

		select {
		case <-ctx.Done():
			if wasConnected {
				m.notify(context.WithoutCancel(ctx), false)
			}
			if m.close != nil {
				m.close()
			}
			return nil
		case <-time.After(wait):
		}
	}
}

func (m *ConnectivityMonitor) notify(ctx context.Context, connected bool) {
	if connected {
		m.log.InfoContext(ctx, "broker reachable, starting listeners")
		for _, l := range m.listeners {
			l.OnConnected(ctx)
		}
		return
	}

	m.log.WarnContext(ctx, "broker unreachable, stopping listeners")
	for _, l := range m.listeners {
		l.OnDisconnected(ctx)
	}
}
