// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kerr"
)

type fakeProber struct {
	mu  sync.Mutex
	err error
}

func (p *fakeProber) Probe(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.err
}

func (p *fakeProber) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.err = err
}

type fakeListener struct {
	mu           sync.Mutex
	connected    int
	disconnected int
}

func (l *fakeListener) OnConnected(context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.connected++
}

func (l *fakeListener) OnDisconnected(context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.disconnected++
}

func (l *fakeListener) counts() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.connected, l.disconnected
}

func TestConnectivityMonitor_PingNow(t *testing.T) {
	t.Run("will report connected and ready", func(t *testing.T) {
		t.Run("if the probe succeeds", func(t *testing.T) {
			m := NewMonitorWithProber(&fakeProber{}, time.Minute)

			connected := m.PingNow(context.Background())

			assert.True(t, connected)
			assert.True(t, m.Connected())
			assert.True(t, m.TopicReady())
		})
	})

	t.Run("will report connected but degraded", func(t *testing.T) {
		t.Run("if the broker is up but the topic does not exist", func(t *testing.T) {
			m := NewMonitorWithProber(&fakeProber{err: kerr.UnknownTopicOrPartition}, time.Minute)

			connected := m.PingNow(context.Background())

			assert.True(t, connected)
			assert.False(t, m.TopicReady())
		})
	})

	t.Run("will report disconnected", func(t *testing.T) {
		t.Run("if the probe fails", func(t *testing.T) {
			m := NewMonitorWithProber(&fakeProber{err: errors.New("connection refused")}, time.Minute)

			connected := m.PingNow(context.Background())

			assert.False(t, connected)
			assert.False(t, m.Connected())
			assert.False(t, m.TopicReady())
		})
	})
}

func TestConnectivityMonitor_Healthy(t *testing.T) {
	t.Run("will probe fresh on every call", func(t *testing.T) {
		t.Run("if broker reachability changes between calls", func(t *testing.T) {
			prober := &fakeProber{}
			m := NewMonitorWithProber(prober, time.Minute)

			healthy, err := m.Healthy(context.Background())
			require.NoError(t, err)
			assert.True(t, healthy)

			prober.setErr(errors.New("connection refused"))

			healthy, err = m.Healthy(context.Background())
			require.NoError(t, err)
			assert.False(t, healthy)
		})
	})
}

func TestConnectivityMonitor_Run(t *testing.T) {
	t.Run("will notify listeners", func(t *testing.T) {
		t.Run("if broker reachability transitions", func(t *testing.T) {
			prober := &fakeProber{}
			listener := &fakeListener{}
			m := NewMonitorWithProber(prober, time.Millisecond, listener)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				defer close(done)
				_ = m.Run(ctx)
			}()

			require.Eventually(t, func() bool {
				connected, _ := listener.counts()
				return connected == 1
			}, time.Second, time.Millisecond)

			prober.setErr(errors.New("connection refused"))

			require.Eventually(t, func() bool {
				_, disconnected := listener.counts()
				return disconnected == 1
			}, time.Second, time.Millisecond)

			prober.setErr(nil)

			require.Eventually(t, func() bool {
				connected, _ := listener.counts()
				return connected == 2
			}, 2*time.Second, time.Millisecond)

			cancel()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("monitor did not stop after cancellation")
			}

			// shutdown stops listeners if they were running
			_, disconnected := listener.counts()
			assert.Equal(t, 2, disconnected)
		})
	})
}
