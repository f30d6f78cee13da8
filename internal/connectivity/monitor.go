// Package connectivity exposes the device's network-reachability signal as an
// injected capability so the auth flow can be tested deterministically.
package connectivity

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Monitor reports whether the hosted backend is currently reachable.
type Monitor interface {
	Online() bool
}

// Notifier is implemented by monitors that announce reachability transitions.
type Notifier interface {
	Subscribe() <-chan bool
}

type static bool

func (s static) Online() bool { return bool(s) }

// Static returns a fixed-value monitor for tests and forced-offline runs.
func Static(online bool) Monitor {
	return static(online)
}

// ProbeMonitor dials a well-known address on an interval and mirrors the
// result. It carries no retry or backoff logic of its own.
type ProbeMonitor struct {
	addr     string
	interval time.Duration
	timeout  time.Duration
	online   atomic.Bool

	mu   sync.Mutex
	subs []chan bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewProbeMonitor starts probing immediately. The initial state comes from a
// synchronous first probe so callers never observe a default value.
func NewProbeMonitor(addr string, interval time.Duration) *ProbeMonitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	m := &ProbeMonitor{
		addr:     addr,
		interval: interval,
		timeout:  3 * time.Second,
		done:     make(chan struct{}),
	}
	m.online.Store(m.probe())

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.loop(ctx)
	return m
}

// Online reports the most recent probe result.
func (m *ProbeMonitor) Online() bool {
	return m.online.Load()
}

// Subscribe returns a channel receiving the new state on each transition.
func (m *ProbeMonitor) Subscribe() <-chan bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan bool, 1)
	m.subs = append(m.subs, ch)
	return ch
}

// Close stops the probe loop.
func (m *ProbeMonitor) Close() {
	m.cancel()
	<-m.done
}

func (m *ProbeMonitor) loop(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			next := m.probe()
			if prev := m.online.Swap(next); prev != next {
				m.notify(next)
			}
		}
	}
}

func (m *ProbeMonitor) probe() bool {
	conn, err := net.DialTimeout("tcp", m.addr, m.timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (m *ProbeMonitor) notify(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- online:
		default: // slow subscriber, drop
		}
	}
}
