package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Polling defaults per platform.
const (
	NativePollInterval    = 5 * time.Second
	SimulatedPollInterval = 2 * time.Second
)

// Handle identifies one subscription.
type Handle string

// Monitor delivers periodic readings to subscribers. Each subscription runs on
// its own goroutine and ticker, so callbacks of one subscription never
// overlap, while distinct subscriptions may interleave.
type Monitor struct {
	platform Platform
	interval time.Duration
	log      *slog.Logger

	mu   sync.Mutex
	subs map[Handle]*subscription
}

type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a monitor polling p every interval. A non-positive
// interval selects the platform's default.
func NewMonitor(p Platform, interval time.Duration, log *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = SimulatedPollInterval
		if p.Mode() == "native" {
			interval = NativePollInterval
		}
	}
	return &Monitor{
		platform: p,
		interval: interval,
		log:      log,
		subs:     make(map[Handle]*subscription),
	}
}

// Interval returns the polling period.
func (m *Monitor) Interval() time.Duration { return m.interval }

// Start begins polling and invokes callback with each reading until Stop is
// called with the returned handle. callback must not call Stop for its own
// handle.
func (m *Monitor) Start(callback func(Reading)) Handle {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{cancel: cancel, done: make(chan struct{})}
	h := Handle(uuid.NewString())

	m.mu.Lock()
	m.subs[h] = sub
	m.mu.Unlock()

	go m.run(ctx, sub, time.Now(), callback)
	m.log.Debug("monitoring started", "handle", h, "interval", m.interval)
	return h
}

// run samples consecutive windows: each tick covers the time since the
// previous one, starting at since.
func (m *Monitor) run(ctx context.Context, sub *subscription, since time.Time, callback func(Reading)) {
	defer close(sub.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r := m.platform.Sample(ctx, since, now)
			if ctx.Err() != nil {
				return
			}
			since = now
			callback(r)
		}
	}
}

// Stop cancels the subscription and waits for an in-flight callback to
// return. Stopping an unknown or already stopped handle is a no-op; the
// result reports whether a subscription was stopped.
func (m *Monitor) Stop(h Handle) bool {
	m.mu.Lock()
	sub, ok := m.subs[h]
	delete(m.subs, h)
	m.mu.Unlock()

	if !ok {
		return false
	}
	sub.cancel()
	<-sub.done
	m.log.Debug("monitoring stopped", "handle", h)
	return true
}

// StopAll cancels every subscription.
func (m *Monitor) StopAll() {
	m.mu.Lock()
	handles := make([]Handle, 0, len(m.subs))
	for h := range m.subs {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	for _, h := range handles {
		m.Stop(h)
	}
}

// Active returns the number of running subscriptions.
func (m *Monitor) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}
