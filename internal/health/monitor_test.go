package health

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingPlatform is a simulated platform whose Sample can be slowed down
// and counted.
type countingPlatform struct {
	*Simulated
	delay   time.Duration
	samples atomic.Int32
}

func (c *countingPlatform) Sample(ctx context.Context, start, end time.Time) Reading {
	c.samples.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return c.Simulated.Sample(ctx, start, end)
}

// windowPlatform records the window of every Sample call.
type windowPlatform struct {
	*Simulated
	mu      sync.Mutex
	windows [][2]time.Time
}

func (w *windowPlatform) Sample(ctx context.Context, start, end time.Time) Reading {
	w.mu.Lock()
	w.windows = append(w.windows, [2]time.Time{start, end})
	w.mu.Unlock()
	return w.Simulated.Sample(ctx, start, end)
}

func (w *windowPlatform) snapshot() [][2]time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][2]time.Time(nil), w.windows...)
}

// TestMonitorContiguousWindows verifies each tick samples exactly the time
// since the previous tick, so summed counts cover the subscription once.
func TestMonitorContiguousWindows(t *testing.T) {
	p := &windowPlatform{Simulated: NewSimulated(testLogger())}
	m := NewMonitor(p, 5*time.Millisecond, testLogger())

	before := time.Now()
	h := m.Start(func(Reading) {})
	deadline := time.Now().Add(2 * time.Second)
	for len(p.snapshot()) < 4 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop(h)

	windows := p.snapshot()
	if len(windows) < 4 {
		t.Fatalf("got %d samples, want at least 4", len(windows))
	}
	if windows[0][0].Before(before) {
		t.Errorf("first window starts %v before the subscription", before.Sub(windows[0][0]))
	}
	for i, w := range windows {
		if !w[1].After(w[0]) {
			t.Errorf("window %d is empty: %v..%v", i, w[0], w[1])
		}
		if i > 0 && !w[0].Equal(windows[i-1][1]) {
			t.Errorf("window %d starts at %v, previous ended at %v", i, w[0], windows[i-1][1])
		}
	}
}

// TestMonitorDeliversReadings verifies callbacks fire until Stop and never after.
func TestMonitorDeliversReadings(t *testing.T) {
	m := NewMonitor(NewSimulated(testLogger()), 10*time.Millisecond, testLogger())

	var count atomic.Int32
	h := m.Start(func(Reading) { count.Add(1) })

	deadline := time.Now().Add(2 * time.Second)
	for count.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if count.Load() < 3 {
		t.Fatalf("got %d readings, want at least 3", count.Load())
	}

	if !m.Stop(h) {
		t.Fatal("Stop = false for active handle")
	}
	after := count.Load()
	time.Sleep(50 * time.Millisecond)
	if count.Load() != after {
		t.Errorf("callback ran after Stop: %d -> %d", after, count.Load())
	}
}

// TestMonitorStopIdempotent verifies stopping twice or stopping an unknown handle is harmless.
func TestMonitorStopIdempotent(t *testing.T) {
	m := NewMonitor(NewSimulated(testLogger()), time.Hour, testLogger())
	h := m.Start(func(Reading) {})
	if m.Active() != 1 {
		t.Fatalf("Active = %d, want 1", m.Active())
	}
	if !m.Stop(h) {
		t.Error("first Stop = false")
	}
	if m.Stop(h) {
		t.Error("second Stop = true")
	}
	if m.Stop("nope") {
		t.Error("Stop of unknown handle = true")
	}
	if m.Active() != 0 {
		t.Errorf("Active = %d, want 0", m.Active())
	}
}

// TestMonitorNoOverlap verifies a slow callback delays the next tick instead of overlapping it.
func TestMonitorNoOverlap(t *testing.T) {
	m := NewMonitor(NewSimulated(testLogger()), 5*time.Millisecond, testLogger())

	var inFlight, maxInFlight atomic.Int32
	h := m.Start(func(Reading) {
		n := inFlight.Add(1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
	})
	time.Sleep(150 * time.Millisecond)
	m.Stop(h)

	if maxInFlight.Load() != 1 {
		t.Errorf("max concurrent callbacks = %d, want 1", maxInFlight.Load())
	}
	if inFlight.Load() != 0 {
		t.Error("Stop returned while a callback was still running")
	}
}

// TestMonitorIndependentSubscriptions verifies stopping one subscription leaves others running.
func TestMonitorIndependentSubscriptions(t *testing.T) {
	p := &countingPlatform{Simulated: NewSimulated(testLogger())}
	m := NewMonitor(p, 10*time.Millisecond, testLogger())

	var a, b atomic.Int32
	ha := m.Start(func(Reading) { a.Add(1) })
	hb := m.Start(func(Reading) { b.Add(1) })
	if ha == hb {
		t.Fatal("handles collide")
	}

	m.Stop(ha)
	before := b.Load()
	time.Sleep(60 * time.Millisecond)
	if b.Load() <= before {
		t.Error("second subscription stopped with the first")
	}
	m.StopAll()
	if m.Active() != 0 {
		t.Errorf("Active = %d after StopAll", m.Active())
	}
}

// TestMonitorDefaultInterval verifies each platform gets its own polling default.
func TestMonitorDefaultInterval(t *testing.T) {
	if got := NewMonitor(NewSimulated(testLogger()), 0, testLogger()).Interval(); got != 2*time.Second {
		t.Errorf("simulated interval = %v, want 2s", got)
	}
	n := NewNative("127.0.0.1", 1, time.Second, testLogger())
	if got := NewMonitor(n, 0, testLogger()).Interval(); got != 5*time.Second {
		t.Errorf("native interval = %v, want 5s", got)
	}
}
