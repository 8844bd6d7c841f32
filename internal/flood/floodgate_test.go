package flood

import (
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestGate(limit int) (*Floodgate, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 12, 1, 20, 0, 0, 0, time.UTC)}
	fg := New(limit)
	fg.mutex.Lock()
	fg.now = clock.Now
	fg.mutex.Unlock()
	return fg, clock
}

func TestFloodgate_Allow_AllowsNormalUsage(t *testing.T) {
	fg, _ := newTestGate(3)
	defer fg.Stop()

	for i := 0; i < 3; i++ {
		if !fg.Allow("10.0.0.1") {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	if fg.Allow("10.0.0.1") {
		t.Error("4th request should be blocked")
	}
}

func TestFloodgate_Allow_SlidingWindow(t *testing.T) {
	fg, clock := newTestGate(2)
	defer fg.Stop()

	fg.Allow("10.0.0.1")
	clock.Advance(30 * time.Second)
	fg.Allow("10.0.0.1")

	if fg.Allow("10.0.0.1") {
		t.Error("Third request inside the window should be blocked")
	}

	if got := fg.RetryAfter("10.0.0.1"); got != 30*time.Second {
		t.Errorf("Expected 30s until the oldest request leaves the window, got %v", got)
	}

	clock.Advance(31 * time.Second)
	if !fg.Allow("10.0.0.1") {
		t.Error("Request should be allowed once the oldest one left the window")
	}
	if fg.Allow("10.0.0.1") {
		t.Error("Window should be full again")
	}
}

func TestFloodgate_Allow_PerClient(t *testing.T) {
	fg, _ := newTestGate(1)
	defer fg.Stop()

	if !fg.Allow("10.0.0.1") || !fg.Allow("10.0.0.2") {
		t.Error("Each client has its own budget")
	}
	if fg.Allow("10.0.0.1") || fg.Allow("10.0.0.2") {
		t.Error("Both clients should now be at their limit")
	}
}

func TestFloodgate_Allow_DisabledWithZeroLimit(t *testing.T) {
	fg, _ := newTestGate(0)
	defer fg.Stop()

	for i := 0; i < 100; i++ {
		if !fg.Allow("10.0.0.1") {
			t.Fatal("A zero limit disables the gate")
		}
	}
	if fg.RetryAfter("10.0.0.1") != 0 {
		t.Error("Disabled gate never asks to wait")
	}
}

func TestFloodgate_Cleanup(t *testing.T) {
	fg, clock := newTestGate(5)
	defer fg.Stop()

	fg.Allow("10.0.0.1")
	clock.Advance(5 * time.Minute)
	fg.Allow("10.0.0.2")

	clock.Advance(6 * time.Minute)
	fg.performCleanup()

	stats := fg.GetStats()
	if stats.ActiveClients != 1 {
		t.Errorf("Expected only the recently seen client to remain, got %d", stats.ActiveClients)
	}
}

func TestFloodgate_GetStats(t *testing.T) {
	fg, _ := newTestGate(5)
	defer fg.Stop()

	stats := fg.GetStats()
	if stats.ActiveClients != 0 {
		t.Errorf("Expected 0 active clients initially, got %d", stats.ActiveClients)
	}
	if stats.LimitPerMinute != 5 {
		t.Errorf("Expected limit per minute 5, got %d", stats.LimitPerMinute)
	}
	if stats.WindowSeconds != 60 {
		t.Errorf("Expected window seconds 60, got %d", stats.WindowSeconds)
	}

	fg.Allow("10.0.0.1")
	fg.Allow("10.0.0.2")
	if got := fg.GetStats().ActiveClients; got != 2 {
		t.Errorf("Expected 2 active clients, got %d", got)
	}
}

func TestFloodgate_StopIsIdempotent(t *testing.T) {
	fg := New(1)
	fg.Stop()
	fg.Stop()
}
