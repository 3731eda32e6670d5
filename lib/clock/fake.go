// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// FakeClock is a Clock whose time moves only when a test calls
// Advance. Tickers created on it fire deterministically inside
// Advance, in deadline order.
//
// Safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers map[*fakeTicker]struct{}

	// changed is closed and replaced whenever the ticker set grows,
	// waking WaitForTimers.
	changed chan struct{}
}

type fakeTicker struct {
	ch     chan time.Time
	next   time.Time
	period time.Duration
}

// Fake returns a FakeClock frozen at start.
func Fake(start time.Time) *FakeClock {
	return &FakeClock{
		now:     start,
		tickers: make(map[*fakeTicker]struct{}),
		changed: make(chan struct{}),
	}
}

// Now returns the frozen time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NewTicker registers a deterministic ticker. Panics if d <= 0.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: ticker period must be positive")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	tk := &fakeTicker{
		ch:     make(chan time.Time, 1),
		next:   c.now.Add(d),
		period: d,
	}
	c.tickers[tk] = struct{}{}
	c.wakeLocked()

	return &Ticker{
		C: tk.ch,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.tickers, tk)
		},
		reset: func(d time.Duration) {
			c.mu.Lock()
			defer c.mu.Unlock()
			tk.period = d
			tk.next = c.now.Add(d)
			c.tickers[tk] = struct{}{}
			c.wakeLocked()
		},
	}
}

// Advance moves the clock to now+d, firing due tickers along the way.
// Each tick carries its scheduled deadline, not the final time. A
// ticker spanning several periods fires once per period, though ticks
// beyond the channel's capacity are dropped the way time.Ticker drops
// them.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := c.now.Add(d)
	for {
		tk := c.nextDueLocked(target)
		if tk == nil {
			break
		}
		c.now = tk.next
		select {
		case tk.ch <- tk.next:
		default:
		}
		tk.next = tk.next.Add(tk.period)
	}
	c.now = target
}

// nextDueLocked returns the ticker with the earliest deadline at or
// before target, or nil when none is due.
func (c *FakeClock) nextDueLocked(target time.Time) *fakeTicker {
	var due *fakeTicker
	for tk := range c.tickers {
		if tk.next.After(target) {
			continue
		}
		if due == nil || tk.next.Before(due.next) {
			due = tk
		}
	}
	return due
}

// PendingCount returns the number of registered tickers.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// WaitForTimers blocks until at least n tickers are registered. It
// closes the race between a goroutine setting up its ticker and the
// test advancing the clock:
//
//	go daemon.runCleanup(ctx) // registers a ticker
//	fakeClock.WaitForTimers(1)
//	fakeClock.Advance(time.Hour) // fires it deterministically
func (c *FakeClock) WaitForTimers(n int) {
	for {
		c.mu.Lock()
		if len(c.tickers) >= n {
			c.mu.Unlock()
			return
		}
		wait := c.changed
		c.mu.Unlock()
		<-wait
	}
}

func (c *FakeClock) wakeLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}
