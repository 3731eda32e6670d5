// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock supplies the time operations kiln logic depends on. The
// authorizer reads Now for validity windows and the daemon schedules
// maintenance with NewTicker; anything that would otherwise call the
// time package directly takes a Clock so tests can drive it.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NewTicker returns a Ticker delivering ticks on its C channel
	// every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Real returns the Clock backed by the system time package.
func Real() Clock { return sysClock{} }

type sysClock struct{}

func (sysClock) Now() time.Time { return time.Now() }

func (sysClock) NewTicker(d time.Duration) *Ticker {
	t := time.NewTicker(d)
	return &Ticker{C: t.C, stop: t.Stop, reset: t.Reset}
}

// Ticker delivers periodic ticks on C. The channel has capacity 1,
// matching time.Ticker: a consumer that falls behind loses ticks
// rather than queueing them.
type Ticker struct {
	C <-chan time.Time

	stop  func()
	reset func(time.Duration)
}

// Stop turns the ticker off. C is not closed and keeps any tick
// already buffered.
func (t *Ticker) Stop() { t.stop() }

// Reset restarts the ticker with period d. The next tick arrives a
// full period from now. Resetting a stopped ticker turns it back on.
func (t *Ticker) Reset(d time.Duration) { t.reset(d) }
