// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock injects time into code that would otherwise read it
// ambiently.
//
// Capability validity is a function of the evaluation instant, and
// the daemon sweeps its revocation registry on a period. Both take a
// [Clock]: [Real] in production, [Fake] in tests. A FakeClock stands
// still until the test calls Advance, which also fires any due
// tickers, so expiry and maintenance behavior is exercised without
// sleeping.
//
// Tests that hand a FakeClock to another goroutine should call
// WaitForTimers before Advance; otherwise the advance can race the
// goroutine's NewTicker registration.
package clock
