// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the time source for testability. Production
// code injects Real(); tests inject Fake() with deterministic time
// control.
//
// The ledger core never schedules, sleeps, or waits — every temporal
// rule (registration deadlines, refund windows, validator expiry) is a
// comparison against the timestamp of the enclosing transaction. The
// Clock interface is therefore deliberately small: it answers "what
// time is it" and nothing else.
package clock

import (
	"sync"
	"time"
)

// Clock is the injectable time source. Every production function that
// would call time.Now should accept a Clock (or be a method on a
// struct with a Clock field) instead of calling the time package
// directly.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Fake returns a FakeClock initialized to the given time. Time stands
// still until Advance or Set is called.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// FakeClock is a deterministic Clock for testing. Time advances only
// when the test says so.
//
// FakeClock is safe for concurrent use by multiple goroutines.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

// Now returns the fake's current time.
func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Advance moves the clock forward by d. Negative durations panic:
// ledger timestamps are monotonic and a test that needs time to move
// backward is testing something the production clock cannot do.
func (f *FakeClock) Advance(d time.Duration) {
	if d < 0 {
		panic("clock: Advance called with negative duration")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

// Set jumps the clock to the given instant. Panics if t is earlier
// than the current fake time.
func (f *FakeClock) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.Before(f.current) {
		panic("clock: Set called with a time in the past")
	}
	f.current = t
}
