package testutil

import "sync"

// FakeClock is a settable millisecond clock for tests.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu  sync.Mutex
	now int64
}

// NewFakeClock creates a clock reading start.
func NewFakeClock(start int64) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the current reading. Implements recorder.Clock.
func (c *FakeClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to ms. Moving backwards is allowed, to exercise
// out-of-order arrival.
func (c *FakeClock) Set(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = ms
}

// Advance moves the clock forward by ms and returns the new reading.
func (c *FakeClock) Advance(ms int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += ms
	return c.now
}
