// Package testutil holds deterministic helpers shared by package tests.
package testutil

import "sync"

// DeterministicClock is a thread-safe header timestamp source for tests.
//
// Each Next call returns Start plus a step, so revisions authored in a test
// get strictly increasing, reproducible timestamps. Pass clock.Next to
// ledger.WithClock.
type DeterministicClock struct {
	mu   sync.Mutex
	now  int64
	step int64
}

// NewDeterministicClock creates a clock at start advancing by one
// millisecond per call. The first Next returns start+1.
func NewDeterministicClock(start int64) *DeterministicClock {
	return &DeterministicClock{now: start, step: 1}
}

// Next advances the clock and returns the new time.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += c.step
	return c.now
}

// Current returns the last time handed out without advancing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t. The next call returns t+step.
// Moving backwards is allowed so tests can author concurrent revisions
// with equal or earlier timestamps.
func (c *DeterministicClock) Set(t int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Freeze stops the clock; every Next returns the current time.
func (c *DeterministicClock) Freeze() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = 0
}
