// Package sampling gates per-sensor sampling to a target frequency.
package sampling

import "time"

// SampleClock tracks the two most recent accepted sample times of one
// sensor and a rolling counter that throttles diagnostics. It is not safe
// for concurrent use.
type SampleClock struct {
	period   float64
	logEvery int

	last    time.Time
	prior   time.Time
	counter int
}

// NewSampleClock returns a clock for frequency Hz whose Accept reports every
// logEvery-th sample. Both timestamps start at start.
func NewSampleClock(frequency float64, logEvery int, start time.Time) *SampleClock {
	return &SampleClock{
		period:   1000 / frequency,
		logEvery: logEvery,
		last:     start,
		prior:    start,
	}
}

// Period is the minimum spacing of two accepted samples in milliseconds.
func (c *SampleClock) Period() float64 {
	return c.period
}

// Elapsed is the time since the last accepted sample.
func (c *SampleClock) Elapsed(now time.Time) time.Duration {
	return now.Sub(c.last)
}

// IsDue reports whether at least one period has passed since the last
// accepted sample.
func (c *SampleClock) IsDue(now time.Time) bool {
	return milliseconds(c.Elapsed(now)) >= c.period
}

// Accept records a sample taken at now. It returns true on every
// logEvery-th call, when a diagnostic should be emitted.
func (c *SampleClock) Accept(now time.Time) bool {
	c.prior, c.last = c.last, now

	c.counter++
	if c.counter >= c.logEvery {
		c.counter = 0
		return true
	}

	return false
}

// Interval is the spacing of the two most recent accepted samples.
func (c *SampleClock) Interval() time.Duration {
	return c.last.Sub(c.prior)
}

// Last is the time of the most recent accepted sample.
func (c *SampleClock) Last() time.Time {
	return c.last
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
