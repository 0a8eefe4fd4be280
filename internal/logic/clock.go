package logic

import "time"

// Millis is a millisecond counter that wraps at 2^32 (about 49.7 days).
type Millis uint32

// Since returns the time elapsed from then to now. The unsigned subtraction
// stays correct across a single wrap of the counter.
func Since(now, then Millis) time.Duration {
	return time.Duration(now-then) * time.Millisecond
}

// NewClock returns a Millis source counting from start. It relies on the
// monotonic reading carried by start, so wall-clock adjustments have no effect.
func NewClock(start time.Time) func() Millis {
	return func() Millis {
		return Millis(uint64(time.Since(start).Milliseconds()))
	}
}
