package logic

import "time"

// Heartbeat decides when a periodic liveness event is due. The first beat is
// one interval after start.
type Heartbeat struct {
	interval time.Duration
	last     Millis
}

// NewHeartbeat creates a Heartbeat counting from start.
// An interval of zero or less disables it.
func NewHeartbeat(interval time.Duration, start Millis) *Heartbeat {
	return &Heartbeat{interval: interval, last: start}
}

// Due reports whether the interval has elapsed since the last beat (or start).
// When it has, the next interval starts at now.
func (h *Heartbeat) Due(now Millis) bool {
	if h.interval <= 0 {
		return false
	}
	if Since(now, h.last) < h.interval {
		return false
	}
	h.last = now
	return true
}
