// Package status provides a thread-safe status tracker for the pi-power daemon.
// The run loop writes it on every tick; HTTP handlers read snapshots.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/pi-power/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	HeartbeatMs int64 // 0 = disabled
	Chip        string
	PinRelay    int
	PinRequest  int
	PinAck      int
	Broker      string // empty = MQTT disabled
	HTTPAddr    string
}

// Power is the sequencer and controller state at the last tick.
type Power struct {
	State             logic.State
	Powered           bool
	ShutdownRequested bool
	Acknowledged      bool
	Remaining         time.Duration
	Counts            logic.EventCounts
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Power
	LastEvent     logic.EventType
	LastEventTime time.Time
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Power:     Power{State: logic.StateIdle},
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update replaces the power state. Called from runLoop on every tick.
func (t *Tracker) Update(p Power) {
	t.mu.Lock()
	t.snap.Power = p
	t.mu.Unlock()
}

// RecordEvent remembers the most recent sequencing event.
func (t *Tracker) RecordEvent(e logic.Event) {
	t.mu.Lock()
	t.snap.LastEvent = e.Type
	t.snap.LastEventTime = e.Timestamp
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
