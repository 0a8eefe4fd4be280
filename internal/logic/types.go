// Package logic contains the pure power-down sequencing state machine.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via Input values.
package logic

import "time"

// Policy constants. They exceed the downstream OS's worst-case graceful
// shutdown and are not configurable.
const (
	// GracePeriod is the dwell after power-on before a shutdown is requested.
	GracePeriod = 20 * time.Second
	// SafetyMargin is the dwell after acknowledgment before power is cut.
	SafetyMargin = 30 * time.Second
	// MaxPollInterval bounds the tick cadence so an ack held for one
	// interval is always observed.
	MaxPollInterval = 250 * time.Millisecond
)

// State is a sequencer state.
type State string

const (
	StateIdle                State = "IDLE"
	StateAwaitingRequestTime State = "AWAITING_REQUEST_TIME"
	StateAwaitingAck         State = "AWAITING_ACK"
	StateAwaitingSafeCut     State = "AWAITING_SAFE_CUT"
	StateHalted              State = "HALTED"
)

// Powered reports whether the relay is energized in state s.
func (s State) Powered() bool {
	switch s {
	case StateAwaitingRequestTime, StateAwaitingAck, StateAwaitingSafeCut:
		return true
	}
	return false
}

// ShutdownRequested reports whether the request line is raised in state s.
func (s State) ShutdownRequested() bool {
	return s == StateAwaitingAck || s == StateAwaitingSafeCut
}

// States lists every state in sequence order.
var States = []State{
	StateIdle,
	StateAwaitingRequestTime,
	StateAwaitingAck,
	StateAwaitingSafeCut,
	StateHalted,
}

// EventType identifies a transition or diagnostic observation.
type EventType string

const (
	EventPowerOn           EventType = "POWER_ON"
	EventShutdownRequested EventType = "SHUTDOWN_REQUESTED"
	EventAckReceived       EventType = "ACK_RECEIVED"
	EventAckDeasserted     EventType = "ACK_DEASSERTED"
	EventAckReasserted     EventType = "ACK_REASSERTED"
	EventPowerOff          EventType = "POWER_OFF"
)

// EventTypes lists every event type.
var EventTypes = []EventType{
	EventPowerOn,
	EventShutdownRequested,
	EventAckReceived,
	EventAckDeasserted,
	EventAckReasserted,
	EventPowerOff,
}

// Event is emitted on every state transition and ack change during the safe-cut wait.
type Event struct {
	Timestamp time.Time
	At        Millis
	Type      EventType
	// State is the state after the event.
	State State
}

// Input is a single tick.
type Input struct {
	Now  Millis    // monotonic counter, used for all timing
	Time time.Time // wall clock, only used to stamp events
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	PowerOn           int
	ShutdownRequested int
	AckReceived       int
	AckDeasserted     int
	AckReasserted     int
	PowerOff          int
}

func (c *EventCounts) add(t EventType) {
	switch t {
	case EventPowerOn:
		c.PowerOn++
	case EventShutdownRequested:
		c.ShutdownRequested++
	case EventAckReceived:
		c.AckReceived++
	case EventAckDeasserted:
		c.AckDeasserted++
	case EventAckReasserted:
		c.AckReasserted++
	case EventPowerOff:
		c.PowerOff++
	}
}
