package logic

import (
	"errors"
	"fmt"
	"time"
)

// Controller is the subset of the power controller the sequencer drives.
type Controller interface {
	PowerOn() error
	RequestShutdown() error
	Acknowledged() (bool, error)
	PowerOff() error
	IsPowered() bool
	IsShutdownRequested() bool
}

// Sequencer runs the graceful power-down protocol:
// power on, wait GracePeriod, request shutdown, wait for ack,
// wait SafetyMargin, cut power.
//
// There is no timeout on the ack wait. A board that never acknowledges
// keeps power.
type Sequencer struct {
	ctrl Controller

	state     State
	poweredAt Millis
	ackAt     Millis
	ackLive   bool
	counts    EventCounts
}

// NewSequencer creates an idle sequencer for the given controller.
func NewSequencer(ctrl Controller) *Sequencer {
	return &Sequencer{
		ctrl:  ctrl,
		state: StateIdle,
	}
}

// Start powers the board on and begins a new cycle at in.Now.
func (s *Sequencer) Start(in Input) ([]Event, error) {
	if err := s.ctrl.PowerOn(); err != nil {
		return nil, fmt.Errorf("power on: %w", err)
	}
	s.poweredAt = in.Now
	s.ackLive = false
	s.state = StateAwaitingRequestTime
	return []Event{s.emit(in, EventPowerOn)}, nil
}

// Step advances the state machine by one tick and returns the events it caused.
// A failed line operation leaves the state unchanged so the next tick retries it.
func (s *Sequencer) Step(in Input) ([]Event, error) {
	var events []Event

	if s.state == StateAwaitingRequestTime && Since(in.Now, s.poweredAt) >= GracePeriod {
		if err := s.ctrl.RequestShutdown(); err != nil {
			return nil, fmt.Errorf("request shutdown: %w", err)
		}
		s.state = StateAwaitingAck
		events = append(events, s.emit(in, EventShutdownRequested))
	}

	switch s.state {
	case StateAwaitingAck:
		acked, err := s.ctrl.Acknowledged()
		if err != nil {
			// Unreadable counts as not acknowledged.
			s.ackLive = false
			return events, err
		}
		s.ackLive = acked
		if acked {
			s.ackAt = in.Now
			s.state = StateAwaitingSafeCut
			events = append(events, s.emit(in, EventAckReceived))
		}

	case StateAwaitingSafeCut:
		var errs []error

		// Diagnostic only: a drop is reported but does not cancel the cut.
		acked, err := s.ctrl.Acknowledged()
		if err != nil {
			errs = append(errs, err)
		} else if acked != s.ackLive {
			s.ackLive = acked
			if acked {
				events = append(events, s.emit(in, EventAckReasserted))
			} else {
				events = append(events, s.emit(in, EventAckDeasserted))
			}
		}

		if Since(in.Now, s.ackAt) >= SafetyMargin {
			if err := s.ctrl.PowerOff(); err != nil {
				errs = append(errs, fmt.Errorf("power off: %w", err))
			}
			// The relay write decides the cut. A later cleanup failure is
			// reported but the board is already unpowered.
			if !s.ctrl.IsPowered() {
				s.state = StateHalted
				events = append(events, s.emit(in, EventPowerOff))
			}
		}

		if len(errs) > 0 {
			return events, errors.Join(errs...)
		}
	}

	return events, nil
}

func (s *Sequencer) emit(in Input, t EventType) Event {
	s.counts.add(t)
	return Event{
		Timestamp: in.Time,
		At:        in.Now,
		Type:      t,
		State:     s.state,
	}
}

// State returns the current state.
func (s *Sequencer) State() State {
	return s.state
}

// Acknowledged returns the ack level observed on the last tick that read it.
func (s *Sequencer) Acknowledged() bool {
	return s.ackLive
}

// Remaining returns the time left until the next timed transition, or 0 if
// none is pending (idle, waiting for ack, or halted).
func (s *Sequencer) Remaining(now Millis) time.Duration {
	var deadline time.Duration
	var since time.Duration
	switch s.state {
	case StateAwaitingRequestTime:
		deadline, since = GracePeriod, Since(now, s.poweredAt)
	case StateAwaitingSafeCut:
		deadline, since = SafetyMargin, Since(now, s.ackAt)
	default:
		return 0
	}
	if since >= deadline {
		return 0
	}
	return deadline - since
}

// Powered reports the controller's cached power flag.
func (s *Sequencer) Powered() bool {
	return s.ctrl.IsPowered()
}

// ShutdownRequested reports the controller's cached request flag.
func (s *Sequencer) ShutdownRequested() bool {
	return s.ctrl.IsShutdownRequested()
}

// EventCountsSnapshot returns a copy of the event counts.
func (s *Sequencer) EventCountsSnapshot() EventCounts {
	return s.counts
}
