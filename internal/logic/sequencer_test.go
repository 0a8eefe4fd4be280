package logic

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeController records calls and mirrors the power controller's flag rules.
type fakeController struct {
	powered   bool
	requested bool
	ack       bool

	powerOnErr  error
	requestErr  error
	ackErr      error
	powerOffErr error
	cleanupErr  error // returned by PowerOff after the relay is cut

	powerOns  int
	requests  int
	ackReads  int
	powerOffs int
}

func (f *fakeController) PowerOn() error {
	if f.powerOnErr != nil {
		return f.powerOnErr
	}
	f.powerOns++
	f.powered = true
	f.requested = false
	return nil
}

func (f *fakeController) RequestShutdown() error {
	if f.requestErr != nil {
		return f.requestErr
	}
	if f.powered && !f.requested {
		f.requests++
		f.requested = true
	}
	return nil
}

func (f *fakeController) Acknowledged() (bool, error) {
	f.ackReads++
	if f.ackErr != nil {
		return false, f.ackErr
	}
	return f.ack, nil
}

func (f *fakeController) PowerOff() error {
	if f.powerOffErr != nil {
		return f.powerOffErr
	}
	f.powerOffs++
	f.powered = false
	f.requested = false
	return f.cleanupErr
}

func (f *fakeController) IsPowered() bool           { return f.powered }
func (f *fakeController) IsShutdownRequested() bool { return f.requested }

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func input(ms Millis) Input {
	return Input{Now: ms, Time: epoch.Add(time.Duration(ms) * time.Millisecond)}
}

// drive steps the sequencer from (exclusive) to (inclusive) in step-sized
// ticks. before, if set, runs ahead of each tick so tests can move the ack line.
func drive(t *testing.T, s *Sequencer, from, to, step Millis, before func(now Millis)) []Event {
	t.Helper()
	var all []Event
	for now := from + step; now <= to; now += step {
		if before != nil {
			before(now)
		}
		events, err := s.Step(input(now))
		require.NoError(t, err, "tick at %dms", now)
		all = append(all, events...)
	}
	return all
}

func startedSequencer(t *testing.T, at Millis) (*Sequencer, *fakeController) {
	t.Helper()
	c := &fakeController{}
	s := NewSequencer(c)
	events, err := s.Start(input(at))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, EventPowerOn, events[0].Type)
	return s, c
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func TestNewSequencerIsIdle(t *testing.T) {
	c := &fakeController{}
	s := NewSequencer(c)

	assert.Equal(t, StateIdle, s.State())
	events, err := s.Step(input(60000))
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Zero(t, c.powerOns+c.requests+c.ackReads+c.powerOffs, "idle sequencer touches nothing")
}

func TestStartPowersOn(t *testing.T) {
	c := &fakeController{}
	s := NewSequencer(c)

	events, err := s.Start(input(0))
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, EventPowerOn, events[0].Type)
	assert.Equal(t, StateAwaitingRequestTime, events[0].State)
	assert.Equal(t, epoch, events[0].Timestamp)
	assert.True(t, s.Powered())
	assert.False(t, s.ShutdownRequested())
}

func TestStartError(t *testing.T) {
	c := &fakeController{powerOnErr: errors.New("eio")}
	s := NewSequencer(c)

	_, err := s.Start(input(0))
	require.Error(t, err)
	assert.Equal(t, StateIdle, s.State())
}

func TestGraceBoundary(t *testing.T) {
	s, c := startedSequencer(t, 0)

	events, err := s.Step(input(19999))
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, 0, c.requests)

	events, err = s.Step(input(20000))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventShutdownRequested, events[0].Type)
	assert.Equal(t, StateAwaitingAck, s.State())
	assert.Equal(t, 1, c.requests)
}

func TestScenarioNominal(t *testing.T) {
	s, c := startedSequencer(t, 0)

	events := drive(t, s, 0, 60000, 100, func(now Millis) {
		if now == 20500 {
			c.ack = true
		}
	})

	require.Equal(t, []EventType{EventShutdownRequested, EventAckReceived, EventPowerOff}, eventTypes(events))
	assert.Equal(t, Millis(20000), events[0].At)
	assert.Equal(t, Millis(20500), events[1].At)
	assert.Equal(t, Millis(50500), events[2].At)
	assert.Equal(t, epoch.Add(50500*time.Millisecond), events[2].Timestamp)

	assert.Equal(t, StateHalted, s.State())
	assert.False(t, s.Powered())
	assert.Equal(t, 1, c.requests)
	assert.Equal(t, 1, c.powerOffs)
}

func TestSafetyMarginBoundary(t *testing.T) {
	s, c := startedSequencer(t, 0)
	c.ack = true
	drive(t, s, 0, 20000, 20000, nil)
	require.Equal(t, StateAwaitingSafeCut, s.State())

	events, err := s.Step(input(49999))
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.True(t, s.Powered())

	events, err = s.Step(input(50000))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventPowerOff, events[0].Type)
}

func TestRequestAndAckInSameTick(t *testing.T) {
	s, c := startedSequencer(t, 0)
	c.ack = true

	events, err := s.Step(input(20000))
	require.NoError(t, err)
	assert.Equal(t, []EventType{EventShutdownRequested, EventAckReceived}, eventTypes(events))
	assert.Equal(t, StateAwaitingSafeCut, s.State())
}

func TestScenarioNoAck(t *testing.T) {
	s, c := startedSequencer(t, 0)

	events := drive(t, s, 0, 10*60*1000, 200, nil)

	require.Equal(t, []EventType{EventShutdownRequested}, eventTypes(events))
	assert.Equal(t, StateAwaitingAck, s.State())
	assert.Equal(t, 1, c.requests, "no retry of the request")
	assert.Equal(t, 0, c.powerOffs, "never cut without ack")
	assert.True(t, s.Powered())
	assert.Zero(t, s.Remaining(10*60*1000))
}

func TestAckPulseOneIntervalIsCaught(t *testing.T) {
	const interval = Millis(MaxPollInterval / time.Millisecond)

	// Slide a pulse exactly one interval wide across every phase of the tick grid.
	for offset := Millis(0); offset < interval; offset += 10 {
		pulseStart := 21000 + offset
		pulseEnd := pulseStart + interval

		s, c := startedSequencer(t, 0)
		events := drive(t, s, 0, 60000, interval, func(now Millis) {
			c.ack = now >= pulseStart && now < pulseEnd
		})

		types := eventTypes(events)
		require.Contains(t, types, EventAckReceived, "pulse at %dms missed", pulseStart)
		assert.Contains(t, types, EventAckDeasserted)
		assert.Equal(t, StateHalted, s.State(), "cut proceeds after a captured ack")
	}
}

func TestAckDeassertedAndReasserted(t *testing.T) {
	s, c := startedSequencer(t, 0)
	c.ack = true
	_, err := s.Step(input(20000))
	require.NoError(t, err)

	c.ack = false
	events, err := s.Step(input(21000))
	require.NoError(t, err)
	require.Equal(t, []EventType{EventAckDeasserted}, eventTypes(events))
	assert.False(t, s.Acknowledged())

	events, err = s.Step(input(22000))
	require.NoError(t, err)
	assert.Empty(t, events, "one event per change")

	c.ack = true
	events, err = s.Step(input(23000))
	require.NoError(t, err)
	require.Equal(t, []EventType{EventAckReasserted}, eventTypes(events))
	assert.True(t, s.Acknowledged())

	counts := s.EventCountsSnapshot()
	assert.Equal(t, 1, counts.AckDeasserted)
	assert.Equal(t, 1, counts.AckReasserted)
}

func TestHaltedIsTerminal(t *testing.T) {
	s, c := startedSequencer(t, 0)
	c.ack = true
	drive(t, s, 0, 50000, 1000, nil)
	require.Equal(t, StateHalted, s.State())
	reads := c.ackReads

	events := drive(t, s, 50000, 120000, 1000, nil)
	assert.Empty(t, events)
	assert.Equal(t, reads, c.ackReads)
	assert.Equal(t, 1, c.powerOffs)
	assert.Equal(t, 1, c.powerOns)
}

func TestRestartAfterHalt(t *testing.T) {
	s, c := startedSequencer(t, 0)
	c.ack = true
	drive(t, s, 0, 50000, 1000, nil)
	require.Equal(t, StateHalted, s.State())
	c.ack = false

	events, err := s.Start(input(100000))
	require.NoError(t, err)
	require.Equal(t, []EventType{EventPowerOn}, eventTypes(events))
	assert.False(t, s.ShutdownRequested())

	events = drive(t, s, 100000, 120000, 1000, nil)
	assert.Equal(t, []EventType{EventShutdownRequested}, eventTypes(events))
	assert.Equal(t, 2, c.requests)
}

func TestWraparound(t *testing.T) {
	start := Millis(math.MaxUint32 - 5000)
	s, c := startedSequencer(t, start)

	events, err := s.Step(input(start + 19000)) // wrapped past zero
	require.NoError(t, err)
	assert.Empty(t, events, "wrapped counter must not look like a huge elapsed time")

	events, err = s.Step(input(start + 20000))
	require.NoError(t, err)
	require.Equal(t, []EventType{EventShutdownRequested}, eventTypes(events))
	assert.Less(t, uint32(events[0].At), uint32(start), "counter wrapped")

	c.ack = true
	ackAt := start + 21000
	_, err = s.Step(input(ackAt))
	require.NoError(t, err)

	events, err = s.Step(input(ackAt + 29999))
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = s.Step(input(ackAt + 30000))
	require.NoError(t, err)
	assert.Equal(t, []EventType{EventPowerOff}, eventTypes(events))
}

func TestRequestErrorRetriesNextTick(t *testing.T) {
	s, c := startedSequencer(t, 0)
	c.requestErr = errors.New("eio")

	events, err := s.Step(input(20000))
	require.Error(t, err)
	assert.Empty(t, events)
	assert.Equal(t, StateAwaitingRequestTime, s.State())

	c.requestErr = nil
	events, err = s.Step(input(20200))
	require.NoError(t, err)
	assert.Equal(t, []EventType{EventShutdownRequested}, eventTypes(events))
}

func TestAckReadErrorKeepsWaiting(t *testing.T) {
	s, c := startedSequencer(t, 0)
	_, err := s.Step(input(20000))
	require.NoError(t, err)

	c.ack = true
	c.ackErr = errors.New("eio")
	events, err := s.Step(input(20200))
	require.Error(t, err)
	assert.Empty(t, events)
	assert.Equal(t, StateAwaitingAck, s.State())

	c.ackErr = nil
	events, err = s.Step(input(20400))
	require.NoError(t, err)
	assert.Equal(t, []EventType{EventAckReceived}, eventTypes(events))
}

func TestAckReadErrorDoesNotBlockCut(t *testing.T) {
	s, c := startedSequencer(t, 0)
	c.ack = true
	_, err := s.Step(input(20000))
	require.NoError(t, err)

	c.ackErr = errors.New("eio")
	events, err := s.Step(input(50000))
	require.Error(t, err)
	assert.Equal(t, []EventType{EventPowerOff}, eventTypes(events))
	assert.Equal(t, StateHalted, s.State())
}

func TestPowerOffErrorRetriesNextTick(t *testing.T) {
	s, c := startedSequencer(t, 0)
	c.ack = true
	_, err := s.Step(input(20000))
	require.NoError(t, err)

	c.powerOffErr = errors.New("eio")
	_, err = s.Step(input(50000))
	require.Error(t, err)
	assert.Equal(t, StateAwaitingSafeCut, s.State())
	assert.True(t, s.Powered())

	c.powerOffErr = nil
	events, err := s.Step(input(50200))
	require.NoError(t, err)
	assert.Equal(t, []EventType{EventPowerOff}, eventTypes(events))
}

func TestPowerOffCleanupErrorStillHalts(t *testing.T) {
	s, c := startedSequencer(t, 0)
	c.ack = true
	_, err := s.Step(input(20000))
	require.NoError(t, err)

	c.cleanupErr = errors.New("clear shutdown request: eio")
	events, err := s.Step(input(50000))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clear shutdown request")
	assert.Equal(t, []EventType{EventPowerOff}, eventTypes(events))
	assert.Equal(t, StateHalted, s.State())
	assert.False(t, s.Powered())

	// Halted: no second cut, no further errors.
	events, err = s.Step(input(60000))
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, 1, c.powerOffs)
}

func TestRemaining(t *testing.T) {
	c := &fakeController{}
	s := NewSequencer(c)
	assert.Zero(t, s.Remaining(0), "idle")

	_, err := s.Start(input(1000))
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, s.Remaining(6000))

	_, err = s.Step(input(21000))
	require.NoError(t, err)
	assert.Zero(t, s.Remaining(21000), "ack wait has no deadline")

	c.ack = true
	_, err = s.Step(input(22000))
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, s.Remaining(32000))
	assert.Zero(t, s.Remaining(52000))
}

func TestEventCounts(t *testing.T) {
	s, c := startedSequencer(t, 0)
	c.ack = true
	drive(t, s, 0, 60000, 500, nil)

	counts := s.EventCountsSnapshot()
	assert.Equal(t, EventCounts{
		PowerOn:           1,
		ShutdownRequested: 1,
		AckReceived:       1,
		PowerOff:          1,
	}, counts)
}
