// Package power drives the relay, shutdown-request and acknowledgment lines
// of a downstream board. It holds no timing policy; see package logic.
package power

import (
	"fmt"

	"github.com/sweeney/pi-power/internal/gpio"
)

// Controller translates power-lifecycle intents into line levels.
// Not safe for concurrent use: it is owned by the single sequencing loop.
type Controller struct {
	lines gpio.Lines

	powered           bool
	shutdownRequested bool
}

// New binds the controller to its lines and drives the outputs to their idle
// levels: power off, no shutdown requested.
func New(lines gpio.Lines) (*Controller, error) {
	c := &Controller{lines: lines}
	if err := c.lines.Relay.SetValue(gpio.High); err != nil {
		return nil, fmt.Errorf("idle relay: %w", err)
	}
	if err := c.lines.Request.SetValue(gpio.Low); err != nil {
		return nil, fmt.Errorf("idle shutdown request: %w", err)
	}
	return c, nil
}

// PowerOn energizes the relay and clears any shutdown request.
// Calling it while already powered re-asserts the same levels.
func (c *Controller) PowerOn() error {
	if err := c.lines.Request.SetValue(gpio.Low); err != nil {
		return fmt.Errorf("clear shutdown request: %w", err)
	}
	c.shutdownRequested = false

	if err := c.lines.Relay.SetValue(gpio.Low); err != nil {
		return fmt.Errorf("energize relay: %w", err)
	}
	c.powered = true
	return nil
}

// RequestShutdown raises the request line once per power cycle.
// It is a no-op while unpowered or when a request is already pending.
func (c *Controller) RequestShutdown() error {
	if !c.powered || c.shutdownRequested {
		return nil
	}
	if err := c.lines.Request.SetValue(gpio.High); err != nil {
		return fmt.Errorf("raise shutdown request: %w", err)
	}
	c.shutdownRequested = true
	return nil
}

// Acknowledged reads the ack line. The board pulls it low when it is ready
// to lose power. The result is never cached.
func (c *Controller) Acknowledged() (bool, error) {
	v, err := c.lines.Ack.Value()
	if err != nil {
		return false, fmt.Errorf("read ack: %w", err)
	}
	return v == gpio.Low, nil
}

// PowerOff de-energizes the relay unconditionally and clears both flags.
// The relay is written first. If only the request line then fails, the board
// is unpowered, IsPowered reports false and the error is still returned.
func (c *Controller) PowerOff() error {
	if err := c.lines.Relay.SetValue(gpio.High); err != nil {
		return fmt.Errorf("de-energize relay: %w", err)
	}
	c.powered = false
	c.shutdownRequested = false

	if err := c.lines.Request.SetValue(gpio.Low); err != nil {
		return fmt.Errorf("clear shutdown request: %w", err)
	}
	return nil
}

// IsPowered reports whether the relay is energized.
func (c *Controller) IsPowered() bool {
	return c.powered
}

// IsShutdownRequested reports whether a request was issued since the last power-on.
func (c *Controller) IsShutdownRequested() bool {
	return c.shutdownRequested
}
