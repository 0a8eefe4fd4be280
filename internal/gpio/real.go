//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealLines holds lines requested from an actual GPIO chip.
type RealLines struct {
	chip    *gpiocdev.Chip
	relay   *gpiocdev.Line
	request *gpiocdev.Line
	ack     *gpiocdev.Line
}

// Open requests the three lines from the chip named in pins.
// Outputs are requested at their safe levels so there is no glitch between
// request and the first write: relay high (power removed), request low.
// The ack line is an input with pull-up so an undriven line reads "not acknowledged".
func Open(pins Pins) (*RealLines, error) {
	chip, err := gpiocdev.NewChip(pins.Chip, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", pins.Chip, err)
	}

	r := &RealLines{chip: chip}

	r.relay, err = chip.RequestLine(pins.Relay, gpiocdev.AsOutput(High))
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("request relay pin %d: %w", pins.Relay, err)
	}

	r.request, err = chip.RequestLine(pins.Request, gpiocdev.AsOutput(Low))
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("request shutdown-request pin %d: %w", pins.Request, err)
	}

	r.ack, err = chip.RequestLine(pins.Ack, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("request ack pin %d: %w", pins.Ack, err)
	}

	return r, nil
}

// Peek reads the current levels of the three lines without changing their
// direction or value. It fails if another process holds the lines.
func Peek(pins Pins) (relay, request, ack int, err error) {
	chip, err := gpiocdev.NewChip(pins.Chip, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("open gpio chip %s: %w", pins.Chip, err)
	}
	defer chip.Close()

	lines, err := chip.RequestLines([]int{pins.Relay, pins.Request, pins.Ack}, gpiocdev.AsIs)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("request lines: %w", err)
	}
	defer lines.Close()

	values := make([]int, 3)
	if err := lines.Values(values); err != nil {
		return 0, 0, 0, fmt.Errorf("read lines: %w", err)
	}
	return values[0], values[1], values[2], nil
}

// Lines returns the bundle for the power controller.
func (r *RealLines) Lines() Lines {
	return Lines{Relay: r.relay, Request: r.request, Ack: r.ack}
}

// Close releases GPIO resources.
// Lines are released as-is. The relay line must not be reconfigured
// as an input: a floating active-low relay input may energise the relay.
func (r *RealLines) Close() error {
	var errs []error

	for _, l := range []struct {
		name string
		line *gpiocdev.Line
	}{
		{"ack", r.ack},
		{"shutdown-request", r.request},
		{"relay", r.relay},
	} {
		if l.line == nil {
			continue
		}
		if err := l.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", l.name, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	return errors.Join(errs...)
}
