//go:build !linux

package gpio

import "errors"

// RealLines is not available on non-Linux platforms.
type RealLines struct{}

// Open returns an error on non-Linux platforms.
func Open(pins Pins) (*RealLines, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Peek returns an error on non-Linux platforms.
func Peek(pins Pins) (relay, request, ack int, err error) {
	return 0, 0, 0, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Lines returns an empty bundle.
func (r *RealLines) Lines() Lines {
	return Lines{}
}

// Close is a no-op on non-Linux platforms.
func (r *RealLines) Close() error {
	return nil
}
