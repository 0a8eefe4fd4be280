// Package gpio provides the three power-sequencing signal lines with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Physical line levels.
const (
	Low  = 0
	High = 1
)

// Output drives a single line.
type Output interface {
	SetValue(value int) error
}

// Input reads a single line.
type Input interface {
	Value() (int, error)
}

// Lines bundles the signals between the sequencer and the downstream board.
//
//	Relay:   output, active-low (Low = power supplied)
//	Request: output, active-high (High = shutdown requested)
//	Ack:     input with pull-up, active-low (Low = safe to cut soon)
type Lines struct {
	Relay   Output
	Request Output
	Ack     Input
}

// Pins identifies the chip and line offsets to request.
type Pins struct {
	Chip    string
	Relay   int
	Request int
	Ack     int
}

// Default pin assignments (BCM numbering on gpiochip0).
const (
	DefaultChip       = "gpiochip0"
	DefaultPinRelay   = 23
	DefaultPinRequest = 24
	DefaultPinAck     = 25
)

// Consumer is the label the kernel shows for lines held by this daemon.
const Consumer = "pi-power"
