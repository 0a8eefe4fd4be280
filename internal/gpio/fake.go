package gpio

// FakeOutput is a test double that records every value written to it.
type FakeOutput struct {
	// Writes contains all values written, in order.
	Writes []int

	// WriteError, if set, is returned by SetValue and nothing is recorded.
	WriteError error

	value int
}

// NewFakeOutput creates a FakeOutput currently at the given level.
func NewFakeOutput(initial int) *FakeOutput {
	return &FakeOutput{value: initial}
}

// SetValue records the value.
func (f *FakeOutput) SetValue(value int) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Writes = append(f.Writes, value)
	f.value = value
	return nil
}

// Value returns the last level written.
func (f *FakeOutput) Value() int {
	return f.value
}

// CountWrites returns how many times value was written.
func (f *FakeOutput) CountWrites(value int) int {
	n := 0
	for _, w := range f.Writes {
		if w == value {
			n++
		}
	}
	return n
}

// FakeInput is a test double that returns a settable level.
type FakeInput struct {
	// Level is returned by Value. Tests flip it to simulate the downstream board.
	Level int

	// ReadError, if set, is returned by Value.
	ReadError error

	// Reads counts calls to Value.
	Reads int
}

// NewFakeInput creates a FakeInput at the given level.
func NewFakeInput(level int) *FakeInput {
	return &FakeInput{Level: level}
}

// Value returns the current level.
func (f *FakeInput) Value() (int, error) {
	f.Reads++
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	return f.Level, nil
}

// FakeLines holds a full set of fakes wired into a Lines bundle.
type FakeLines struct {
	Relay   *FakeOutput
	Request *FakeOutput
	Ack     *FakeInput
}

// NewFakeLines returns fakes at power-up levels: relay and request low, ack
// pulled high (not acknowledged).
func NewFakeLines() *FakeLines {
	return &FakeLines{
		Relay:   NewFakeOutput(Low),
		Request: NewFakeOutput(Low),
		Ack:     NewFakeInput(High),
	}
}

// Lines returns the bundle backed by the fakes.
func (f *FakeLines) Lines() Lines {
	return Lines{Relay: f.Relay, Request: f.Request, Ack: f.Ack}
}
