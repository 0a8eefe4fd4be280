package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateFlags(t *testing.T) {
	tests := []struct {
		state     State
		powered   bool
		requested bool
	}{
		{StateIdle, false, false},
		{StateAwaitingRequestTime, true, false},
		{StateAwaitingAck, true, true},
		{StateAwaitingSafeCut, true, true},
		{StateHalted, false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.powered, tt.state.Powered(), "%s powered", tt.state)
		assert.Equal(t, tt.requested, tt.state.ShutdownRequested(), "%s requested", tt.state)
	}
}
