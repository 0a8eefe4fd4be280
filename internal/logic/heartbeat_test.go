package logic

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHeartbeatDue(t *testing.T) {
	h := NewHeartbeat(10*time.Second, 0)

	var beats []Millis
	for now := Millis(0); now <= 35000; now += 500 {
		if h.Due(now) {
			beats = append(beats, now)
		}
	}
	assert.Equal(t, []Millis{10000, 20000, 30000}, beats)
}

func TestHeartbeatRestartsFromLateBeat(t *testing.T) {
	h := NewHeartbeat(10*time.Second, 0)

	assert.True(t, h.Due(12000), "late tick still beats")
	assert.False(t, h.Due(21000))
	assert.True(t, h.Due(22000))
}

func TestHeartbeatDisabled(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		h := NewHeartbeat(interval, 0)
		assert.False(t, h.Due(0))
		assert.False(t, h.Due(math.MaxUint32))
	}
}

func TestHeartbeatAcrossWrap(t *testing.T) {
	start := Millis(math.MaxUint32 - 4000)
	h := NewHeartbeat(10*time.Second, start)

	assert.False(t, h.Due(start+9999))
	assert.True(t, h.Due(start+10000))
}
