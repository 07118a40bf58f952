package zune

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestFlowController_InitialWindow(t *testing.T) {
	var f = NewFlowController(1460)
	assert.Equal(t, uint32(4380), f.CWND())
	assert.True(t, f.InSlowStart())
}

func TestFlowController_SlowStartGrowsByAckedBytesCappedAt2MSS(t *testing.T) {
	var f = NewFlowController(1000)
	var before = f.CWND()
	f.OnAck(5000) // far more than 2*MSS acked in one cumulative ACK
	assert.Equal(t, before+2000, f.CWND())
}

func TestFlowController_LossHalvesWindow(t *testing.T) {
	var f = NewFlowController(1000)
	f.OnAck(1000)
	var cwndBefore = f.CWND()
	f.OnLoss()
	assert.Equal(t, cwndBefore/2, f.CWND())
	assert.Equal(t, f.ssthresh, f.CWND())
}

func TestFlowController_TimeoutCollapsesToOneSegment(t *testing.T) {
	var f = NewFlowController(1000)
	f.OnAck(1000)
	f.OnTimeout()
	assert.Equal(t, uint32(1000), f.CWND())
	assert.True(t, f.InSlowStart())
}

// TestFlowController_SsthreshFloor is the §8 invariant: ssthresh never
// drops below 2*MSS regardless of how small cwnd got beforehand.
func TestFlowController_SsthreshFloor(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var mss = uint32(rapid.IntRange(100, 2000).Draw(rt, "mss"))
		var f = NewFlowController(mss)
		var events = rapid.IntRange(0, 30).Draw(rt, "events")
		for i := 0; i < events; i++ {
			switch rapid.IntRange(0, 2).Draw(rt, "event") {
			case 0:
				f.OnAck(uint32(rapid.IntRange(1, 10000).Draw(rt, "acked")))
			case 1:
				f.OnLoss()
			case 2:
				f.OnTimeout()
			}
			assert.GreaterOrEqual(rt, f.ssthresh, 2*mss)
			assert.GreaterOrEqual(rt, f.CWND(), mss)
		}
	})
}
