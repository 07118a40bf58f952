package zune

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestRTOEstimator_InitialRTOIsOneSecond(t *testing.T) {
	var e = NewRTOEstimator()
	assert.Equal(t, 1*time.Second, e.RTO())
}

func TestRTOEstimator_ConvergesWithStableSamples(t *testing.T) {
	var e = NewRTOEstimator()
	for i := 0; i < 20; i++ {
		e.Sample(50 * time.Millisecond)
	}
	assert.InDelta(t, float64(1*time.Second), float64(e.RTO()), float64(50*time.Millisecond))
}

func TestRTOEstimator_BackoffDoubles(t *testing.T) {
	var e = NewRTOEstimator()
	e.Sample(100 * time.Millisecond)
	var base = e.RTO()
	e.Backoff()
	assert.Equal(t, 2*base, e.RTO())
	e.Backoff()
	assert.Equal(t, 4*base, e.RTO())
}

// TestRTOEstimator_Bounds is the §8 invariant: 1000ms <= RTO <= 60000ms
// for any sequence of clean samples and backoffs.
func TestRTOEstimator_Bounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var e = NewRTOEstimator()
		var steps = rapid.IntRange(0, 50).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(rt, "backoff") {
				e.Backoff()
			} else {
				var ms = rapid.IntRange(1, 5000).Draw(rt, "sampleMs")
				e.Sample(time.Duration(ms) * time.Millisecond)
			}
			var rto = e.RTO()
			assert.GreaterOrEqual(rt, rto, rtoMin)
			assert.LessOrEqual(rt, rto, rtoMax)
		}
	})
}
