package panner

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStereoPannerCenterIsEqual(t *testing.T) {
	p := NewStereoPanner()
	in := make([]float32, 16)
	for i := range in {
		in[i] = 1.0
	}
	out := [][]float32{make([]float32, 16), make([]float32, 16)}
	p.Pan(in, 0, 0, out)

	assert.InDelta(t, out[0][0], out[1][0], 1e-5)
}

func TestStereoPannerHardLeftSilencesRight(t *testing.T) {
	p := NewStereoPanner()
	in := make([]float32, 16)
	for i := range in {
		in[i] = 1.0
	}
	out := [][]float32{make([]float32, 16), make([]float32, 16)}
	p.Pan(in, -90, 0, out)

	assert.InDelta(t, float32(0), out[1][0], 1e-4)
	assert.Greater(t, out[0][0], float32(0.9))
}

func TestStereoPannerEqualPower(t *testing.T) {
	p := NewStereoPanner()
	in := make([]float32, 16)
	for i := range in {
		in[i] = 1.0
	}
	out := [][]float32{make([]float32, 16), make([]float32, 16)}
	p.Pan(in, 45, 0, out)

	power := float64(out[0][0])*float64(out[0][0]) + float64(out[1][0])*float64(out[1][0])
	assert.InDelta(t, 1.0, power, 1e-4)
}

func TestHRTFTableInterpolationSumsWeightsToOne(t *testing.T) {
	table := NewProceduralTable(30, 15, 60)
	left, right := table.Interpolate(17.0, 3.0)
	assert.Len(t, left, ImpulseLength)
	assert.Len(t, right, ImpulseLength)

	for i, v := range left {
		assert.False(t, math.IsNaN(v), "left tap %d NaN", i)
	}

	_, weights := table.nearestFour(17.0, 3.0)
	assert.InDelta(t, 1.0, weights[0]+weights[1]+weights[2]+weights[3], 1e-9)
}

func TestHRTFPannerRoundTripStability(t *testing.T) {
	table := NewProceduralTable(30, 15, 60)
	p := NewHrtfPanner(table)

	in := make([]float32, 256)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 44100))
	}

	run := func() [][]float32 {
		out := [][]float32{make([]float32, 256), make([]float32, 256)}
		p.Pan(in, 30, 10, out)
		return out
	}

	out1 := run()
	p2 := NewHrtfPanner(table)
	out2Holder := [][]float32{make([]float32, 256), make([]float32, 256)}
	p2.Pan(in, 30, 10, out2Holder)

	require.Equal(t, len(out1[0]), len(out2Holder[0]))
	for i := range out1[0] {
		assert.InDelta(t, out1[0][i], out2Holder[0][i], 1e-6)
	}
}

func TestHRTFPannerProducesNoNaN(t *testing.T) {
	table := NewProceduralTable(30, 15, 60)
	p := NewHrtfPanner(table)

	in := make([]float32, 256)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * 1000 * float64(i) / 44100))
	}
	out := [][]float32{make([]float32, 256), make([]float32, 256)}
	p.Pan(in, -45, 0, out)

	for ch := 0; ch < 2; ch++ {
		for i, v := range out[ch] {
			assert.False(t, math.IsNaN(float64(v)), "channel %d sample %d is NaN", ch, i)
		}
	}
}

func TestFractionalDelayLineInterpolates(t *testing.T) {
	d := newFractionalDelayLine(8)
	d.SetDelay(1.5)

	var lastOut float64
	for i := 0; i < 10; i++ {
		lastOut = d.Process(float64(i))
	}
	assert.False(t, math.IsNaN(lastOut))
	// A 1.5-sample delay on input 9 averages the inputs 8 and 7.
	assert.InDelta(t, 7.5, lastOut, 1e-9)
}
