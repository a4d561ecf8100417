package source

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/synthizer-project/synthizer/generator"
)

type constGenerator struct {
	channels int
	value    float32
}

func (g constGenerator) NumChannels() int { return g.channels }

func (g constGenerator) Tick(out [][]float32) {
	for _, ch := range out {
		for i := range ch {
			ch[i] = g.value
		}
	}
}

func TestDirectSourceRampsGainAcrossBlock(t *testing.T) {
	s := NewDirect()
	s.AddGenerator(constGenerator{channels: 1, value: 1})
	s.Gain = 1 // steady to start

	mix := make([]float64, 4)
	out := [][]float32{make([]float32, 4)}
	s.Tick(mix, Vec3{}, out)
	for _, v := range out[0] {
		assert.InDelta(t, 1.0, v, 1e-6)
	}

	// Drop the gain target to 0; the next block must ramp linearly from
	// 1 down to 0 rather than snapping immediately (spec §4.8 step 4).
	s.Gain = 0
	out = [][]float32{make([]float32, 4)}
	s.Tick(mix, Vec3{}, out)
	want := []float32{1.0, 0.75, 0.5, 0.25}
	for i, v := range out[0] {
		assert.InDelta(t, want[i], v, 1e-6)
	}

	// A third block at steady gain 0 produces silence.
	out = [][]float32{make([]float32, 4)}
	s.Tick(mix, Vec3{}, out)
	for _, v := range out[0] {
		assert.InDelta(t, 0.0, v, 1e-6)
	}
}

func TestDistanceParamsGainClampedToUnitRange(t *testing.T) {
	p := DistanceParams{Model: DistanceInverse, RefDistance: 1, MaxDistance: 100, Rolloff: 1}
	assert.InDelta(t, 1.0, p.Gain(0), 1e-9, "at or inside ref distance, gain is 1")
	assert.LessOrEqual(t, p.Gain(1000), 1.0)
	assert.GreaterOrEqual(t, p.Gain(1000), 0.0)
}

func TestAzimuthElevationFrontIsZero(t *testing.T) {
	az, el := azimuthElevation(Vec3{X: 0, Y: 0, Z: 1})
	assert.InDelta(t, 0, az, 1e-9)
	assert.InDelta(t, 0, el, 1e-9)
}

var _ generator.Generator = constGenerator{}
