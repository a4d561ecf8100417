package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRouteFadesInFromZero(t *testing.T) {
	rt := New()
	rt.AddRoute(1, 1, 1.0, 100)

	gains := rt.RoutesForEffect(1)
	require.Len(t, gains, 1)
	assert.Equal(t, 0.0, gains[0].Gain)

	rt.Advance(50)
	gains = rt.RoutesForEffect(1)
	assert.InDelta(t, 0.5, gains[0].Gain, 1e-9)

	rt.Advance(50)
	gains = rt.RoutesForEffect(1)
	assert.Equal(t, 1.0, gains[0].Gain)
}

func TestRemoveRouteFadesOutThenDies(t *testing.T) {
	rt := New()
	rt.AddRoute(1, 1, 1.0, 0) // instantly steady
	rt.Advance(0)

	require.NoError(t, rt.RemoveRoute(1, 1, 100))
	gains := rt.RoutesForEffect(1)
	assert.Equal(t, 1.0, gains[0].Gain)

	rt.Advance(100)
	gains = rt.RoutesForEffect(1)
	assert.Equal(t, 0.0, gains[0].Gain)

	rt.Compact()
	assert.Equal(t, 0, rt.Len())
}

func TestRemoveNonexistentRouteErrors(t *testing.T) {
	rt := New()
	err := rt.RemoveRoute(1, 1, 10)
	assert.Error(t, err)
}

func TestRouteCountsSplitsSteadyAndFading(t *testing.T) {
	rt := New()
	rt.AddRoute(1, 1, 1.0, 0)
	rt.Advance(0) // steady immediately, fadeSamples=0

	rt.AddRoute(2, 1, 1.0, 100)

	steady, fading := rt.RouteCounts()
	assert.Equal(t, 1, steady)
	assert.Equal(t, 1, fading)
}

func TestChangingGainRerampsWithoutDiscontinuity(t *testing.T) {
	rt := New()
	rt.AddRoute(1, 1, 1.0, 0)
	rt.Advance(0) // now steady at 1.0

	rt.AddRoute(1, 1, 0.0, 100) // reramp target down to 0
	gains := rt.RoutesForEffect(1)
	assert.Equal(t, 1.0, gains[0].Gain, "reramp must start from current gain, not zero")

	rt.Advance(100)
	gains = rt.RoutesForEffect(1)
	assert.Equal(t, 0.0, gains[0].Gain)
}

func TestAccumulateScalesAndAdds(t *testing.T) {
	dst := [][]float32{{1, 1, 1}}
	src := [][]float32{{2, 2, 2}}
	Accumulate(dst, src, 0.5)
	assert.Equal(t, []float32{2, 2, 2}, dst[0])
}

func TestRoutesForEffectOnlyReturnsMatchingEffect(t *testing.T) {
	rt := New()
	rt.AddRoute(1, 1, 1.0, 0)
	rt.AddRoute(1, 2, 1.0, 0)
	rt.AddRoute(2, 1, 1.0, 0)

	assert.Len(t, rt.RoutesForEffect(1), 2)
	assert.Len(t, rt.RoutesForEffect(2), 1)
}

func TestRoutesForSourceReportsStartAndEndGainAcrossBlock(t *testing.T) {
	rt := New()
	rt.AddRoute(1, 1, 1.0, 100) // fades in over 100 samples

	gains := rt.RoutesForSource(1, 50)
	require.Len(t, gains, 1)
	assert.Equal(t, 0.0, gains[0].StartGain)
	assert.InDelta(t, 0.5, gains[0].EndGain, 1e-9)

	rt.Advance(50)
	gains = rt.RoutesForSource(1, 50)
	assert.InDelta(t, 0.5, gains[0].StartGain, 1e-9)
	assert.Equal(t, 1.0, gains[0].EndGain)
}

func TestMixIntoRampedInterpolatesPerSample(t *testing.T) {
	dst := [][]float32{{0, 0, 0, 0}}
	src := [][]float32{{1, 1, 1, 1}}
	MixIntoRamped(dst, src, 0.0, 1.0)
	assert.InDeltaSlice(t, []float64{0.0, 0.25, 0.5, 0.75}, toF64(dst[0]), 1e-6)
}

func TestMixIntoRampedFlatGainMatchesMixInto(t *testing.T) {
	dstRamped := [][]float32{{0, 0, 0, 0}}
	dstFlat := [][]float32{{0, 0, 0, 0}}
	src := [][]float32{{1, 2, 3, 4}}
	MixIntoRamped(dstRamped, src, 0.5, 0.5)
	MixInto(dstFlat, src, 0.5)
	assert.Equal(t, dstFlat[0], dstRamped[0])
}

func toF64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
