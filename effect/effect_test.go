package effect

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEchoSingleTapReproducesDelayedImpulse(t *testing.T) {
	e := NewEcho(100)
	require.NoError(t, e.SetTaps([]Tap{{DelayFrames: 10, GainL: 1, GainR: 1}}))

	in := [][]float32{make([]float32, 20)}
	in[0][0] = 1
	out := [][]float32{make([]float32, 20), make([]float32, 20)}

	e.Tick(in, out)

	assert.Equal(t, float32(1), out[0][10])
	assert.Equal(t, float32(1), out[1][10])
	for i, v := range out[0] {
		if i != 10 {
			assert.Equal(t, float32(0), v, "unexpected energy at frame %d", i)
		}
	}
}

func TestEchoRejectsOutOfRangeDelay(t *testing.T) {
	e := NewEcho(10)
	err := e.SetTaps([]Tap{{DelayFrames: 50}})
	assert.Error(t, err)
}

func TestEchoAccumulatesMultipleTaps(t *testing.T) {
	e := NewEcho(100)
	require.NoError(t, e.SetTaps([]Tap{
		{DelayFrames: 5, GainL: 0.5, GainR: 0.5},
		{DelayFrames: 5, GainL: 0.5, GainR: 0.5},
	}))

	in := [][]float32{make([]float32, 10)}
	in[0][0] = 1
	out := [][]float32{make([]float32, 10), make([]float32, 10)}
	e.Tick(in, out)

	assert.InDelta(t, 1.0, out[0][5], 1e-6)
}

func TestSieveDelayLengthsReturnsPrimesInRange(t *testing.T) {
	lengths := NewSieveDelayLengths().Lengths(4, 100, 500)
	require.Len(t, lengths, 4)
	for _, l := range lengths {
		assert.True(t, isPrime(l), "%d is not prime", l)
		assert.GreaterOrEqual(t, l, 100)
		assert.LessOrEqual(t, l, 500)
	}
}

func isPrime(n int) bool {
	if n < 2 {
		return false
	}
	for i := 2; i*i <= n; i++ {
		if n%i == 0 {
			return false
		}
	}
	return true
}

func TestHadamardMatrixIsOrthonormal(t *testing.T) {
	m := hadamard(4)
	for i := range m {
		for j := range m {
			var dot float64
			for k := range m {
				dot += m[i][k] * m[j][k]
			}
			if i == j {
				assert.InDelta(t, 1.0, dot, 1e-9)
			} else {
				assert.InDelta(t, 0.0, dot, 1e-9)
			}
		}
	}
}

func TestFDNReverbProducesDecayingTailWithoutNaN(t *testing.T) {
	r, err := NewFDNReverb(4, 100, 500, 44100, ReverbParams{T60: 1.0, MeanFreePath: 0.02, LateReflectionsLFRolloff: 0.5}, nil)
	require.NoError(t, err)

	in := [][]float32{make([]float32, 4096)}
	in[0][0] = 1
	out := [][]float32{make([]float32, 4096), make([]float32, 4096)}

	r.Tick(in, out)

	var energyEarly, energyLate float64
	for i := 0; i < 200; i++ {
		energyEarly += float64(out[0][i]*out[0][i] + out[1][i]*out[1][i])
	}
	for i := len(out[0]) - 200; i < len(out[0]); i++ {
		energyLate += float64(out[0][i]*out[0][i] + out[1][i]*out[1][i])
	}

	for _, v := range out[0] {
		assert.False(t, math.IsNaN(float64(v)))
	}
	assert.Greater(t, energyEarly, 0.0)
	assert.Less(t, energyLate, energyEarly)
}

func TestFDNReverbNumChannelsIsStereo(t *testing.T) {
	r, err := NewFDNReverb(4, 100, 500, 44100, ReverbParams{T60: 1.0}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, r.NumChannels())
}
