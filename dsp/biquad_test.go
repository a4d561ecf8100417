package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rms(samples []float64) float64 {
	sum := 0.0
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func TestFilterIsZero(t *testing.T) {
	f := &Filter{}
	assert.True(t, f.IsZero())

	f2, err := NewLowPass(48000, 1000, 0.707, 1)
	require.NoError(t, err)
	assert.False(t, f2.IsZero())
}

func TestIdentityFilterBitIdenticalToBypass(t *testing.T) {
	f := NewIdentity(1)
	assert.True(t, f.IsIdentity())
	assert.True(t, f.Bypass())

	in := []float64{0.1, -0.25, 0.5, 1.0, -1.0, 0.0}
	want := append([]float64(nil), in...)
	f.ApplyBatch(in)
	assert.Equal(t, want, in, "identity filter must reproduce input bit-identically")
}

func TestIsIdentityRejectsNonIdentityCoefficients(t *testing.T) {
	f, err := NewLowPass(48000, 1000, 0.707, 1)
	require.NoError(t, err)
	assert.False(t, f.IsIdentity())
	assert.False(t, f.Bypass())
}

func TestBypassTrueForZeroValue(t *testing.T) {
	var f *Filter
	assert.True(t, f.Bypass())
	f2 := &Filter{}
	assert.True(t, f2.Bypass())
}

func TestNewFilterCoefficients(t *testing.T) {
	f := NewFilter(LowPass, 1.0, 0.5, 0.25, 0.1, 0.2, 0.3, 2)
	assert.InDelta(t, 0.1, f.b0a0, 1e-10)
	assert.InDelta(t, 0.2, f.b1a0, 1e-10)
	assert.InDelta(t, 0.3, f.b2a0, 1e-10)
	assert.InDelta(t, 0.5, f.a1a0, 1e-10)
	assert.InDelta(t, 0.25, f.a2a0, 1e-10)
	assert.Len(t, f.in1, 2)
	assert.Len(t, f.in2, 2)
	assert.Len(t, f.out1, 2)
	assert.Len(t, f.out2, 2)
}

func TestApplyBatchInPlace(t *testing.T) {
	f, err := NewLowPass(48000, 1000, 0.707, 1)
	require.NoError(t, err)

	input := []float64{1.0, 0.5, 0.0, -0.5, -1.0}
	addr := &input[0]
	f.ApplyBatch(input)
	assert.Same(t, addr, &input[0])
}

func TestLowPassPassesDC(t *testing.T) {
	f, err := NewLowPass(48000, 1000, 0.707, 1)
	require.NoError(t, err)

	input := make([]float64, 1000)
	for i := range input {
		input[i] = 0.5
	}
	f.ApplyBatch(input)

	for i := 900; i < 1000; i++ {
		assert.InDelta(t, 0.5, input[i], 0.01)
	}
}

func TestLowPassAttenuatesHighFrequency(t *testing.T) {
	sampleRate := 48000.0
	highFreq := 10000.0
	f, err := NewLowPass(sampleRate, 1000, 0.707, 2)
	require.NoError(t, err)

	input := make([]float64, 48000)
	for i := range input {
		input[i] = math.Sin(2 * math.Pi * highFreq * float64(i) / sampleRate)
	}
	before := rms(input)
	f.ApplyBatch(input)
	after := rms(input[1000:])

	assert.Greater(t, before/after, 10.0)
}

func TestHighPassAttenuatesDC(t *testing.T) {
	f, err := NewHighPass(48000, 1000, 0.707, 2)
	require.NoError(t, err)

	input := make([]float64, 10000)
	for i := range input {
		input[i] = 0.5
	}
	f.ApplyBatch(input)

	avg := 0.0
	for i := 9000; i < 10000; i++ {
		avg += math.Abs(input[i])
	}
	avg /= 1000
	assert.Less(t, avg, 0.01)
}

func TestConstructorsRejectInvalidPasses(t *testing.T) {
	_, err := NewLowPass(48000, 1000, 0.707, 0)
	assert.Error(t, err)
}

func TestConstructorsRejectInvalidParameters(t *testing.T) {
	_, err := NewLowPass(0, 1000, 0.707, 1)
	assert.Error(t, err)
}

func TestMultiplePassesIncreaseAttenuation(t *testing.T) {
	sampleRate := 48000.0
	testFreq := 5000.0

	gen := func() []float64 {
		s := make([]float64, 48000)
		for i := range s {
			s[i] = math.Sin(2 * math.Pi * testFreq * float64(i) / sampleRate)
		}
		return s
	}

	one, err := NewLowPass(sampleRate, 1000, 0.707, 1)
	require.NoError(t, err)
	two, err := NewLowPass(sampleRate, 1000, 0.707, 2)
	require.NoError(t, err)

	s1 := gen()
	before := rms(s1)
	one.ApplyBatch(s1)
	atten1 := 20 * math.Log10(before/rms(s1[5000:]))

	s2 := gen()
	before2 := rms(s2)
	two.ApplyBatch(s2)
	atten2 := 20 * math.Log10(before2/rms(s2[5000:]))

	assert.Greater(t, atten2, atten1)
}

func TestFilterChainEmptyPassesThrough(t *testing.T) {
	fc := NewFilterChain()
	assert.Equal(t, 0, fc.Length())

	input := []float64{1, 0.5, 0, -0.5, -1}
	expected := append([]float64(nil), input...)
	fc.ApplyBatch(input)
	assert.Equal(t, expected, input)
}

func TestFilterChainRejectsNilOrZeroFilter(t *testing.T) {
	fc := NewFilterChain()
	assert.Error(t, fc.AddFilter(nil))
	assert.Error(t, fc.AddFilter(&Filter{}))
}

func TestFilterChainAppliesInSequence(t *testing.T) {
	fc := NewFilterChain()
	lp, err := NewLowPass(48000, 2000, 0.707, 1)
	require.NoError(t, err)
	hp, err := NewHighPass(48000, 500, 0.707, 1)
	require.NoError(t, err)
	require.NoError(t, fc.AddFilter(lp))
	require.NoError(t, fc.AddFilter(hp))
	assert.Equal(t, 2, fc.Length())

	input := make([]float64, 4800)
	for i := range input {
		input[i] = math.Sin(2 * math.Pi * 1000 * float64(i) / 48000)
	}
	fc.ApplyBatch(input)

	for i, v := range input {
		assert.False(t, math.IsNaN(v), "sample %d is NaN", i)
		assert.False(t, math.IsInf(v, 0), "sample %d is Inf", i)
	}
}

func TestPeakingBoostsAtCenterFrequency(t *testing.T) {
	f, err := NewPeaking(48000, 1000, 1.0, 6.0, 1)
	require.NoError(t, err)
	assert.False(t, f.IsZero())

	input := make([]float64, 48000)
	for i := range input {
		input[i] = math.Sin(2 * math.Pi * 1000 * float64(i) / 48000)
	}
	before := rms(input[1000:])
	f.ApplyBatch(input)
	after := rms(input[1000:])
	// +6dB at the center frequency is an amplitude gain of about 2.
	assert.Greater(t, after/before, 1.5)
}
