package generator

import "math"

// sineVoice is one oscillator in a FastSineBank: a unit circle phasor
// advanced by complex multiplication each sample, which is cheaper per
// sample than calling math.Sin/Cos directly and accumulates no more
// phase error than single-precision playback already tolerates over the
// lifetime of a voice (periodically renormalized to counteract drift).
type sineVoice struct {
	re, im       float64
	stepRe, stepIm float64
	gain         float64
	samplesSinceNorm int
}

func newSineVoice(freq, sampleRate, gain float64) sineVoice {
	w := 2 * math.Pi * freq / sampleRate
	return sineVoice{
		re:     1,
		im:     0,
		stepRe: math.Cos(w),
		stepIm: math.Sin(w),
		gain:   gain,
	}
}

func (v *sineVoice) next() float64 {
	out := v.im * v.gain

	nre := v.re*v.stepRe - v.im*v.stepIm
	nim := v.re*v.stepIm + v.im*v.stepRe
	v.re, v.im = nre, nim

	v.samplesSinceNorm++
	if v.samplesSinceNorm >= 4096 {
		v.samplesSinceNorm = 0
		norm := math.Hypot(v.re, v.im)
		if norm > 0 {
			v.re /= norm
			v.im /= norm
		}
	}
	return out
}

// FastSineBank sums a bank of independent sine oscillators into a mono
// signal, intended for additive-synthesis style generators where each
// voice is cheap enough that a bank of dozens is still real-time safe.
type FastSineBank struct {
	voices []sineVoice
}

// NewFastSineBank creates an empty bank. Use AddVoice to populate it.
func NewFastSineBank() *FastSineBank {
	return &FastSineBank{}
}

// AddVoice adds an oscillator at freq Hz (relative to sampleRate) with
// linear gain.
func (b *FastSineBank) AddVoice(freq, sampleRate, gain float64) {
	b.voices = append(b.voices, newSineVoice(freq, sampleRate, gain))
}

// NumChannels implements Generator; the bank sums to a single mono
// channel.
func (b *FastSineBank) NumChannels() int { return 1 }

// Tick implements Generator.
func (b *FastSineBank) Tick(out [][]float32) {
	ch := out[0]
	for i := range ch {
		var sum float64
		for v := range b.voices {
			sum += b.voices[v].next()
		}
		ch[i] = float32(sum)
	}
}
