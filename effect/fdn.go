package effect

import (
	"math"

	"github.com/synthizer-project/synthizer/dsp"
)

// DelayLengthProvider supplies the prime-ish delay line lengths an FDN
// reverb uses. Generating good primes (evenly spread across an octave,
// mutually coprime enough to avoid audible resonances) is a tuning
// concern independent of the reverb's feedback topology, so it is
// pulled out behind an interface — a production deployment can swap in a
// curated table without touching the reverb's mixing math.
type DelayLengthProvider interface {
	// Lengths returns n delay line lengths, in frames, each at least
	// minFrames and no larger than maxFrames.
	Lengths(n, minFrames, maxFrames int) []int
}

// sieveDelayLengths is the built-in DelayLengthProvider: a plain
// sieve of Eratosthenes over [minFrames,maxFrames], picking n primes
// spread as evenly as possible across the range. Production tunings with
// curated, psychoacoustically-vetted delay lengths are expected to supply
// their own DelayLengthProvider; generating those tables is out of scope
// here (spec §1 non-goals).
type sieveDelayLengths struct{}

// NewSieveDelayLengths returns the default DelayLengthProvider.
func NewSieveDelayLengths() DelayLengthProvider { return sieveDelayLengths{} }

func (sieveDelayLengths) Lengths(n, minFrames, maxFrames int) []int {
	if minFrames < 2 {
		minFrames = 2
	}
	if maxFrames < minFrames {
		maxFrames = minFrames
	}
	primes := sieve(maxFrames)
	var candidates []int
	for _, p := range primes {
		if p >= minFrames {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		candidates = []int{minFrames}
	}
	out := make([]int, n)
	step := float64(len(candidates)-1) / float64(maxInt(n-1, 1))
	for i := 0; i < n; i++ {
		idx := int(math.Round(float64(i) * step))
		if idx >= len(candidates) {
			idx = len(candidates) - 1
		}
		out[i] = candidates[idx]
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// sieve returns every prime <= limit via a sieve of Eratosthenes.
func sieve(limit int) []int {
	if limit < 2 {
		return nil
	}
	composite := make([]bool, limit+1)
	var primes []int
	for i := 2; i <= limit; i++ {
		if composite[i] {
			continue
		}
		primes = append(primes, i)
		for j := i * i; j <= limit; j += i {
			composite[j] = true
		}
	}
	return primes
}

// ReverbParams configures tail density and decay of an FDNReverb.
type ReverbParams struct {
	T60                     float64 // seconds for the tail to decay 60dB
	MeanFreePath            float64 // not read by NewFDNReverb; delay line lengths come only from the DelayLengthProvider
	LateReflectionsLFRolloff float64 // 0..1, per-line damping filter cutoff fraction
}

// fdnLine is one delay line of the network: a circular buffer, a damping
// low-pass (per spec §4.10, "per-line low-pass damping"), and the
// feedback gain derived from T60 for this line's length.
type fdnLine struct {
	buf          []float32
	pos          int
	feedbackGain float64
	damping      *dsp.Filter
}

func newFDNLine(lengthFrames int, feedbackGain float64, damping *dsp.Filter) *fdnLine {
	return &fdnLine{
		buf:          make([]float32, lengthFrames),
		feedbackGain: feedbackGain,
		damping:      damping,
	}
}

func (l *fdnLine) read() float32 {
	return l.buf[l.pos]
}

func (l *fdnLine) write(v float32) {
	l.buf[l.pos] = v
	l.pos++
	if l.pos >= len(l.buf) {
		l.pos = 0
	}
}

// FDNReverb is a feedback-delay-network reverb (spec §4.10): N delay
// lines mixed through an orthonormal matrix (Hadamard when N is a power
// of two, Householder otherwise) with per-line damping and a feedback
// gain derived from T60, producing a diffuse late-reverberation tail.
type FDNReverb struct {
	lines    []*fdnLine
	matrix   [][]float64 // NxN orthonormal mixing matrix
	wet      float64
	scratch  []float64 // reused per-tick: delay line outputs before mixing
	mixed    []float64 // reused per-tick: post-matrix values to feed back
}

// NewFDNReverb builds a reverb with the given number of delay lines,
// each sampled from provider within [minFrames,maxFrames], tuned by
// params at the given sample rate.
func NewFDNReverb(numLines int, minFrames, maxFrames int, sampleRate float64, params ReverbParams, provider DelayLengthProvider) (*FDNReverb, error) {
	if provider == nil {
		provider = NewSieveDelayLengths()
	}
	lengths := provider.Lengths(numLines, minFrames, maxFrames)

	lines := make([]*fdnLine, numLines)
	for i, length := range lengths {
		delaySeconds := float64(length) / sampleRate
		feedbackGain := math.Pow(10, -3*delaySeconds/maxFloat(params.T60, 1e-3))

		cutoffFrac := clampUnit(params.LateReflectionsLFRolloff)
		cutoffHz := 20 + cutoffFrac*(sampleRate/2-20)
		damping, err := dsp.NewLowPass(sampleRate, cutoffHz, 0.707, 1)
		if err != nil {
			return nil, err
		}
		lines[i] = newFDNLine(length, feedbackGain, damping)
	}

	return &FDNReverb{
		lines:   lines,
		matrix:  mixingMatrix(numLines),
		wet:     1,
		scratch: make([]float64, numLines),
		mixed:   make([]float64, numLines),
	}, nil
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SetWet sets the linear wet-mix gain applied to the reverb's stereo sum.
func (r *FDNReverb) SetWet(wet float64) { r.wet = wet }

// mixingMatrix returns an NxN orthonormal mixing matrix: a normalized
// Hadamard matrix when n is a power of two, else a Householder reflection
// matrix (I - 2/n * ones*ones^T), both standard FDN feedback matrices
// that preserve energy (spec §4.10, "orthonormal mixing matrix").
func mixingMatrix(n int) [][]float64 {
	if isPowerOfTwo(n) {
		return hadamard(n)
	}
	return householder(n)
}

func isPowerOfTwo(n int) bool { return n > 0 && n&(n-1) == 0 }

func hadamard(n int) [][]float64 {
	h := [][]float64{{1}}
	for len(h) < n {
		size := len(h)
		next := make([][]float64, size*2)
		for i := range next {
			next[i] = make([]float64, size*2)
		}
		for i := 0; i < size; i++ {
			for j := 0; j < size; j++ {
				next[i][j] = h[i][j]
				next[i][j+size] = h[i][j]
				next[i+size][j] = h[i][j]
				next[i+size][j+size] = -h[i][j]
			}
		}
		h = next
	}
	scale := 1 / math.Sqrt(float64(n))
	for i := range h {
		for j := range h[i] {
			h[i][j] *= scale
		}
	}
	return h
}

func householder(n int) [][]float64 {
	m := make([][]float64, n)
	factor := 2.0 / float64(n)
	for i := range m {
		m[i] = make([]float64, n)
		for j := range m[i] {
			if i == j {
				m[i][j] = 1 - factor
			} else {
				m[i][j] = -factor
			}
		}
	}
	return m
}

// NumChannels implements Effect; FDNReverb always produces stereo.
func (r *FDNReverb) NumChannels() int { return 2 }

// Tick implements Effect: in is summed to mono, injected into every delay
// line, the lines are damped and fed back through the mixing matrix, and
// a stereo sum of the line outputs (even-indexed lines to left,
// odd-indexed to right) is
// added into out scaled by the wet gain.
func (r *FDNReverb) Tick(in [][]float32, out [][]float32) {
	n := len(in[0])
	left, right := out[0], out[1]
	numLines := len(r.lines)

	for i := 0; i < n; i++ {
		var mono float32
		for _, ch := range in {
			mono += ch[i]
		}
		if len(in) > 1 {
			mono /= float32(len(in))
		}

		for li, line := range r.lines {
			r.scratch[li] = float64(line.read())
		}

		for li := range r.lines {
			var sum float64
			row := r.matrix[li]
			for lj, v := range r.scratch {
				sum += row[lj] * v
			}
			r.mixed[li] = sum
		}

		var l, rr float32
		for li, line := range r.lines {
			fedBack := r.mixed[li]*line.feedbackGain + float64(mono)/float64(numLines)
			dampBuf := [1]float64{fedBack}
			line.damping.ApplyBatch(dampBuf[:])
			line.write(float32(dampBuf[0]))

			out := float32(r.scratch[li])
			if li%2 == 0 {
				l += out
			} else {
				rr += out
			}
		}

		left[i] += l * float32(r.wet)
		right[i] += rr * float32(r.wet)
	}

	zeroBus(in)
}
