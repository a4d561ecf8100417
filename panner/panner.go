package panner

import (
	"fmt"
	"math"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/synthizer-project/synthizer/engine"
)

// Panner renders one mono input block to a (possibly multi-channel)
// output for a given listener-relative direction.
type Panner interface {
	// Pan reads in (BlockSize mono samples) and adds its spatialized
	// contribution into out (one slice per output channel, each
	// BlockSize samples), at the given azimuth/elevation in degrees
	// (azimuth 0 = front, increasing clockwise; elevation 0 = level,
	// positive = above).
	Pan(in []float32, azimuthDeg, elevationDeg float64, out [][]float32)
}

// StereoPanner implements equal-power stereo panning: a source directly
// ahead is reproduced equally in both channels, and panning to a side
// raises that channel while lowering the other such that the total power
// (L^2+R^2) stays constant.
type StereoPanner struct{}

// NewStereoPanner creates a stereo equal-power panner.
func NewStereoPanner() *StereoPanner {
	return &StereoPanner{}
}

// Pan implements Panner. Only elevation-agnostic azimuth is used;
// elevationDeg is accepted for interface conformance but has no effect
// on a 2-channel pan.
func (p *StereoPanner) Pan(in []float32, azimuthDeg, _ float64, out [][]float32) {
	if len(out) < 2 {
		return
	}
	// Map azimuth (-90 = hard left, 0 = center, +90 = hard right) to a
	// pan angle in [0, pi/2].
	az := azimuthDeg
	if az < -90 {
		az = -90
	}
	if az > 90 {
		az = 90
	}
	theta := (az + 90) / 180 * (math.Pi / 2)
	leftGain := float32(math.Cos(theta))
	rightGain := float32(math.Sin(theta))

	n := len(in)
	if len(out[0]) < n {
		n = len(out[0])
	}
	for i := 0; i < n; i++ {
		out[0][i] += in[i] * leftGain
		out[1][i] += in[i] * rightGain
	}
}

// HrtfPanner spatializes a mono source by convolving it against a
// bilinearly-interpolated impulse response for the source's current
// direction, applying a fractional interaural time difference per ear,
// and crossfading from the previous block's impulse to the current
// one across the block to avoid the zipper artifact a hard impulse
// switch would produce.
type HrtfPanner struct {
	table *HRTFTable
	cache *cache.Cache

	prevLeft, prevRight []float64
	delayLeft, delayRight *fractionalDelayLine

	// Per-tick convolution scratch, pre-sized at construction so Pan
	// never allocates on the audio thread (spec §5). convScratchLeft/
	// Right hold one block's convolved output; extScratchLeft/Right hold
	// the input each convolveCrossfaded call reads from: the previous
	// block's last ImpulseLength-1 input samples (zero before the first
	// block) followed by the current block.
	convScratchLeft, convScratchRight []float64
	extScratchLeft, extScratchRight   []float64

	// OnCacheEvent, if set, is called once per Pan with whether the
	// interpolated impulse for this tick's direction was already cached.
	// The engine uses this to feed panner occupancy metrics; nil by
	// default so standalone use of HrtfPanner pays no cost.
	OnCacheEvent func(hit bool)
}

// NewHrtfPanner creates an HRTF panner voice drawing from table. Each
// voice owns its own crossfade state, ITD delay lines and impulse
// cache; only the table is shared between voices.
func NewHrtfPanner(table *HRTFTable) *HrtfPanner {
	return &HrtfPanner{
		table:           table,
		cache:           cache.New(5*time.Minute, 10*time.Minute),
		prevLeft:        make([]float64, ImpulseLength),
		prevRight:       make([]float64, ImpulseLength),
		delayLeft:       newFractionalDelayLine(maxITDTaps),
		delayRight:      newFractionalDelayLine(maxITDTaps),
		convScratchLeft:  make([]float64, engine.BlockSize),
		convScratchRight: make([]float64, engine.BlockSize),
		extScratchLeft:   make([]float64, ImpulseLength-1+engine.BlockSize),
		extScratchRight:  make([]float64, ImpulseLength-1+engine.BlockSize),
	}
}

// maxITDTaps bounds the synthetic ITD curve, matching the onset spread
// used by generateCell.
const maxITDTaps = 3.0

func cacheKey(azDeg, elDeg float64) string {
	// Quantize to 0.5-degree cells; repeated Pan calls within a cell
	// hit the cache and are bit-identical, satisfying the HRTF
	// round-trip stability testable property (spec §8).
	return fmt.Sprintf("%.1f/%.1f", math.Round(azDeg*2)/2, math.Round(elDeg*2)/2)
}

func (p *HrtfPanner) interpolated(azDeg, elDeg float64) (left, right []float64) {
	key := cacheKey(azDeg, elDeg)
	if v, ok := p.cache.Get(key); ok {
		if p.OnCacheEvent != nil {
			p.OnCacheEvent(true)
		}
		pair := v.([2][]float64)
		return pair[0], pair[1]
	}
	if p.OnCacheEvent != nil {
		p.OnCacheEvent(false)
	}
	left, right = p.table.Interpolate(azDeg, elDeg)
	p.cache.SetDefault(key, [2][]float64{left, right})
	return left, right
}

// itdTaps returns the per-ear fractional delay, in taps, for azDeg:
// sources to one side arrive at the contralateral ear later.
func itdTaps(azDeg float64) (leftDelay, rightDelay float64) {
	azRad := azDeg * math.Pi / 180
	rightDelay = maxITDTaps * (0.5 - 0.5*math.Sin(azRad))
	leftDelay = maxITDTaps * (0.5 + 0.5*math.Sin(azRad))
	return
}

// Pan implements Panner.
func (p *HrtfPanner) Pan(in []float32, azimuthDeg, elevationDeg float64, out [][]float32) {
	if len(out) < 2 {
		return
	}
	left, right := p.interpolated(azimuthDeg, elevationDeg)
	leftDelay, rightDelay := itdTaps(azimuthDeg)

	n := len(in)
	if len(out[0]) < n {
		n = len(out[0])
	}
	if len(out[1]) < n {
		n = len(out[1])
	}

	crossfadeLen := n
	if crossfadeLen > 64 {
		crossfadeLen = 64 // crossfade over the first part of the block only
	}

	convLeft := p.convScratchLeft[:n]
	convRight := p.convScratchRight[:n]
	convolveCrossfaded(in, p.prevLeft, left, crossfadeLen, convLeft, p.extScratchLeft)
	convolveCrossfaded(in, p.prevRight, right, crossfadeLen, convRight, p.extScratchRight)

	p.delayLeft.SetDelay(leftDelay)
	p.delayRight.SetDelay(rightDelay)

	for i := 0; i < n; i++ {
		out[0][i] += float32(p.delayLeft.Process(convLeft[i]))
		out[1][i] += float32(p.delayRight.Process(convRight[i]))
	}

	p.prevLeft = left
	p.prevRight = right
}
