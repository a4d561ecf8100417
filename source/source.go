// Package source implements the Source Graph (spec §4.8): a Source mixes
// its attached Generators down to mono, applies an optional filter and
// gain, and pans the result according to its kind — DirectSource adds
// the mono mix unpanned to every output channel (a multi-channel
// generator's channels are summed, not kept apart), PannedSource applies a
// caller-supplied azimuth/elevation, and Source3D derives azimuth,
// elevation, and a distance-based gain from 3D listener/source geometry.
//
// Per spec §9 Design Notes, this uses a capability-record/tagged-variant
// dispatch (one Source struct with a Kind tag and kind-specific fields)
// instead of the C++ original's CRTP-style static inheritance, since Go
// has no template specialization and a single concrete type with a
// switch in Tick is the idiomatic replacement.
//
// Grounded on the teacher's internal/audiocore/interfaces.go AudioSource/
// AudioProcessor shape (Tick-the-graph, pull-based production) and
// manager.go's per-object gain/filter application order.
package source

import (
	"math"

	"github.com/synthizer-project/synthizer/dsp"
	"github.com/synthizer-project/synthizer/generator"
	"github.com/synthizer-project/synthizer/panner"
)

// Kind selects a Source's panning behavior.
type Kind int

const (
	Direct Kind = iota
	Panned
	Source3DKind
)

// DistanceModel selects how a Source3D's gain falls off with distance
// from the listener.
type DistanceModel int

const (
	DistanceInverse DistanceModel = iota
	DistanceLinear
	DistanceExponential
)

// DistanceParams configures a Source3D's distance attenuation.
type DistanceParams struct {
	Model        DistanceModel
	RefDistance  float64
	MaxDistance  float64
	Rolloff      float64
}

// Gain computes the attenuation factor for the given distance, clamped
// to [0,1] regardless of the underlying formula's sign so a pathological
// distance (e.g. a source exactly at the listener, or far past
// MaxDistance) never produces a negative or runaway gain (spec §4.8,
// DESIGN.md Open Question decision 5).
func (p DistanceParams) Gain(distance float64) float64 {
	d := distance
	if d < p.RefDistance {
		d = p.RefDistance
	}

	var gain float64
	switch p.Model {
	case DistanceLinear:
		if p.MaxDistance <= p.RefDistance {
			gain = 1
		} else {
			gain = 1 - p.Rolloff*(d-p.RefDistance)/(p.MaxDistance-p.RefDistance)
		}
	case DistanceExponential:
		if p.RefDistance <= 0 {
			gain = 1
		} else {
			gain = math.Pow(d/p.RefDistance, -p.Rolloff)
		}
	default: // DistanceInverse
		denom := p.RefDistance + p.Rolloff*(d-p.RefDistance)
		if denom <= 0 {
			gain = 1
		} else {
			gain = p.RefDistance / denom
		}
	}

	if gain < 0 {
		return 0
	}
	if gain > 1 {
		return 1
	}
	return gain
}

// Vec3 is a 3D point or direction.
type Vec3 struct {
	X, Y, Z float64
}

func sub(a, b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }

func length(v Vec3) float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// azimuthElevation derives the azimuth and elevation (in degrees, front
// = 0, clockwise positive) of a direction relative to a listener facing
// +Z with +Y up.
func azimuthElevation(dir Vec3) (azimuthDeg, elevationDeg float64) {
	d := length(dir)
	if d == 0 {
		return 0, 0
	}
	azimuthDeg = math.Atan2(dir.X, dir.Z) * 180 / math.Pi
	elevationDeg = math.Asin(clamp(dir.Y/d, -1, 1)) * 180 / math.Pi
	return
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Source mixes a set of Generators and routes the result to the engine's
// output bus, optionally filtered and panned.
type Source struct {
	Kind Kind
	Gain float64

	// prevGain is the Gain value at the end of the previous Tick; Tick
	// ramps linearly from prevGain to Gain across the block (spec §4.8
	// step 4) rather than applying Gain as a flat scalar, since gain is
	// one of the parameters the spec requires intra-block interpolation
	// for (spec §1 Non-goals). Constructors seed it to the initial Gain
	// so the first Tick doesn't ramp up from zero.
	prevGain float64

	// Panned-kind fields.
	AzimuthDeg, ElevationDeg float64

	// Source3D-kind fields.
	Position Vec3
	Distance DistanceParams

	Filter      *dsp.Filter
	Generators  []generator.Generator
	PannerVoice panner.Panner

	genScratch  [][]float32 // reused per-generator channel buffers, sized on first Tick
	monoScratch []float32   // reused mono-gain-applied buffer, sized on first Tick
}

// RouteBus returns this source's mono output bus as produced by the most
// recent Tick call — filtered, gained, and (for Source3DKind) distance
// attenuated, but always pre-spatialization. The Context Scheduler feeds
// this same signal to both the master bus (via the Kind-specific
// dispatch inside Tick) and to any GlobalEffect this source is routed to
// (spec §4.8 step 6, "submit routing contributions"). The returned slice
// aliases internal state and is only valid until the next Tick call.
func (s *Source) RouteBus() []float32 {
	return s.monoScratch
}

// NewDirect creates a Source that routes its mixed-down generators
// straight to the output bus with no panning.
func NewDirect() *Source {
	return &Source{Kind: Direct, Gain: 1, prevGain: 1}
}

// NewPanned creates a Source panned to a fixed azimuth/elevation via p.
func NewPanned(p panner.Panner) *Source {
	return &Source{Kind: Panned, Gain: 1, prevGain: 1, PannerVoice: p}
}

// NewSource3D creates a Source whose pan direction and distance gain are
// derived from its Position relative to a listener each tick.
func NewSource3D(p panner.Panner, dist DistanceParams) *Source {
	return &Source{Kind: Source3DKind, Gain: 1, prevGain: 1, PannerVoice: p, Distance: dist}
}

// AddGenerator attaches g to this source's mix.
func (s *Source) AddGenerator(g generator.Generator) {
	s.Generators = append(s.Generators, g)
}

// Tick mixes every attached generator down into mono (mixBuf, a
// pre-acquired BlockSize-length scratch buffer owned by the caller),
// applies the filter and gain, and writes the panned (or direct)
// result into out. listenerPos is only used for Source3DKind; other
// kinds ignore it.
func (s *Source) Tick(mixBuf []float64, listenerPos Vec3, out [][]float32) {
	for i := range mixBuf {
		mixBuf[i] = 0
	}

	blockLen := len(mixBuf)
	for _, g := range s.Generators {
		n := g.NumChannels()
		if cap(s.genScratch) < n {
			grown := make([][]float32, n)
			copy(grown, s.genScratch)
			s.genScratch = grown
		}
		bufs := s.genScratch[:n]
		for c := 0; c < n; c++ {
			if cap(bufs[c]) < blockLen {
				bufs[c] = make([]float32, blockLen)
			} else {
				bufs[c] = bufs[c][:blockLen]
			}
		}
		g.Tick(bufs)
		for c := 0; c < n; c++ {
			for i, v := range bufs[c] {
				mixBuf[i] += float64(v)
			}
		}
	}

	if s.Filter != nil && !s.Filter.Bypass() {
		s.Filter.ApplyBatch(mixBuf)
	}

	if cap(s.monoScratch) < blockLen {
		s.monoScratch = make([]float32, blockLen)
	}
	monoOut := s.monoScratch[:blockLen]
	if blockLen > 0 {
		step := (s.Gain - s.prevGain) / float64(blockLen)
		g := s.prevGain
		for i, v := range mixBuf {
			monoOut[i] = float32(v * g)
			g += step
		}
	}
	s.prevGain = s.Gain

	switch s.Kind {
	case Direct:
		for c := range out {
			n := len(monoOut)
			if len(out[c]) < n {
				n = len(out[c])
			}
			for i := 0; i < n; i++ {
				out[c][i] += monoOut[i]
			}
		}
	case Panned:
		if s.PannerVoice != nil {
			s.PannerVoice.Pan(monoOut, s.AzimuthDeg, s.ElevationDeg, out)
		}
	case Source3DKind:
		dir := sub(s.Position, listenerPos)
		az, el := azimuthElevation(dir)
		gain := s.Distance.Gain(length(dir))
		for i := range monoOut {
			monoOut[i] *= float32(gain)
		}
		if s.PannerVoice != nil {
			s.PannerVoice.Pan(monoOut, az, el, out)
		}
	}
}
