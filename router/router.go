// Package router implements the Router (spec §4.5): a sparse graph of
// (source, effect) routes, each carrying a gain and a fade state
// machine, that accumulates source output into effect input buses once
// per tick. Per spec §9's resolution of the effect input-bus zeroing
// Open Question, the Router never zeroes an input bus itself — each
// effect owns zeroing its own bus at the end of its tick — so Router's
// only write operation is +=.
//
// Grounded on the teacher's internal/audiocore processing_pipeline.go
// chain-of-stages dispatch shape, repurposed from a single linear chain
// into a sparse many-to-many matrix addressed by (source handle, effect
// handle) pairs, stored as a flat sorted slice rather than a matrix or
// per-source map, since the expected route count is small relative to
// source*effect and a sorted slice keeps iteration cache-friendly and
// allocation-free after the route set stabilizes.
package router

import (
	"sort"

	"github.com/synthizer-project/synthizer/internal/errors"
)

// FadeState is a route's position in its gain fade state machine (spec
// §4.5).
type FadeState int

const (
	// FadingIn: route was just added or its gain was just raised from
	// zero; gain ramps linearly from 0 to its target over FadeSamples.
	FadingIn FadeState = iota
	// Steady: route is at its target gain with no ramp in progress.
	Steady
	// FadingOut: route is scheduled for removal; gain ramps linearly
	// from its current value to 0 over FadeSamples, after which it
	// becomes Dead.
	FadingOut
	// Dead: fade-out completed; the route is removed on the next
	// Compact call.
	Dead
)

// key uniquely identifies a route.
type key struct {
	source uint64
	effect uint64
}

func (a key) less(b key) bool {
	if a.source != b.source {
		return a.source < b.source
	}
	return a.effect < b.effect
}

// route is one edge in the routing graph.
type route struct {
	key         key
	targetGain  float64
	startGain   float64
	state       FadeState
	elapsed     int
	fadeSamples int
}

// currentGain returns the route's gain at its current fade position.
func (r *route) currentGain() float64 {
	return r.gainAt(r.elapsed)
}

// gainAt returns the route's gain at the given elapsed-samples position
// within its current fade, without mutating route state. Used both for
// the route's gain at the start of a tick (elapsed) and at the end of it
// (elapsed+blockSize), so a per-sample ramp between the two can be built
// for the samples in between (spec §4.5).
func (r *route) gainAt(elapsed int) float64 {
	switch r.state {
	case Steady:
		return r.targetGain
	case Dead:
		return 0
	case FadingIn:
		if r.fadeSamples <= 0 {
			return r.targetGain
		}
		t := float64(elapsed) / float64(r.fadeSamples)
		return r.startGain + (r.targetGain-r.startGain)*clamp01(t)
	case FadingOut:
		if r.fadeSamples <= 0 {
			return 0
		}
		t := float64(elapsed) / float64(r.fadeSamples)
		return r.startGain * (1 - clamp01(t))
	default:
		return 0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Router holds every live route, sorted by (source, effect).
type Router struct {
	routes []*route
}

// New creates an empty Router.
func New() *Router {
	return &Router{}
}

func (rt *Router) find(k key) (int, bool) {
	i := sort.Search(len(rt.routes), func(i int) bool {
		return !rt.routes[i].key.less(k)
	})
	if i < len(rt.routes) && rt.routes[i].key == k {
		return i, true
	}
	return i, false
}

// AddRoute establishes a route from source to effect at gain, fading in
// over fadeSamples. If the route already exists, its target gain is
// updated and it re-fades from its current gain to the new target
// (rather than restarting from zero), matching the spec's requirement
// that changing an existing route's gain never produces a discontinuity.
func (rt *Router) AddRoute(source, effect uint64, gain float64, fadeSamples int) {
	k := key{source, effect}
	i, found := rt.find(k)
	if found {
		r := rt.routes[i]
		r.startGain = r.currentGain()
		r.targetGain = gain
		r.elapsed = 0
		r.fadeSamples = fadeSamples
		r.state = FadingIn
		return
	}

	r := &route{
		key:         k,
		targetGain:  gain,
		startGain:   0,
		state:       FadingIn,
		fadeSamples: fadeSamples,
	}
	rt.routes = append(rt.routes, nil)
	copy(rt.routes[i+1:], rt.routes[i:])
	rt.routes[i] = r
}

// RemoveRoute begins fading the route from source to effect out over
// fadeSamples; it becomes Dead (and is later compacted away) once the
// fade completes. Returns an error if no such route exists.
func (rt *Router) RemoveRoute(source, effect uint64, fadeSamples int) error {
	i, found := rt.find(key{source, effect})
	if !found {
		return errors.Newf("no route from source %d to effect %d", source, effect).
			Component("router").
			Category(errors.CategoryRouting).
			Build()
	}
	r := rt.routes[i]
	r.startGain = r.currentGain()
	r.state = FadingOut
	r.elapsed = 0
	r.fadeSamples = fadeSamples
	return nil
}

// Advance moves every route's fade state machine forward by one tick of
// blockSize samples, transitioning FadingIn->Steady and FadingOut->Dead
// as their ramps complete. Must be called exactly once per tick.
func (rt *Router) Advance(blockSize int) {
	for _, r := range rt.routes {
		switch r.state {
		case FadingIn:
			r.elapsed += blockSize
			if r.elapsed >= r.fadeSamples {
				r.state = Steady
			}
		case FadingOut:
			r.elapsed += blockSize
			if r.elapsed >= r.fadeSamples {
				r.state = Dead
			}
		}
	}
}

// Compact removes every Dead route, including one that the Advance call
// just before it has marked Dead. Call after Advance once per tick (or
// periodically).
func (rt *Router) Compact() {
	kept := rt.routes[:0]
	for _, r := range rt.routes {
		if r.state != Dead {
			kept = append(kept, r)
		}
	}
	rt.routes = kept
}

// RoutesForEffect returns the current ramped gain for every route
// feeding into effect, in (source, gain) pairs. The returned slice
// aliases no internal state and is safe for the caller to hold past the
// next tick, but is only ever recomputed on demand, so this should be
// called once per tick per effect.
func (rt *Router) RoutesForEffect(effect uint64) []SourceGain {
	var out []SourceGain
	for _, r := range rt.routes {
		if r.key.effect == effect {
			out = append(out, SourceGain{Source: r.key.source, Gain: r.currentGain()})
		}
	}
	return out
}

// SourceGain pairs a source handle with its current ramped gain into one
// effect.
type SourceGain struct {
	Source uint64
	Gain   float64
}

// RoutesForSource returns, for every effect that source feeds, the
// route's gain at the start and end of the block about to be ticked (the
// block is blockSize samples). Mirrors RoutesForEffect but queried from
// the source side, which is the direction the Context Scheduler needs:
// spec §4.11's "router.dispatch() already folded into source.tick()"
// means each source, once ticked, pushes its own output into every
// effect it routes to, rather than each effect pulling from every
// source. Callers ramp sample-by-sample from StartGain to EndGain across
// the block (spec §4.5's "gain_ramp ... per-sample linear interpolation
// from current_gain to current_gain + step") rather than applying a
// single scalar gain for the whole block — see MixIntoRamped.
func (rt *Router) RoutesForSource(source uint64, blockSize int) []EffectGain {
	var out []EffectGain
	for _, r := range rt.routes {
		if r.key.source == source {
			out = append(out, EffectGain{
				Effect:     r.key.effect,
				StartGain:  r.currentGain(),
				EndGain:    r.gainAt(r.elapsed + blockSize),
			})
		}
	}
	return out
}

// EffectGain pairs an effect handle with the ramped gain a route feeds
// into it from one source across one block: StartGain at sample 0,
// EndGain at the end of the block. MixIntoRamped gives the last of n
// samples StartGain+(EndGain-StartGain)*(n-1)/n, so EndGain itself is
// the gain the next block starts from.
type EffectGain struct {
	Effect               uint64
	StartGain, EndGain   float64
}

// Accumulate adds src, scaled by gain, into dst in place: dst[i] +=
// src[i]*gain for every channel and sample. MixInto uses it for routes
// whose source and destination channel counts match; it works on plain
// buffers, keeping the Router itself free of any buffer ownership.
func Accumulate(dst, src [][]float32, gain float64) {
	g := float32(gain)
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for c := 0; c < n; c++ {
		d := dst[c]
		s := src[c]
		m := len(d)
		if len(s) < m {
			m = len(s)
		}
		for i := 0; i < m; i++ {
			d[i] += s[i] * g
		}
	}
}

// MixInto adds src into dst, scaled by gain, reconciling channel-count
// mismatches via the mixdown rules spec §4.5 calls for: a mono source
// feeding a multi-channel effect bus is duplicated into every destination
// channel; a multi-channel source feeding a mono (or narrower) effect bus
// is downmixed by averaging the extra source channels into each
// destination channel. Same-channel-count routes degrade to a plain
// per-channel Accumulate.
func MixInto(dst, src [][]float32, gain float64) {
	g := float32(gain)
	switch {
	case len(src) == 0 || len(dst) == 0:
		return
	case len(src) == len(dst):
		Accumulate(dst, src, gain)
	case len(src) == 1:
		s := src[0]
		for c := range dst {
			d := dst[c]
			n := len(s)
			if len(d) < n {
				n = len(d)
			}
			for i := 0; i < n; i++ {
				d[i] += s[i] * g
			}
		}
	case len(dst) == 1:
		d := dst[0]
		inv := g / float32(len(src))
		for _, s := range src {
			n := len(s)
			if len(d) < n {
				n = len(d)
			}
			for i := 0; i < n; i++ {
				d[i] += s[i] * inv
			}
		}
	default:
		// Irregular channel counts (e.g. quad into stereo): fold the
		// extra source channels round-robin into the destination set,
		// same averaging rule as the mono-destination case but per
		// destination channel instead of collapsing to one.
		for c := range dst {
			d := dst[c]
			for si := c; si < len(src); si += len(dst) {
				s := src[si]
				n := len(s)
				if len(d) < n {
					n = len(d)
				}
				for i := 0; i < n; i++ {
					d[i] += s[i] * g
				}
			}
		}
	}
}

// MixIntoRamped adds src into dst with a per-sample gain ramping
// linearly from startGain to endGain across the block, reconciling
// channel-count mismatches via the same mixdown rules as MixInto (spec
// §4.5: "add source_bus * gain_ramp into the effect's input bus, with
// per-sample linear interpolation from current_gain to current_gain +
// step for the samples in this block"). When startGain == endGain this
// degrades to a flat-gain MixInto, so callers can use it unconditionally
// for every route regardless of fade state.
func MixIntoRamped(dst, src [][]float32, startGain, endGain float64) {
	if len(src) == 0 || len(dst) == 0 {
		return
	}
	n := 0
	for _, s := range src {
		if len(s) > n {
			n = len(s)
		}
	}
	if n == 0 {
		return
	}
	step := (endGain - startGain) / float64(n)

	mix := func(d, s []float32) {
		m := len(s)
		if len(d) < m {
			m = len(d)
		}
		g := startGain
		for i := 0; i < m; i++ {
			d[i] += s[i] * float32(g)
			g += step
		}
	}

	switch {
	case len(src) == len(dst):
		for c := range dst {
			mix(dst[c], src[c])
		}
	case len(src) == 1:
		s := src[0]
		for c := range dst {
			mix(dst[c], s)
		}
	case len(dst) == 1:
		d := dst[0]
		invStep := step / float64(len(src))
		g := startGain / float64(len(src))
		m := len(d)
		for _, s := range src {
			if len(s) < m {
				m = len(s)
			}
		}
		for i := 0; i < m; i++ {
			var sum float32
			for _, s := range src {
				if i < len(s) {
					sum += s[i]
				}
			}
			d[i] += sum * float32(g)
			g += invStep
		}
	default:
		// Irregular channel counts (e.g. quad into stereo): fold the
		// extra source channels round-robin into the destination set,
		// same rule as MixInto's default case but gain-ramped.
		for c := range dst {
			d := dst[c]
			for si := c; si < len(src); si += len(dst) {
				mix(d, src[si])
			}
		}
	}
}

// Len reports the number of routes currently tracked, live or fading.
// Intended for metrics and tests.
func (rt *Router) Len() int {
	return len(rt.routes)
}

// RouteCounts reports how many routes are in a steady state versus
// actively ramping (fading in or out), for metrics.
func (rt *Router) RouteCounts() (steady, fading int) {
	for _, r := range rt.routes {
		switch r.state {
		case Steady:
			steady++
		case FadingIn, FadingOut:
			fading++
		}
	}
	return steady, fading
}
