// Package effect implements the Effects stage (spec §4.10): Echo, a bank
// of fixed-tap delay lines, and an FDN (feedback delay network) Reverb.
// Both consume an effect input bus (summed via router.MixIntoRamped from
// every Source routed to them) and produce a stereo contribution to the
// master bus.
//
// Grounded on the teacher's equalizer/biquad cascade style for per-line
// filtering (dsp.Filter); delay memory is a plain circular buffer kept in
// this package (delayMemory, fdnLine), since the teacher repo has no
// delay-line or reverb precedent of its own to imitate.
package effect

// Effect is the Context Scheduler's view of an effect: drain its input
// bus and add its contribution to out.
type Effect interface {
	// NumChannels reports the effect's output channel count (stereo, 2).
	NumChannels() int
	// Tick consumes in (the effect's accumulated input bus, one slice per
	// channel) and adds the effect's output into out (same shape). Per
	// spec §9's resolution of the input-bus-zeroing Open Question, every
	// Tick implementation zeroes in before returning: the Router only
	// ever accumulates into it, so the effect itself is the only party
	// positioned to reset it for the next tick.
	Tick(in [][]float32, out [][]float32)
}

// zeroBus clears every sample of every channel in bus in place.
func zeroBus(bus [][]float32) {
	for _, ch := range bus {
		for i := range ch {
			ch[i] = 0
		}
	}
}
