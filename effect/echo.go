package effect

import "github.com/synthizer-project/synthizer/internal/errors"

// Tap is one fixed delay tap: how far back to read (in frames) and how
// much of that delayed signal to send to each output channel.
type Tap struct {
	DelayFrames int
	GainL       float64
	GainR       float64
}

// delayMemory is a single mono circular buffer sized to the effect's
// configured maximum delay; every tap reads from it at its own offset, so
// one write per input sample serves every tap (spec §4.10: "Delay memory
// is a single large ring sized to the configured max delay").
type delayMemory struct {
	buf []float32
	pos int
}

func newDelayMemory(capacityFrames int) *delayMemory {
	if capacityFrames < 1 {
		capacityFrames = 1
	}
	return &delayMemory{buf: make([]float32, capacityFrames)}
}

func (d *delayMemory) write(sample float32) {
	d.buf[d.pos] = sample
	d.pos++
	if d.pos >= len(d.buf) {
		d.pos = 0
	}
}

// readBack returns the sample written delayFrames frames ago (0 = the
// sample just written).
func (d *delayMemory) readBack(delayFrames int) float32 {
	n := len(d.buf)
	idx := d.pos - 1 - delayFrames
	idx %= n
	if idx < 0 {
		idx += n
	}
	return d.buf[idx]
}

// Echo is a bank of fixed-tap delay lines (spec §4.10). Input is mixed
// down to mono before being written into delay memory; each tap
// contributes its delayed, gained copy to the stereo output bus.
type Echo struct {
	mem  *delayMemory
	taps []Tap
}

// NewEcho creates an Echo whose delay memory holds maxDelayFrames frames,
// so SetTaps accepts tap delays of up to maxDelayFrames-1 frames.
func NewEcho(maxDelayFrames int) *Echo {
	return &Echo{mem: newDelayMemory(maxDelayFrames)}
}

// SetTaps replaces the entire tap list. No Context property or method
// calls it: the tap list changes only through direct SetTaps calls on
// the *Echo.
func (e *Echo) SetTaps(taps []Tap) error {
	for _, t := range taps {
		if t.DelayFrames < 0 || t.DelayFrames >= len(e.mem.buf) {
			return errors.Newf("echo: tap delay %d out of range [0,%d)", t.DelayFrames, len(e.mem.buf)).
				Component("effect").
				Category(errors.CategoryValidation).
				Build()
		}
	}
	e.taps = append(e.taps[:0], taps...)
	return nil
}

// NumChannels implements Effect; Echo always produces stereo.
func (e *Echo) NumChannels() int { return 2 }

// Tick implements Effect. in may have any channel count (summed to mono
// before entering delay memory); out must have exactly 2 channels.
func (e *Echo) Tick(in [][]float32, out [][]float32) {
	n := len(in[0])
	left, right := out[0], out[1]

	for i := 0; i < n; i++ {
		var mono float32
		for _, ch := range in {
			mono += ch[i]
		}
		if len(in) > 1 {
			mono /= float32(len(in))
		}
		e.mem.write(mono)

		for _, t := range e.taps {
			delayed := e.mem.readBack(t.DelayFrames)
			left[i] += delayed * float32(t.GainL)
			right[i] += delayed * float32(t.GainR)
		}
	}

	zeroBus(in)
}
