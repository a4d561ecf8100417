package generator

import "github.com/synthizer-project/synthizer/internal/errors"

// Buffer is fully-decoded, immutable, in-memory planar PCM audio: one
// []float32 per channel, all the same length. Buffers are shared
// read-only across every BufferGenerator that plays them.
type Buffer struct {
	channels   [][]float32
	sampleRate int
}

// NewBuffer wraps already-decoded planar PCM data as a Buffer. All
// channel slices must be the same length.
func NewBuffer(channelData [][]float32, sampleRate int) (*Buffer, error) {
	if len(channelData) == 0 {
		return nil, errors.Newf("buffer: at least one channel is required").
			Component("generator").
			Category(errors.CategoryValidation).
			Build()
	}
	n := len(channelData[0])
	for _, c := range channelData {
		if len(c) != n {
			return nil, errors.Newf("buffer: channel length mismatch").
				Component("generator").
				Category(errors.CategoryValidation).
				Build()
		}
	}
	return &Buffer{channels: channelData, sampleRate: sampleRate}, nil
}

// Channels reports the buffer's channel count.
func (b *Buffer) Channels() int { return len(b.channels) }

// Frames reports the buffer's length in frames.
func (b *Buffer) Frames() int {
	if len(b.channels) == 0 {
		return 0
	}
	return len(b.channels[0])
}

// SampleRate reports the buffer's native sample rate.
func (b *Buffer) SampleRate() int { return b.sampleRate }

// BufferGenerator plays a Buffer, optionally looping, with a
// pitch-bend-capable playback rate applied via linear-interpolation
// resampling between adjacent frames.
type BufferGenerator struct {
	buf      *Buffer
	pos      float64 // fractional frame position
	rate     float64 // playback rate multiplier; 1.0 = native speed
	looping  bool
	gain     float64
	finished bool
	looped   bool // set when playback wraps during the most recent Tick
}

// NewBufferGenerator creates a generator playing buf at native rate
// starting from frame 0.
func NewBufferGenerator(buf *Buffer) *BufferGenerator {
	return &BufferGenerator{buf: buf, rate: 1.0, gain: 1.0}
}

// NumChannels implements Generator.
func (g *BufferGenerator) NumChannels() int { return g.buf.Channels() }

// SetRate sets the playback rate multiplier (pitch bend); 2.0 plays an
// octave higher and twice as fast, 0.5 an octave lower and half speed.
func (g *BufferGenerator) SetRate(rate float64) { g.rate = rate }

// SetLooping sets whether playback wraps to the start on reaching the
// end of the buffer instead of finishing.
func (g *BufferGenerator) SetLooping(looping bool) { g.looping = looping }

// SetGain sets a linear output gain applied to every sample.
func (g *BufferGenerator) SetGain(gain float64) { g.gain = gain }

// Seek moves the playback position to the given frame.
func (g *BufferGenerator) Seek(frame int) {
	g.pos = float64(frame)
	g.finished = false
}

// Finished reports whether a non-looping generator has played past the
// end of its buffer.
func (g *BufferGenerator) Finished() bool { return g.finished }

// ConsumeLooped reports whether playback wrapped back to the start of
// the buffer during the most recent Tick, and clears the flag. Intended
// to be polled once per tick by whatever posts the Looped event (spec
// §6); "consume" semantics (read-and-clear) avoid firing the same wrap
// twice if nothing polls for a tick or two.
func (g *BufferGenerator) ConsumeLooped() bool {
	v := g.looped
	g.looped = false
	return v
}

// Tick implements Generator.
func (g *BufferGenerator) Tick(out [][]float32) {
	frames := g.buf.Frames()
	if frames == 0 {
		zero(out)
		return
	}

	n := len(out[0])
	for i := 0; i < n; i++ {
		if g.finished {
			for c := range out {
				out[c][i] = 0
			}
			continue
		}

		p0 := int(g.pos)
		frac := float32(g.pos - float64(p0))
		p1 := p0 + 1

		if g.looping {
			p0 %= frames
			p1 %= frames
		} else if p1 >= frames {
			if p0 >= frames {
				g.finished = true
				for c := range out {
					out[c][i] = 0
				}
				g.pos += g.rate
				continue
			}
			p1 = frames - 1
		}

		for c, ch := range g.buf.channels {
			s0 := ch[p0]
			s1 := ch[p1]
			out[c][i] = (s0 + (s1-s0)*frac) * float32(g.gain)
		}

		g.pos += g.rate
		if g.looping && g.pos >= float64(frames) {
			g.pos -= float64(frames)
			g.looped = true
		}
	}
}

func zero(out [][]float32) {
	for _, ch := range out {
		for i := range ch {
			ch[i] = 0
		}
	}
}
